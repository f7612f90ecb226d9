package main

import (
	"testing"
)

func TestSearchOptions(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		limit     string
		wantQuery string
		wantLimit int
	}{
		{name: "numeric limit", args: []string{"invoice"}, limit: "5", wantQuery: "invoice", wantLimit: 5},
		{name: "padded limit", args: []string{"invoice"}, limit: " 7 ", wantQuery: "invoice", wantLimit: 7},
		{name: "no limit", args: []string{"flight", "to", "Paris"}, limit: "", wantQuery: "flight to Paris", wantLimit: 0},
		{name: "non-numeric limit falls back", args: []string{"invoice"}, limit: "many", wantQuery: "invoice", wantLimit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchOptions(tt.args, tt.limit, "Trips", "travel")
			if got.Query != tt.wantQuery || got.Limit != tt.wantLimit {
				t.Errorf("searchOptions() = %+v, want query %q limit %d", got, tt.wantQuery, tt.wantLimit)
			}
			if got.CategoryName != "Trips" || got.FilterCategory != "travel" {
				t.Errorf("searchOptions() categories = %q/%q", got.CategoryName, got.FilterCategory)
			}
		})
	}
}
