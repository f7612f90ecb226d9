package mailparse

import (
	"strings"
	"testing"
)

func TestSanitize_RemovesTrackersAndDisallowedTags(t *testing.T) {
	in := `<html><script>x</script><img src="cid:1"><img src="http://t.co/x"><p>Hi</p></html>`

	cleaned, text := Sanitize(in)

	if strings.Contains(cleaned, "<script") {
		t.Errorf("script survived: %s", cleaned)
	}
	if strings.Contains(cleaned, "cid:") {
		t.Errorf("cid image survived: %s", cleaned)
	}
	if !strings.Contains(cleaned, `src="http://t.co/x"`) {
		t.Errorf("remote image was removed: %s", cleaned)
	}
	if !strings.Contains(cleaned, "<p>Hi</p>") {
		t.Errorf("paragraph missing: %s", cleaned)
	}
	if text != "Hi" {
		t.Errorf("text = %q, want %q", text, "Hi")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantText   string
		notInHTML  []string
		wantInHTML []string
		wantNoWrap bool
	}{
		{
			name:     "empty input",
			input:    "   ",
			wantText: "",
		},
		{
			name:       "fragment keeps no wrapper",
			input:      "<div>Hello   <b>world</b></div>",
			wantText:   "Hello world",
			wantInHTML: []string{"<div>Hello   <b>world</b></div>"},
			wantNoWrap: true,
		},
		{
			name:      "all disallowed kinds",
			input:     `<style>p{}</style><meta charset="x"><link rel="x"><iframe src="a"></iframe><object></object><form><input></form><p>ok</p>`,
			wantText:  "ok",
			notInHTML: []string{"<style", "<meta", "<link", "<iframe", "<object", "<form", "<input"},
		},
		{
			name:      "image without src",
			input:     `<p>a<img alt="pixel">b</p>`,
			wantText:  "a b",
			notInHTML: []string{"<img"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned, text := Sanitize(tt.input)
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			for _, s := range tt.notInHTML {
				if strings.Contains(cleaned, s) {
					t.Errorf("cleaned HTML contains %q: %s", s, cleaned)
				}
			}
			for _, s := range tt.wantInHTML {
				if !strings.Contains(cleaned, s) {
					t.Errorf("cleaned HTML missing %q: %s", s, cleaned)
				}
			}
			if tt.wantNoWrap && strings.Contains(cleaned, "<body") {
				t.Errorf("fragment was wrapped: %s", cleaned)
			}
		})
	}
}

func TestSanitize_TextIsCapped(t *testing.T) {
	in := "<p>" + strings.Repeat("é", MaxTextChars+100) + "</p>"
	_, text := Sanitize(in)
	if n := len([]rune(text)); n != MaxTextChars {
		t.Errorf("text length = %d runes, want %d", n, MaxTextChars)
	}
}
