package identity

import (
	"testing"

	"mailcorpus/internal/models"
)

func TestAssignUID(t *testing.T) {
	tests := []struct {
		name     string
		record   models.EmailRecord
		expected string
		wantSyn  bool
	}{
		{
			name:     "Existing uid kept",
			record:   models.EmailRecord{UID: "keep-me", MessageID: "<a@b>"},
			expected: "keep-me",
		},
		{
			name:     "Message-ID preferred",
			record:   models.EmailRecord{MessageID: "<a@b>"},
			expected: "<a@b>",
		},
		{
			name:    "Synthetic when nothing known",
			record:  models.EmailRecord{},
			wantSyn: true,
		},
		{
			name:    "Blank Message-ID is not an identity",
			record:  models.EmailRecord{MessageID: "   "},
			wantSyn: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.record
			got := AssignUID(&rec)
			if tt.wantSyn {
				if !IsSynthetic(got) {
					t.Errorf("AssignUID() = %q, want synthetic prefix %q", got, SyntheticPrefix)
				}
			} else if got != tt.expected {
				t.Errorf("AssignUID() = %q, want %q", got, tt.expected)
			}
			if rec.UID != got {
				t.Errorf("record uid = %q, want %q", rec.UID, got)
			}
		})
	}
}

func TestAssignUID_Idempotent(t *testing.T) {
	rec := models.EmailRecord{}
	first := AssignUID(&rec)
	second := AssignUID(&rec)
	if first != second {
		t.Errorf("AssignUID() not idempotent: %q then %q", first, second)
	}
}

func TestAssignMetadataUID(t *testing.T) {
	meta := map[string]any{"id": "doc-7"}
	if got := AssignMetadataUID(meta); got != "doc-7" {
		t.Errorf("AssignMetadataUID() = %q, want doc-7", got)
	}
	if meta["uid"] != "doc-7" {
		t.Errorf("meta[uid] = %v, want doc-7", meta["uid"])
	}

	empty := map[string]any{}
	got := AssignMetadataUID(empty)
	if !IsSynthetic(got) || empty["uid"] != got {
		t.Errorf("AssignMetadataUID() on empty metadata = %q, stored %v", got, empty["uid"])
	}
}

func TestKey_Precedence(t *testing.T) {
	meta := map[string]any{"id": "3", "message_id": "2", "uid": "1"}
	if got := Key(meta); got != "1" {
		t.Errorf("Key() = %q, want 1", got)
	}
	delete(meta, "uid")
	if got := Key(meta); got != "2" {
		t.Errorf("Key() = %q, want 2", got)
	}
	if got := Key(map[string]any{"uid": 42}); got != "42" {
		t.Errorf("Key() with numeric uid = %q, want 42", got)
	}
}
