// Package guardrail runs cheap structural checks on a record before it is
// enriched or indexed.
package guardrail

import (
	"encoding/json"
	"strings"

	"mailcorpus/internal/models"
)

// MaxBodyBytes is the raw body size above which a record gets a warning.
const MaxBodyBytes = 500_000

const (
	NoteEmptyBody      = "Empty email body."
	NoteMissingSubject = "Missing subject."
	NoteMissingSender  = "Missing sender."
	NoteTooLarge       = "Email too large (>500KB)."
)

// Validate checks r and returns the outcome. When disabled the result is SKIPPED.
func Validate(r *models.EmailRecord, enabled bool) models.GuardrailResult {
	if !enabled {
		return models.GuardrailResult{Status: models.GuardrailSkipped, Notes: []string{}}
	}
	if strings.TrimSpace(r.BodyRaw) == "" {
		return models.GuardrailResult{Status: models.GuardrailRejected, Notes: []string{NoteEmptyBody}}
	}

	notes := []string{}
	if strings.TrimSpace(r.Subject) == "" {
		notes = append(notes, NoteMissingSubject)
	}
	if strings.TrimSpace(r.From) == "" {
		notes = append(notes, NoteMissingSender)
	}
	if len(r.BodyRaw) > MaxBodyBytes {
		notes = append(notes, NoteTooLarge)
	}

	status := models.GuardrailOK
	if len(notes) > 0 {
		status = models.GuardrailWarn
	}
	return models.GuardrailResult{Status: status, Notes: notes}
}

// Apply validates r, stores the result on it and reports whether the record may
// go on to indexing. Rejected records are labelled with models.RejectedCategory.
func Apply(r *models.EmailRecord, enabled bool) bool {
	result := Validate(r, enabled)
	r.Guardrail = &result
	if result.Status != models.GuardrailRejected {
		return true
	}

	r.Category = models.RejectedCategory
	r.AddCategory(models.RejectedCategory)
	r.Temporal = json.RawMessage(`{}`)
	r.Subscription = json.RawMessage(`{}`)
	return false
}
