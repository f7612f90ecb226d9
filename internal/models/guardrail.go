package models

// GuardrailStatus is the outcome of the structural checks run before enrichment.
type GuardrailStatus string

const (
	GuardrailOK       GuardrailStatus = "OK"
	GuardrailWarn     GuardrailStatus = "WARN"
	GuardrailRejected GuardrailStatus = "REJECTED"
	GuardrailSkipped  GuardrailStatus = "SKIPPED"
)

// RejectedCategory is the category given to records the guardrail rejects.
const RejectedCategory = "Rejected"

// GuardrailResult is stored on the record under "guardrail".
type GuardrailResult struct {
	Status GuardrailStatus `json:"status"`
	Notes  []string        `json:"notes"`
}
