package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// AttachmentRecord describes one attachment. Payloads are never stored, only metadata.
type AttachmentRecord struct {
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	IsInline    bool   `json:"is_inline"`
	ContentID   string `json:"content_id,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
}

// EmailRecord is the canonical representation of one message across ingestion,
// enrichment, storage and search.
//
// Extra holds any top-level JSON fields the struct does not know about, so fields
// added by enrichment collaborators survive a load/save cycle untouched.
type EmailRecord struct {
	UID       string `json:"uid,omitempty"`
	Folder    string `json:"folder,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Path      string `json:"path,omitempty"`

	From    string            `json:"from,omitempty"`
	To      []string          `json:"to,omitempty"`
	Cc      []string          `json:"cc,omitempty"`
	Bcc     []string          `json:"bcc,omitempty"`
	Subject string            `json:"subject,omitempty"`
	Date    string            `json:"date,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	BodyRaw      string `json:"body_raw"`
	BodyText     string `json:"body_text,omitempty"`
	BodyHTML     string `json:"body_html,omitempty"`
	BodyMarkdown string `json:"body_markdown,omitempty"`

	Attachments []AttachmentRecord `json:"attachments"`

	Metadata map[string]any `json:"metadata,omitempty"`

	Category     string           `json:"category,omitempty"`
	Categories   []string         `json:"categories,omitempty"`
	Temporal     json.RawMessage  `json:"temporal,omitempty"`
	Subscription json.RawMessage  `json:"subscription,omitempty"`
	Guardrail    *GuardrailResult `json:"guardrail,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// emailRecordFields mirrors EmailRecord without its JSON methods.
type emailRecordFields EmailRecord

// knownFields lists the JSON keys owned by EmailRecord itself.
var knownFields = map[string]struct{}{
	"uid": {}, "folder": {}, "message_id": {}, "path": {},
	"from": {}, "to": {}, "cc": {}, "bcc": {}, "subject": {}, "date": {}, "headers": {},
	"body_raw": {}, "body_text": {}, "body_html": {}, "body_markdown": {},
	"attachments": {}, "metadata": {},
	"category": {}, "categories": {}, "temporal": {}, "subscription": {}, "guardrail": {},
}

// MarshalJSON writes the known fields followed by Extra. Known fields win on key
// clashes; a known key held in Extra is written only when the field itself is omitted.
func (r EmailRecord) MarshalJSON() ([]byte, error) {
	fields := emailRecordFields(r)
	if fields.Attachments == nil {
		fields.Attachments = []AttachmentRecord{}
	}
	base, err := marshalPlain(fields)
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(r.Extra)+len(knownFields))
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, known := knownFields[k]; known {
			if _, emitted := merged[k]; emitted {
				continue
			}
		}
		merged[k] = r.Extra[k]
	}
	return marshalPlain(merged)
}

// marshalPlain is json.Marshal without HTML escaping; bodies keep their markup readable on disk.
func marshalPlain(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON fills the known fields and collects everything else into Extra.
// A plain string is accepted for categories. A known field whose value has the
// wrong type is kept verbatim in Extra instead of failing the whole record.
func (r *EmailRecord) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	if raw, ok := all["categories"]; ok {
		if list, ok := categoriesFromString(raw); ok {
			all["categories"] = list
			normalized, err := json.Marshal(all)
			if err != nil {
				return err
			}
			data = normalized
		}
	}

	var fields emailRecordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		fields = decodeKnownFields(all)
	} else {
		for k := range knownFields {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		all = nil
	}

	*r = EmailRecord(fields)
	if len(r.Attachments) == 0 {
		r.Attachments = nil
	}
	r.Extra = all
	return nil
}

// decodeKnownFields decodes the known keys one by one and removes the ones that
// decoded from all. Keys that fail stay in all.
func decodeKnownFields(all map[string]json.RawMessage) emailRecordFields {
	var fields emailRecordFields
	for k, v := range all {
		if _, known := knownFields[k]; !known {
			continue
		}
		one, err := json.Marshal(map[string]json.RawMessage{k: v})
		if err != nil {
			continue
		}
		var check emailRecordFields
		if err := json.Unmarshal(one, &check); err != nil {
			continue
		}
		_ = json.Unmarshal(one, &fields)
		delete(all, k)
	}
	return fields
}

// categoriesFromString turns a JSON string into a one-element list (empty when blank).
func categoriesFromString(raw json.RawMessage) (json.RawMessage, bool) {
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, false
	}
	list := []string{}
	if v := strings.TrimSpace(single); v != "" {
		list = append(list, v)
	}
	out, err := json.Marshal(list)
	if err != nil {
		return nil, false
	}
	return out, true
}

// Identity returns the deduplication key: uid, else message id.
func (r *EmailRecord) Identity() string {
	if r.UID != "" {
		return r.UID
	}
	return r.MessageID
}

// AddCategory appends category to the category set if missing and fills the
// primary category when it is empty. It reports whether the set changed.
func (r *EmailRecord) AddCategory(category string) bool {
	changed := false
	if !containsString(r.Categories, category) {
		r.Categories = append(r.Categories, category)
		changed = true
	}
	if r.Category == "" {
		r.Category = category
		changed = true
	}
	return changed
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
