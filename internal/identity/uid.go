// Package identity assigns the stable per-record identifier used for
// deduplication and category labelling.
package identity

import (
	"fmt"
	"strings"

	"mailcorpus/internal/models"

	"github.com/google/uuid"
)

// SyntheticPrefix marks generated identifiers so they can be told apart from
// natural Message-IDs.
const SyntheticPrefix = "xm-"

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AssignUID returns the record's uid, filling it from the Message-ID or a
// freshly generated synthetic id when empty. Calling it again returns the same value.
func AssignUID(r *models.EmailRecord) string {
	if r.UID != "" {
		return r.UID
	}
	if id := strings.TrimSpace(r.MessageID); id != "" {
		r.UID = id
		return r.UID
	}
	r.UID = SyntheticPrefix + newID()
	return r.UID
}

// AssignMetadataUID does the same for a loosely typed metadata mapping,
// storing the identifier under "uid".
func AssignMetadataUID(meta map[string]any) string {
	if id := Key(meta); id != "" {
		meta["uid"] = id
		return id
	}
	id := SyntheticPrefix + newID()
	meta["uid"] = id
	return id
}

// Key returns the first non-empty identity found in meta, checking
// "uid", "message_id" and then "id". It never generates one.
func Key(meta map[string]any) string {
	for _, k := range []string{"uid", "message_id", "id"} {
		if v := scalarString(meta[k]); v != "" {
			return v
		}
	}
	return ""
}

// IsSynthetic reports whether id was generated rather than taken from a Message-ID.
func IsSynthetic(id string) bool {
	return strings.HasPrefix(id, SyntheticPrefix)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
