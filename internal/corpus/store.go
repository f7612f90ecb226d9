package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"mailcorpus/internal/identity"
	"mailcorpus/internal/logging"
	"mailcorpus/internal/models"
)

var errNotObject = errors.New("entry is not a JSON object")

// Store persists the whole corpus as one JSON array in a single file.
//
// Every write rewrites the full file through a temp file and a rename, so a
// crash never leaves a half-written corpus. The mutex only serializes callers
// inside one process; separate processes writing the same file can still lose
// updates (last writer wins).
type Store struct {
	path string
	mu   sync.Mutex
}

// AddResult counts the outcome of AddItems.
type AddResult struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	MissingID  int `json:"missing_id"`
}

// NewStore creates a Store backed by the file at path. The file is created on first save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored records. A missing, empty or unreadable file yields an
// empty corpus. Content that is not a JSON array is deleted. Array elements that
// are not record objects are skipped here but kept in the file.
func (s *Store) Load() []models.EmailRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, _ := s.load()
	return items
}

// load returns the decodable records and the raw array elements that could not
// be decoded, so rewrites of the file can carry the latter along.
func (s *Store) load() ([]models.EmailRecord, []json.RawMessage) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Log.WithField("path", s.path).Warnf("Corpus file unreadable: %v", err)
		}
		return []models.EmailRecord{}, nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []models.EmailRecord{}, nil
	}

	var elems []json.RawMessage
	if trimmed[0] != '[' {
		err = errors.New("top-level value is not an array")
	} else {
		err = json.Unmarshal(trimmed, &elems)
	}
	if err != nil {
		logging.Log.WithField("path", s.path).Warnf("Corpus file corrupt, discarding it: %v", err)
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logging.Log.WithField("path", s.path).Errorf("Could not remove corrupt corpus file: %v", rmErr)
		}
		return []models.EmailRecord{}, nil
	}

	items := make([]models.EmailRecord, 0, len(elems))
	var undecoded []json.RawMessage
	for i, elem := range elems {
		var rec models.EmailRecord
		err := errNotObject
		if bytes.HasPrefix(bytes.TrimSpace(elem), []byte("{")) {
			err = json.Unmarshal(elem, &rec)
		}
		if err != nil {
			logging.Log.WithField("path", s.path).Warnf("Skipping corpus entry %d: %v", i, err)
			undecoded = append(undecoded, elem)
			continue
		}
		items = append(items, rec)
	}
	return items, undecoded
}

// Save replaces the whole corpus with items.
func (s *Store) Save(items []models.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(items, nil)
}

// save writes items followed by any undecoded entries carried over from load.
func (s *Store) save(items []models.EmailRecord, undecoded []json.RawMessage) error {
	elems := make([]any, 0, len(items)+len(undecoded))
	for _, item := range items {
		elems = append(elems, item)
	}
	for _, raw := range undecoded {
		elems = append(elems, raw)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(elems); err != nil {
		return fmt.Errorf("encoding corpus: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating corpus directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp corpus file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing corpus: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing corpus: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing corpus: %w", err)
	}
	return nil
}

// Clear deletes the backing file. An absent file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clearing corpus: %w", err)
	}
	return nil
}

// AddItems appends the records whose identity is not yet stored. Records without
// any identity are counted and dropped; no identity is generated here. The corpus
// is written only when something was inserted.
func (s *Store) AddItems(items []models.EmailRecord) (AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res AddResult
	existing, undecoded := s.load()

	seen := make(map[string]struct{}, len(existing)*2)
	for i := range existing {
		markSeen(seen, &existing[i])
	}

	for _, item := range items {
		id := item.Identity()
		if id == "" {
			res.MissingID++
			continue
		}
		if _, dup := seen[id]; dup {
			res.Duplicates++
			continue
		}
		if item.UID == "" {
			item.UID = id
		}
		markSeen(seen, &item)
		existing = append(existing, item)
		res.Inserted++
	}

	if res.Inserted == 0 {
		return res, nil
	}
	if err := s.save(existing, undecoded); err != nil {
		return res, err
	}
	return res, nil
}

func markSeen(seen map[string]struct{}, r *models.EmailRecord) {
	if r.UID != "" {
		seen[r.UID] = struct{}{}
	}
	if r.MessageID != "" {
		seen[r.MessageID] = struct{}{}
	}
}

// ApplyCategoryLabel adds category to every stored record whose identity is in ids.
// Records that already carry the label are left alone. It reports whether any
// record changed; the corpus is written only in that case.
func (s *Store) ApplyCategoryLabel(ids []string, category string) (bool, error) {
	if category == "" || len(ids) == 0 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			wanted[id] = struct{}{}
		}
	}

	items, undecoded := s.load()
	updated := false
	for i := range items {
		uid := identity.AssignUID(&items[i])
		if _, ok := wanted[uid]; !ok {
			continue
		}
		if items[i].AddCategory(category) {
			updated = true
		}
	}

	if !updated {
		return false, nil
	}
	if err := s.save(items, undecoded); err != nil {
		return false, err
	}
	return true, nil
}
