package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"mess/internal/core"
)

var (
	ErrMalformedDocument = errors.New("malformed ledger document")
	ErrMissingKey        = errors.New("missing required key")
)

// RequiredKeys must be present as arrays in an imported document. The
// remaining collections default to empty when absent.
var RequiredKeys = []string{"members", "meals", "expenses", "deposits"}

// Export renders a snapshot as an indented JSON document. It fails, and
// writes nothing, if any amount is not a finite number.
func Export(snap core.Snapshot) ([]byte, error) {
	snap = snap.Clone()
	snap.Normalize()
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return append(out, '\n'), nil
}

// Decode parses and validates a document without touching any store.
func Decode(data []byte) (core.Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	for _, key := range RequiredKeys {
		v, ok := raw[key]
		if !ok {
			return core.Snapshot{}, fmt.Errorf("%w: %s", ErrMissingKey, key)
		}
		if !bytes.HasPrefix(bytes.TrimSpace(v), []byte("[")) {
			return core.Snapshot{}, fmt.Errorf("%w: %s must be an array", ErrMalformedDocument, key)
		}
	}

	var snap core.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	snap.Normalize()
	snap.Meals = canonicalMeals(snap.Meals)
	return snap, nil
}

// Export renders the current state.
func (s *Store) Export() ([]byte, error) {
	return Export(s.snap)
}

// Import replaces the whole ledger with the document's contents. On any
// error the store is left exactly as it was.
func (s *Store) Import(data []byte) error {
	snap, err := Decode(data)
	if err != nil {
		return err
	}
	s.Replace(snap)
	return nil
}
