// Package memory is an in-process ReportWriter for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	ports "mess/internal/sheets"
)

var _ ports.ReportWriter = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	tabs   map[string][][]any
	writes int
}

func New() *Store {
	return &Store{tabs: make(map[string][][]any)}
}

// WriteReport replaces the tab's rows.
func (s *Store) WriteReport(ctx context.Context, tab string, rows [][]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[tab] = copyRows(rows)
	s.writes++
	return nil
}

// Rows returns a copy of a tab's rows.
func (s *Store) Rows(tab string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[tab]
	if !ok {
		return nil, false
	}
	return copyRows(rows), true
}

// Tabs lists tab names in sorted order.
func (s *Store) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tabs))
	for k := range s.tabs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func copyRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
