package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"masjid/internal/core"
	"masjid/internal/sheets"
)

// Store keeps summary rows in memory. It stands in for the spreadsheet when
// none is configured.
type Store struct {
	mu   sync.Mutex
	rows map[core.MonthKey]sheets.MonthSummary
}

var (
	_ sheets.SummaryWriter = (*Store)(nil)
	_ sheets.SummaryReader = (*Store)(nil)
)

func New() *Store {
	return &Store{rows: map[core.MonthKey]sheets.MonthSummary{}}
}

// UpsertMonthSummary stores the month's row and returns a synthetic reference.
func (s *Store) UpsertMonthSummary(_ context.Context, snap core.MonthSnapshot) (string, error) {
	if !snap.Record.Key.Valid() {
		return "", core.ErrInvalidMonthKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[snap.Record.Key] = sheets.SummaryFromSnapshot(snap)
	return fmt.Sprintf("mem:%s", snap.Record.Key), nil
}

// ListMonthSummaries returns rows ordered by month.
func (s *Store) ListMonthSummaries(_ context.Context) ([]sheets.MonthSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.MonthSummary, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}
