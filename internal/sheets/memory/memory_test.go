package memory

import (
	"context"
	"testing"

	"masjid/internal/core"
)

func TestUpsertReplacesMonthRow(t *testing.T) {
	ctx := context.Background()
	s := New()

	rec := core.EmptyMonth("2024-03")
	rec.OldBalance = core.Money{Cents: 100}
	if ref, err := s.UpsertMonthSummary(ctx, core.NewSnapshot(rec)); err != nil || ref != "mem:2024-03" {
		t.Fatalf("upsert: %q %v", ref, err)
	}
	rec.OldBalance = core.Money{Cents: 300}
	if _, err := s.UpsertMonthSummary(ctx, core.NewSnapshot(rec)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertMonthSummary(ctx, core.NewSnapshot(core.EmptyMonth("2024-01"))); err != nil {
		t.Fatal(err)
	}

	rows, _ := s.ListMonthSummaries(ctx)
	if len(rows) != 2 || rows[0].Month != "2024-01" {
		t.Fatalf("rows: %+v", rows)
	}
	if rows[1].FinalBalance.Cents != 300 {
		t.Fatalf("row not replaced: %+v", rows[1])
	}
}

func TestUpsertRejectsInvalidMonth(t *testing.T) {
	if _, err := New().UpsertMonthSummary(context.Background(), core.MonthSnapshot{}); err == nil {
		t.Fatal("expected error")
	}
}
