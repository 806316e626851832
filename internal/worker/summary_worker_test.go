package worker

import (
	"context"
	"errors"
	"testing"

	"masjid/internal/amqp"
	"masjid/internal/core"
	"masjid/internal/ledger"
	ledgermem "masjid/internal/ledger/memory"
	"masjid/internal/services"
	sheetsmem "masjid/internal/sheets/memory"
)

func newWorker(t *testing.T, seed string) (*SummaryWorker, *sheetsmem.Store) {
	t.Helper()
	store, err := ledgermem.NewFromJSON([]byte(seed))
	if err != nil {
		t.Fatal(err)
	}
	rows := sheetsmem.New()
	svc := services.NewBalanceService(ledger.New(store), nil)
	return NewSummaryWorker(svc, rows), rows
}

func TestHandleMonthFinalized(t *testing.T) {
	w, rows := newWorker(t, `{"finance":{"2024-03":{"old_balance":1000,"final_balance":1000}}}`)

	if err := w.HandleMonthFinalized(context.Background(), amqp.NewMonthFinalizedMessage("2024-03", 0)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	list, _ := rows.ListMonthSummaries(context.Background())
	if len(list) != 1 || list[0].FinalBalance.Cents != 100000 {
		t.Fatalf("rows: %+v", list)
	}
}

func TestHandleMonthFinalizedDropsInvalidMonth(t *testing.T) {
	w, rows := newWorker(t, `{}`)
	if err := w.HandleMonthFinalized(context.Background(), &amqp.MonthFinalizedMessage{Month: "March"}); err != nil {
		t.Fatalf("invalid month should be dropped, got %v", err)
	}
	if list, _ := rows.ListMonthSummaries(context.Background()); len(list) != 0 {
		t.Fatalf("unexpected rows: %+v", list)
	}
}

func TestSyncFinalizedMonthsSkipsOpenMonths(t *testing.T) {
	w, rows := newWorker(t, `{"finance":{
		"2024-01":{"final_balance":10},
		"2024-02":{"old_balance":10},
		"2024-03":{"final_balance":0}
	}}`)
	n, err := w.SyncFinalizedMonths(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("synced %d err=%v", n, err)
	}
	list, _ := rows.ListMonthSummaries(context.Background())
	if len(list) != 2 || list[0].Month != "2024-01" || list[1].Month != "2024-03" {
		t.Fatalf("rows: %+v", list)
	}
}

type failingWriter struct{}

func (failingWriter) UpsertMonthSummary(context.Context, core.MonthSnapshot) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestHandleMonthFinalizedReturnsWriteError(t *testing.T) {
	store := ledgermem.New()
	w := NewSummaryWorker(services.NewBalanceService(ledger.New(store), nil), failingWriter{})
	if err := w.HandleMonthFinalized(context.Background(), amqp.NewMonthFinalizedMessage("2024-03", 0)); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
}
