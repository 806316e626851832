package worker

import (
	"context"
	"fmt"
	"log/slog"

	"masjid/internal/amqp"
	"masjid/internal/core"
	"masjid/internal/log"
	"masjid/internal/sheets"
)

// MonthSource loads month snapshots.
type MonthSource interface {
	Snapshot(ctx context.Context, key core.MonthKey) (core.MonthSnapshot, error)
	Months(ctx context.Context) ([]core.MonthKey, error)
}

// SummaryWorker copies finalized month figures to the summary sheet.
type SummaryWorker struct {
	months MonthSource
	sheets sheets.SummaryWriter
}

func NewSummaryWorker(months MonthSource, writer sheets.SummaryWriter) *SummaryWorker {
	return &SummaryWorker{months: months, sheets: writer}
}

// HandleMonthFinalized reloads the announced month and writes its row. The
// row always reflects the ledger at handling time, not the message payload.
func (w *SummaryWorker) HandleMonthFinalized(ctx context.Context, msg *amqp.MonthFinalizedMessage) error {
	key, err := core.ParseMonthKey(msg.Month)
	if err != nil {
		// Unprocessable forever; acknowledge by not returning an error.
		slog.ErrorContext(ctx, "Dropping message with invalid month",
			log.FieldComponent, log.ComponentWorker,
			log.FieldMonth, msg.Month,
			log.FieldError, err)
		return nil
	}
	return w.syncMonth(ctx, key)
}

// SyncFinalizedMonths writes a row for every month with a saved final
// balance. It recovers rows for messages that were lost.
func (w *SummaryWorker) SyncFinalizedMonths(ctx context.Context) (int, error) {
	keys, err := w.months.Months(ctx)
	if err != nil {
		return 0, fmt.Errorf("list months: %w", err)
	}
	synced := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		snap, err := w.months.Snapshot(ctx, key)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load month",
				log.FieldComponent, log.ComponentWorker,
				log.FieldMonth, string(key),
				log.FieldError, err)
			continue
		}
		if !snap.Record.FinalBalanceSet {
			continue
		}
		if err := w.write(ctx, snap); err != nil {
			slog.ErrorContext(ctx, "Failed to sync month",
				log.FieldComponent, log.ComponentWorker,
				log.FieldMonth, string(key),
				log.FieldError, err)
			continue
		}
		synced++
	}
	slog.InfoContext(ctx, "Finalized months synced",
		log.FieldComponent, log.ComponentWorker,
		log.FieldOperation, log.OpSync,
		"count", synced)
	return synced, nil
}

func (w *SummaryWorker) syncMonth(ctx context.Context, key core.MonthKey) error {
	snap, err := w.months.Snapshot(ctx, key)
	if err != nil {
		return fmt.Errorf("load month %s: %w", key, err)
	}
	return w.write(ctx, snap)
}

func (w *SummaryWorker) write(ctx context.Context, snap core.MonthSnapshot) error {
	ref, err := w.sheets.UpsertMonthSummary(ctx, snap)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	slog.InfoContext(ctx, "Month summary synced",
		log.FieldComponent, log.ComponentWorker,
		log.FieldMonth, string(snap.Record.Key),
		log.FieldSheetsRef, ref)
	return nil
}
