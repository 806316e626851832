package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"masjid/internal/amqp"
	"masjid/internal/core"
	"masjid/internal/ledger"
	"masjid/internal/log"
)

// Publisher announces finalized months to downstream consumers.
type Publisher interface {
	PublishMonthFinalized(ctx context.Context, msg *amqp.MonthFinalizedMessage) error
}

// BalanceService computes month totals and carries balances between months.
type BalanceService struct {
	ledger    *ledger.Ledger
	publisher Publisher
}

// NewBalanceService wires the service. publisher may be nil when messaging is
// not configured.
func NewBalanceService(l *ledger.Ledger, publisher Publisher) *BalanceService {
	return &BalanceService{ledger: l, publisher: publisher}
}

// Ledger returns the underlying access layer.
func (s *BalanceService) Ledger() *ledger.Ledger { return s.ledger }

// Months lists the months that have stored data, oldest first.
func (s *BalanceService) Months(ctx context.Context) ([]core.MonthKey, error) {
	return s.ledger.Months(ctx)
}

// Snapshot loads the month together with its computed totals and the
// previous month's final balance. Both reads run concurrently. An unset old
// balance is shown as the carried-over amount but not written.
func (s *BalanceService) Snapshot(ctx context.Context, key core.MonthKey) (core.MonthSnapshot, error) {
	if !key.Valid() {
		return core.MonthSnapshot{}, fmt.Errorf("snapshot %s: %w", key, core.ErrInvalidMonthKey)
	}
	var (
		rec     core.MonthRecord
		prev    core.Money
		prevSet bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.ledger.FetchMonth(gctx, key)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	g.Go(func() error {
		p, ok, err := s.ledger.FinalBalance(gctx, key.Previous())
		if err != nil {
			return err
		}
		prev, prevSet = p, ok
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.MonthSnapshot{}, fmt.Errorf("snapshot %s: %w", key, err)
	}
	snap := core.NewSnapshot(rec)
	snap.PreviousBalance = prev
	snap.PreviousBalanceSet = prevSet
	return snap.WithCarryOver(), nil
}

// ResolvePreviousBalance returns the final balance stored for the month
// before key, or zero when that month has none.
func (s *BalanceService) ResolvePreviousBalance(ctx context.Context, key core.MonthKey) (core.Money, error) {
	if !key.Valid() {
		return core.Money{}, core.ErrInvalidMonthKey
	}
	m, _, err := s.ledger.FinalBalance(ctx, key.Previous())
	if err != nil {
		return core.Money{}, err
	}
	return m, nil
}

// PrefillOldBalance loads the month and, when its old balance was never set
// and the previous month has a final balance, stores that balance as the
// month's old balance. An explicitly set old balance is never replaced.
func (s *BalanceService) PrefillOldBalance(ctx context.Context, key core.MonthKey) (core.MonthSnapshot, bool, error) {
	snap, err := s.Snapshot(ctx, key)
	if err != nil {
		return core.MonthSnapshot{}, false, err
	}
	if !snap.CarriesOver() {
		return snap, false, nil
	}
	if err := s.ledger.SetOldBalance(ctx, key, snap.PreviousBalance); err != nil {
		return snap, false, fmt.Errorf("prefill old balance: %w", err)
	}

	slog.InfoContext(ctx, "Old balance carried over",
		log.FieldComponent, log.ComponentBalance,
		log.FieldMonth, string(key),
		log.FieldAmountCents, snap.PreviousBalance.Cents)

	snap.Record.OldBalanceSet = true
	snap.Record.Exists = true
	return snap, true, nil
}

// CalculateAndSaveFinalBalance recomputes the month from a fresh read and
// persists the final balance. A pending carry-over is written first so the
// stored month agrees with its final balance. The read and the write are not
// guarded against concurrent edits from another operator.
func (s *BalanceService) CalculateAndSaveFinalBalance(ctx context.Context, key core.MonthKey) (core.MonthSnapshot, error) {
	snap, _, err := s.PrefillOldBalance(ctx, key)
	if err != nil {
		return core.MonthSnapshot{}, err
	}
	final := snap.Totals.FinalBalance
	if err := s.ledger.SetFinalBalance(ctx, key, final); err != nil {
		return core.MonthSnapshot{}, fmt.Errorf("save final balance: %w", err)
	}
	snap.Record.FinalBalance = final
	snap.Record.FinalBalanceSet = true
	snap.Record.Exists = true

	slog.InfoContext(ctx, "Final balance saved",
		log.FieldComponent, log.ComponentBalance,
		log.FieldMonth, string(key),
		log.FieldAmountCents, final.Cents)

	// The balance is saved; a failed announcement only delays the summary sheet.
	if err := s.publish(ctx, key, final); err != nil {
		slog.ErrorContext(ctx, "Failed to publish month finalized message",
			log.FieldComponent, log.ComponentBalance,
			log.FieldMonth, string(key),
			log.FieldError, err)
	}
	return snap, nil
}

func (s *BalanceService) publish(ctx context.Context, key core.MonthKey, final core.Money) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping month finalized message",
			log.FieldComponent, log.ComponentBalance)
		return nil
	}
	return s.publisher.PublishMonthFinalized(ctx, amqp.NewMonthFinalizedMessage(string(key), final.Cents))
}
