package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"masjid/internal/core"
	"masjid/internal/log"
)

// Ledger is the access layer between month records and the store.
// Validation happens before any store call, so a rejected write never
// reaches the store.
type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Store returns the underlying store.
func (l *Ledger) Store() Store { return l.store }

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// FetchMonth returns the month's record. A month with nothing stored yields
// the defaulted record with Exists false.
func (l *Ledger) FetchMonth(ctx context.Context, key core.MonthKey) (core.MonthRecord, error) {
	if !key.Valid() {
		return core.MonthRecord{}, fmt.Errorf("fetch month: %w", core.ErrInvalidMonthKey)
	}
	raw, ok, err := l.store.Get(ctx, MonthPath(key))
	if err != nil {
		return core.MonthRecord{}, storeErr("fetch month", err)
	}
	if !ok {
		return core.EmptyMonth(key), nil
	}
	rec, err := decodeMonth(key, raw)
	if err != nil {
		slog.WarnContext(ctx, "Month record unreadable, using defaults",
			log.FieldComponent, log.ComponentLedger,
			log.FieldMonth, string(key),
			log.FieldError, err)
		return rec, err
	}
	return rec, nil
}

// FinalBalance reads only the persisted final balance of a month.
func (l *Ledger) FinalBalance(ctx context.Context, key core.MonthKey) (core.Money, bool, error) {
	raw, ok, err := l.store.Get(ctx, FinalBalancePath(key))
	if err != nil {
		return core.Money{}, false, storeErr("read final balance", err)
	}
	if !ok || isNull(raw) {
		return core.Money{}, false, nil
	}
	var m core.Money
	_ = json.Unmarshal(raw, &m)
	return m, true, nil
}

// Months lists the months that have stored data, oldest first.
func (l *Ledger) Months(ctx context.Context) ([]core.MonthKey, error) {
	raw, ok, err := l.store.Get(ctx, RootFinance)
	if err != nil {
		return nil, storeErr("list months", err)
	}
	if !ok {
		return nil, nil
	}
	var months map[string]json.RawMessage
	if err := json.Unmarshal(raw, &months); err != nil {
		return nil, nil
	}
	out := make([]core.MonthKey, 0, len(months))
	for k := range months {
		if key, err := core.ParseMonthKey(k); err == nil {
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// AppendDonation creates a donation, or overwrites the one with e.ID when
// set. It returns the entry's id.
func (l *Ledger) AppendDonation(ctx context.Context, key core.MonthKey, e core.DonationEntry) (string, error) {
	if !key.Valid() {
		return "", fmt.Errorf("append donation: %w", core.ErrInvalidMonthKey)
	}
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("append donation: %w", err)
	}
	id, err := l.appendEntry(ctx, DonationsPath(key), e.ID, e)
	if err != nil {
		return "", fmt.Errorf("append donation: %w", err)
	}
	slog.InfoContext(ctx, "Donation saved",
		log.FieldComponent, log.ComponentLedger,
		log.FieldMonth, string(key),
		log.FieldEntryID, id,
		log.FieldAmountCents, e.Amount.Cents)
	return id, nil
}

// AppendExpense creates an expense, or overwrites the one with e.ID when set.
func (l *Ledger) AppendExpense(ctx context.Context, key core.MonthKey, e core.ExpenseEntry) (string, error) {
	if !key.Valid() {
		return "", fmt.Errorf("append expense: %w", core.ErrInvalidMonthKey)
	}
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("append expense: %w", err)
	}
	id, err := l.appendEntry(ctx, ExpensesPath(key), e.ID, e)
	if err != nil {
		return "", fmt.Errorf("append expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense saved",
		log.FieldComponent, log.ComponentLedger,
		log.FieldMonth, string(key),
		log.FieldEntryID, id,
		log.FieldAmountCents, e.Amount.Cents)
	return id, nil
}

func (l *Ledger) appendEntry(ctx context.Context, collection, id string, value any) (string, error) {
	if id == "" {
		newID, err := l.store.Push(ctx, collection, value)
		if err != nil {
			return "", storeErr("push", err)
		}
		return newID, nil
	}
	if !ValidSegment(id) {
		return "", ErrInvalidID
	}
	path := JoinPath(collection, id)
	_, ok, err := l.store.Get(ctx, path)
	if err != nil {
		return "", storeErr("lookup entry", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if err := l.store.Update(ctx, map[string]any{path: value}); err != nil {
		return "", storeErr("update entry", err)
	}
	return id, nil
}

// SetBillBook overwrites the month's bill book.
func (l *Ledger) SetBillBook(ctx context.Context, key core.MonthKey, b core.BillBook) error {
	if !key.Valid() {
		return fmt.Errorf("set bill book: %w", core.ErrInvalidMonthKey)
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("set bill book: %w", err)
	}
	return l.set(ctx, "set bill book", key, BillBookPath(key), b)
}

// SetOldBalance overwrites the carried-over balance. It may be negative.
func (l *Ledger) SetOldBalance(ctx context.Context, key core.MonthKey, m core.Money) error {
	if !key.Valid() {
		return fmt.Errorf("set old balance: %w", core.ErrInvalidMonthKey)
	}
	return l.set(ctx, "set old balance", key, OldBalancePath(key), m)
}

// SetSalary overwrites the salary record of role.
func (l *Ledger) SetSalary(ctx context.Context, key core.MonthKey, role core.SalaryRole, s core.Salary) error {
	if !key.Valid() {
		return fmt.Errorf("set salary: %w", core.ErrInvalidMonthKey)
	}
	if _, err := core.ParseSalaryRole(string(role)); err != nil {
		return fmt.Errorf("set salary: %w", err)
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("set salary: %w", err)
	}
	return l.set(ctx, "set salary", key, SalaryPath(key, role), s)
}

// SetFinalBalance persists a computed final balance. Only the balance
// service calls it, after computing totals from a fresh read.
func (l *Ledger) SetFinalBalance(ctx context.Context, key core.MonthKey, m core.Money) error {
	if !key.Valid() {
		return fmt.Errorf("set final balance: %w", core.ErrInvalidMonthKey)
	}
	return l.set(ctx, "set final balance", key, FinalBalancePath(key), m)
}

func (l *Ledger) set(ctx context.Context, op string, key core.MonthKey, path string, value any) error {
	if err := l.store.Set(ctx, path, value); err != nil {
		slog.ErrorContext(ctx, "Ledger write failed",
			log.FieldComponent, log.ComponentLedger,
			log.FieldOperation, op,
			log.FieldMonth, string(key),
			log.FieldError, err)
		return storeErr(op, err)
	}
	slog.DebugContext(ctx, "Ledger write",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, op,
		log.FieldMonth, string(key))
	return nil
}
