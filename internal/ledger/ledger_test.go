package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"masjid/internal/core"
	"masjid/internal/ledger"
	"masjid/internal/ledger/memory"
)

type failingStore struct{ calls int }

var errDown = errors.New("connection refused")

func (f *failingStore) Get(context.Context, string) (json.RawMessage, bool, error) {
	f.calls++
	return nil, false, errDown
}

func (f *failingStore) Set(context.Context, string, any) error {
	f.calls++
	return errDown
}

func (f *failingStore) Update(context.Context, map[string]any) error {
	f.calls++
	return errDown
}

func (f *failingStore) Push(context.Context, string, any) (string, error) {
	f.calls++
	return "", errDown
}

func donation(desc string, rupees int64) core.DonationEntry {
	return core.DonationEntry{
		Date:        core.NewDate(2024, 3, 1),
		Description: desc,
		Amount:      core.Money{Cents: rupees * 100},
	}
}

func TestFetchMonthDefaults(t *testing.T) {
	l := ledger.New(memory.New())
	rec, err := l.FetchMonth(context.Background(), "2030-07")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec.Exists || len(rec.Donations) != 0 || len(rec.Expenses) != 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.ImamSalary.Description != "Imam Salary" {
		t.Fatalf("salary label: %q", rec.ImamSalary.Description)
	}
}

func TestAppendDonationRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New())
	key := core.MonthKey("2024-03")

	firstID, err := l.AppendDonation(ctx, key, donation("Juma 1", 500))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	newID, err := l.AppendDonation(ctx, key, donation("Juma 2", 1500))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if newID == "" || newID == firstID {
		t.Fatalf("bad ids %q %q", firstID, newID)
	}

	rec, err := l.FetchMonth(ctx, key)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rec.Donations) != 2 {
		t.Fatalf("expected 2 donations, got %d", len(rec.Donations))
	}
	first, second := rec.Donations[0], rec.Donations[1]
	if first.ID != firstID || first.Description != "Juma 1" || first.Amount.Cents != 50000 {
		t.Fatalf("first entry changed: %+v", first)
	}
	if second.ID != newID || second.Description != "Juma 2" || second.Date.String() != "2024-03-01" {
		t.Fatalf("new entry: %+v", second)
	}
}

func TestAppendDonationUpdateInPlace(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New())
	key := core.MonthKey("2024-03")

	a, _ := l.AppendDonation(ctx, key, donation("A", 100))
	b, _ := l.AppendDonation(ctx, key, donation("B", 200))

	edit := donation("B edited", 250)
	edit.ID = b
	if got, err := l.AppendDonation(ctx, key, edit); err != nil || got != b {
		t.Fatalf("update: id=%q err=%v", got, err)
	}

	rec, _ := l.FetchMonth(ctx, key)
	if len(rec.Donations) != 2 {
		t.Fatalf("entry count changed: %d", len(rec.Donations))
	}
	if rec.Donations[0].ID != a || rec.Donations[0].Description != "A" {
		t.Fatalf("other entry touched: %+v", rec.Donations[0])
	}
	if rec.Donations[1].Description != "B edited" || rec.Donations[1].Amount.Cents != 25000 {
		t.Fatalf("entry not updated: %+v", rec.Donations[1])
	}

	missing := donation("ghost", 1)
	missing.ID = "nope"
	if _, err := l.AppendDonation(ctx, key, missing); !errors.Is(err, ledger.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestAppendExpenseAndScalars(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New())
	key := core.MonthKey("2024-03")

	if _, err := l.AppendExpense(ctx, key, core.ExpenseEntry{
		Date: core.NewDate(2024, 3, 5), Name: "Bijli", Amount: core.Money{Cents: 30000},
	}); err != nil {
		t.Fatalf("expense: %v", err)
	}
	if err := l.SetBillBook(ctx, key, core.BillBook{From: 1, To: 50, TotalChanda: core.Money{Cents: 20000}}); err != nil {
		t.Fatalf("bill book: %v", err)
	}
	if err := l.SetOldBalance(ctx, key, core.Money{Cents: -5000}); err != nil {
		t.Fatalf("old balance: %v", err)
	}
	if err := l.SetSalary(ctx, key, core.RoleMouzan, core.Salary{Description: "Mouzan", Amount: core.Money{Cents: 100000}}); err != nil {
		t.Fatalf("salary: %v", err)
	}
	if err := l.SetFinalBalance(ctx, key, core.Money{Cents: 123}); err != nil {
		t.Fatalf("final: %v", err)
	}

	rec, err := l.FetchMonth(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Expenses) != 1 || rec.Expenses[0].Name != "Bijli" {
		t.Fatalf("expenses: %+v", rec.Expenses)
	}
	if rec.BillBook.To != 50 || rec.BillBook.TotalChanda.Cents != 20000 {
		t.Fatalf("bill book: %+v", rec.BillBook)
	}
	if !rec.OldBalanceSet || rec.OldBalance.Cents != -5000 {
		t.Fatalf("old balance: %+v", rec.OldBalance)
	}
	if rec.MouzanSalary.Amount.Cents != 100000 || rec.ImamSalary.Description != "Imam Salary" {
		t.Fatalf("salaries: %+v %+v", rec.MouzanSalary, rec.ImamSalary)
	}
	if fb, ok, _ := l.FinalBalance(ctx, key); !ok || fb.Cents != 123 {
		t.Fatalf("final balance: %v %v", fb, ok)
	}

	months, err := l.Months(ctx)
	if err != nil || len(months) != 1 || months[0] != key {
		t.Fatalf("months: %v %v", months, err)
	}
}

func TestValidationNeverReachesStore(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{}
	l := ledger.New(fs)
	key := core.MonthKey("2024-03")

	if _, err := l.AppendDonation(ctx, key, donation("zero", 0)); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := l.AppendExpense(ctx, key, core.ExpenseEntry{Date: core.NewDate(2024, 3, 1), Amount: core.Money{Cents: 1}}); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := l.SetBillBook(ctx, key, core.BillBook{From: 9, To: 1}); !errors.Is(err, core.ErrInvalidBillBook) {
		t.Fatalf("expected ErrInvalidBillBook, got %v", err)
	}
	if err := l.SetSalary(ctx, key, "khatib", core.Salary{}); !errors.Is(err, core.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := l.FetchMonth(ctx, "2024-13"); !errors.Is(err, core.ErrInvalidMonthKey) {
		t.Fatalf("expected ErrInvalidMonthKey, got %v", err)
	}
	if fs.calls != 0 {
		t.Fatalf("store called %d times", fs.calls)
	}
}

func TestStoreFailuresAreDistinct(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(&failingStore{})
	key := core.MonthKey("2024-03")

	if _, err := l.FetchMonth(ctx, key); !errors.Is(err, ledger.ErrStore) || !errors.Is(err, errDown) {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := l.AppendDonation(ctx, key, donation("x", 1)); !errors.Is(err, ledger.ErrStore) {
		t.Fatalf("append: %v", err)
	}
	if err := l.SetOldBalance(ctx, key, core.Money{}); !errors.Is(err, ledger.ErrStore) {
		t.Fatalf("set: %v", err)
	}
}

func TestFetchLegacyArrayMonth(t *testing.T) {
	s, err := memory.NewFromJSON([]byte(`{"masjid_finance":{"2024-02":{
		"jumaon_ka_chanda":[{"date":"2024-02-02","description":"Juma","amount":500},{"date":"2024-02-09","description":"Juma","amount":"700"}],
		"final_balance":5000}}}`))
	if err != nil {
		t.Fatal(err)
	}
	l := ledger.New(s)
	rec, err := l.FetchMonth(context.Background(), "2024-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Donations) != 2 || rec.Donations[1].ID != "1" || rec.Donations[1].Amount.Cents != 70000 {
		t.Fatalf("legacy donations: %+v", rec.Donations)
	}
	if !rec.FinalBalanceSet || rec.FinalBalance.Cents != 500000 {
		t.Fatalf("final balance: %+v", rec.FinalBalance)
	}
}
