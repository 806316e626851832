package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"masjid/internal/core"
	"masjid/internal/ledger"
)

func newTestStore(t *testing.T) *TreeStore {
	t.Helper()
	s, err := NewTreeStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTreeStoreSetGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, ok, err := s.Get(ctx, "finance/2024-03"); err != nil || ok {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}

	bb := core.BillBook{From: 1, To: 50, TotalChanda: core.Money{Cents: 20050}}
	if err := s.Set(ctx, "finance/2024-03/bill_book", bb); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, ok, err := s.Get(ctx, "finance/2024-03/bill_book")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	var got core.BillBook
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != bb {
		t.Fatalf("got %+v want %+v", got, bb)
	}

	// Overwrite is wholesale: fields absent from the new value disappear.
	if err := s.Set(ctx, "finance/2024-03/bill_book", map[string]any{"from": 2}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	raw, _, _ = s.Get(ctx, "finance/2024-03/bill_book")
	if string(raw) != `{"from":2}` {
		t.Fatalf("unexpected value after overwrite: %s", raw)
	}

	if err := s.Set(ctx, "finance/2024-03/bill_book", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "finance/2024-03/bill_book"); ok {
		t.Fatal("expected value removed")
	}
}

func TestTreeStoreScalarReplacedBySubtree(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Set(ctx, "finance/2024-03", 5); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "finance/2024-03/old_balance", 10); err != nil {
		t.Fatal(err)
	}
	raw, _, _ := s.Get(ctx, "finance/2024-03")
	if string(raw) != `{"old_balance":10}` {
		t.Fatalf("unexpected tree: %s", raw)
	}
}

func TestTreeStoreUpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Update(ctx, map[string]any{
		"finance/2024-03/old_balance": 1,
		"finance/2024-03/bill_book":   map[string]any{"bad/key": 1},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok, _ := s.Get(ctx, "finance/2024-03"); ok {
		t.Fatal("partial write happened")
	}

	if err := s.Update(ctx, map[string]any{
		"finance/2024-03/old_balance":   1,
		"finance/2024-03/final_balance": 2,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	raw, _, _ := s.Get(ctx, "finance/2024-03")
	if string(raw) != `{"final_balance":2,"old_balance":1}` {
		t.Fatalf("unexpected tree: %s", raw)
	}
}

func TestTreeStoreArraysAndEmptyObjects(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Set(ctx, "x", map[string]any{"list": []any{"a", nil, "c"}, "empty": map[string]any{}}); err != nil {
		t.Fatal(err)
	}
	raw, _, _ := s.Get(ctx, "x")
	if string(raw) != `{"empty":{},"list":{"0":"a","2":"c"}}` {
		t.Fatalf("unexpected tree: %s", raw)
	}
}

func TestTreeStoreWithLedger(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(newTestStore(t))
	key := core.MonthKey("2024-03")

	entry := core.DonationEntry{Date: core.NewDate(2024, 3, 1), Description: "Juma", Amount: core.Money{Cents: 50010}}
	id, err := l.AppendDonation(ctx, key, entry)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := l.AppendDonation(ctx, key, entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.SetSalary(ctx, key, core.RoleImam, core.Salary{Description: "Imam Salary", Amount: core.Money{Cents: 200000}}); err != nil {
		t.Fatalf("salary: %v", err)
	}

	rec, err := l.FetchMonth(ctx, key)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rec.Donations) != 2 || rec.Donations[0].ID != id {
		t.Fatalf("donations: %+v", rec.Donations)
	}
	if rec.Donations[0].Amount.Cents != 50010 || rec.Donations[0].Date.String() != "2024-03-01" {
		t.Fatalf("donation changed in storage: %+v", rec.Donations[0])
	}
	if rec.ImamSalary.Amount.Cents != 200000 {
		t.Fatalf("salary: %+v", rec.ImamSalary)
	}
}

func TestSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	s, err := NewTreeStore(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	v, dirty, err := SchemaVersion(path)
	if err != nil || dirty || v != 2 {
		t.Fatalf("version=%d dirty=%v err=%v", v, dirty, err)
	}
}

func TestTreeStoreNonASCIISegments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Update(ctx, map[string]any{
		"accounts/zaïd/name":       "Zaïd",
		"accounts/zaïd/phone":      "+919876543210",
		"accounts/zaïd0/name":      "Other",
		"accounts/مسجد/approved": true,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	raw, ok, err := s.Get(ctx, "accounts/zaïd")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(raw) != `{"name":"Zaïd","phone":"+919876543210"}` {
		t.Fatalf("subtree: %s", raw)
	}
	if raw, _, _ := s.Get(ctx, "accounts/مسجد"); string(raw) != `{"approved":true}` {
		t.Fatalf("arabic segment: %s", raw)
	}

	// Overwriting the subtree clears its old leaves and leaves the sibling alone.
	if err := s.Set(ctx, "accounts/zaïd", map[string]any{"name": "Zaid"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if raw, _, _ := s.Get(ctx, "accounts/zaïd"); string(raw) != `{"name":"Zaid"}` {
		t.Fatalf("after overwrite: %s", raw)
	}
	if raw, _, _ := s.Get(ctx, "accounts/zaïd0"); string(raw) != `{"name":"Other"}` {
		t.Fatalf("sibling touched: %s", raw)
	}
}
