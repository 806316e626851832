package memory

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestSetGetAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, ok, err := s.Get(ctx, "finance/2024-03"); err != nil || ok {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "finance/2024-03/old_balance", json.Number("1000")); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, ok, err := s.Get(ctx, "finance/2024-03")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(raw) != `{"old_balance":1000}` {
		t.Fatalf("unexpected tree: %s", raw)
	}
	if err := s.Set(ctx, "finance/2024-03/old_balance", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "finance/2024-03/old_balance"); ok {
		t.Fatal("expected value removed")
	}
}

func TestPushIsTimeOrdered(t *testing.T) {
	ctx := context.Background()
	s := New()
	var ids []string
	for i := 0; i < 5; i++ {
		id, err := s.Push(ctx, "finance/2024-03/donations", map[string]any{"n": i})
		if err != nil {
			t.Fatalf("push: %v", err)
		}
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("ids not increasing: %v", ids)
		}
	}
}

func TestUpdateRejectsBadValueWithoutWriting(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.Update(ctx, map[string]any{
		"finance/2024-03/old_balance": 5,
		"finance/2024-03/bill_book":   make(chan int),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok, _ := s.Get(ctx, "finance/2024-03"); ok {
		t.Fatal("partial write happened")
	}
}

func TestLegacySeedImport(t *testing.T) {
	seed := `{
		"masjid_finance": {
			"2024-02": {
				"jumaon_ka_chanda": [null, {"date":"2024-02-02","description":"Juma","amount":500}],
				"kharcha": {"a": {"date":"2024-02-03","name":"Bijli","amount":"120.5"}},
				"final_balance": 5000
			}
		},
		"users": {"u1": {"uid":"u1","phoneNumber":"+911234567890","approved":true}}
	}`
	s, err := NewFromJSON([]byte(seed))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctx := context.Background()

	raw, ok, _ := s.Get(ctx, "finance/2024-02/donations/1")
	if !ok || !strings.Contains(string(raw), `"Juma"`) {
		t.Fatalf("legacy donation not imported: %s", raw)
	}
	if _, ok, _ := s.Get(ctx, "finance/2024-02/expenses/a"); !ok {
		t.Fatal("legacy expense not imported")
	}
	if raw, _, _ := s.Get(ctx, "finance/2024-02/final_balance"); string(raw) != "5000" {
		t.Fatalf("final balance: %s", raw)
	}
	if _, ok, _ := s.Get(ctx, "accounts/u1"); !ok {
		t.Fatal("users not moved to accounts")
	}
	if _, ok, _ := s.Get(ctx, "masjid_finance"); ok {
		t.Fatal("legacy root kept")
	}
}

func TestWriteBelowArrayKeepsIndexIDs(t *testing.T) {
	s, err := NewFromJSON([]byte(`{"finance":{"2024-01":{"donations":[{"amount":1},{"amount":2}]}}}`))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Update(ctx, map[string]any{"finance/2024-01/donations/1": map[string]any{"amount": 3}}); err != nil {
		t.Fatal(err)
	}
	raw, _, _ := s.Get(ctx, "finance/2024-01/donations")
	if string(raw) != `{"0":{"amount":1},"1":{"amount":3}}` {
		t.Fatalf("unexpected collection: %s", raw)
	}
}
