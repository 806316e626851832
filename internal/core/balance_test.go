package core

import "testing"

func rs(v int64) Money { return Money{Cents: v * 100} }

func TestComputeTotalsScenario(t *testing.T) {
	r := EmptyMonth("2024-03")
	r.Donations = []DonationEntry{{Amount: rs(500)}, {Amount: rs(1500)}}
	r.Expenses = []ExpenseEntry{{Amount: rs(300)}}
	r.BillBook.TotalChanda = rs(200)
	r.OldBalance = rs(1000)
	r.ImamSalary.Amount = rs(2000)
	r.MouzanSalary.Amount = rs(1000)

	got := ComputeTotals(r)
	if got.TotalDonations != rs(2000) {
		t.Fatalf("donations: %v", got.TotalDonations)
	}
	if got.TotalExpenses != rs(300) {
		t.Fatalf("expenses: %v", got.TotalExpenses)
	}
	if got.TotalBeforeDeductions != rs(3200) {
		t.Fatalf("before deductions: %v", got.TotalBeforeDeductions)
	}
	if got.FinalBalance != rs(-100) {
		t.Fatalf("final: %v", got.FinalBalance)
	}
}

func TestComputeTotalsFormulaAndIdempotence(t *testing.T) {
	records := []MonthRecord{
		EmptyMonth("2024-01"),
		{
			Donations:    []DonationEntry{{Amount: Money{Cents: 1}}, {Amount: Money{Cents: 99999}}},
			Expenses:     []ExpenseEntry{{Amount: Money{Cents: 12345}}, {Amount: Money{Cents: 0}}},
			BillBook:     BillBook{TotalChanda: Money{Cents: 777}},
			OldBalance:   Money{Cents: -5000},
			ImamSalary:   Salary{Amount: Money{Cents: 3}},
			MouzanSalary: Salary{Amount: Money{Cents: 4}},
		},
	}
	for i, r := range records {
		var don, exp int64
		for _, d := range r.Donations {
			don += d.Amount.Cents
		}
		for _, e := range r.Expenses {
			exp += e.Amount.Cents
		}
		want := (r.OldBalance.Cents + don + r.BillBook.TotalChanda.Cents) -
			(exp + r.ImamSalary.Amount.Cents + r.MouzanSalary.Amount.Cents)

		first := ComputeTotals(r)
		second := ComputeTotals(r)
		if first.FinalBalance.Cents != want {
			t.Fatalf("record %d: final %d want %d", i, first.FinalBalance.Cents, want)
		}
		if first != second {
			t.Fatalf("record %d: not idempotent: %+v vs %+v", i, first, second)
		}
	}
}

func TestWithCarryOver(t *testing.T) {
	r := EmptyMonth("2024-03")
	r.Donations = []DonationEntry{{Amount: rs(100)}}

	tests := []struct {
		name      string
		oldSet    bool
		prevSet   bool
		wantFinal Money
		carries   bool
	}{
		{"unset old balance takes previous final", false, true, rs(5100), true},
		{"explicit old balance wins", true, true, rs(100), false},
		{"no previous final", false, false, rs(100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := r
			rec.OldBalanceSet = tt.oldSet
			snap := NewSnapshot(rec)
			snap.PreviousBalance = rs(5000)
			snap.PreviousBalanceSet = tt.prevSet

			if snap.CarriesOver() != tt.carries {
				t.Fatalf("CarriesOver = %v", snap.CarriesOver())
			}
			got := snap.WithCarryOver()
			if got.Totals.FinalBalance != tt.wantFinal {
				t.Fatalf("final: got %v want %v", got.Totals.FinalBalance, tt.wantFinal)
			}
			if got.Record.OldBalanceSet != tt.oldSet {
				t.Fatal("OldBalanceSet must not change")
			}
		})
	}
}
