package core

// Totals are the derived figures shown for a month.
type Totals struct {
	TotalDonations        Money `json:"total_donations"`
	TotalExpenses         Money `json:"total_expenses"`
	TotalSalaries         Money `json:"total_salaries"`
	TotalBeforeDeductions Money `json:"total_before_deductions"`
	FinalBalance          Money `json:"final_balance"`
}

// ComputeTotals derives the month's totals. It has no side effects:
//
//	totalBeforeDeductions = old_balance + Σ donations + bill_book.total_chanda
//	finalBalance          = totalBeforeDeductions − (Σ expenses + imam + mouzan)
func ComputeTotals(r MonthRecord) Totals {
	var t Totals
	for _, d := range r.Donations {
		t.TotalDonations = t.TotalDonations.Add(d.Amount)
	}
	for _, e := range r.Expenses {
		t.TotalExpenses = t.TotalExpenses.Add(e.Amount)
	}
	t.TotalSalaries = r.ImamSalary.Amount.Add(r.MouzanSalary.Amount)
	t.TotalBeforeDeductions = r.OldBalance.Add(t.TotalDonations).Add(r.BillBook.TotalChanda)
	t.FinalBalance = t.TotalBeforeDeductions.Sub(t.TotalExpenses.Add(t.TotalSalaries))
	return t
}

// MonthSnapshot is a month record with its computed totals, the input of
// the report renderer and the month pages.
type MonthSnapshot struct {
	Record MonthRecord
	Totals Totals
	// PreviousBalance is the prior month's persisted final balance (zero if
	// the prior month has none).
	PreviousBalance    Money
	PreviousBalanceSet bool
}

// NewSnapshot computes totals for r.
func NewSnapshot(r MonthRecord) MonthSnapshot {
	return MonthSnapshot{Record: r, Totals: ComputeTotals(r)}
}

// CarriesOver reports whether the old balance is unset and the previous
// month has a final balance to stand in for it.
func (s MonthSnapshot) CarriesOver() bool {
	return !s.Record.OldBalanceSet && s.PreviousBalanceSet
}

// WithCarryOver returns the snapshot with the previous final balance in place
// of an unset old balance and the totals recomputed. OldBalanceSet is left
// false; nothing is persisted.
func (s MonthSnapshot) WithCarryOver() MonthSnapshot {
	if !s.CarriesOver() {
		return s
	}
	rec := s.Record
	rec.OldBalance = s.PreviousBalance
	out := NewSnapshot(rec)
	out.PreviousBalance = s.PreviousBalance
	out.PreviousBalanceSet = true
	return out
}
