package sheets

import (
	"context"

	"masjid/internal/core"
)

// Ports for outbound adapters.
type (
	// SummaryWriter records one row of month figures in an external sheet,
	// replacing the month's earlier row if there is one.
	SummaryWriter interface {
		UpsertMonthSummary(ctx context.Context, snap core.MonthSnapshot) (rowRef string, err error)
	}

	// SummaryReader lists the rows written so far.
	SummaryReader interface {
		ListMonthSummaries(ctx context.Context) ([]MonthSummary, error)
	}
)

// MonthSummary is one row of the summary sheet.
type MonthSummary struct {
	Month                 core.MonthKey
	OldBalance            core.Money
	TotalDonations        core.Money
	BillBookTotal         core.Money
	TotalExpenses         core.Money
	TotalSalaries         core.Money
	TotalBeforeDeductions core.Money
	FinalBalance          core.Money
}

// SummaryFromSnapshot extracts the row figures from a snapshot.
func SummaryFromSnapshot(snap core.MonthSnapshot) MonthSummary {
	return MonthSummary{
		Month:                 snap.Record.Key,
		OldBalance:            snap.Record.OldBalance,
		TotalDonations:        snap.Totals.TotalDonations,
		BillBookTotal:         snap.Record.BillBook.TotalChanda,
		TotalExpenses:         snap.Totals.TotalExpenses,
		TotalSalaries:         snap.Totals.TotalSalaries,
		TotalBeforeDeductions: snap.Totals.TotalBeforeDeductions,
		FinalBalance:          snap.Totals.FinalBalance,
	}
}
