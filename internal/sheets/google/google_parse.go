package google

import (
	"fmt"
	"strings"
	"time"

	"masjid/internal/core"
	ports "masjid/internal/sheets"
)

const lastColumn = "J"

func headerRow() []any {
	return []any{
		"Month", "Label", "Old Balance", "Donations", "Bill Book",
		"Total Before Deductions", "Expenses", "Salaries", "Final Balance", "Updated At",
	}
}

// summaryRow renders amounts as plain decimals so the sheet parses them as
// numbers.
func summaryRow(s ports.MonthSummary, now time.Time) []any {
	return []any{
		string(s.Month),
		s.Month.Label(),
		amount(s.OldBalance),
		amount(s.TotalDonations),
		amount(s.BillBookTotal),
		amount(s.TotalBeforeDeductions),
		amount(s.TotalExpenses),
		amount(s.TotalSalaries),
		amount(s.FinalBalance),
		now.UTC().Format(time.RFC3339),
	}
}

func amount(m core.Money) string {
	return m.Decimal().StringFixed(2)
}

// findMonthRow returns the 1-based row holding month in column A, or the
// first row after the existing ones.
func findMonthRow(values [][]any, month core.MonthKey) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == string(month) {
			return i + 1
		}
	}
	return len(values) + 1
}

func parseSummaries(values [][]any) []ports.MonthSummary {
	var out []ports.MonthSummary
	for _, row := range values {
		cols := toStrings(row)
		if len(cols) < 9 {
			continue
		}
		key, err := core.ParseMonthKey(cols[0])
		if err != nil {
			// Header or foreign row.
			continue
		}
		out = append(out, ports.MonthSummary{
			Month:                 key,
			OldBalance:            parseAmount(cols[2]),
			TotalDonations:        parseAmount(cols[3]),
			BillBookTotal:         parseAmount(cols[4]),
			TotalBeforeDeductions: parseAmount(cols[5]),
			TotalExpenses:         parseAmount(cols[6]),
			TotalSalaries:         parseAmount(cols[7]),
			FinalBalance:          parseAmount(cols[8]),
		})
	}
	return out
}

// parseAmount reads a sheet cell; formatted cells may carry a currency
// prefix and thousands separators.
func parseAmount(s string) core.Money {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Rs.")
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	cents, err := core.ParseSignedToCents(s)
	if err != nil {
		return core.Money{}
	}
	return core.Money{Cents: cents}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
