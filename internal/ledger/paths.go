package ledger

import (
	"strings"

	"masjid/internal/core"
)

// Root collections.
const (
	RootFinance  = "finance"
	RootAccounts = "accounts"
)

// Month record fields.
const (
	FieldDonations    = "donations"
	FieldExpenses     = "expenses"
	FieldBillBook     = "bill_book"
	FieldOldBalance   = "old_balance"
	FieldFinalBalance = "final_balance"
)

// JoinPath joins segments with "/". Segments are not validated.
func JoinPath(parts ...string) string {
	return strings.Join(parts, "/")
}

// SplitPath splits p into its segments, ignoring empty ones.
func SplitPath(p string) []string {
	raw := strings.Split(p, "/")
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ValidSegment reports whether s can be used as a single path segment.
func ValidSegment(s string) bool {
	if s == "" || s == "." || s == ".." || len(s) > 128 {
		return false
	}
	return !strings.ContainsAny(s, "/#$[]")
}

// MonthPath is finance/{month}, the root of one month record.
func MonthPath(k core.MonthKey) string { return JoinPath(RootFinance, string(k)) }

// DonationsPath is the donation collection of a month.
func DonationsPath(k core.MonthKey) string { return JoinPath(MonthPath(k), FieldDonations) }

// DonationPath addresses one donation entry by id.
func DonationPath(k core.MonthKey, id string) string { return JoinPath(DonationsPath(k), id) }

// ExpensesPath is the expense collection of a month.
func ExpensesPath(k core.MonthKey) string { return JoinPath(MonthPath(k), FieldExpenses) }

// ExpensePath addresses one expense entry by id.
func ExpensePath(k core.MonthKey, id string) string { return JoinPath(ExpensesPath(k), id) }

// BillBookPath holds the month's bill book, overwritten wholesale.
func BillBookPath(k core.MonthKey) string { return JoinPath(MonthPath(k), FieldBillBook) }

// OldBalancePath holds the balance carried into the month.
func OldBalancePath(k core.MonthKey) string { return JoinPath(MonthPath(k), FieldOldBalance) }

// SalaryPath holds the salary for role, e.g. finance/2024-03/imam_salary.
func SalaryPath(k core.MonthKey, r core.SalaryRole) string { return JoinPath(MonthPath(k), r.Field()) }

// FinalBalancePath holds the month's saved final balance.
func FinalBalancePath(k core.MonthKey) string { return JoinPath(MonthPath(k), FieldFinalBalance) }

// AccountPath is accounts/{uid}.
func AccountPath(uid string) string { return JoinPath(RootAccounts, uid) }
