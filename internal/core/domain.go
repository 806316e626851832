package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	RoleImam   SalaryRole = "imam"
	RoleMouzan SalaryRole = "mouzan"
)

type (
	SalaryRole string

	// Date is a calendar day stored as "YYYY-MM-DD".
	Date struct {
		time.Time
	}

	// DonationEntry is one Friday collection (jumaon ka chanda) or other
	// donation recorded for a month.
	DonationEntry struct {
		ID          string `json:"-"`
		Date        Date   `json:"date"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
	}

	// ExpenseEntry is one expense (kharcha) paid during a month.
	ExpenseEntry struct {
		ID     string `json:"-"`
		Date   Date   `json:"date"`
		Name   string `json:"name"`
		Amount Money  `json:"amount"`
	}

	// BillBook is the receipt-book range used during the month and the total
	// collected against it. It is overwritten wholesale on save.
	BillBook struct {
		From        int64 `json:"from"`
		To          int64 `json:"to"`
		TotalChanda Money `json:"total_chanda"`
	}

	// Salary is one staff salary payment for the month.
	Salary struct {
		Date        Date   `json:"date"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
	}

	// MonthRecord is the full set of financial data for one calendar month.
	MonthRecord struct {
		Key          MonthKey
		Donations    []DonationEntry
		Expenses     []ExpenseEntry
		BillBook     BillBook
		OldBalance   Money
		ImamSalary   Salary
		MouzanSalary Salary
		FinalBalance Money

		// Exists is false when nothing has been stored for the month yet.
		Exists bool
		// OldBalanceSet distinguishes an explicit zero from an unset balance.
		OldBalanceSet   bool
		FinalBalanceSet bool
	}

	// Account is a registered operator of the application.
	Account struct {
		UID          string    `json:"uid"`
		Name         string    `json:"name"`
		PhoneNumber  string    `json:"phoneNumber"`
		Approved     bool      `json:"approved"`
		PasswordHash string    `json:"passwordHash,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt,omitempty"`
		LastLogin    time.Time `json:"lastLogin,omitempty"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidMonthKey    = errors.New("invalid month key")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyName          = errors.New("empty expense name")
	ErrInvalidRole        = errors.New("invalid salary role")
	ErrInvalidBillBook    = errors.New("invalid bill book range")
	ErrNegativeAmount     = errors.New("amount cannot be negative")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

const dateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (salary dates are optional).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" and full RFC 3339 timestamps; anything
// else decodes to the zero date.
func (d *Date) UnmarshalJSON(b []byte) error {
	d.Time = time.Time{}
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return nil
}

// ParseSalaryRole accepts "imam" or "mouzan".
func ParseSalaryRole(s string) (SalaryRole, error) {
	switch r := SalaryRole(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleImam, RoleMouzan:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// Label is the default salary description for the role.
func (r SalaryRole) Label() string {
	switch r {
	case RoleImam:
		return "Imam Salary"
	case RoleMouzan:
		return "Mouzan Salary"
	}
	return string(r)
}

// Field is the month-record field holding the role's salary.
func (r SalaryRole) Field() string {
	return string(r) + "_salary"
}

func validateText(s string, empty error) error {
	if strings.TrimSpace(s) == "" {
		return empty
	}
	if len(s) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (e DonationEntry) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := validateText(e.Description, ErrEmptyDescription); err != nil {
		return err
	}
	return e.Amount.Validate()
}

func (e ExpenseEntry) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := validateText(e.Name, ErrEmptyName); err != nil {
		return err
	}
	return e.Amount.Validate()
}

func (b BillBook) Validate() error {
	if b.From < 0 || b.To < 0 || b.From > b.To {
		return ErrInvalidBillBook
	}
	if b.TotalChanda.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Validate allows a zero amount so that a salary can be cleared.
func (s Salary) Validate() error {
	if len(s.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if s.Amount.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// DefaultSalary is the salary record of a month that has none stored.
func DefaultSalary(role SalaryRole) Salary {
	return Salary{Description: role.Label()}
}

// EmptyMonth returns the fully defaulted record for a month with no data.
func EmptyMonth(key MonthKey) MonthRecord {
	return MonthRecord{
		Key:          key,
		Donations:    []DonationEntry{},
		Expenses:     []ExpenseEntry{},
		ImamSalary:   DefaultSalary(RoleImam),
		MouzanSalary: DefaultSalary(RoleMouzan),
	}
}

// Salary returns the record's salary for role.
func (m MonthRecord) Salary(role SalaryRole) Salary {
	if role == RoleMouzan {
		return m.MouzanSalary
	}
	return m.ImamSalary
}
