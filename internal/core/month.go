package core

import (
	"fmt"
	"strings"
	"time"
)

// MonthKey identifies one accounting period as "YYYY-MM".
type MonthKey string

const monthKeyLayout = "2006-01"

// ParseMonthKey validates s and returns it as a MonthKey.
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(monthKeyLayout, s)
	if err != nil || t.Format(monthKeyLayout) != s {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey(s), nil
}

// MonthKeyFor returns the key of the month containing t.
func MonthKeyFor(t time.Time) MonthKey {
	return MonthKey(t.Format(monthKeyLayout))
}

// NewMonthKey builds a key from a year and a 1-based month.
func NewMonthKey(year, month int) MonthKey {
	return MonthKeyFor(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC))
}

// Time returns the first day of the month at UTC midnight.
func (k MonthKey) Time() time.Time {
	t, _ := time.Parse(monthKeyLayout, string(k))
	return t
}

// Valid reports whether k is a well-formed key.
func (k MonthKey) Valid() bool {
	_, err := ParseMonthKey(string(k))
	return err == nil
}

// Previous returns the key of the calendar month before k, rolling the year
// back from January.
func (k MonthKey) Previous() MonthKey {
	return MonthKeyFor(k.Time().AddDate(0, -1, 0))
}

// Next returns the key of the following calendar month.
func (k MonthKey) Next() MonthKey {
	return MonthKeyFor(k.Time().AddDate(0, 1, 0))
}

// Year returns the calendar year.
func (k MonthKey) Year() int { return k.Time().Year() }

// Month returns the 1-based calendar month.
func (k MonthKey) Month() int { return int(k.Time().Month()) }

// Label renders the key for humans, e.g. "March 2024".
func (k MonthKey) Label() string {
	return k.Time().Format("January 2006")
}

func (k MonthKey) String() string { return string(k) }
