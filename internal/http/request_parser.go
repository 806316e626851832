package http

// Request parsing shared by the ledger handlers. Bodies may be
// form-encoded (htmx forms) or JSON (API clients).

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"masjid/internal/core"
)

// maxFormBytes bounds ledger form and JSON bodies.
const maxFormBytes = 64 << 10

// ParseMonthQuery reads ?month=YYYY-MM, falling back to the month of now
// when it is missing or malformed. The second result is false on fallback
// from a malformed value.
func ParseMonthQuery(query url.Values, now time.Time) (core.MonthKey, bool) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return core.MonthKeyFor(now), true
	}
	key, err := core.ParseMonthKey(v)
	if err != nil {
		return core.MonthKeyFor(now), false
	}
	return key, true
}

// monthFromPath reads the {month} path segment.
func monthFromPath(r *http.Request) (core.MonthKey, error) {
	return core.ParseMonthKey(r.PathValue("month"))
}

// RequestBodyParser reads a JSON or form-encoded body once.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxFormBytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBytes))
	return p
}

// Parse decodes the body as JSON when it looks like JSON, otherwise as a form.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}
	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
		}
		return p.err
	}
	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns the sanitized value of key from the JSON or form body.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON reports whether the body was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Field errors reported before any store call.
var (
	errBadBillNumber = errors.New("bill numbers must be whole numbers")
)

func parseDonation(p *RequestBodyParser) (core.DonationEntry, error) {
	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return core.DonationEntry{}, err
	}
	cents, err := core.ParseDecimalToCents(p.Get("amount"))
	if err != nil {
		return core.DonationEntry{}, err
	}
	e := core.DonationEntry{
		ID:          p.Get("id"),
		Date:        date,
		Description: p.Get("description"),
		Amount:      core.Money{Cents: cents},
	}
	return e, e.Validate()
}

func parseExpense(p *RequestBodyParser) (core.ExpenseEntry, error) {
	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return core.ExpenseEntry{}, err
	}
	cents, err := core.ParseDecimalToCents(p.Get("amount"))
	if err != nil {
		return core.ExpenseEntry{}, err
	}
	e := core.ExpenseEntry{
		ID:     p.Get("id"),
		Date:   date,
		Name:   p.Get("name"),
		Amount: core.Money{Cents: cents},
	}
	return e, e.Validate()
}

func parseBillBook(p *RequestBodyParser) (core.BillBook, error) {
	from, err := parseBillNumber(p.Get("from"))
	if err != nil {
		return core.BillBook{}, err
	}
	to, err := parseBillNumber(p.Get("to"))
	if err != nil {
		return core.BillBook{}, err
	}
	total, err := core.ParseSignedToCents(p.Get("total_chanda"))
	if err != nil {
		return core.BillBook{}, err
	}
	b := core.BillBook{From: from, To: to, TotalChanda: core.Money{Cents: total}}
	return b, b.Validate()
}

func parseBillNumber(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errBadBillNumber
	}
	return n, nil
}

func parseOldBalance(p *RequestBodyParser) (core.Money, error) {
	cents, err := core.ParseSignedToCents(p.Get("old_balance"))
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// parseSalary accepts an empty date and defaults the description to the
// role's label.
func parseSalary(p *RequestBodyParser, role core.SalaryRole) (core.Salary, error) {
	s := core.DefaultSalary(role)
	if v := p.Get("date"); v != "" {
		date, err := core.ParseDate(v)
		if err != nil {
			return core.Salary{}, err
		}
		s.Date = date
	}
	if v := p.Get("description"); v != "" {
		s.Description = v
	}
	cents, err := core.ParseSignedToCents(p.Get("amount"))
	if err != nil {
		return core.Salary{}, err
	}
	s.Amount = core.Money{Cents: cents}
	return s, s.Validate()
}
