package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync/atomic"

	"masjid/internal/core"
	"masjid/internal/log"
)

// monthView is the model of the month page and its partial.
type monthView struct {
	pageData
	Key        core.MonthKey
	Prev       core.MonthKey
	Next       core.MonthKey
	Today      string
	Record     core.MonthRecord
	Totals     core.Totals
	PrevFinal  core.Money
	Carried    bool
	Roles      []core.SalaryRole
	Salaries   map[core.SalaryRole]core.Salary
	ReportPath string
	// Months lists stored months for the picker, newest first.
	Months []core.MonthKey
}

func (s *Server) newMonthView(r *http.Request, snap core.MonthSnapshot, carried bool) monthView {
	key := snap.Record.Key
	return monthView{
		pageData:  s.page(r, key.Label()),
		Key:       key,
		Prev:      key.Previous(),
		Next:      key.Next(),
		Today:     core.Date{Time: s.now()}.String(),
		Record:    snap.Record,
		Totals:    snap.Totals,
		PrevFinal: snap.PreviousBalance,
		Carried:   carried,
		Roles:     []core.SalaryRole{core.RoleImam, core.RoleMouzan},
		Salaries: map[core.SalaryRole]core.Salary{
			core.RoleImam:   snap.Record.ImamSalary,
			core.RoleMouzan: snap.Record.MouzanSalary,
		},
		ReportPath: "/months/" + string(key) + "/report.pdf",
	}
}

// openMonth returns the month as shown to operators, carrying the previous
// month's final balance into an unset old balance first. Settled snapshots
// are cached until a write touches the month or the month before it.
func (s *Server) openMonth(ctx context.Context, key core.MonthKey) (core.MonthSnapshot, bool, error) {
	if snap, ok := s.snapshots.Get(string(key)); ok {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		return snap, false, nil
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	snap, carried, err := s.balance.PrefillOldBalance(ctx, key)
	if err != nil {
		return core.MonthSnapshot{}, false, err
	}
	if carried {
		atomic.AddInt64(&s.appMetrics.ledgerWrites, 1)
	}
	s.snapshots.Set(string(key), snap)
	return snap, carried, nil
}

// readMonth is openMonth without the carry-over write, for read-only
// consumers such as the JSON API and the PDF report. A pending carry-over is
// still reflected in the totals.
func (s *Server) readMonth(ctx context.Context, key core.MonthKey) (core.MonthSnapshot, error) {
	if snap, ok := s.snapshots.Get(string(key)); ok {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		return snap, nil
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)
	return s.balance.Snapshot(ctx, key)
}

// invalidateMonth drops key and the following month, whose carry-over
// depends on key's final balance.
func (s *Server) invalidateMonth(key core.MonthKey) {
	s.snapshots.Delete(string(key))
	s.snapshots.Delete(string(key.Next()))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	key, ok := ParseMonthQuery(r.URL.Query(), s.now())

	ctx, cancel := storeContext(r)
	defer cancel()
	snap, carried, err := s.openMonth(ctx, key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	view := s.newMonthView(r, snap, carried)
	if months, err := s.balance.Months(ctx); err == nil {
		view.Months = sortedMonths(months)
	} else {
		s.logger.WarnContext(r.Context(), "Month list unavailable", log.FieldError, err)
	}
	if !ok {
		view.Flash = "Unknown month, showing " + key.Label()
	}
	s.render(w, r, http.StatusOK, "index.html", view)
}

// handleMonthPartial renders only the month section for htmx swaps.
func (s *Server) handleMonthPartial(w http.ResponseWriter, r *http.Request) {
	key, ok := ParseMonthQuery(r.URL.Query(), s.now())
	if !ok {
		s.respondError(w, r, core.ErrInvalidMonthKey)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	snap, carried, err := s.openMonth(ctx, key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "month", s.newMonthView(r, snap, carried))
}

func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r)
	defer cancel()
	months, err := s.balance.Months(ctx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if months == nil {
		months = []core.MonthKey{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": months})
}

type entryJSON struct {
	ID string `json:"id"`
}

type donationJSON struct {
	entryJSON
	core.DonationEntry
}

type expenseJSON struct {
	entryJSON
	core.ExpenseEntry
}

type monthJSON struct {
	Month           core.MonthKey  `json:"month"`
	Exists          bool           `json:"exists"`
	Donations       []donationJSON `json:"donations"`
	Expenses        []expenseJSON  `json:"expenses"`
	BillBook        core.BillBook  `json:"bill_book"`
	OldBalance      *core.Money    `json:"old_balance"`
	OldCarried      bool           `json:"old_balance_carried"`
	ImamSalary      core.Salary    `json:"imam_salary"`
	MouzanSalary    core.Salary    `json:"mouzan_salary"`
	FinalBalance    *core.Money    `json:"final_balance"`
	PreviousBalance core.Money     `json:"previous_balance"`
	Totals          core.Totals    `json:"totals"`
}

func newMonthJSON(snap core.MonthSnapshot) monthJSON {
	rec := snap.Record
	out := monthJSON{
		Month:           rec.Key,
		Exists:          rec.Exists,
		Donations:       make([]donationJSON, 0, len(rec.Donations)),
		Expenses:        make([]expenseJSON, 0, len(rec.Expenses)),
		BillBook:        rec.BillBook,
		ImamSalary:      rec.ImamSalary,
		MouzanSalary:    rec.MouzanSalary,
		PreviousBalance: snap.PreviousBalance,
		Totals:          snap.Totals,
	}
	for _, d := range rec.Donations {
		out.Donations = append(out.Donations, donationJSON{entryJSON{d.ID}, d})
	}
	for _, e := range rec.Expenses {
		out.Expenses = append(out.Expenses, expenseJSON{entryJSON{e.ID}, e})
	}
	if rec.OldBalanceSet || snap.CarriesOver() {
		m := rec.OldBalance
		out.OldBalance = &m
		out.OldCarried = snap.CarriesOver()
	}
	if rec.FinalBalanceSet {
		m := rec.FinalBalance
		out.FinalBalance = &m
	}
	return out
}

func (s *Server) handleMonthJSON(w http.ResponseWriter, r *http.Request) {
	key, err := monthFromPath(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	snap, err := s.readMonth(ctx, key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMonthJSON(snap))
}

// monthWrite is a ledger mutation for one month. It returns the entry id
// (if any), the amount written for the log, and a confirmation message.
type monthWrite func(ctx context.Context, key core.MonthKey, p *RequestBodyParser) (id string, amount core.Money, msg string, err error)

// handleWrite parses the body, runs write and answers in the client's
// representation. Validation errors never reach the store.
func (s *Server) handleWrite(op string, write monthWrite) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := monthFromPath(r)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		p, ok := s.parseBody(w, r)
		if !ok {
			return
		}

		ctx, cancel := storeContext(r)
		defer cancel()
		id, amount, msg, err := write(ctx, key, p)
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		s.invalidateMonth(key)
		atomic.AddInt64(&s.appMetrics.ledgerWrites, 1)
		log.NewStructuredLogger(s.logger).LogLedgerWrite(r.Context(), op, string(key), id, amount.Cents)

		s.respondWritten(ctx, w, r, key, id, msg)
	}
}

func (s *Server) respondWritten(ctx context.Context, w http.ResponseWriter, r *http.Request, key core.MonthKey, id, msg string) {
	switch {
	case isHTMX(r):
		resp := NewHTMXResponse().
			TriggerMonthUpdated(key).
			TriggerFormReset().
			TriggerSuccessNotification(msg)
		snap, carried, err := s.openMonth(ctx, key)
		if err != nil {
			// The write is stored; only the refresh failed.
			s.logger.WarnContext(r.Context(), "Month reload after write failed",
				log.FieldMonth, string(key),
				log.FieldError, err)
			resp.Header("HX-Reswap", "none").Write(w)
			return
		}
		s.renderFragment(w, r, resp, "month", s.newMonthView(r, snap, carried))
	case wantsJSON(r):
		body := map[string]any{"success": true, "message": msg}
		if id != "" {
			body["id"] = id
		}
		writeJSON(w, http.StatusOK, body)
	default:
		http.Redirect(w, r, "/?month="+url.QueryEscape(string(key)), http.StatusSeeOther)
	}
}

func (s *Server) handleAddDonation(w http.ResponseWriter, r *http.Request) {
	s.handleWrite("append_donation", func(ctx context.Context, key core.MonthKey, p *RequestBodyParser) (string, core.Money, string, error) {
		e, err := parseDonation(p)
		if err != nil {
			return "", core.Money{}, "", err
		}
		id, err := s.balance.Ledger().AppendDonation(ctx, key, e)
		return id, e.Amount, "Donation of " + e.Amount.String() + " saved", err
	})(w, r)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	s.handleWrite("append_expense", func(ctx context.Context, key core.MonthKey, p *RequestBodyParser) (string, core.Money, string, error) {
		e, err := parseExpense(p)
		if err != nil {
			return "", core.Money{}, "", err
		}
		id, err := s.balance.Ledger().AppendExpense(ctx, key, e)
		return id, e.Amount, "Expense of " + e.Amount.String() + " saved", err
	})(w, r)
}

func (s *Server) handleSetBillBook(w http.ResponseWriter, r *http.Request) {
	s.handleWrite("set_bill_book", func(ctx context.Context, key core.MonthKey, p *RequestBodyParser) (string, core.Money, string, error) {
		b, err := parseBillBook(p)
		if err != nil {
			return "", core.Money{}, "", err
		}
		err = s.balance.Ledger().SetBillBook(ctx, key, b)
		return "", b.TotalChanda, "Bill book saved", err
	})(w, r)
}

func (s *Server) handleSetOldBalance(w http.ResponseWriter, r *http.Request) {
	s.handleWrite("set_old_balance", func(ctx context.Context, key core.MonthKey, p *RequestBodyParser) (string, core.Money, string, error) {
		m, err := parseOldBalance(p)
		if err != nil {
			return "", core.Money{}, "", err
		}
		err = s.balance.Ledger().SetOldBalance(ctx, key, m)
		return "", m, "Old balance set to " + m.String(), err
	})(w, r)
}

func (s *Server) handleSetSalary(w http.ResponseWriter, r *http.Request) {
	role, err := core.ParseSalaryRole(r.PathValue("role"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.handleWrite("set_"+role.Field(), func(ctx context.Context, key core.MonthKey, p *RequestBodyParser) (string, core.Money, string, error) {
		sal, err := parseSalary(p, role)
		if err != nil {
			return "", core.Money{}, "", err
		}
		err = s.balance.Ledger().SetSalary(ctx, key, role, sal)
		return "", sal.Amount, role.Label() + " saved", err
	})(w, r)
}

func (s *Server) handleFinalBalance(w http.ResponseWriter, r *http.Request) {
	s.handleWrite("set_final_balance", func(ctx context.Context, key core.MonthKey, _ *RequestBodyParser) (string, core.Money, string, error) {
		snap, err := s.balance.CalculateAndSaveFinalBalance(ctx, key)
		if err != nil {
			return "", core.Money{}, "", err
		}
		final := snap.Totals.FinalBalance
		return "", final, fmt.Sprintf("Final balance for %s saved: %s", key.Label(), final), nil
	})(w, r)
}

// sortedMonths returns the keys newest first for the month picker.
func sortedMonths(keys []core.MonthKey) []core.MonthKey {
	out := append([]core.MonthKey(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}
