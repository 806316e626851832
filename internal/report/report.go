// Package report renders a month snapshot as a PDF statement.
package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"masjid/internal/core"
	"masjid/internal/log"
)

// Options controls the fixed text of the report.
type Options struct {
	Title      string
	PreparedBy string
	ApprovedBy string
}

func DefaultOptions() Options {
	return Options{
		Title:      "Masjid Monthly Finance Report",
		PreparedBy: "Prepared By",
		ApprovedBy: "Sadar Sahab",
	}
}

type Renderer struct {
	opts Options
	now  func() time.Time
}

func NewRenderer(opts Options) *Renderer {
	d := DefaultOptions()
	if opts.Title == "" {
		opts.Title = d.Title
	}
	if opts.PreparedBy == "" {
		opts.PreparedBy = d.PreparedBy
	}
	if opts.ApprovedBy == "" {
		opts.ApprovedBy = d.ApprovedBy
	}
	return &Renderer{opts: opts, now: time.Now}
}

const (
	pageWidth = 190.0
	rowHeight = 7.0
)

// Render produces the PDF bytes for snap.
func (r *Renderer) Render(ctx context.Context, snap core.MonthSnapshot) ([]byte, error) {
	rec := snap.Record
	t := snap.Totals

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s - %s", r.opts.Title, rec.Key.Label()), true)
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 18)
	generated := r.now().Format("02 Jan 2006")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(pageWidth/2, 6, "Generated on "+generated, "", 0, "L", false, 0, "")
		pdf.CellFormat(pageWidth/2, 6, "Page "+strconv.Itoa(pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()
	// Core fonts are cp1252; entered text is UTF-8.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(pageWidth, 10, r.opts.Title, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(pageWidth, 8, rec.Key.Label(), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section(pdf, "Donations (Jumaon ka Chanda)")
	tableHeader(pdf, []string{"Date", "Description", "Amount"}, []float64{35, 115, 40})
	for _, d := range rec.Donations {
		row(pdf, tr, []string{d.Date.String(), d.Description, d.Amount.String()}, []float64{35, 115, 40})
	}
	if len(rec.Donations) == 0 {
		emptyRow(pdf, "No donations recorded")
	}
	totalRow(pdf, "Total Donations", t.TotalDonations)
	pdf.Ln(4)

	section(pdf, "Expenses (Kharcha)")
	tableHeader(pdf, []string{"Date", "Name", "Amount"}, []float64{35, 115, 40})
	for _, e := range rec.Expenses {
		row(pdf, tr, []string{e.Date.String(), e.Name, e.Amount.String()}, []float64{35, 115, 40})
	}
	if len(rec.Expenses) == 0 {
		emptyRow(pdf, "No expenses recorded")
	}
	totalRow(pdf, "Total Expenses", t.TotalExpenses)
	pdf.Ln(4)

	section(pdf, "Bill Book")
	tableHeader(pdf, []string{"From", "To", "Total Chanda"}, []float64{60, 60, 70})
	row(pdf, tr, []string{
		strconv.FormatInt(rec.BillBook.From, 10),
		strconv.FormatInt(rec.BillBook.To, 10),
		rec.BillBook.TotalChanda.String(),
	}, []float64{60, 60, 70})
	pdf.Ln(4)

	section(pdf, "Balance Calculation")
	keyValue(pdf, "Old Balance", rec.OldBalance)
	keyValue(pdf, "Total Donations", t.TotalDonations)
	keyValue(pdf, "Bill Book Total", rec.BillBook.TotalChanda)
	keyValue(pdf, "Total Before Deductions", t.TotalBeforeDeductions)
	keyValue(pdf, "Total Expenses", t.TotalExpenses)
	pdf.Ln(4)

	section(pdf, "Salaries")
	tableHeader(pdf, []string{"Date", "Description", "Amount"}, []float64{35, 115, 40})
	for _, s := range []core.Salary{rec.ImamSalary, rec.MouzanSalary} {
		row(pdf, tr, []string{s.Date.String(), s.Description, s.Amount.String()}, []float64{35, 115, 40})
	}
	totalRow(pdf, "Total Salaries", t.TotalSalaries)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetFillColor(230, 244, 234)
	pdf.CellFormat(pageWidth-60, 10, "Final Balance", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 10, t.FinalBalance.String(), "1", 1, "R", true, 0, "")
	pdf.Ln(24)

	pdf.SetFont("Helvetica", "", 11)
	half := pageWidth / 2
	pdf.CellFormat(half, 6, "____________________", "", 0, "C", false, 0, "")
	pdf.CellFormat(half, 6, "____________________", "", 1, "C", false, 0, "")
	pdf.CellFormat(half, 6, r.opts.PreparedBy, "", 0, "C", false, 0, "")
	pdf.CellFormat(half, 6, r.opts.ApprovedBy, "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	slog.InfoContext(ctx, "Report rendered",
		log.FieldComponent, log.ComponentReport,
		log.FieldOperation, log.OpRender,
		log.FieldMonth, string(rec.Key),
		log.FieldBytes, buf.Len())
	return buf.Bytes(), nil
}

// Filename is the download name for a month's report.
func Filename(key core.MonthKey) string {
	return "masjid-finance-" + string(key) + ".pdf"
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(pageWidth, 8, title, "B", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func tableHeader(pdf *fpdf.Fpdf, cols []string, widths []float64) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	for i, c := range cols {
		align := "L"
		if i == len(cols)-1 {
			align = "R"
		}
		pdf.CellFormat(widths[i], rowHeight, c, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)
}

func row(pdf *fpdf.Fpdf, tr func(string) string, cells []string, widths []float64) {
	pdf.SetFont("Helvetica", "", 10)
	for i, c := range cells {
		align := "L"
		if i == len(cells)-1 {
			align = "R"
		}
		pdf.CellFormat(widths[i], rowHeight, tr(c), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func emptyRow(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(pageWidth, rowHeight, text, "1", 1, "C", false, 0, "")
}

func totalRow(pdf *fpdf.Fpdf, label string, m core.Money) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(pageWidth-40, rowHeight, label, "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, rowHeight, m.String(), "1", 1, "R", false, 0, "")
}

func keyValue(pdf *fpdf.Fpdf, label string, m core.Money) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(pageWidth-60, rowHeight, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(60, rowHeight, m.String(), "", 1, "R", false, 0, "")
}
