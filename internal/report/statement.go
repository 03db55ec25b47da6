// Package report renders account statements as PDF.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"finledger/internal/core"
)

// MaxRows bounds the transaction table of one statement.
const MaxRows = 2000

// Statement is everything printed on one statement.
type Statement struct {
	Owner        string
	Currency     string
	From, To     time.Time
	Transactions []core.Transaction // newest first
	AccountNames map[string]string
	GeneratedAt  time.Time
}

// Totals sums income and expenses of the statement rows.
func (s Statement) Totals() (income, expenses decimal.Decimal) {
	for _, t := range s.Transactions {
		switch t.Kind {
		case core.Income:
			income = income.Add(t.Amount)
		case core.Expense:
			expenses = expenses.Add(t.Amount)
		}
	}
	return income, expenses
}

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Date", 24, "L"},
	{"Account", 34, "L"},
	{"Category", 30, "L"},
	{"Description", 62, "L"},
	{"Amount", 32, "R"},
}

// Render writes s as an A4 PDF to w.
func Render(w io.Writer, s Statement) error {
	currency := s.Currency
	if currency == "" {
		currency = core.DefaultCurrency
	}
	income, expenses := s.Totals()

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(v string, n int) string {
		return tr(truncate(latin1(v), n))
	}
	pdf.SetMargins(14, 14, 14)
	pdf.SetTitle("Account statement", false)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Account Statement")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, "Period: "+s.From.Format("2006-01-02")+" to "+s.To.Format("2006-01-02"))
	pdf.Ln(5)
	if s.Owner != "" {
		pdf.Cell(0, 6, "Prepared for: "+text(s.Owner, 80))
		pdf.Ln(5)
	}
	if !s.GeneratedAt.IsZero() {
		pdf.Cell(0, 6, "Generated: "+s.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
		pdf.Ln(5)
	}
	pdf.Ln(5)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)
	sumW := 60.6
	pdf.CellFormat(sumW, 10, "Income ("+currency+")", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW, 10, "Expenses ("+currency+")", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW, 10, "Net ("+currency+")", "1", 1, "C", true, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW, 10, income.StringFixed(2), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW, 10, expenses.StringFixed(2), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW, 10, income.Sub(expenses).StringFixed(2), "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(235, 235, 235)
		for _, c := range columns {
			pdf.CellFormat(c.width, 8, c.title, "1", 0, c.align, true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	header()

	rows := s.Transactions
	if len(rows) > MaxRows {
		rows = rows[:MaxRows]
	}
	if len(rows) == 0 {
		pdf.CellFormat(0, 8, "No transactions in this period.", "1", 1, "C", false, 0, "")
	}
	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, t := range rows {
		if pdf.GetY()+7 > pageH-bottom-12 {
			pdf.AddPage()
			header()
		}
		amount := t.Amount.StringFixed(2)
		if t.Kind == core.Expense {
			amount = "-" + amount
		}
		cells := []string{
			t.Date.Format("2006-01-02"),
			text(s.AccountNames[t.AccountID], 18),
			text(t.Category, 16),
			text(t.Description, 36),
			amount,
		}
		for i, c := range columns {
			pdf.CellFormat(c.width, 7, cells[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(s.Transactions) > MaxRows {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 6, fmt.Sprintf("Showing the first %d of %d transactions.", MaxRows, len(s.Transactions)))
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render statement: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}

// latin1 replaces characters the core PDF fonts cannot draw.
func latin1(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xff {
			return '?'
		}
		return r
	}, s)
}
