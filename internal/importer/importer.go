// Package importer turns tabular bank exports into transaction rows. It only
// looks at header names and cell text; the fallback column inference lives in
// the ai package.
package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
)

var (
	dateKeywords        = []string{"date", "transaction date", "time"}
	amountKeywords      = []string{"amount", "amt", "sum", "total", "value"}
	typeKeywords        = []string{"type", "transaction type", "category type"}
	descriptionKeywords = []string{"description", "desc", "details", "note", "memo"}
	categoryKeywords    = []string{"category", "tag", "label"}
)

// Columns holds 0-based column indices; -1 means the column was not found.
type Columns struct {
	Date        int `json:"date"`
	Amount      int `json:"amount"`
	Type        int `json:"type"`
	Description int `json:"description"`
	Category    int `json:"category"`
}

// NoColumns is the mapping with nothing resolved.
var NoColumns = Columns{Date: -1, Amount: -1, Type: -1, Description: -1, Category: -1}

// Resolved reports whether the columns needed to build a row are known.
func (c Columns) Resolved() bool {
	return c.Date >= 0 && c.Amount >= 0
}

// Fill returns c with every missing column taken from other.
func (c Columns) Fill(other Columns) Columns {
	pick := func(have, alt int) int {
		if have >= 0 {
			return have
		}
		if alt >= 0 {
			return alt
		}
		return -1
	}
	return Columns{
		Date:        pick(c.Date, other.Date),
		Amount:      pick(c.Amount, other.Amount),
		Type:        pick(c.Type, other.Type),
		Description: pick(c.Description, other.Description),
		Category:    pick(c.Category, other.Category),
	}
}

// InferColumns matches headers case-insensitively against the keyword list of
// each field. The first header containing any keyword wins.
func InferColumns(headers []string) Columns {
	return Columns{
		Date:        findColumn(headers, dateKeywords),
		Amount:      findColumn(headers, amountKeywords),
		Type:        findColumn(headers, typeKeywords),
		Description: findColumn(headers, descriptionKeywords),
		Category:    findColumn(headers, categoryKeywords),
	}
}

func findColumn(headers []string, keywords []string) int {
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		for _, k := range keywords {
			if strings.Contains(h, k) {
				return i
			}
		}
	}
	return -1
}

// Row is one importable transaction.
type Row struct {
	Line        int             `json:"line"` // 1-based, header is line 1
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        core.Kind       `json:"type"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
}

// ParseRows converts data rows (header excluded) using cols. Rows with an
// empty or unparseable date or amount are skipped and counted.
func ParseRows(cols Columns, rows [][]string) (out []Row, skipped int) {
	for i, r := range rows {
		rawDate := cell(r, cols.Date)
		rawAmount := cell(r, cols.Amount)
		if rawDate == "" || rawAmount == "" {
			skipped++
			continue
		}
		date, ok := ParseDate(rawDate)
		if !ok {
			skipped++
			continue
		}
		signed, ok := ParseAmount(rawAmount)
		if !ok || signed.IsZero() {
			skipped++
			continue
		}
		out = append(out, Row{
			Line:        i + 2,
			Date:        date,
			Amount:      signed.Abs(),
			Kind:        KindOf(cell(r, cols.Type), signed),
			Description: cell(r, cols.Description),
			Category:    cell(r, cols.Category),
		})
	}
	return out, skipped
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// KindOf maps an explicit type cell to a kind, falling back to the sign of
// the raw amount.
func KindOf(typeCell string, signed decimal.Decimal) core.Kind {
	v := strings.ToLower(typeCell)
	switch {
	case strings.Contains(v, "expense"), strings.Contains(v, "debit"), strings.Contains(v, "withdrawal"):
		return core.Expense
	case strings.Contains(v, "income"), strings.Contains(v, "credit"), strings.Contains(v, "deposit"):
		return core.Income
	}
	if signed.IsNegative() {
		return core.Expense
	}
	return core.Income
}

var amountNoise = regexp.MustCompile(`[^\d.,()-]`)

var thousandsGroups = regexp.MustCompile(`^[1-9]\d{0,2}([.,]\d{3})+$`)

// ParseAmount reads a signed amount from a bank export cell. Currency symbols
// and spaces are dropped; "(x)", a leading or a trailing minus mean negative.
// The last ',' or '.' followed by one or two digits is the decimal
// separator and every other separator groups thousands. Amounts with more
// than two decimals are rejected.
func ParseAmount(s string) (decimal.Decimal, bool) {
	cleaned := amountNoise.ReplaceAllString(s, "")
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	if strings.HasPrefix(cleaned, "-") || strings.HasSuffix(cleaned, "-") {
		negative = true
		cleaned = strings.Trim(cleaned, "-")
	}
	if cleaned == "" || strings.ContainsAny(cleaned, "()-") {
		return decimal.Zero, false
	}

	number, ok := normalizeSeparators(cleaned)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(number)
	if err != nil || d.Exponent() < -core.MinorUnits {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// normalizeSeparators rewrites digits with ',' and '.' into a plain decimal
// literal.
func normalizeSeparators(s string) (string, bool) {
	last := strings.LastIndexAny(s, ".,")
	if last < 0 {
		return s, true
	}
	intPart, frac := s[:last], s[last+1:]
	if len(frac) > 0 && len(frac) <= core.MinorUnits {
		if strings.ContainsRune(intPart, rune(s[last])) || strings.ContainsAny(frac, ".,") {
			return "", false
		}
		intPart = strings.NewReplacer(",", "", ".", "").Replace(intPart)
		if intPart == "" {
			intPart = "0"
		}
		return intPart + "." + frac, true
	}
	if thousandsGroups.MatchString(s) {
		return strings.NewReplacer(",", "", ".", "").Replace(s), true
	}
	return "", false
}

var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

var dateSeparators = regexp.MustCompile(`[/\-.]`)

// ParseDate tries ISO forms first, then D/M/Y and M/D/Y. The result is
// midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOnly(t), true
		}
	}
	parts := dateSeparators.Split(s, -1)
	if len(parts) != 3 {
		return time.Time{}, false
	}
	n := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, false
		}
		n[i] = v
	}
	if t, ok := civilDate(n[2], n[1], n[0]); ok {
		return t, true
	}
	return civilDate(n[2], n[0], n[1])
}

func civilDate(year, month, day int) (time.Time, bool) {
	if year < 1000 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
