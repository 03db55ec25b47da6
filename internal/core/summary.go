package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAlertThreshold is the percentage of a budget that triggers an alert.
var DefaultAlertThreshold = decimal.NewFromInt(80)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthlyStats is the income/expense summary of one calendar month.
type MonthlyStats struct {
	Year             int
	Month            int // 1-12
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal
	ByCategory       []CategoryAmount // expenses only, largest first
	TransactionCount int
}

// Net is income minus expenses.
func (s MonthlyStats) Net() decimal.Decimal {
	return s.TotalIncome.Sub(s.TotalExpenses)
}

// Period formats the month as YYYY-MM.
func (s MonthlyStats) Period() string {
	return time.Date(s.Year, time.Month(s.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// SummarizeMonth aggregates txs that fall inside the given month.
func SummarizeMonth(year, month int, txs []Transaction) MonthlyStats {
	stats := MonthlyStats{
		Year:          year,
		Month:         month,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	byCat := map[string]decimal.Decimal{}
	for _, t := range txs {
		if t.Date.Year() != year || int(t.Date.Month()) != month {
			continue
		}
		stats.TransactionCount++
		if t.Kind == Expense {
			stats.TotalExpenses = stats.TotalExpenses.Add(t.Amount)
			cat := t.Category
			if cat == "" {
				cat = "other-expense"
			}
			byCat[cat] = byCat[cat].Add(t.Amount)
			continue
		}
		stats.TotalIncome = stats.TotalIncome.Add(t.Amount)
	}
	for name, amt := range byCat {
		stats.ByCategory = append(stats.ByCategory, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(stats.ByCategory, func(i, j int) bool {
		c := stats.ByCategory[i].Amount.Cmp(stats.ByCategory[j].Amount)
		if c == 0 {
			return stats.ByCategory[i].Name < stats.ByCategory[j].Name
		}
		return c > 0
	})
	return stats
}

// BudgetProgress is a budget together with its month-to-date spending.
type BudgetProgress struct {
	Budget      *Budget
	Expenses    decimal.Decimal
	Remaining   decimal.Decimal
	PercentUsed decimal.Decimal
}

// NewBudgetProgress computes remaining and percent used. A missing budget or a
// non-positive limit yields 0 percent.
func NewBudgetProgress(b *Budget, expenses decimal.Decimal) BudgetProgress {
	limit := decimal.Zero
	if b != nil {
		limit = b.Amount
	}
	return BudgetProgress{
		Budget:      b,
		Expenses:    expenses,
		Remaining:   limit.Sub(expenses),
		PercentUsed: PercentUsed(expenses, limit),
	}
}

// PercentUsed is spent / limit * 100, or 0 when limit <= 0.
func PercentUsed(spent, limit decimal.Decimal) decimal.Decimal {
	if !limit.IsPositive() {
		return decimal.Zero
	}
	return spent.Div(limit).Mul(decimal.NewFromInt(100))
}

// ShouldAlert reports whether a budget alert is due: usage at or above threshold
// and no alert sent yet in the calendar month of now.
func ShouldAlert(percentUsed, threshold decimal.Decimal, lastAlertSent *time.Time, now time.Time) bool {
	if percentUsed.LessThan(threshold) {
		return false
	}
	if lastAlertSent == nil {
		return true
	}
	return monthIndex(lastAlertSent.UTC()) < monthIndex(now.UTC())
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// MonthRange returns the first and last calendar day of the month containing t,
// both at midnight UTC, for inclusive date filters.
func MonthRange(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, -1)
	return start, end
}

// PreviousMonth returns year and month (1-12) of the month before t.
func PreviousMonth(t time.Time) (int, int) {
	start, _ := MonthRange(t)
	prev := start.AddDate(0, -1, 0)
	return prev.Year(), int(prev.Month())
}
