package http

import (
	"time"

	"finledger/internal/ai"
	"finledger/internal/core"
	"finledger/internal/importer"
	"finledger/internal/services"
)

type accountRequest struct {
	Name      string     `json:"name" validate:"required,max=100"`
	Type      string     `json:"type" validate:"required,oneof=SAVINGS CURRENT CREDIT INVESTMENT"`
	Currency  string     `json:"currency" validate:"omitempty,len=3,alpha"`
	Balance   flexAmount `json:"balance"`
	IsDefault bool       `json:"is_default"`
}

func (r accountRequest) toInput(withBalance bool) (services.AccountInput, error) {
	in := services.AccountInput{
		Name:      sanitizeInput(r.Name),
		Type:      core.AccountType(r.Type),
		Currency:  r.Currency,
		IsDefault: r.IsDefault,
	}
	if withBalance {
		b, err := core.ParseBalance(string(r.Balance))
		if err != nil {
			return in, err
		}
		in.Balance = b
	}
	return in, nil
}

type transactionRequest struct {
	AccountID   string     `json:"account_id"`
	Kind        string     `json:"kind" validate:"required,oneof=EXPENSE INCOME"`
	Amount      flexAmount `json:"amount" validate:"required"`
	Category    string     `json:"category" validate:"required,max=64"`
	Date        string     `json:"date" validate:"required,datetime=2006-01-02"`
	Description string     `json:"description" validate:"max=500"`
	IsRecurring bool       `json:"is_recurring"`
	Interval    string     `json:"interval" validate:"required_if=IsRecurring true,omitempty,oneof=DAILY WEEKLY MONTHLY YEARLY"`
}

func (r transactionRequest) toInput() (services.TransactionInput, error) {
	amount, err := core.ParseAmount(string(r.Amount))
	if err != nil {
		return services.TransactionInput{}, err
	}
	date, err := ParseDate(r.Date)
	if err != nil {
		return services.TransactionInput{}, err
	}
	return services.TransactionInput{
		AccountID:   r.AccountID,
		Kind:        core.Kind(r.Kind),
		Amount:      amount,
		Category:    sanitizeInput(r.Category),
		Date:        date,
		Description: sanitizeInput(r.Description),
		IsRecurring: r.IsRecurring,
		Interval:    core.Interval(r.Interval),
	}, nil
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,required"`
}

type budgetRequest struct {
	AccountID string     `json:"account_id" validate:"required"`
	Amount    flexAmount `json:"amount" validate:"required"`
}

type sheetImportRequest struct {
	SpreadsheetID string `json:"spreadsheet_id" validate:"required"`
	Range         string `json:"range" validate:"max=100"`
	AccountID     string `json:"account_id"`
}

type accountView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Currency  string    `json:"currency"`
	Balance   string    `json:"balance"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

func newAccountView(a core.Account) accountView {
	return accountView{
		ID:        a.ID,
		Name:      a.Name,
		Type:      string(a.Type),
		Currency:  a.Currency,
		Balance:   a.Balance.StringFixed(2),
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
	}
}

func newAccountViews(accounts []core.Account) []accountView {
	out := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, newAccountView(a))
	}
	return out
}

type transactionView struct {
	ID                string    `json:"id"`
	AccountID         string    `json:"account_id"`
	Kind              string    `json:"kind"`
	Amount            string    `json:"amount"`
	Category          string    `json:"category"`
	Date              string    `json:"date"`
	Description       string    `json:"description,omitempty"`
	IsRecurring       bool      `json:"is_recurring"`
	Interval          string    `json:"interval,omitempty"`
	NextRecurringDate string    `json:"next_recurring_date,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func newTransactionView(t core.Transaction) transactionView {
	v := transactionView{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Kind:        string(t.Kind),
		Amount:      t.Amount.StringFixed(2),
		Category:    t.Category,
		Date:        t.Date.Format(dateLayout),
		Description: t.Description,
		IsRecurring: t.IsRecurring,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.IsRecurring {
		v.Interval = string(t.Interval)
	}
	if t.NextRecurringDate != nil {
		v.NextRecurringDate = t.NextRecurringDate.Format(dateLayout)
	}
	return v
}

func newTransactionViews(txs []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionView(t))
	}
	return out
}

type accountDetailView struct {
	Account      accountView       `json:"account"`
	Transactions []transactionView `json:"transactions"`
	Count        int               `json:"count"`
}

type deleteResultView struct {
	Deleted     int               `json:"deleted"`
	Adjustments map[string]string `json:"adjustments"`
}

func newDeleteResultView(r services.DeleteResult) deleteResultView {
	adj := make(map[string]string, len(r.Adjustments))
	for id, d := range r.Adjustments {
		adj[id] = d.StringFixed(2)
	}
	return deleteResultView{Deleted: r.Deleted, Adjustments: adj}
}

type budgetJSON struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	Name          string     `json:"name"`
	Amount        string     `json:"amount"`
	LastAlertSent *time.Time `json:"last_alert_sent,omitempty"`
}

func newBudgetJSON(b *core.Budget) *budgetJSON {
	if b == nil {
		return nil
	}
	return &budgetJSON{
		ID:            b.ID,
		AccountID:     b.AccountID,
		Name:          b.Name,
		Amount:        b.Amount.StringFixed(2),
		LastAlertSent: b.LastAlertSent,
	}
}

type budgetView struct {
	Budget    *budgetJSON `json:"budget"`
	Expenses  string      `json:"expenses"`
	Remaining string      `json:"remaining"`
}

type budgetProgressView struct {
	Budget      *budgetJSON `json:"budget"`
	Expenses    string      `json:"expenses"`
	Remaining   string      `json:"remaining"`
	PercentUsed string      `json:"percent_used"`
}

type categoryView struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

type monthView struct {
	Period           string         `json:"period"`
	TotalIncome      string         `json:"total_income"`
	TotalExpenses    string         `json:"total_expenses"`
	Net              string         `json:"net"`
	ByCategory       []categoryView `json:"by_category"`
	TransactionCount int            `json:"transaction_count"`
}

func newMonthView(s core.MonthlyStats) monthView {
	v := monthView{
		Period:           s.Period(),
		TotalIncome:      s.TotalIncome.StringFixed(2),
		TotalExpenses:    s.TotalExpenses.StringFixed(2),
		Net:              s.Net().StringFixed(2),
		ByCategory:       make([]categoryView, 0, len(s.ByCategory)),
		TransactionCount: s.TransactionCount,
	}
	for _, c := range s.ByCategory {
		v.ByCategory = append(v.ByCategory, categoryView{Category: c.Name, Amount: c.Amount.StringFixed(2)})
	}
	return v
}

type overviewView struct {
	Accounts         []accountView       `json:"accounts"`
	DefaultAccountID string              `json:"default_account_id,omitempty"`
	Budget           *budgetProgressView `json:"budget,omitempty"`
	Recent           []transactionView   `json:"recent"`
	Month            monthView           `json:"month"`
	GeneratedAt      time.Time           `json:"generated_at"`
}

func newOverviewView(o services.Overview) overviewView {
	v := overviewView{
		Accounts:         newAccountViews(o.Accounts),
		DefaultAccountID: o.DefaultAccountID,
		Recent:           newTransactionViews(o.Recent),
		Month:            newMonthView(o.Month),
		GeneratedAt:      o.GeneratedAt,
	}
	if o.Budget != nil {
		v.Budget = &budgetProgressView{
			Budget:      newBudgetJSON(o.Budget.Budget),
			Expenses:    o.Budget.Expenses.StringFixed(2),
			Remaining:   o.Budget.Remaining.StringFixed(2),
			PercentUsed: o.Budget.PercentUsed.StringFixed(1),
		}
	}
	return v
}

type importRowView struct {
	Line        int    `json:"line"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

type importColumnsView struct {
	Date        int `json:"date"`
	Amount      int `json:"amount"`
	Type        int `json:"type"`
	Description int `json:"description"`
	Category    int `json:"category"`
}

type importResultView struct {
	Columns importColumnsView `json:"columns"`
	Rows    []importRowView   `json:"rows"`
	Count   int               `json:"count"`
	Skipped int               `json:"skipped"`
	Created int               `json:"created"`
}

func newImportResultView(r services.ImportResult) importResultView {
	v := importResultView{
		Columns: newImportColumnsView(r.Columns),
		Rows:    make([]importRowView, 0, len(r.Rows)),
		Count:   len(r.Rows),
		Skipped: r.Skipped,
		Created: len(r.Created),
	}
	for _, row := range r.Rows {
		v.Rows = append(v.Rows, importRowView{
			Line:        row.Line,
			Date:        row.Date.Format(dateLayout),
			Amount:      row.Amount.StringFixed(2),
			Kind:        string(row.Kind),
			Description: row.Description,
			Category:    row.Category,
		})
	}
	return v
}

// newImportColumnsView reports 0-based column indexes, -1 when absent.
func newImportColumnsView(c importer.Columns) importColumnsView {
	return importColumnsView{
		Date:        c.Date,
		Amount:      c.Amount,
		Type:        c.Type,
		Description: c.Description,
		Category:    c.Category,
	}
}

type receiptView struct {
	Amount       string `json:"amount"`
	Date         string `json:"date"`
	Description  string `json:"description"`
	MerchantName string `json:"merchantName"`
	Category     string `json:"category"`
}

func newReceiptView(r ai.Receipt) receiptView {
	return receiptView{
		Amount:       r.Amount.StringFixed(2),
		Date:         r.Date.Format(dateLayout),
		Description:  r.Description,
		MerchantName: r.MerchantName,
		Category:     r.Category,
	}
}
