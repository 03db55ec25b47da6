package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the hand written SQL for the sqlite schema.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type scanner interface {
	Scan(dest ...any) error
}

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(entity, id)
	}
	return err
}

func mustAffect(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}

// users

const userColumns = `id, subject, email, name, image_url, last_report_period, created_at`

func scanUser(s scanner) (core.User, error) {
	var u core.User
	var created int64
	if err := s.Scan(&u.ID, &u.Subject, &u.Email, &u.Name, &u.ImageURL, &u.LastReportPeriod, &created); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = fromNanos(created)
	return u, nil
}

func (q *Queries) GetUser(ctx context.Context, id string) (core.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, notFound(err, "user", id)
	}
	return u, nil
}

func (q *Queries) GetUserBySubject(ctx context.Context, subject string) (core.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE subject = ?`, subject)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, notFound(err, "user", subject)
	}
	return u, nil
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, notFound(err, "user", email)
	}
	return u, nil
}

func (q *Queries) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (q *Queries) InsertUser(ctx context.Context, u core.User) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Subject, u.Email, u.Name, u.ImageURL, u.LastReportPeriod, nanos(u.CreatedAt))
	return err
}

func (q *Queries) UpdateUser(ctx context.Context, u core.User) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET subject = ?, email = ?, name = ?, image_url = ? WHERE id = ?`,
		u.Subject, u.Email, u.Name, u.ImageURL, u.ID)
	if err != nil {
		return err
	}
	return mustAffect(res, "user", u.ID)
}

func (q *Queries) MarkReportSent(ctx context.Context, userID, period string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE users SET last_report_period = ? WHERE id = ?`, period, userID)
	if err != nil {
		return err
	}
	return mustAffect(res, "user", userID)
}

// accounts

const accountColumns = `id, user_id, name, type, currency, balance_cents, is_default, created_at, updated_at`

func scanAccount(s scanner) (core.Account, error) {
	var a core.Account
	var balance, created, updated int64
	var typ string
	if err := s.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Currency, &balance, &a.IsDefault, &created, &updated); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	a.Balance = core.FromCents(balance)
	a.CreatedAt = fromNanos(created)
	a.UpdatedAt = fromNanos(updated)
	return a, nil
}

func (q *Queries) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
	a, err := scanAccount(row)
	if err != nil {
		return core.Account{}, notFound(err, "account", id)
	}
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) InsertAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, string(a.Type), a.Currency, core.ToCents(a.Balance), a.IsDefault,
		nanos(a.CreatedAt), nanos(a.UpdatedAt))
	return err
}

func (q *Queries) UpdateAccountDetails(ctx context.Context, a core.Account) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, type = ?, currency = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		a.Name, string(a.Type), a.Currency, nanos(a.UpdatedAt), a.ID, a.UserID)
	if err != nil {
		return err
	}
	return mustAffect(res, "account", a.ID)
}

func (q *Queries) ClearDefaultAccount(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE accounts SET is_default = 0 WHERE user_id = ? AND is_default = 1`, userID)
	return err
}

func (q *Queries) SetDefaultAccount(ctx context.Context, userID, accountID string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE accounts SET is_default = 1 WHERE id = ? AND user_id = ?`, accountID, userID)
	if err != nil {
		return err
	}
	return mustAffect(res, "account", accountID)
}

func (q *Queries) DeleteAccount(ctx context.Context, userID, accountID string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ? AND user_id = ?`, accountID, userID); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ? AND user_id = ?`, accountID, userID)
	if err != nil {
		return err
	}
	return mustAffect(res, "account", accountID)
}

func (q *Queries) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ?, updated_at = ? WHERE id = ?`,
		core.ToCents(delta), nanos(time.Now()), accountID)
	if err != nil {
		return err
	}
	return mustAffect(res, "account", accountID)
}

// transactions

const transactionColumns = `id, account_id, user_id, kind, amount_cents, category, date, description,
	is_recurring, recurring_interval, next_recurring_date, created_at, updated_at`

func scanTransaction(s scanner) (core.Transaction, error) {
	var t core.Transaction
	var kind, date, interval string
	var amount, created, updated int64
	var next sql.NullString
	if err := s.Scan(&t.ID, &t.AccountID, &t.UserID, &kind, &amount, &t.Category, &date, &t.Description,
		&t.IsRecurring, &interval, &next, &created, &updated); err != nil {
		return core.Transaction{}, err
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	t.Date = d
	t.Kind = core.Kind(kind)
	t.Interval = core.Interval(interval)
	t.Amount = core.FromCents(amount)
	if next.Valid && next.String != "" {
		n, err := time.Parse(dateLayout, next.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse next date %q: %w", next.String, err)
		}
		t.NextRecurringDate = &n
	}
	t.CreatedAt = fromNanos(created)
	t.UpdatedAt = fromNanos(updated)
	return t, nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func (q *Queries) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", id)
	}
	return t, nil
}

func (q *Queries) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.Format(dateLayout))
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY date DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) SumExpenses(ctx context.Context, accountID string, start, end time.Time) (decimal.Decimal, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE account_id = ? AND kind = 'EXPENSE' AND date >= ? AND date <= ?`,
		accountID, start.Format(dateLayout), end.Format(dateLayout)).Scan(&cents)
	if err != nil {
		return decimal.Zero, err
	}
	return core.FromCents(cents), nil
}

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.UserID, string(t.Kind), core.ToCents(t.Amount), t.Category, t.Date.Format(dateLayout),
		t.Description, t.IsRecurring, string(t.Interval), nullDate(t.NextRecurringDate),
		nanos(t.CreatedAt), nanos(t.UpdatedAt))
	return err
}

func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET account_id = ?, kind = ?, amount_cents = ?, category = ?, date = ?, description = ?,
		 is_recurring = ?, recurring_interval = ?, next_recurring_date = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		t.AccountID, string(t.Kind), core.ToCents(t.Amount), t.Category, t.Date.Format(dateLayout), t.Description,
		t.IsRecurring, string(t.Interval), nullDate(t.NextRecurringDate), nanos(t.UpdatedAt),
		t.ID, t.UserID)
	if err != nil {
		return err
	}
	return mustAffect(res, "transaction", t.ID)
}

func (q *Queries) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return mustAffect(res, "transaction", id)
}

// budgets

const budgetColumns = `id, account_id, name, category, amount_cents, spent_cents, last_alert_sent, created_at, updated_at`

func scanBudget(s scanner) (core.Budget, error) {
	var b core.Budget
	var amount, spent, created, updated int64
	var lastAlert sql.NullInt64
	if err := s.Scan(&b.ID, &b.AccountID, &b.Name, &b.Category, &amount, &spent, &lastAlert, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	b.Amount = core.FromCents(amount)
	b.Spent = core.FromCents(spent)
	if lastAlert.Valid {
		t := fromNanos(lastAlert.Int64)
		b.LastAlertSent = &t
	}
	b.CreatedAt = fromNanos(created)
	b.UpdatedAt = fromNanos(updated)
	return b, nil
}

func (q *Queries) GetBudgetByAccount(ctx context.Context, accountID string) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE account_id = ?`, accountID)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, notFound(err, "budget for account", accountID)
	}
	return b, nil
}

func (q *Queries) ListBudgetTargets(ctx context.Context) ([]BudgetTarget, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT b.id, b.account_id, b.name, b.category, b.amount_cents, b.spent_cents, b.last_alert_sent, b.created_at, b.updated_at,
		        a.id, a.user_id, a.name, a.type, a.currency, a.balance_cents, a.is_default, a.created_at, a.updated_at,
		        u.id, u.subject, u.email, u.name, u.image_url, u.last_report_period, u.created_at
		 FROM budgets b
		 JOIN accounts a ON a.id = b.account_id
		 JOIN users u ON u.id = a.user_id
		 ORDER BY b.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BudgetTarget
	for rows.Next() {
		var bt BudgetTarget
		var bAmount, bSpent, bCreated, bUpdated int64
		var aBalance, aCreated, aUpdated, uCreated int64
		var bLastAlert sql.NullInt64
		var aType string
		if err := rows.Scan(
			&bt.Budget.ID, &bt.Budget.AccountID, &bt.Budget.Name, &bt.Budget.Category, &bAmount, &bSpent, &bLastAlert, &bCreated, &bUpdated,
			&bt.Account.ID, &bt.Account.UserID, &bt.Account.Name, &aType, &bt.Account.Currency, &aBalance, &bt.Account.IsDefault, &aCreated, &aUpdated,
			&bt.User.ID, &bt.User.Subject, &bt.User.Email, &bt.User.Name, &bt.User.ImageURL, &bt.User.LastReportPeriod, &uCreated,
		); err != nil {
			return nil, err
		}
		bt.Budget.Amount = core.FromCents(bAmount)
		bt.Budget.Spent = core.FromCents(bSpent)
		if bLastAlert.Valid {
			t := fromNanos(bLastAlert.Int64)
			bt.Budget.LastAlertSent = &t
		}
		bt.Budget.CreatedAt, bt.Budget.UpdatedAt = fromNanos(bCreated), fromNanos(bUpdated)
		bt.Account.Type = core.AccountType(aType)
		bt.Account.Balance = core.FromCents(aBalance)
		bt.Account.CreatedAt, bt.Account.UpdatedAt = fromNanos(aCreated), fromNanos(aUpdated)
		bt.User.CreatedAt = fromNanos(uCreated)
		out = append(out, bt)
	}
	return out, rows.Err()
}

func (q *Queries) InsertBudget(ctx context.Context, b core.Budget) error {
	var lastAlert sql.NullInt64
	if b.LastAlertSent != nil {
		lastAlert = sql.NullInt64{Int64: nanos(*b.LastAlertSent), Valid: true}
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.AccountID, b.Name, b.Category, core.ToCents(b.Amount), core.ToCents(b.Spent), lastAlert,
		nanos(b.CreatedAt), nanos(b.UpdatedAt))
	return err
}

func (q *Queries) UpdateBudgetAmount(ctx context.Context, budgetID string, amount decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE budgets SET amount_cents = ?, updated_at = ? WHERE id = ?`,
		core.ToCents(amount), nanos(time.Now()), budgetID)
	if err != nil {
		return err
	}
	return mustAffect(res, "budget", budgetID)
}

func (q *Queries) RecordBudgetSpent(ctx context.Context, budgetID string, spent decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE budgets SET spent_cents = ?, updated_at = ? WHERE id = ?`,
		core.ToCents(spent), nanos(time.Now()), budgetID)
	if err != nil {
		return err
	}
	return mustAffect(res, "budget", budgetID)
}

func (q *Queries) MarkAlertSent(ctx context.Context, budgetID string, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE budgets SET last_alert_sent = ?, updated_at = ? WHERE id = ?`, nanos(at), nanos(time.Now()), budgetID)
	if err != nil {
		return err
	}
	return mustAffect(res, "budget", budgetID)
}
