// Package mysql implements the ledger store on MySQL through GORM.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/core"
	"finledger/internal/storage"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRow struct {
	ID               string `gorm:"primaryKey;size:36"`
	Subject          string `gorm:"size:191;uniqueIndex;not null"`
	Email            string `gorm:"size:191;uniqueIndex;not null"`
	Name             string `gorm:"size:191"`
	ImageURL         string `gorm:"size:512"`
	LastReportPeriod string `gorm:"size:7"`
	CreatedAt        time.Time
}

func (*userRow) TableName() string { return "users" }

type accountRow struct {
	ID        string          `gorm:"primaryKey;size:36"`
	UserID    string          `gorm:"size:36;index:idx_accounts_user;not null"`
	Name      string          `gorm:"size:100;not null"`
	Type      string          `gorm:"size:16;not null"`
	Currency  string          `gorm:"size:3;not null"`
	Balance   decimal.Decimal `gorm:"type:decimal(19,2);not null;default:0"`
	IsDefault bool            `gorm:"not null;default:false"`
	CreatedAt time.Time       `gorm:"index:idx_accounts_user"`
	UpdatedAt time.Time
}

func (*accountRow) TableName() string { return "accounts" }

type transactionRow struct {
	ID                string          `gorm:"primaryKey;size:36"`
	AccountID         string          `gorm:"size:36;index:idx_tx_account_kind_date;not null"`
	UserID            string          `gorm:"size:36;index:idx_tx_user_date;not null"`
	Kind              string          `gorm:"size:8;index:idx_tx_account_kind_date;not null"`
	Amount            decimal.Decimal `gorm:"type:decimal(19,2);not null"`
	Category          string          `gorm:"size:64"`
	Date              time.Time       `gorm:"type:date;index:idx_tx_account_kind_date;index:idx_tx_user_date;not null"`
	Description       string          `gorm:"size:500"`
	IsRecurring       bool            `gorm:"not null;default:false"`
	RecurringInterval string          `gorm:"size:8"`
	NextRecurringDate *time.Time      `gorm:"type:date"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (*transactionRow) TableName() string { return "transactions" }

type budgetRow struct {
	ID            string          `gorm:"primaryKey;size:36"`
	AccountID     string          `gorm:"size:36;uniqueIndex;not null"`
	Name          string          `gorm:"size:128;not null"`
	Category      string          `gorm:"size:64"`
	Amount        decimal.Decimal `gorm:"type:decimal(19,2);not null"`
	Spent         decimal.Decimal `gorm:"type:decimal(19,2);not null;default:0"`
	LastAlertSent *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (*budgetRow) TableName() string { return "budgets" }

// Store implements storage.Store on a GORM client.
type Store struct {
	*queries
	client *Client
}

var _ storage.Store = (*Store)(nil)

// NewStore migrates the schema and returns a ready store.
func NewStore(client *Client) (*Store, error) {
	if err := client.DB().AutoMigrate(&userRow{}, &accountRow{}, &transactionRow{}, &budgetRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	slog.Info("MySQL ledger store ready")
	return &Store{queries: &queries{db: client.DB()}, client: client}, nil
}

func (s *Store) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&queries{db: tx, locking: true})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.client.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.client.Close()
}

// queries implements storage.Tx; outside Atomic only the Reader half is used.
type queries struct {
	db *gorm.DB
	// locking adds SELECT ... FOR UPDATE to row reads inside a transaction.
	locking bool
}

func (q *queries) conn(ctx context.Context) *gorm.DB {
	db := q.db.WithContext(ctx)
	if q.locking {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.NotFound(entity, id)
	}
	return err
}

func affected(res *gorm.DB, entity, id string) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}

// conversions

func toUser(r userRow) core.User {
	return core.User{
		ID:               r.ID,
		Subject:          r.Subject,
		Email:            r.Email,
		Name:             r.Name,
		ImageURL:         r.ImageURL,
		LastReportPeriod: r.LastReportPeriod,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

func toAccount(r accountRow) core.Account {
	return core.Account{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Type:      core.AccountType(r.Type),
		Currency:  r.Currency,
		Balance:   r.Balance,
		IsDefault: r.IsDefault,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toTransaction(r transactionRow) core.Transaction {
	t := core.Transaction{
		ID:          r.ID,
		AccountID:   r.AccountID,
		UserID:      r.UserID,
		Kind:        core.Kind(r.Kind),
		Amount:      r.Amount,
		Category:    r.Category,
		Date:        core.DateOnly(r.Date),
		Description: r.Description,
		IsRecurring: r.IsRecurring,
		Interval:    core.Interval(r.RecurringInterval),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.NextRecurringDate != nil {
		next := core.DateOnly(*r.NextRecurringDate)
		t.NextRecurringDate = &next
	}
	return t
}

func fromTransaction(t core.Transaction) transactionRow {
	return transactionRow{
		ID:                t.ID,
		AccountID:         t.AccountID,
		UserID:            t.UserID,
		Kind:              string(t.Kind),
		Amount:            t.Amount,
		Category:          t.Category,
		Date:              t.Date,
		Description:       t.Description,
		IsRecurring:       t.IsRecurring,
		RecurringInterval: string(t.Interval),
		NextRecurringDate: t.NextRecurringDate,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func toBudget(r budgetRow) core.Budget {
	b := core.Budget{
		ID:        r.ID,
		AccountID: r.AccountID,
		Name:      r.Name,
		Category:  r.Category,
		Amount:    r.Amount,
		Spent:     r.Spent,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.LastAlertSent != nil {
		at := r.LastAlertSent.UTC()
		b.LastAlertSent = &at
	}
	return b
}

// reads

func (q *queries) GetUser(ctx context.Context, id string) (core.User, error) {
	var r userRow
	if err := q.conn(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return core.User{}, notFound(err, "user", id)
	}
	return toUser(r), nil
}

func (q *queries) GetUserBySubject(ctx context.Context, subject string) (core.User, error) {
	var r userRow
	if err := q.conn(ctx).Where("subject = ?", subject).First(&r).Error; err != nil {
		return core.User{}, notFound(err, "user", subject)
	}
	return toUser(r), nil
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var r userRow
	if err := q.conn(ctx).Where("email = ?", email).First(&r).Error; err != nil {
		return core.User{}, notFound(err, "user", email)
	}
	return toUser(r), nil
}

func (q *queries) ListUsers(ctx context.Context) ([]core.User, error) {
	var rows []userRow
	if err := q.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, toUser(r))
	}
	return out, nil
}

func (q *queries) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	var r accountRow
	if err := q.conn(ctx).Where("id = ? AND user_id = ?", id, userID).First(&r).Error; err != nil {
		return core.Account{}, notFound(err, "account", id)
	}
	return toAccount(r), nil
}

func (q *queries) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	var rows []accountRow
	if err := q.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAccount(r))
	}
	return out, nil
}

func (q *queries) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	var r transactionRow
	if err := q.conn(ctx).Where("id = ? AND user_id = ?", id, userID).First(&r).Error; err != nil {
		return core.Transaction{}, notFound(err, "transaction", id)
	}
	return toTransaction(r), nil
}

func (q *queries) ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	db := q.db.WithContext(ctx).Where("user_id = ?", userID)
	if f.AccountID != "" {
		db = db.Where("account_id = ?", f.AccountID)
	}
	if f.Kind != "" {
		db = db.Where("kind = ?", string(f.Kind))
	}
	if !f.From.IsZero() {
		db = db.Where("date >= ?", f.From)
	}
	if !f.To.IsZero() {
		db = db.Where("date <= ?", f.To)
	}
	if f.Limit > 0 {
		db = db.Limit(f.Limit)
	}
	var rows []transactionRow
	if err := db.Order("date DESC").Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, toTransaction(r))
	}
	return out, nil
}

func (q *queries) SumExpenses(ctx context.Context, accountID string, start, end time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.db.WithContext(ctx).Model(&transactionRow{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_id = ? AND kind = ? AND date >= ? AND date <= ?", accountID, string(core.Expense), start, end).
		Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (q *queries) GetBudgetByAccount(ctx context.Context, accountID string) (core.Budget, error) {
	var r budgetRow
	if err := q.conn(ctx).Where("account_id = ?", accountID).First(&r).Error; err != nil {
		return core.Budget{}, notFound(err, "budget for account", accountID)
	}
	return toBudget(r), nil
}

func (q *queries) ListBudgetTargets(ctx context.Context) ([]storage.BudgetTarget, error) {
	db := q.db.WithContext(ctx)

	var budgets []budgetRow
	if err := db.Order("created_at").Find(&budgets).Error; err != nil {
		return nil, err
	}
	if len(budgets) == 0 {
		return nil, nil
	}

	accountIDs := make([]string, 0, len(budgets))
	for _, b := range budgets {
		accountIDs = append(accountIDs, b.AccountID)
	}
	var accounts []accountRow
	if err := db.Where("id IN ?", accountIDs).Find(&accounts).Error; err != nil {
		return nil, err
	}
	accountByID := make(map[string]accountRow, len(accounts))
	userIDs := make([]string, 0, len(accounts))
	for _, a := range accounts {
		accountByID[a.ID] = a
		userIDs = append(userIDs, a.UserID)
	}
	var users []userRow
	if err := db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	userByID := make(map[string]userRow, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	out := make([]storage.BudgetTarget, 0, len(budgets))
	for _, b := range budgets {
		a, ok := accountByID[b.AccountID]
		if !ok {
			continue
		}
		u, ok := userByID[a.UserID]
		if !ok {
			continue
		}
		out = append(out, storage.BudgetTarget{Budget: toBudget(b), Account: toAccount(a), User: toUser(u)})
	}
	return out, nil
}

// writes

func (q *queries) InsertUser(ctx context.Context, u core.User) error {
	return q.db.WithContext(ctx).Create(&userRow{
		ID:               u.ID,
		Subject:          u.Subject,
		Email:            u.Email,
		Name:             u.Name,
		ImageURL:         u.ImageURL,
		LastReportPeriod: u.LastReportPeriod,
		CreatedAt:        u.CreatedAt,
	}).Error
}

func (q *queries) UpdateUser(ctx context.Context, u core.User) error {
	res := q.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", u.ID).Updates(map[string]any{
		"subject":   u.Subject,
		"email":     u.Email,
		"name":      u.Name,
		"image_url": u.ImageURL,
	})
	return affected(res, "user", u.ID)
}

func (q *queries) MarkReportSent(ctx context.Context, userID, period string) error {
	res := q.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", userID).Update("last_report_period", period)
	return affected(res, "user", userID)
}

func (q *queries) InsertAccount(ctx context.Context, a core.Account) error {
	return q.db.WithContext(ctx).Create(&accountRow{
		ID:        a.ID,
		UserID:    a.UserID,
		Name:      a.Name,
		Type:      string(a.Type),
		Currency:  a.Currency,
		Balance:   a.Balance,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}).Error
}

func (q *queries) UpdateAccountDetails(ctx context.Context, a core.Account) error {
	res := q.db.WithContext(ctx).Model(&accountRow{}).
		Where("id = ? AND user_id = ?", a.ID, a.UserID).
		Updates(map[string]any{
			"name":       a.Name,
			"type":       string(a.Type),
			"currency":   a.Currency,
			"updated_at": a.UpdatedAt,
		})
	return affected(res, "account", a.ID)
}

func (q *queries) ClearDefaultAccount(ctx context.Context, userID string) error {
	return q.db.WithContext(ctx).Model(&accountRow{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}

func (q *queries) SetDefaultAccount(ctx context.Context, userID, accountID string) error {
	res := q.db.WithContext(ctx).Model(&accountRow{}).
		Where("id = ? AND user_id = ?", accountID, userID).
		Update("is_default", true)
	return affected(res, "account", accountID)
}

func (q *queries) DeleteAccount(ctx context.Context, userID, accountID string) error {
	db := q.db.WithContext(ctx)
	if err := db.Where("account_id = ?", accountID).Delete(&budgetRow{}).Error; err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if err := db.Where("account_id = ? AND user_id = ?", accountID, userID).Delete(&transactionRow{}).Error; err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	res := db.Where("id = ? AND user_id = ?", accountID, userID).Delete(&accountRow{})
	return affected(res, "account", accountID)
}

func (q *queries) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	res := q.db.WithContext(ctx).Model(&accountRow{}).
		Where("id = ?", accountID).
		UpdateColumns(map[string]any{
			"balance":    gorm.Expr("balance + CAST(? AS DECIMAL(19,2))", delta.StringFixed(core.MinorUnits)),
			"updated_at": time.Now().UTC(),
		})
	return affected(res, "account", accountID)
}

func (q *queries) InsertTransaction(ctx context.Context, t core.Transaction) error {
	row := fromTransaction(t)
	return q.db.WithContext(ctx).Create(&row).Error
}

func (q *queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res := q.db.WithContext(ctx).Model(&transactionRow{}).
		Where("id = ? AND user_id = ?", t.ID, t.UserID).
		Updates(map[string]any{
			"account_id":          t.AccountID,
			"kind":                string(t.Kind),
			"amount":              t.Amount,
			"category":            t.Category,
			"date":                t.Date,
			"description":         t.Description,
			"is_recurring":        t.IsRecurring,
			"recurring_interval":  string(t.Interval),
			"next_recurring_date": t.NextRecurringDate,
			"updated_at":          t.UpdatedAt,
		})
	return affected(res, "transaction", t.ID)
}

func (q *queries) DeleteTransaction(ctx context.Context, userID, id string) error {
	res := q.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&transactionRow{})
	return affected(res, "transaction", id)
}

func (q *queries) InsertBudget(ctx context.Context, b core.Budget) error {
	return q.db.WithContext(ctx).Create(&budgetRow{
		ID:            b.ID,
		AccountID:     b.AccountID,
		Name:          b.Name,
		Category:      b.Category,
		Amount:        b.Amount,
		Spent:         b.Spent,
		LastAlertSent: b.LastAlertSent,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}).Error
}

func (q *queries) UpdateBudgetAmount(ctx context.Context, budgetID string, amount decimal.Decimal) error {
	res := q.db.WithContext(ctx).Model(&budgetRow{}).Where("id = ?", budgetID).
		Updates(map[string]any{"amount": amount, "updated_at": time.Now().UTC()})
	return affected(res, "budget", budgetID)
}

func (q *queries) RecordBudgetSpent(ctx context.Context, budgetID string, spent decimal.Decimal) error {
	res := q.db.WithContext(ctx).Model(&budgetRow{}).Where("id = ?", budgetID).
		Updates(map[string]any{"spent": spent, "updated_at": time.Now().UTC()})
	return affected(res, "budget", budgetID)
}

func (q *queries) MarkAlertSent(ctx context.Context, budgetID string, at time.Time) error {
	res := q.db.WithContext(ctx).Model(&budgetRow{}).Where("id = ?", budgetID).
		Updates(map[string]any{"last_alert_sent": at.UTC(), "updated_at": time.Now().UTC()})
	return affected(res, "budget", budgetID)
}
