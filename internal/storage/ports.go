package storage

import (
	"context"
	"time"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	AccountID string
	Kind      core.Kind
	From      time.Time // inclusive
	To        time.Time // inclusive
	Limit     int
}

// BudgetTarget is a budget joined with the account and user it belongs to,
// as needed by the periodic alert sweep.
type BudgetTarget struct {
	Budget  core.Budget
	Account core.Account
	User    core.User
}

// Reader exposes the read side of the store. All lookups scoped by userID
// return core.ErrNotFound for rows owned by someone else.
type Reader interface {
	GetUser(ctx context.Context, id string) (core.User, error)
	GetUserBySubject(ctx context.Context, subject string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)

	GetAccount(ctx context.Context, userID, id string) (core.Account, error)
	// ListAccounts returns the user's accounts, newest first.
	ListAccounts(ctx context.Context, userID string) ([]core.Account, error)

	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	// ListTransactions returns matching transactions ordered by date desc.
	ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error)
	// SumExpenses sums EXPENSE amounts of an account with start <= date <= end.
	SumExpenses(ctx context.Context, accountID string, start, end time.Time) (decimal.Decimal, error)

	GetBudgetByAccount(ctx context.Context, accountID string) (core.Budget, error)
	ListBudgetTargets(ctx context.Context) ([]BudgetTarget, error)
}

// Tx is one atomic unit of work. Balances only change through AdjustBalance,
// which applies a relative increment.
type Tx interface {
	Reader

	InsertUser(ctx context.Context, u core.User) error
	UpdateUser(ctx context.Context, u core.User) error
	MarkReportSent(ctx context.Context, userID, period string) error

	InsertAccount(ctx context.Context, a core.Account) error
	// UpdateAccountDetails writes name, type and currency only.
	UpdateAccountDetails(ctx context.Context, a core.Account) error
	ClearDefaultAccount(ctx context.Context, userID string) error
	SetDefaultAccount(ctx context.Context, userID, accountID string) error
	// DeleteAccount removes the account with its transactions and budget.
	DeleteAccount(ctx context.Context, userID, accountID string) error
	AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error

	InsertTransaction(ctx context.Context, t core.Transaction) error
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error

	InsertBudget(ctx context.Context, b core.Budget) error
	UpdateBudgetAmount(ctx context.Context, budgetID string, amount decimal.Decimal) error
	MarkAlertSent(ctx context.Context, budgetID string, at time.Time) error
	RecordBudgetSpent(ctx context.Context, budgetID string, spent decimal.Decimal) error
}

// Store is the persistence port used by the services.
type Store interface {
	Reader
	// Atomic runs fn in a single unit of work. If fn returns an error nothing
	// it did is visible afterwards.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
