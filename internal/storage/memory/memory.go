// Package memory is an in-process ledger store for development and tests.
// Atomic works on a copy of the data and swaps it in only when fn succeeds.
package memory

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"finledger/internal/core"
	"finledger/internal/storage"

	"github.com/shopspring/decimal"
)

type state struct {
	users    map[string]core.User
	accounts map[string]core.Account
	txs      map[string]core.Transaction
	budgets  map[string]core.Budget
}

func newState() *state {
	return &state{
		users:    map[string]core.User{},
		accounts: map[string]core.Account{},
		txs:      map[string]core.Transaction{},
		budgets:  map[string]core.Budget{},
	}
}

func (s *state) clone() *state {
	return &state{
		users:    maps.Clone(s.users),
		accounts: maps.Clone(s.accounts),
		txs:      maps.Clone(s.txs),
		budgets:  maps.Clone(s.budgets),
	}
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// Atomic serializes units of work and discards the copy on error.
func (s *Store) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&tx{state: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) read() *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Committed states are never mutated in place, so the pointer is a snapshot.
	return s.st
}

func (s *Store) GetUser(ctx context.Context, id string) (core.User, error) {
	return s.read().GetUser(ctx, id)
}

func (s *Store) GetUserBySubject(ctx context.Context, subject string) (core.User, error) {
	return s.read().GetUserBySubject(ctx, subject)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return s.read().GetUserByEmail(ctx, email)
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	return s.read().ListUsers(ctx)
}

func (s *Store) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	return s.read().GetAccount(ctx, userID, id)
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	return s.read().ListAccounts(ctx, userID)
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	return s.read().GetTransaction(ctx, userID, id)
}

func (s *Store) ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.read().ListTransactions(ctx, userID, f)
}

func (s *Store) SumExpenses(ctx context.Context, accountID string, start, end time.Time) (decimal.Decimal, error) {
	return s.read().SumExpenses(ctx, accountID, start, end)
}

func (s *Store) GetBudgetByAccount(ctx context.Context, accountID string) (core.Budget, error) {
	return s.read().GetBudgetByAccount(ctx, accountID)
}

func (s *Store) ListBudgetTargets(ctx context.Context) ([]storage.BudgetTarget, error) {
	return s.read().ListBudgetTargets(ctx)
}

// reads

func (s *state) GetUser(_ context.Context, id string) (core.User, error) {
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.NotFound("user", id)
	}
	return u, nil
}

func (s *state) GetUserBySubject(_ context.Context, subject string) (core.User, error) {
	for _, u := range s.users {
		if u.Subject == subject {
			return u, nil
		}
	}
	return core.User{}, core.NotFound("user", subject)
}

func (s *state) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, core.NotFound("user", email)
}

func (s *state) ListUsers(_ context.Context) ([]core.User, error) {
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *state) GetAccount(_ context.Context, userID, id string) (core.Account, error) {
	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return core.Account{}, core.NotFound("account", id)
	}
	return a, nil
}

func (s *state) ListAccounts(_ context.Context, userID string) ([]core.Account, error) {
	var out []core.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *state) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	t, ok := s.txs[id]
	if !ok || t.UserID != userID {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	return t, nil
}

func (s *state) ListTransactions(_ context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range s.txs {
		if t.UserID != userID {
			continue
		}
		if f.AccountID != "" && t.AccountID != f.AccountID {
			continue
		}
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if !f.From.IsZero() && t.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && t.Date.After(f.To) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Date.After(out[j].Date)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *state) SumExpenses(_ context.Context, accountID string, start, end time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range s.txs {
		if t.AccountID != accountID || t.Kind != core.Expense {
			continue
		}
		if t.Date.Before(start) || t.Date.After(end) {
			continue
		}
		sum = sum.Add(t.Amount)
	}
	return sum, nil
}

func (s *state) GetBudgetByAccount(_ context.Context, accountID string) (core.Budget, error) {
	for _, b := range s.budgets {
		if b.AccountID == accountID {
			return b, nil
		}
	}
	return core.Budget{}, core.NotFound("budget for account", accountID)
}

func (s *state) ListBudgetTargets(_ context.Context) ([]storage.BudgetTarget, error) {
	var out []storage.BudgetTarget
	for _, b := range s.budgets {
		a, ok := s.accounts[b.AccountID]
		if !ok {
			continue
		}
		u, ok := s.users[a.UserID]
		if !ok {
			continue
		}
		out = append(out, storage.BudgetTarget{Budget: b, Account: a, User: u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Budget.CreatedAt.Before(out[j].Budget.CreatedAt) })
	return out, nil
}

// writes

type tx struct {
	*state
}

var errDuplicate = errors.New("duplicate key")

func (t *tx) InsertUser(_ context.Context, u core.User) error {
	if _, ok := t.users[u.ID]; ok {
		return errDuplicate
	}
	for _, other := range t.users {
		if other.Subject == u.Subject || (u.Email != "" && strings.EqualFold(other.Email, u.Email)) {
			return errDuplicate
		}
	}
	t.users[u.ID] = u
	return nil
}

func (t *tx) UpdateUser(_ context.Context, u core.User) error {
	cur, ok := t.users[u.ID]
	if !ok {
		return core.NotFound("user", u.ID)
	}
	cur.Subject, cur.Email, cur.Name, cur.ImageURL = u.Subject, u.Email, u.Name, u.ImageURL
	t.users[u.ID] = cur
	return nil
}

func (t *tx) MarkReportSent(_ context.Context, userID, period string) error {
	u, ok := t.users[userID]
	if !ok {
		return core.NotFound("user", userID)
	}
	u.LastReportPeriod = period
	t.users[userID] = u
	return nil
}

func (t *tx) InsertAccount(_ context.Context, a core.Account) error {
	if _, ok := t.accounts[a.ID]; ok {
		return errDuplicate
	}
	if a.IsDefault {
		for _, other := range t.accounts {
			if other.UserID == a.UserID && other.IsDefault {
				return errors.New("user already has a default account")
			}
		}
	}
	t.accounts[a.ID] = a
	return nil
}

func (t *tx) UpdateAccountDetails(_ context.Context, a core.Account) error {
	cur, ok := t.accounts[a.ID]
	if !ok || cur.UserID != a.UserID {
		return core.NotFound("account", a.ID)
	}
	cur.Name, cur.Type, cur.Currency, cur.UpdatedAt = a.Name, a.Type, a.Currency, a.UpdatedAt
	t.accounts[a.ID] = cur
	return nil
}

func (t *tx) ClearDefaultAccount(_ context.Context, userID string) error {
	for id, a := range t.accounts {
		if a.UserID == userID && a.IsDefault {
			a.IsDefault = false
			t.accounts[id] = a
		}
	}
	return nil
}

func (t *tx) SetDefaultAccount(_ context.Context, userID, accountID string) error {
	a, ok := t.accounts[accountID]
	if !ok || a.UserID != userID {
		return core.NotFound("account", accountID)
	}
	a.IsDefault = true
	t.accounts[accountID] = a
	return nil
}

func (t *tx) DeleteAccount(_ context.Context, userID, accountID string) error {
	a, ok := t.accounts[accountID]
	if !ok || a.UserID != userID {
		return core.NotFound("account", accountID)
	}
	delete(t.accounts, accountID)
	for id, tr := range t.txs {
		if tr.AccountID == accountID {
			delete(t.txs, id)
		}
	}
	for id, b := range t.budgets {
		if b.AccountID == accountID {
			delete(t.budgets, id)
		}
	}
	return nil
}

func (t *tx) AdjustBalance(_ context.Context, accountID string, delta decimal.Decimal) error {
	a, ok := t.accounts[accountID]
	if !ok {
		return core.NotFound("account", accountID)
	}
	a.Balance = a.Balance.Add(delta)
	a.UpdatedAt = time.Now().UTC()
	t.accounts[accountID] = a
	return nil
}

func (t *tx) InsertTransaction(_ context.Context, tr core.Transaction) error {
	if _, ok := t.txs[tr.ID]; ok {
		return errDuplicate
	}
	if _, ok := t.accounts[tr.AccountID]; !ok {
		return core.NotFound("account", tr.AccountID)
	}
	t.txs[tr.ID] = tr
	return nil
}

func (t *tx) UpdateTransaction(_ context.Context, tr core.Transaction) error {
	cur, ok := t.txs[tr.ID]
	if !ok || cur.UserID != tr.UserID {
		return core.NotFound("transaction", tr.ID)
	}
	tr.CreatedAt = cur.CreatedAt
	t.txs[tr.ID] = tr
	return nil
}

func (t *tx) DeleteTransaction(_ context.Context, userID, id string) error {
	cur, ok := t.txs[id]
	if !ok || cur.UserID != userID {
		return core.NotFound("transaction", id)
	}
	delete(t.txs, id)
	return nil
}

func (t *tx) InsertBudget(_ context.Context, b core.Budget) error {
	for _, other := range t.budgets {
		if other.AccountID == b.AccountID {
			return errDuplicate
		}
	}
	t.budgets[b.ID] = b
	return nil
}

func (t *tx) UpdateBudgetAmount(_ context.Context, budgetID string, amount decimal.Decimal) error {
	b, ok := t.budgets[budgetID]
	if !ok {
		return core.NotFound("budget", budgetID)
	}
	b.Amount = amount
	b.UpdatedAt = time.Now().UTC()
	t.budgets[budgetID] = b
	return nil
}

func (t *tx) RecordBudgetSpent(_ context.Context, budgetID string, spent decimal.Decimal) error {
	b, ok := t.budgets[budgetID]
	if !ok {
		return core.NotFound("budget", budgetID)
	}
	b.Spent = spent
	b.UpdatedAt = time.Now().UTC()
	t.budgets[budgetID] = b
	return nil
}

func (t *tx) MarkAlertSent(_ context.Context, budgetID string, at time.Time) error {
	b, ok := t.budgets[budgetID]
	if !ok {
		return core.NotFound("budget", budgetID)
	}
	at = at.UTC()
	b.LastAlertSent = &at
	t.budgets[budgetID] = b
	return nil
}
