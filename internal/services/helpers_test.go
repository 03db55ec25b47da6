package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
	"finledger/internal/notify"
	"finledger/internal/storage"
	"finledger/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// forEachStore runs fn once per storage backend.
func forEachStore(t *testing.T, fn func(t *testing.T, store storage.Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, memory.New())
	})
	t.Run("sqlite", func(t *testing.T) {
		repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
		if err != nil {
			t.Fatalf("NewSQLiteRepository() error = %v", err)
		}
		t.Cleanup(func() { repo.Close() })
		fn(t, repo)
	})
}

type fixture struct {
	store    storage.Store
	accounts *AccountService
	ledger   *LedgerService
	budgets  *BudgetService
}

func newFixture(store storage.Store) *fixture {
	ledger := NewLedgerService(store, nil)
	return &fixture{
		store:    store,
		accounts: NewAccountService(store, nil),
		ledger:   ledger,
		budgets:  NewBudgetService(store, ledger, nil),
	}
}

func (f *fixture) user(t *testing.T, subject string) core.User {
	t.Helper()
	u, err := f.accounts.EnsureUser(context.Background(), Identity{
		Subject: subject,
		Email:   subject + "@example.com",
		Name:    "User " + subject,
	})
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	return u
}

func (f *fixture) account(t *testing.T, userID, name, balance string) core.Account {
	t.Helper()
	a, err := f.accounts.CreateAccount(context.Background(), userID, AccountInput{
		Name:    name,
		Type:    core.Savings,
		Balance: dec(balance),
	})
	if err != nil {
		t.Fatalf("CreateAccount(%s) error = %v", name, err)
	}
	return a
}

func (f *fixture) tx(t *testing.T, userID, accountID string, kind core.Kind, amount string, date time.Time) core.Transaction {
	t.Helper()
	tr, err := f.ledger.CreateTransaction(context.Background(), userID, TransactionInput{
		AccountID: accountID,
		Kind:      kind,
		Amount:    dec(amount),
		Category:  "food",
		Date:      date,
	})
	if err != nil {
		t.Fatalf("CreateTransaction(%s %s) error = %v", kind, amount, err)
	}
	return tr
}

func (f *fixture) wantBalance(t *testing.T, userID, accountID, want string) {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), userID, accountID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if !a.Balance.Equal(dec(want)) {
		t.Errorf("balance of %s = %s, want %s", a.Name, a.Balance.StringFixed(2), want)
	}
}

// wantConsistent checks balance == opening + sum of deltas of stored rows.
func (f *fixture) wantConsistent(t *testing.T, userID, accountID string, opening decimal.Decimal) {
	t.Helper()
	ctx := context.Background()
	txs, err := f.store.ListTransactions(ctx, userID, storage.TransactionFilter{AccountID: accountID})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	want := opening
	for _, tr := range txs {
		want = want.Add(tr.Delta())
	}
	a, err := f.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if !a.Balance.Equal(want) {
		t.Errorf("balance = %s, want opening %s + deltas = %s", a.Balance, opening, want)
	}
}

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, m notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	d.msgs = append(d.msgs, m)
	return nil
}

func (d *recordingDispatcher) sent() []notify.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Message(nil), d.msgs...)
}

func newMemoryStore() storage.Store {
	return memory.New()
}
