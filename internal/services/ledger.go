package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/storage"
)

// TransactionInput carries the user-editable fields of a transaction.
type TransactionInput struct {
	AccountID   string
	Kind        core.Kind
	Amount      decimal.Decimal
	Category    string
	Date        time.Time
	Description string
	IsRecurring bool
	Interval    core.Interval
}

// DeleteResult reports what a bulk delete removed and the compensation
// applied to each account balance.
type DeleteResult struct {
	Deleted     int
	Adjustments map[string]decimal.Decimal
}

// LedgerService owns every path that changes an account balance. Each
// mutation writes the transaction rows and the relative balance increments
// in one storage unit of work.
type LedgerService struct {
	store  storage.Store
	cache  Invalidator
	logger *log.Logger
	now    func() time.Time
}

func NewLedgerService(store storage.Store, cache Invalidator) *LedgerService {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &LedgerService{
		store:  store,
		cache:  cache,
		logger: log.ForComponent(log.ComponentLedger),
		now:    utcNow,
	}
}

func (s *LedgerService) build(userID string, in TransactionInput) (core.Transaction, error) {
	t := core.Transaction{
		AccountID:   strings.TrimSpace(in.AccountID),
		UserID:      userID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Category:    strings.TrimSpace(in.Category),
		Date:        core.DateOnly(in.Date),
		Description: strings.TrimSpace(in.Description),
		IsRecurring: in.IsRecurring,
		Interval:    in.Interval,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := t.ScheduleNext(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// CreateTransaction records a transaction and applies its delta to the
// owning account.
func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return core.Transaction{}, err
	}
	t, err := s.build(userID, in)
	if err != nil {
		return core.Transaction{}, err
	}
	now := s.now()
	t.ID = newID()
	t.CreatedAt = now
	t.UpdatedAt = now

	err = s.store.Atomic(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetAccount(ctx, userID, t.AccountID); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if err := tx.AdjustBalance(ctx, t.AccountID, t.Delta()); err != nil {
			return fmt.Errorf("adjust balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.cache.InvalidateUser(ctx, userID)
	s.logger.InfoContext(ctx, "Transaction created",
		log.NewFields().WithUser(userID).WithTransaction(t.ID, t.AccountID, string(t.Kind), t.Amount, t.Delta()).ToSlice()...)
	return t, nil
}

// CreateTransactions records a batch of transactions, all or none. Balance
// increments are netted per account before they are applied.
func (s *LedgerService) CreateTransactions(ctx context.Context, userID string, inputs []TransactionInput) ([]core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no transactions to create", core.ErrInvalidInput)
	}

	now := s.now()
	txs := make([]core.Transaction, 0, len(inputs))
	net := map[string]decimal.Decimal{}
	for i, in := range inputs {
		t, err := s.build(userID, in)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		t.ID = newID()
		t.CreatedAt = now
		t.UpdatedAt = now
		txs = append(txs, t)
		net[t.AccountID] = net[t.AccountID].Add(t.Delta())
	}

	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		for _, accountID := range sortedKeys(net) {
			if _, err := tx.GetAccount(ctx, userID, accountID); err != nil {
				return err
			}
		}
		for _, t := range txs {
			if err := tx.InsertTransaction(ctx, t); err != nil {
				return core.PartialFailure(fmt.Errorf("insert transaction: %w", err))
			}
		}
		for _, accountID := range sortedKeys(net) {
			if err := tx.AdjustBalance(ctx, accountID, net[accountID]); err != nil {
				return core.PartialFailure(fmt.Errorf("adjust balance of %s: %w", accountID, err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateUser(ctx, userID)
	s.logger.InfoContext(ctx, "Transactions created",
		log.FieldUserID, userID,
		log.FieldCount, len(txs),
		"accounts", len(net))
	return txs, nil
}

// UpdateTransaction replaces the editable fields of a transaction. The old
// delta is reversed on the original account and the new delta applied to the
// target account, which may differ.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id string, in TransactionInput) (core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return core.Transaction{}, err
	}

	var updated core.Transaction
	var oldDelta, newDelta decimal.Decimal
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		old, err := tx.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if strings.TrimSpace(in.AccountID) == "" {
			in.AccountID = old.AccountID
		}
		next, err := s.build(userID, in)
		if err != nil {
			return err
		}
		if next.AccountID != old.AccountID {
			if _, err := tx.GetAccount(ctx, userID, next.AccountID); err != nil {
				return err
			}
		}
		next.ID = old.ID
		next.CreatedAt = old.CreatedAt
		next.UpdatedAt = s.now()

		if err := tx.UpdateTransaction(ctx, next); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		oldDelta, newDelta = old.Delta(), next.Delta()
		if next.AccountID == old.AccountID {
			if diff := newDelta.Sub(oldDelta); !diff.IsZero() {
				if err := tx.AdjustBalance(ctx, next.AccountID, diff); err != nil {
					return fmt.Errorf("adjust balance: %w", err)
				}
			}
		} else {
			if err := tx.AdjustBalance(ctx, old.AccountID, oldDelta.Neg()); err != nil {
				return fmt.Errorf("reverse balance on %s: %w", old.AccountID, err)
			}
			if err := tx.AdjustBalance(ctx, next.AccountID, newDelta); err != nil {
				return fmt.Errorf("apply balance on %s: %w", next.AccountID, err)
			}
		}
		updated = next
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.cache.InvalidateUser(ctx, userID)
	s.logger.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithUser(userID).WithTransaction(updated.ID, updated.AccountID, string(updated.Kind), updated.Amount, newDelta.Sub(oldDelta)).ToSlice()...)
	return updated, nil
}

// DeleteTransactions removes the caller's transactions and compensates each
// affected account once with the net inverse of the removed deltas. Any
// lookup or write failure rolls the whole batch back.
func (s *LedgerService) DeleteTransactions(ctx context.Context, userID string, ids []string) (DeleteResult, error) {
	return s.deleteTransactions(ctx, userID, dedupe(ids), core.PartialFailure)
}

// DeleteTransaction removes one transaction and reverses its delta. A
// missing id is reported as NotFound.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) (DeleteResult, error) {
	return s.deleteTransactions(ctx, userID, dedupe([]string{id}), func(err error) error { return err })
}

func (s *LedgerService) deleteTransactions(ctx context.Context, userID string, ids []string, wrap func(error) error) (DeleteResult, error) {
	if err := requireUser(userID); err != nil {
		return DeleteResult{}, err
	}
	if len(ids) == 0 {
		return DeleteResult{}, fmt.Errorf("%w: no transaction ids given", core.ErrInvalidInput)
	}

	res := DeleteResult{Adjustments: map[string]decimal.Decimal{}}
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		for _, id := range ids {
			t, err := tx.GetTransaction(ctx, userID, id)
			if err != nil {
				return wrap(err)
			}
			res.Adjustments[t.AccountID] = res.Adjustments[t.AccountID].Sub(t.Delta())
		}
		for _, id := range ids {
			if err := tx.DeleteTransaction(ctx, userID, id); err != nil {
				return wrap(fmt.Errorf("delete transaction %s: %w", id, err))
			}
		}
		for _, accountID := range sortedKeys(res.Adjustments) {
			if err := tx.AdjustBalance(ctx, accountID, res.Adjustments[accountID]); err != nil {
				return wrap(fmt.Errorf("adjust balance of %s: %w", accountID, err))
			}
		}
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	res.Deleted = len(ids)

	s.cache.InvalidateUser(ctx, userID)
	s.logger.InfoContext(ctx, "Transactions deleted",
		log.FieldUserID, userID,
		log.FieldCount, res.Deleted,
		"accounts", len(res.Adjustments))
	return res, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return core.Transaction{}, err
	}
	return s.store.GetTransaction(ctx, userID, id)
}

// ListTransactions returns the caller's transactions, newest date first.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if f.AccountID != "" {
		if _, err := s.store.GetAccount(ctx, userID, f.AccountID); err != nil {
			return nil, err
		}
	}
	return s.store.ListTransactions(ctx, userID, f)
}

// RecalculateExpensesForPeriod sums EXPENSE amounts of the account with a
// date in [start, end]. It never writes.
func (s *LedgerService) RecalculateExpensesForPeriod(ctx context.Context, userID, accountID string, start, end time.Time) (decimal.Decimal, error) {
	if err := requireUser(userID); err != nil {
		return decimal.Zero, err
	}
	if _, err := s.store.GetAccount(ctx, userID, accountID); err != nil {
		return decimal.Zero, err
	}
	total, err := s.store.SumExpenses(ctx, accountID, core.DateOnly(start), core.DateOnly(end))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
