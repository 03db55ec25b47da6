package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/storage"
)

// BudgetView is the budget of an account with current-month spending.
// Budget is nil when none has been set yet.
type BudgetView struct {
	Budget    *core.Budget
	Expenses  decimal.Decimal
	Remaining decimal.Decimal
}

type BudgetService struct {
	store  storage.Store
	ledger *LedgerService
	cache  Invalidator
	logger *log.Logger
	now    func() time.Time
}

func NewBudgetService(store storage.Store, ledger *LedgerService, cache Invalidator) *BudgetService {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &BudgetService{
		store:  store,
		ledger: ledger,
		cache:  cache,
		logger: log.ForComponent(log.ComponentBudgets),
		now:    utcNow,
	}
}

func (s *BudgetService) GetBudget(ctx context.Context, userID, accountID string) (BudgetView, error) {
	if err := requireUser(userID); err != nil {
		return BudgetView{}, err
	}
	if accountID == "" {
		return BudgetView{Expenses: decimal.Zero, Remaining: decimal.Zero}, nil
	}
	start, end := core.MonthRange(s.now())
	expenses, err := s.ledger.RecalculateExpensesForPeriod(ctx, userID, accountID, start, end)
	if err != nil {
		return BudgetView{}, err
	}

	view := BudgetView{Expenses: expenses, Remaining: expenses.Neg()}
	b, err := s.store.GetBudgetByAccount(ctx, accountID)
	switch {
	case err == nil:
		view.Budget = &b
		view.Remaining = b.Amount.Sub(expenses)
	case !errors.Is(err, core.ErrNotFound):
		return BudgetView{}, fmt.Errorf("get budget: %w", err)
	}
	return view, nil
}

// UpdateBudget sets the monthly limit of an account, creating the budget on
// first use.
func (s *BudgetService) UpdateBudget(ctx context.Context, userID, accountID string, amount decimal.Decimal) (core.Budget, error) {
	if err := requireUser(userID); err != nil {
		return core.Budget{}, err
	}
	if accountID == "" {
		return core.Budget{}, fmt.Errorf("%w: account id is required to update a budget", core.ErrInvalidInput)
	}
	if err := (core.Budget{Amount: amount}).Validate(); err != nil {
		return core.Budget{}, err
	}

	var out core.Budget
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		account, err := tx.GetAccount(ctx, userID, accountID)
		if err != nil {
			return err
		}
		existing, err := tx.GetBudgetByAccount(ctx, accountID)
		if err == nil {
			if err := tx.UpdateBudgetAmount(ctx, existing.ID, amount); err != nil {
				return err
			}
			existing.Amount = amount
			existing.UpdatedAt = s.now()
			out = existing
			return nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		now := s.now()
		out = core.Budget{
			ID:        newID(),
			AccountID: accountID,
			Name:      account.Name + " Budget",
			Category:  "General",
			Amount:    amount,
			Spent:     decimal.Zero,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.InsertBudget(ctx, out)
	})
	if err != nil {
		return core.Budget{}, err
	}

	s.cache.InvalidateUser(ctx, userID)
	s.logger.InfoContext(ctx, "Budget updated",
		log.FieldUserID, userID,
		log.FieldAccountID, accountID,
		log.FieldBudgetID, out.ID,
		log.FieldAmount, amount.StringFixed(2))
	return out, nil
}
