package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"finledger/internal/core"
	"finledger/internal/storage"
)

func TestBudgets_LazyCreateAndView(t *testing.T) {
	forEachStore(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		f := newFixture(store)
		now := time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)
		f.budgets.now = func() time.Time { return now }

		u := f.user(t, "budgeter")
		acc := f.account(t, u.ID, "Wallet", "5000")
		f.tx(t, u.ID, acc.ID, core.Expense, "300.00", day(2024, 5, 2))
		f.tx(t, u.ID, acc.ID, core.Expense, "100.00", day(2024, 4, 30))

		view, err := f.budgets.GetBudget(ctx, u.ID, acc.ID)
		if err != nil {
			t.Fatalf("GetBudget() error = %v", err)
		}
		if view.Budget != nil || !view.Expenses.Equal(dec("300")) || !view.Remaining.Equal(dec("-300")) {
			t.Errorf("GetBudget() before update = %+v", view)
		}

		b, err := f.budgets.UpdateBudget(ctx, u.ID, acc.ID, dec("1000"))
		if err != nil {
			t.Fatalf("UpdateBudget() error = %v", err)
		}
		if b.Name != "Wallet Budget" {
			t.Errorf("budget name = %q", b.Name)
		}
		again, err := f.budgets.UpdateBudget(ctx, u.ID, acc.ID, dec("1200.50"))
		if err != nil {
			t.Fatalf("UpdateBudget() second error = %v", err)
		}
		if again.ID != b.ID {
			t.Error("second update created another budget")
		}

		view, err = f.budgets.GetBudget(ctx, u.ID, acc.ID)
		if err != nil {
			t.Fatalf("GetBudget() error = %v", err)
		}
		if view.Budget == nil || !view.Budget.Amount.Equal(dec("1200.50")) || !view.Remaining.Equal(dec("900.50")) {
			t.Errorf("GetBudget() = %+v", view)
		}
	})
}

func TestBudgets_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newMemoryStore())
	u := f.user(t, "v")
	acc := f.account(t, u.ID, "Wallet", "0")

	tests := []struct {
		name      string
		accountID string
		amount    string
		want      error
	}{
		{"negative", acc.ID, "-1", core.ErrInvalidInput},
		{"precision", acc.ID, "10.001", core.ErrInvalidInput},
		{"no account", "", "10", core.ErrInvalidInput},
		{"unknown account", "nope", "10", core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.budgets.UpdateBudget(ctx, u.ID, tt.accountID, dec(tt.amount)); !errors.Is(err, tt.want) {
				t.Errorf("UpdateBudget() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := f.budgets.UpdateBudget(ctx, u.ID, acc.ID, dec("0")); err != nil {
		t.Errorf("zero budget should be accepted: %v", err)
	}
	view, err := f.budgets.GetBudget(ctx, u.ID, "")
	if err != nil || view.Budget != nil || !view.Expenses.IsZero() {
		t.Errorf("GetBudget(\"\") = %+v, %v", view, err)
	}
}
