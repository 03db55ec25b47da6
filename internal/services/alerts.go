package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/storage"
)

// AlertProcessorConfig holds configuration for the budget alert sweep.
type AlertProcessorConfig struct {
	// Interval between sweeps (default: 6h)
	Interval time.Duration

	// Threshold is the percentage of a budget that triggers an alert (default: 80)
	Threshold decimal.Decimal
}

func DefaultAlertProcessorConfig() AlertProcessorConfig {
	return AlertProcessorConfig{
		Interval:  6 * time.Hour,
		Threshold: core.DefaultAlertThreshold,
	}
}

// AlertSweep counts what one sweep did.
type AlertSweep struct {
	Checked int
	Sent    int
	Failed  int
}

// AlertProcessor emails a budget owner once per calendar month when spending
// crosses the threshold.
type AlertProcessor struct {
	periodic
	store      storage.Store
	dispatcher notify.Dispatcher
	config     AlertProcessorConfig
	now        func() time.Time
}

func NewAlertProcessor(store storage.Store, dispatcher notify.Dispatcher, config AlertProcessorConfig) *AlertProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultAlertProcessorConfig().Interval
	}
	if !config.Threshold.IsPositive() {
		config.Threshold = core.DefaultAlertThreshold
	}
	p := &AlertProcessor{
		store:      store,
		dispatcher: dispatcher,
		config:     config,
		now:        utcNow,
	}
	p.periodic = periodic{
		name:     "budget alerts",
		interval: config.Interval,
		logger:   log.ForComponent(log.ComponentAlerts),
		sweep: func(ctx context.Context) {
			if _, err := p.CheckBudgets(ctx); err != nil {
				p.logger.ErrorContext(ctx, "Budget alert sweep failed", log.FieldError, err)
			}
		},
	}
	return p
}

// CheckBudgets evaluates every budget once. A failing budget is logged and
// counted; the sweep carries on with the rest.
func (p *AlertProcessor) CheckBudgets(ctx context.Context) (AlertSweep, error) {
	var sweep AlertSweep
	targets, err := p.store.ListBudgetTargets(ctx)
	if err != nil {
		return sweep, fmt.Errorf("list budgets: %w", err)
	}

	now := p.now()
	start, end := core.MonthRange(now)
	for _, t := range targets {
		if ctx.Err() != nil {
			return sweep, ctx.Err()
		}
		sweep.Checked++
		sent, err := p.checkBudget(ctx, t, start, end, now)
		if err != nil {
			sweep.Failed++
			p.logger.ErrorContext(ctx, "Budget alert check failed",
				log.FieldBudgetID, t.Budget.ID,
				log.FieldAccountID, t.Account.ID,
				log.FieldError, err)
			continue
		}
		if sent {
			sweep.Sent++
		}
	}

	p.logger.InfoContext(ctx, "Budget alert sweep finished",
		"checked", sweep.Checked,
		"sent", sweep.Sent,
		"failed", sweep.Failed)
	return sweep, nil
}

func (p *AlertProcessor) checkBudget(ctx context.Context, t storage.BudgetTarget, start, end, now time.Time) (bool, error) {
	spent, err := p.store.SumExpenses(ctx, t.Account.ID, start, end)
	if err != nil {
		return false, fmt.Errorf("sum expenses: %w", err)
	}
	if !spent.Equal(t.Budget.Spent) {
		err = p.store.Atomic(ctx, func(tx storage.Tx) error {
			return tx.RecordBudgetSpent(ctx, t.Budget.ID, spent)
		})
		if err != nil {
			return false, fmt.Errorf("record spent: %w", err)
		}
	}
	pct := core.PercentUsed(spent, t.Budget.Amount)
	if !core.ShouldAlert(pct, p.config.Threshold, t.Budget.LastAlertSent, now) {
		return false, nil
	}
	if t.User.Email == "" {
		return false, errors.New("budget owner has no email address")
	}

	currency := t.Account.Currency
	msg := notify.Message{
		Kind:     notify.KindBudgetAlert,
		To:       t.User.Email,
		UserName: t.User.Name,
		Subject:  "Budget Alert for " + t.Account.Name,
		BudgetAlert: &notify.BudgetAlert{
			AccountName:   t.Account.Name,
			PercentUsed:   pct.StringFixed(1),
			BudgetAmount:  core.FormatAmount(t.Budget.Amount, currency),
			TotalExpenses: core.FormatAmount(spent, currency),
			Remaining:     core.FormatAmount(t.Budget.Amount.Sub(spent), currency),
		},
	}
	if err := p.dispatcher.Dispatch(ctx, msg); err != nil {
		return false, fmt.Errorf("dispatch alert: %w", err)
	}

	err = p.store.Atomic(ctx, func(tx storage.Tx) error {
		return tx.MarkAlertSent(ctx, t.Budget.ID, now)
	})
	if err != nil {
		// the email is already out; next sweep may repeat it
		return true, fmt.Errorf("mark alert sent: %w", err)
	}

	p.logger.InfoContext(ctx, "Budget alert sent",
		log.FieldBudgetID, t.Budget.ID,
		log.FieldAccountID, t.Account.ID,
		log.FieldPercentUsed, pct.StringFixed(1))
	return true, nil
}
