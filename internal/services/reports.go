package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finledger/internal/ai"
	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/storage"
)

// ReportProcessor sends every user a summary of the previous month, once per
// month. The per-user idempotency key is the YYYY-MM of the last report.
type ReportProcessor struct {
	periodic
	store      storage.Store
	dispatcher notify.Dispatcher
	gen        ai.Generator // optional
	now        func() time.Time
}

// ReportSweep counts what one sweep did.
type ReportSweep struct {
	Users   int
	Sent    int
	Skipped int
	Failed  int
}

func NewReportProcessor(store storage.Store, dispatcher notify.Dispatcher, gen ai.Generator, interval time.Duration) *ReportProcessor {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	p := &ReportProcessor{
		store:      store,
		dispatcher: dispatcher,
		gen:        gen,
		now:        utcNow,
	}
	p.periodic = periodic{
		name:     "monthly reports",
		interval: interval,
		logger:   log.ForComponent(log.ComponentReports),
		sweep: func(ctx context.Context) {
			if _, err := p.SendReports(ctx); err != nil {
				p.logger.ErrorContext(ctx, "Monthly report sweep failed", log.FieldError, err)
			}
		},
	}
	return p
}

// SendReports reports the previous month to each user who has not had it yet.
func (p *ReportProcessor) SendReports(ctx context.Context) (ReportSweep, error) {
	var sweep ReportSweep
	users, err := p.store.ListUsers(ctx)
	if err != nil {
		return sweep, fmt.Errorf("list users: %w", err)
	}

	year, month := core.PreviousMonth(p.now())
	period := fmt.Sprintf("%04d-%02d", year, month)
	for _, u := range users {
		if ctx.Err() != nil {
			return sweep, ctx.Err()
		}
		sweep.Users++
		if u.LastReportPeriod == period {
			sweep.Skipped++
			continue
		}
		if err := p.sendReport(ctx, u, year, month, period); err != nil {
			sweep.Failed++
			p.logger.ErrorContext(ctx, "Monthly report failed",
				log.FieldUserID, u.ID,
				log.FieldPeriod, period,
				log.FieldError, err)
			continue
		}
		sweep.Sent++
	}

	p.logger.InfoContext(ctx, "Monthly report sweep finished",
		log.FieldPeriod, period,
		"sent", sweep.Sent,
		"skipped", sweep.Skipped,
		"failed", sweep.Failed)
	return sweep, nil
}

func (p *ReportProcessor) sendReport(ctx context.Context, u core.User, year, month int, period string) error {
	if u.Email == "" {
		return errors.New("user has no email address")
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	_, end := core.MonthRange(start)
	txs, err := p.store.ListTransactions(ctx, u.ID, storage.TransactionFilter{From: start, To: end})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	stats := core.SummarizeMonth(year, month, txs)
	currency := p.reportCurrency(ctx, u.ID)

	insights := ai.FallbackInsights
	if p.gen != nil {
		got, err := ai.MonthlyInsights(ctx, p.gen, stats, currency)
		if err != nil {
			p.logger.WarnContext(ctx, "Using fallback insights", log.FieldUserID, u.ID, log.FieldError, err)
		} else {
			insights = got
		}
	}

	monthName := start.Format("January")
	report := &notify.MonthlyReport{
		Month:         start.Format("January 2006"),
		TotalIncome:   core.FormatAmount(stats.TotalIncome, currency),
		TotalExpenses: core.FormatAmount(stats.TotalExpenses, currency),
		Net:           core.FormatAmount(stats.Net(), currency),
		Insights:      insights,
	}
	for _, c := range stats.ByCategory {
		report.Categories = append(report.Categories, notify.CategoryLine{
			Name:   c.Name,
			Amount: core.FormatAmount(c.Amount, currency),
		})
	}
	msg := notify.Message{
		Kind:          notify.KindMonthlyReport,
		To:            u.Email,
		UserName:      u.Name,
		Subject:       "Your Monthly Financial Report - " + monthName,
		MonthlyReport: report,
	}
	if err := p.dispatcher.Dispatch(ctx, msg); err != nil {
		return fmt.Errorf("dispatch report: %w", err)
	}

	err = p.store.Atomic(ctx, func(tx storage.Tx) error {
		return tx.MarkReportSent(ctx, u.ID, period)
	})
	if err != nil {
		return fmt.Errorf("mark report sent: %w", err)
	}
	p.logger.InfoContext(ctx, "Monthly report sent",
		log.FieldUserID, u.ID,
		log.FieldPeriod, period,
		log.FieldCount, stats.TransactionCount)
	return nil
}

// reportCurrency is the currency of the user's default account.
func (p *ReportProcessor) reportCurrency(ctx context.Context, userID string) string {
	accounts, err := p.store.ListAccounts(ctx, userID)
	if err != nil {
		return core.DefaultCurrency
	}
	for _, a := range accounts {
		if a.IsDefault && a.Currency != "" {
			return a.Currency
		}
	}
	return core.DefaultCurrency
}
