package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"finledger/internal/ai"
	"finledger/internal/core"
	"finledger/internal/storage"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (g *stubGenerator) Generate(context.Context, string, ...ai.Blob) (string, error) {
	g.calls++
	return g.reply, g.err
}

func TestReportProcessor_SendsOncePerMonth(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	f := newFixture(store)
	u := f.user(t, "reader")
	acc := f.account(t, u.ID, "Main", "0")
	f.tx(t, u.ID, acc.ID, core.Income, "5000.00", day(2024, 5, 1))
	f.tx(t, u.ID, acc.ID, core.Expense, "1200.00", day(2024, 5, 9))
	f.tx(t, u.ID, acc.ID, core.Expense, "99.00", day(2024, 6, 1))

	dispatcher := &recordingDispatcher{}
	gen := &stubGenerator{reply: "```json\n[\"Cook at home\", \"Track rent\", \"Save 10%\"]\n```"}
	p := NewReportProcessor(store, dispatcher, gen, time.Hour)
	p.now = func() time.Time { return time.Date(2024, 6, 1, 0, 5, 0, 0, time.UTC) }

	sweep, err := p.SendReports(ctx)
	if err != nil {
		t.Fatalf("SendReports() error = %v", err)
	}
	if sweep.Sent != 1 {
		t.Fatalf("sweep = %+v, want 1 sent", sweep)
	}
	msgs := dispatcher.sent()
	r := msgs[0].MonthlyReport
	if msgs[0].Subject != "Your Monthly Financial Report - May" {
		t.Errorf("Subject = %q", msgs[0].Subject)
	}
	if r.TotalIncome != "₹5,000.00" || r.TotalExpenses != "₹1,200.00" || r.Net != "₹3,800.00" {
		t.Errorf("report totals = %+v", r)
	}
	if len(r.Categories) != 1 || r.Categories[0].Name != "food" {
		t.Errorf("categories = %+v", r.Categories)
	}
	if len(r.Insights) != 3 || r.Insights[0] != "Cook at home" {
		t.Errorf("insights = %v", r.Insights)
	}

	got, _ := store.GetUser(ctx, u.ID)
	if got.LastReportPeriod != "2024-05" {
		t.Errorf("LastReportPeriod = %q, want 2024-05", got.LastReportPeriod)
	}

	sweep, _ = p.SendReports(ctx)
	if sweep.Sent != 0 || sweep.Skipped != 1 {
		t.Errorf("rerun sweep = %+v, want 0 sent 1 skipped", sweep)
	}
	if len(dispatcher.sent()) != 1 {
		t.Errorf("dispatched %d reports, want 1", len(dispatcher.sent()))
	}
}

func TestReportProcessor_FallbackInsights(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	f := newFixture(store)
	f.user(t, "nodata")

	for _, gen := range []ai.Generator{nil, &stubGenerator{err: errors.New("quota")}, &stubGenerator{reply: "sorry"}} {
		dispatcher := &recordingDispatcher{}
		p := NewReportProcessor(store, dispatcher, gen, 0)
		p.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

		// reset the idempotency key between runs
		users, _ := store.ListUsers(ctx)
		for _, u := range users {
			store.Atomic(ctx, func(tx storage.Tx) error { return tx.MarkReportSent(ctx, u.ID, "") })
		}

		if _, err := p.SendReports(ctx); err != nil {
			t.Fatalf("SendReports() error = %v", err)
		}
		msgs := dispatcher.sent()
		if len(msgs) != 1 {
			t.Fatalf("dispatched %d, want 1", len(msgs))
		}
		if msgs[0].Subject != "Your Monthly Financial Report - December" {
			t.Errorf("Subject = %q", msgs[0].Subject)
		}
		insights := msgs[0].MonthlyReport.Insights
		if len(insights) != 3 || insights[0] != ai.FallbackInsights[0] {
			t.Errorf("insights = %v, want fallback", insights)
		}
	}
}
