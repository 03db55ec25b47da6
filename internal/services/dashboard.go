package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"finledger/internal/cache"
	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/storage"
)

const recentTransactions = 5

// Overview is the dashboard read model of one user.
type Overview struct {
	Accounts         []core.Account
	DefaultAccountID string
	Budget           *core.BudgetProgress
	Recent           []core.Transaction
	Month            core.MonthlyStats
	GeneratedAt      time.Time
}

// DashboardService builds overviews and caches them per user. It is also the
// Invalidator the mutating services call.
type DashboardService struct {
	store  storage.Store
	views  cache.ViewCache[Overview]
	logger *log.Logger
	now    func() time.Time

	// generations counts invalidations per user; an overview built across an
	// invalidation is returned but not cached.
	mu          sync.Mutex
	generations map[string]uint64
}

func NewDashboardService(store storage.Store, views cache.ViewCache[Overview]) *DashboardService {
	return &DashboardService{
		store:  store,
		views:  views,
		logger: log.ForComponent(log.ComponentDashboard),
		now:    utcNow,

		generations: make(map[string]uint64),
	}
}

func overviewKey(userID string) string {
	return "dashboard:" + userID
}

// InvalidateUser drops the cached overview of userID.
func (s *DashboardService) InvalidateUser(ctx context.Context, userID string) {
	if s.views == nil {
		return
	}
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()
	s.views.Delete(ctx, overviewKey(userID))
}

func (s *DashboardService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// cacheOverview caches ov unless userID was invalidated since gen was taken.
func (s *DashboardService) cacheOverview(ctx context.Context, userID string, gen uint64, ov Overview) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[userID] != gen {
		return false
	}
	s.views.Set(ctx, overviewKey(userID), ov)
	return true
}

func (s *DashboardService) Overview(ctx context.Context, userID string) (Overview, error) {
	if err := requireUser(userID); err != nil {
		return Overview{}, err
	}
	if s.views != nil {
		if ov, ok := s.views.Get(ctx, overviewKey(userID)); ok {
			return ov, nil
		}
	}
	gen := s.generation(userID)

	now := s.now()
	start, end := core.MonthRange(now)

	var (
		accounts []core.Account
		monthTxs []core.Transaction
		recent   []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.store.ListAccounts(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		monthTxs, err = s.store.ListTransactions(gctx, userID, storage.TransactionFilter{From: start, To: end})
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.store.ListTransactions(gctx, userID, storage.TransactionFilter{Limit: recentTransactions})
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, fmt.Errorf("load dashboard: %w", err)
	}

	ov := Overview{
		Accounts:    accounts,
		Recent:      recent,
		Month:       core.SummarizeMonth(now.Year(), int(now.Month()), monthTxs),
		GeneratedAt: now,
	}
	for _, a := range accounts {
		if a.IsDefault {
			ov.DefaultAccountID = a.ID
			break
		}
	}

	if ov.DefaultAccountID != "" {
		progress, err := s.budgetProgress(ctx, ov.DefaultAccountID, monthTxs)
		if err != nil {
			return Overview{}, err
		}
		ov.Budget = progress
	}

	if s.views != nil && !s.cacheOverview(ctx, userID, gen, ov) {
		s.logger.DebugContext(ctx, "Dashboard overview changed while building, not cached",
			log.FieldUserID, userID)
	}
	s.logger.DebugContext(ctx, "Dashboard overview built",
		log.FieldUserID, userID,
		log.FieldCount, len(monthTxs))
	return ov, nil
}

func (s *DashboardService) budgetProgress(ctx context.Context, accountID string, monthTxs []core.Transaction) (*core.BudgetProgress, error) {
	b, err := s.store.GetBudgetByAccount(ctx, accountID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	spent := decimal.Zero
	for _, t := range monthTxs {
		if t.AccountID == accountID && t.Kind == core.Expense {
			spent = spent.Add(t.Amount)
		}
	}
	p := core.NewBudgetProgress(&b, spent)
	return &p, nil
}
