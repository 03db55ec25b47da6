package http

import (
	"net/http"
	"strings"

	"finledger/internal/core"
	"finledger/internal/middleware/auth"
)

// handleGetBudget answers for account_id, or the default account when absent.
func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	accountID := strings.TrimSpace(r.URL.Query().Get("account_id"))
	if accountID == "" {
		accounts, err := s.svc.Accounts.ListAccounts(ctx, userID)
		if err != nil {
			s.fail(w, r, "get budget", err)
			return
		}
		for _, a := range accounts {
			if a.IsDefault {
				accountID = a.ID
				break
			}
		}
	}

	v, err := s.svc.Budgets.GetBudget(ctx, userID, accountID)
	if err != nil {
		s.fail(w, r, "get budget", err)
		return
	}
	OK(budgetView{
		Budget:    newBudgetJSON(v.Budget),
		Expenses:  v.Expenses.StringFixed(2),
		Remaining: v.Remaining.StringFixed(2),
	}).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	amount, err := core.ParseBalance(string(req.Amount))
	if err != nil {
		writeRequestError(w, err)
		return
	}
	b, err := s.svc.Budgets.UpdateBudget(r.Context(), auth.UserID(r.Context()), req.AccountID, amount)
	if err != nil {
		s.fail(w, r, "update budget", err)
		return
	}
	OK(newBudgetJSON(&b)).Write(w)
}
