package http

import (
	"net/http"

	"finledger/internal/log"
	"finledger/internal/middleware/auth"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.svc.Accounts.ListAccounts(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, "list accounts", err)
		return
	}
	OK(newAccountViews(accounts)).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	in, err := req.toInput(true)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	a, err := s.svc.Accounts.CreateAccount(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		s.fail(w, r, "create account", err)
		return
	}
	Created(newAccountView(a)).Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Accounts.GetAccountWithTransactions(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "get account", err)
		return
	}
	OK(accountDetailView{
		Account:      newAccountView(d.Account),
		Transactions: newTransactionViews(d.Transactions),
		Count:        d.Count,
	}).Write(w)
}

// handleUpdateAccount edits name, type and currency; a balance in the body is
// ignored because balances only move through transactions.
func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	in, _ := req.toInput(false)
	a, err := s.svc.Accounts.UpdateAccount(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, "update account", err)
		return
	}
	OK(newAccountView(a)).Write(w)
}

func (s *Server) handleSetDefaultAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Accounts.SetDefaultAccount(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "set default account", err)
		return
	}
	OK(newAccountView(a)).Write(w)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Accounts.DeleteAccount(r.Context(), auth.UserID(r.Context()), r.PathValue("id")); err != nil {
		s.fail(w, r, "delete account", err)
		return
	}
	OK(map[string]string{"id": r.PathValue("id")}).Write(w)
}

// fail logs server-side errors and writes the mapped response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := StatusFor(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
	}
	ErrorFrom(err).Write(w)
}
