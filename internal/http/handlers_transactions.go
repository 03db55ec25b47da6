package http

import (
	"net/http"

	"finledger/internal/middleware/auth"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		writeRequestError(w, err)
		return
	}
	txs, err := s.svc.Ledger.ListTransactions(r.Context(), auth.UserID(r.Context()), f)
	if err != nil {
		s.fail(w, r, "list transactions", err)
		return
	}
	OK(newTransactionViews(txs)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	if req.AccountID == "" {
		ValidationError([]FieldError{{Field: "account_id", Message: "This field is required", Type: "required"}}).Write(w)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeRequestError(w, err)
		return
	}
	t, err := s.svc.Ledger.CreateTransaction(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		s.fail(w, r, "create transaction", err)
		return
	}
	Created(newTransactionView(t)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Ledger.GetTransaction(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "get transaction", err)
		return
	}
	OK(newTransactionView(t)).Write(w)
}

// handleUpdateTransaction replaces the transaction; an empty account_id keeps
// the current account.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeRequestError(w, err)
		return
	}
	t, err := s.svc.Ledger.UpdateTransaction(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, "update transaction", err)
		return
	}
	OK(newTransactionView(t)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Ledger.DeleteTransaction(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "delete transaction", err)
		return
	}
	OK(newDeleteResultView(res)).Write(w)
}

func (s *Server) handleBulkDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	res, err := s.svc.Ledger.DeleteTransactions(r.Context(), auth.UserID(r.Context()), req.IDs)
	if err != nil {
		s.fail(w, r, "delete transactions", err)
		return
	}
	OK(newDeleteResultView(res)).Write(w)
}
