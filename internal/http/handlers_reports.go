package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"finledger/internal/log"
	"finledger/internal/middleware/auth"
	"finledger/internal/report"
	"finledger/internal/storage"
)

// handleStatementPDF renders the caller's transactions between from and to
// (default: current month), optionally for one account_id.
func (s *Server) handleStatementPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)
	q := r.URL.Query()

	from, to, err := ParsePeriod(q, s.now())
	if err != nil {
		writeRequestError(w, err)
		return
	}
	accountID := strings.TrimSpace(q.Get("account_id"))

	accounts, err := s.svc.Accounts.ListAccounts(ctx, userID)
	if err != nil {
		s.fail(w, r, "statement", err)
		return
	}
	txs, err := s.svc.Ledger.ListTransactions(ctx, userID, storage.TransactionFilter{
		AccountID: accountID,
		From:      from,
		To:        to,
		Limit:     report.MaxRows,
	})
	if err != nil {
		s.fail(w, r, "statement", err)
		return
	}

	st := report.Statement{
		From:         from,
		To:           to,
		Transactions: txs,
		AccountNames: make(map[string]string, len(accounts)),
		GeneratedAt:  s.now(),
	}
	for _, a := range accounts {
		st.AccountNames[a.ID] = a.Name
		if a.ID == accountID || (accountID == "" && a.IsDefault) {
			st.Currency = a.Currency
		}
	}
	if accountID != "" {
		st.Owner = st.AccountNames[accountID]
	}

	// render fully before writing so a failure can still answer with JSON
	var buf bytes.Buffer
	if err := report.Render(&buf, st); err != nil {
		s.fail(w, r, "statement", fmt.Errorf("render statement: %w", err))
		return
	}
	filename := fmt.Sprintf("statement-%s-%s.pdf", from.Format(dateLayout), to.Format(dateLayout))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Statement write failed", log.FieldError, err)
	}
	log.FromContext(ctx).InfoContext(ctx, "Statement rendered",
		log.FieldUserID, userID,
		log.FieldCount, len(txs),
		log.FieldPeriod, from.Format(dateLayout)+".."+to.Format(dateLayout))
}
