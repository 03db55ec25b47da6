package http

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the store and reports which optional collaborators are
// configured.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"import_sheets": configured(s.svc.Imports != nil),
		"receipt_scan":  configured(s.svc.Receipts != nil),
		"store":         "ok",
	}
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			checks["store"] = "failed"
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Data(checks).Write(w)
			return
		}
	}
	OK(map[string]any{"status": "ready", "checks": checks}).Write(w)
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not_configured"
}
