package http

import (
	"net/http"

	"finledger/internal/middleware/auth"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ov, err := s.svc.Dashboard.Overview(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, "dashboard", err)
		return
	}
	OK(newOverviewView(ov)).Write(w)
}
