package http

import (
	"net/http"

	"fincontrol/internal/core"
)

const recentTransactions = 5

type homePage struct {
	Title     string
	User      core.User
	Stats     core.SummaryStatistics
	Recent    []core.Transaction
	CanExport bool
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	d, err := s.dashboard.Snapshot(r.Context(), sess.Credentials())
	if err != nil {
		s.handleAPIError(w, r, err, "dashboard")
		return
	}
	s.render(w, r, http.StatusOK, "home.html", homePage{
		Title:     "Painel",
		User:      sess.User,
		Stats:     d.Stats,
		Recent:    d.Recent(recentTransactions),
		CanExport: s.exporter != nil,
	})
}

// handleDashboardStats renders only the summary cards, reloaded by HTMX
// whenever a mutation fires dashboard:refresh.
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	d, err := s.dashboard.Snapshot(r.Context(), sess.Credentials())
	if err != nil {
		s.handleAPIError(w, r, err, "dashboard_stats")
		return
	}
	s.render(w, r, http.StatusOK, "dashboard-stats", d.Stats)
}
