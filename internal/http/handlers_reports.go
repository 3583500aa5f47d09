package http

import (
	"log/slog"
	"net/http"

	"mess/internal/cache"
	"mess/internal/core"
	"mess/internal/window"
)

type deadlineResponse struct {
	BeforeDeadline bool `json:"beforeDeadline"`
	DeadlineHour   int  `json:"deadlineHour"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r, s.svc.DefaultWindow())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.report(r, win))
}

// report serves a report from the cache when the ledger has not changed
// since it was computed.
func (s *Server) report(r *http.Request, win window.Window) core.Report {
	win = s.svc.ResolveWindow(win)
	label := win.Label()

	if rep, ok := s.reports.Get(cache.ReportKey(s.svc.Revision(), label)); ok {
		s.metrics.cacheResult(true)
		slog.DebugContext(r.Context(), "Report cache hit", "window", label)
		return rep
	}
	s.metrics.cacheResult(false)

	rep, rev := s.svc.RevisionedReport(win)
	s.reports.Set(cache.ReportKey(rev, label), rep)
	slog.DebugContext(r.Context(), "Report cached", "window", label, "revision", rev, "members", len(rep.Members))
	return rep
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.TodayStats(r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleShop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ShopAccount())
}

func (s *Server) handleDeadline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, deadlineResponse{
		BeforeDeadline: s.svc.BeforeDeadline(),
		DeadlineHour:   s.svc.DeadlineHour(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.svc.Export()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="mess-export.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r, maxImportBytes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Import(r.Context(), data); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.reports.Purge()
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Clear(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.reports.Purge()
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}
