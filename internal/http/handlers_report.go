package http

import (
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"

	"masjid/internal/log"
	"masjid/internal/report"
)

// handleReport streams the month statement as a PDF download.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	key, err := monthFromPath(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	snap, err := s.readMonth(ctx, key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	pdf, err := s.reports.Render(ctx, snap)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Report rendering failed",
			log.FieldMonth, string(key),
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		s.respondStatus(w, r, http.StatusInternalServerError, "Could not generate the report")
		return
	}
	atomic.AddInt64(&s.appMetrics.reports, 1)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(key)))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
