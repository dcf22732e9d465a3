package handlers

import (
	"net/http"

	"github.com/redrace/tournament-system/services"
)

type StatsHandler struct {
	statsService      services.StatsService
	pastResultService services.PastResultService
}

func NewStatsHandler(ss services.StatsService, ps services.PastResultService) *StatsHandler {
	return &StatsHandler{statsService: ss, pastResultService: ps}
}

// OverviewHandler обрабатывает GET /api/stats
func (h *StatsHandler) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.statsService.Overview(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, st, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// PastResultsHandler обрабатывает GET /api/past-results
func (h *StatsHandler) PastResultsHandler(w http.ResponseWriter, r *http.Request) {
	results, err := h.pastResultService.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"past_results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
