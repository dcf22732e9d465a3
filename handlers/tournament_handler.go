package handlers

import (
	"net/http"

	"github.com/redrace/tournament-system/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(ts services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts}
}

// StandingsHandler обрабатывает GET /api/tournament/standings
func (h *TournamentHandler) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	standings, err := h.tournamentService.Standings(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RoundHandler обрабатывает GET /api/tournament/round
func (h *TournamentHandler) RoundHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.tournamentService.RoundSummary(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, summary, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) CutHandler(w http.ResponseWriter, r *http.Request) {
	cut, err := h.tournamentService.CurrentCut(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"cut": cut}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// EndRoundHandler обрабатывает POST /api/tournament/end-round
func (h *TournamentHandler) EndRoundHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.tournamentService.EndRound(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
