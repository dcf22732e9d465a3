package handlers

import (
	"net/http"

	"github.com/redrace/tournament-system/middleware"
	"github.com/redrace/tournament-system/services"
)

type PickemsHandler struct {
	pickemsService services.PickemsService
}

func NewPickemsHandler(ps services.PickemsService) *PickemsHandler {
	return &PickemsHandler{pickemsService: ps}
}

// SubmitOneOffHandler обрабатывает POST /api/pickems/one-off
func (h *PickemsHandler) SubmitOneOffHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	var input services.OneOffPicksInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	pickems, err := h.pickemsService.SubmitOneOff(r.Context(), currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"pickems": pickems}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitRoundHandler обрабатывает POST /api/pickems/round
func (h *PickemsHandler) SubmitRoundHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	var input services.RoundPicksInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	pickems, err := h.pickemsService.SubmitRoundPicks(r.Context(), currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"pickems": pickems}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PickemsHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	h.writeEntry(w, r, currentUserID)
}

// GetByUserHandler обрабатывает GET /api/pickems/{userID}
func (h *PickemsHandler) GetByUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.writeEntry(w, r, userID)
}

func (h *PickemsHandler) writeEntry(w http.ResponseWriter, r *http.Request, userID int) {
	pickems, err := h.pickemsService.Get(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"pickems": pickems}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PickemsHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	board, err := h.pickemsService.Leaderboard(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": board}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StatsHandler обрабатывает GET /api/pickems/stats?round=Round%202
func (h *PickemsHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	round, err := roundFromQuery(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	st, err := h.pickemsService.Stats(r.Context(), round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, st, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PickemsHandler) RescoreHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.pickemsService.Rescore(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PickemsHandler) AwardTopHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.pickemsService.AwardTopPicks(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
