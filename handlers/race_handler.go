package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/redrace/tournament-system/middleware"
	"github.com/redrace/tournament-system/models"
	"github.com/redrace/tournament-system/services"
)

type RaceHandler struct {
	raceService services.RaceService
}

func NewRaceHandler(rs services.RaceService) *RaceHandler {
	return &RaceHandler{raceService: rs}
}

// ListUpcomingHandler обрабатывает GET /api/races
func (h *RaceHandler) ListUpcomingHandler(w http.ResponseWriter, r *http.Request) {
	races, err := h.raceService.ListUpcoming(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"races": races}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RaceHandler) ListReadyToCompleteHandler(w http.ResponseWriter, r *http.Request) {
	races, err := h.raceService.ListReadyToComplete(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"races": races}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RaceHandler) ListCompletedHandler(w http.ResponseWriter, r *http.Request) {
	races, err := h.raceService.ListCompleted(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"races": races}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RaceHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "raceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	race, err := h.raceService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"race": race}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListByUserHandler обрабатывает GET /api/races/user/{userID}
func (h *RaceHandler) ListByUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	races, err := h.raceService.ListByUser(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, races, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitHandler обрабатывает POST /api/races. Первый участник - текущий пользователь.
func (h *RaceHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to submit a race")
		return
	}

	var input services.SubmitRaceInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	race, err := h.raceService.Submit(r.Context(), currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"race": race}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CompleteHandler обрабатывает POST /api/races/{raceID}/complete
func (h *RaceHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "raceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.CompleteRaceInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(input.Results) == 0 {
		badRequestResponse(w, r, errors.New("results are required"))
		return
	}

	result, err := h.raceService.Complete(r.Context(), id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RaceHandler) AddCommentatorHandler(w http.ResponseWriter, r *http.Request) {
	h.commentator(w, r, h.raceService.AddCommentator)
}

func (h *RaceHandler) RemoveCommentatorHandler(w http.ResponseWriter, r *http.Request) {
	h.commentator(w, r, h.raceService.RemoveCommentator)
}

func (h *RaceHandler) commentator(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, raceID, userID int) (*models.Race, error)) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "raceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	race, err := op(r.Context(), id, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"race": race}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RaceHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	h.setCancelled(w, r, true)
}

func (h *RaceHandler) UncancelHandler(w http.ResponseWriter, r *http.Request) {
	h.setCancelled(w, r, false)
}

func (h *RaceHandler) setCancelled(w http.ResponseWriter, r *http.Request, cancelled bool) {
	id, err := getIDFromURL(r, "raceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	race, err := h.raceService.SetCancelled(r.Context(), id, cancelled)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"race": race}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type restreamInput struct {
	Channel string `json:"channel"`
}

// PlanRestreamHandler назначает текущего администратора рестримером.
func (h *RaceHandler) PlanRestreamHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "raceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input restreamInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	race, err := h.raceService.PlanRestream(r.Context(), id, currentUserID, input.Channel)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"race": race}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RaceHandler) CancelRestreamHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "raceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	race, err := h.raceService.CancelRestream(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"race": race}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
