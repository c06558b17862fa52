package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"club-ratings/models"
	"club-ratings/services"
)

type RatingHandler struct {
	ratingService services.RatingService
}

func NewRatingHandler(ratingService services.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

// LeaderboardHandler handles GET /ratings?kind=singles|doubles_player|doubles_team.
func (h *RatingHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	kind := models.RatingKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = models.RatingKindSingles
	}

	entries, err := h.ratingService.Leaderboard(r.Context(), kind)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"kind": kind, "leaderboard": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetParticipantHandler handles GET /ratings/{kind}/{participantID}. A
// participant who never played reports the unrated default state.
func (h *RatingHandler) GetParticipantHandler(w http.ResponseWriter, r *http.Request) {
	kind := models.RatingKind(chi.URLParam(r, "kind"))
	participantID, err := getIDFromURL(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rating, err := h.ratingService.GetParticipant(r.Context(), kind, participantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rating": rating}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
