package handlers

import (
	"errors"
	"net/http"

	"club-ratings/middleware"
	"club-ratings/services"
)

type MatchHandler struct {
	matchService  services.MatchService
	recalcService services.RecalculationService
}

func NewMatchHandler(matchService services.MatchService, recalcService services.RecalculationService) *MatchHandler {
	return &MatchHandler{
		matchService:  matchService,
		recalcService: recalcService,
	}
}

// CreateHandler handles POST /sessions/{sessionID}/matches.
func (h *MatchHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.CreateMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.SessionID = sessionID

	match, err := h.matchService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerateRoundRobinHandler handles POST /sessions/{sessionID}/rounds. It
// fills an empty session with a full round robin plan of pending singles
// matches for the given players.
func (h *MatchHandler) GenerateRoundRobinHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		PlayerIDs []int `json:"player_ids"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.GenerateRoundRobin(r.Context(), sessionID, input.PlayerIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListBySessionHandler handles GET /sessions/{sessionID}/matches.
func (h *MatchHandler) ListBySessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListBySession(r.Context(), sessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecordResultHandler handles POST /matches/{matchID}/result, the append
// operation of the rating log.
func (h *MatchHandler) RecordResultHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Score1 *int `json:"score1"`
		Score2 *int `json:"score2"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Score1 == nil || input.Score2 == nil {
		badRequestResponse(w, r, errors.New("both score1 and score2 are required"))
		return
	}

	match, err := h.matchService.RecordResult(r.Context(), matchID, *input.Score1, *input.Score2)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// HistoryHandler handles GET /matches/{matchID}/history.
func (h *MatchHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	history, err := h.matchService.History(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"history": history}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CorrectScoreHandler handles PUT /sessions/{sessionID}/matches/{matchID}/score.
// The authenticated subject is recorded as the editor.
func (h *MatchHandler) CorrectScoreHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Score1 *int    `json:"score1"`
		Score2 *int    `json:"score2"`
		Reason *string `json:"reason"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Score1 == nil || input.Score2 == nil {
		badRequestResponse(w, r, errors.New("both score1 and score2 are required"))
		return
	}

	correctInput := services.CorrectMatchInput{
		SessionID: sessionID,
		MatchID:   matchID,
		Score1:    *input.Score1,
		Score2:    *input.Score2,
		Reason:    input.Reason,
	}
	if subject, ok := middleware.SubjectFromContext(r.Context()); ok {
		correctInput.EditedBy = &subject
	}

	match, err := h.recalcService.CorrectMatch(r.Context(), correctInput)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
