package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"club-ratings/elo"
	"club-ratings/live"
	"club-ratings/models"
	"club-ratings/repositories"
	"club-ratings/schedule"
)

type CreateMatchInput struct {
	SessionID   int              `json:"session_id"`
	RoundNumber int              `json:"round_number"`
	MatchOrder  int              `json:"match_order"`
	Type        models.MatchType `json:"type"`
	Player1ID   int              `json:"player1_id"`
	Player2ID   int              `json:"player2_id"`
	Player3ID   *int             `json:"player3_id,omitempty"`
	Player4ID   *int             `json:"player4_id,omitempty"`
}

type MatchService interface {
	Create(ctx context.Context, input CreateMatchInput) (*models.Match, error)
	// GenerateRoundRobin plans a fresh session's full round plan: pending
	// singles matches where everyone meets everyone once and nobody plays
	// twice in a round. The session must not have matches yet.
	GenerateRoundRobin(ctx context.Context, sessionID int, playerIDs []int) ([]*models.Match, error)
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListBySession(ctx context.Context, sessionID int) ([]*models.Match, error)
	// RecordResult completes a pending match and applies its rating updates
	// on top of the participants' current ratings, writing snapshots,
	// history and rating rows for this match only.
	RecordResult(ctx context.Context, matchID int, score1, score2 int) (*models.Match, error)
	History(ctx context.Context, matchID int) ([]*models.EloHistoryEntry, error)
}

type matchService struct {
	playerRepo   repositories.PlayerRepository
	sessionRepo  repositories.SessionRepository
	matchRepo    repositories.MatchRepository
	ratingRepo   repositories.RatingRepository
	snapshotRepo repositories.SnapshotRepository
	historyRepo  repositories.HistoryRepository
	teamService  DoubleTeamService
	hub          *live.Hub
}

func NewMatchService(
	playerRepo repositories.PlayerRepository,
	sessionRepo repositories.SessionRepository,
	matchRepo repositories.MatchRepository,
	ratingRepo repositories.RatingRepository,
	snapshotRepo repositories.SnapshotRepository,
	historyRepo repositories.HistoryRepository,
	teamService DoubleTeamService,
	hub *live.Hub,
) MatchService {
	return &matchService{
		playerRepo:   playerRepo,
		sessionRepo:  sessionRepo,
		matchRepo:    matchRepo,
		ratingRepo:   ratingRepo,
		snapshotRepo: snapshotRepo,
		historyRepo:  historyRepo,
		teamService:  teamService,
		hub:          hub,
	}
}

func (s *matchService) Create(ctx context.Context, input CreateMatchInput) (*models.Match, error) {
	if err := validateCreateMatchInput(input); err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.GetByID(ctx, nil, input.SessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %d: %w", input.SessionID, err)
	}
	if session.Status != models.SessionStatusActive {
		return nil, ErrSessionNotActive
	}

	playerIDs := collectPlayerIDs(input)
	players, err := s.playerRepo.ListByIDs(ctx, nil, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to verify match players: %w", err)
	}
	if len(players) != len(playerIDs) {
		return nil, ErrPlayerNotFound
	}

	match := &models.Match{
		SessionID:   input.SessionID,
		RoundNumber: input.RoundNumber,
		MatchOrder:  input.MatchOrder,
		Type:        input.Type,
		Player1ID:   input.Player1ID,
		Player2ID:   input.Player2ID,
		Player3ID:   input.Player3ID,
		Player4ID:   input.Player4ID,
		Status:      models.MatchStatusPending,
	}
	if err := s.matchRepo.Create(ctx, nil, match); err != nil {
		switch {
		case errors.Is(err, repositories.ErrMatchOrderTaken):
			return nil, ErrMatchSlotConflict
		case errors.Is(err, repositories.ErrMatchSessionInvalid):
			return nil, ErrSessionNotFound
		case errors.Is(err, repositories.ErrMatchPlayerInvalid):
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	return match, nil
}

func (s *matchService) GenerateRoundRobin(ctx context.Context, sessionID int, playerIDs []int) ([]*models.Match, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %d: %w", sessionID, err)
	}
	if session.Status != models.SessionStatusActive {
		return nil, ErrSessionNotActive
	}

	existing, err := s.matchRepo.ListBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for session %d: %w", sessionID, err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: session %d already has matches", ErrMatchSlotConflict, sessionID)
	}

	pairings, err := schedule.RoundRobin(playerIDs)
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrTooFewPlayers):
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		case errors.Is(err, schedule.ErrDuplicatePlayer):
			return nil, ErrPlayersNotDistinct
		}
		return nil, fmt.Errorf("failed to plan round robin for session %d: %w", sessionID, err)
	}

	players, err := s.playerRepo.ListByIDs(ctx, nil, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to verify round robin players: %w", err)
	}
	if len(players) != len(playerIDs) {
		return nil, ErrPlayerNotFound
	}

	matches := make([]*models.Match, 0, len(pairings))
	for _, pairing := range pairings {
		match := &models.Match{
			SessionID:   sessionID,
			RoundNumber: pairing.RoundNumber,
			MatchOrder:  pairing.MatchOrder,
			Type:        models.MatchTypeSingles,
			Player1ID:   pairing.Player1ID,
			Player2ID:   pairing.Player2ID,
			Status:      models.MatchStatusPending,
		}
		if err := s.matchRepo.Create(ctx, nil, match); err != nil {
			if errors.Is(err, repositories.ErrMatchOrderTaken) {
				return nil, ErrMatchSlotConflict
			}
			return nil, fmt.Errorf("failed to create round robin match: %w", err)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func validateCreateMatchInput(input CreateMatchInput) error {
	if input.RoundNumber <= 0 || input.MatchOrder <= 0 {
		return ErrRoundOrderInvalid
	}
	switch input.Type {
	case models.MatchTypeSingles:
		if input.Player3ID != nil || input.Player4ID != nil {
			return fmt.Errorf("%w: singles match takes exactly two players", ErrValidationFailed)
		}
	case models.MatchTypeDoubles:
		if input.Player3ID == nil || input.Player4ID == nil {
			return ErrDoublesPlayersMissing
		}
	default:
		return fmt.Errorf("%w: unknown match type %q", ErrValidationFailed, input.Type)
	}

	seen := make(map[int]bool)
	for _, id := range collectPlayerIDs(input) {
		if seen[id] {
			return ErrPlayersNotDistinct
		}
		seen[id] = true
	}
	return nil
}

func collectPlayerIDs(input CreateMatchInput) []int {
	ids := []int{input.Player1ID, input.Player2ID}
	if input.Player3ID != nil {
		ids = append(ids, *input.Player3ID)
	}
	if input.Player4ID != nil {
		ids = append(ids, *input.Player4ID)
	}
	return ids
}

func (s *matchService) GetByID(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	return match, nil
}

func (s *matchService) ListBySession(ctx context.Context, sessionID int) ([]*models.Match, error) {
	if _, err := s.sessionRepo.GetByID(ctx, nil, sessionID); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %d: %w", sessionID, err)
	}
	matches, err := s.matchRepo.ListBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for session %d: %w", sessionID, err)
	}
	return matches, nil
}

func (s *matchService) RecordResult(ctx context.Context, matchID int, score1, score2 int) (*models.Match, error) {
	if score1 < 0 || score2 < 0 {
		return nil, ErrScoreNegative
	}

	match, err := s.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status == models.MatchStatusCompleted {
		return nil, ErrMatchAlreadyCompleted
	}

	session, err := s.sessionRepo.GetByID(ctx, nil, match.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session %d: %w", match.SessionID, err)
	}
	if session.Status != models.SessionStatusActive {
		return nil, ErrSessionNotActive
	}

	if match.IsDoubles() {
		if err := s.teamService.ResolveMatchTeams(ctx, []*models.Match{match}); err != nil {
			return nil, err
		}
	}

	// Apply this one match on top of the participants' current ratings.
	match.Score1 = &score1
	match.Score2 = &score2
	match.Status = models.MatchStatusCompleted

	states, err := s.currentStates(ctx, match)
	if err != nil {
		return nil, err
	}
	endStates, outcomes := elo.Replay(states, []models.Match{*match})
	if len(outcomes) != 1 {
		return nil, fmt.Errorf("match %d produced no rating outcome", matchID)
	}

	if err := s.matchRepo.UpdateResult(ctx, nil, matchID, score1, score2); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to record result for match %d: %w", matchID, err)
	}

	// Snapshots, history and current ratings are written without a
	// transaction: a failure here leaves gaps that the next correction or
	// rebuild overwrites wholesale.
	for _, snapshot := range outcomeSnapshots(outcomes[0]) {
		if err := s.snapshotRepo.Upsert(ctx, nil, snapshot); err != nil {
			return nil, err
		}
	}
	if err := s.historyRepo.BatchCreate(ctx, nil, outcomeHistory(outcomes[0])); err != nil {
		return nil, err
	}
	if err := s.ratingRepo.BatchUpsert(ctx, nil, statesToRatings(endStates)); err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastToRoom(strconv.Itoa(match.SessionID), live.EventMatchResultRecorded, match)
	}
	return match, nil
}

// currentStates reads the persisted rating of each projection entry the match
// touches, defaulting missing rows to the unrated state.
func (s *matchService) currentStates(ctx context.Context, match *models.Match) (map[models.ParticipantRef]models.RatingState, error) {
	states := make(map[models.ParticipantRef]models.RatingState)
	for _, ref := range matchParticipantRefs(match) {
		rating, err := s.ratingRepo.Get(ctx, nil, ref.Kind, ref.ID)
		if err != nil {
			if errors.Is(err, repositories.ErrRatingNotFound) {
				states[ref] = models.NewRatingState()
				continue
			}
			return nil, fmt.Errorf("failed to load rating %s/%d: %w", ref.Kind, ref.ID, err)
		}
		states[ref] = rating.RatingState
	}
	return states, nil
}

func (s *matchService) History(ctx context.Context, matchID int) ([]*models.EloHistoryEntry, error) {
	if _, err := s.GetByID(ctx, matchID); err != nil {
		return nil, err
	}
	entries, err := s.historyRepo.ListByMatch(ctx, nil, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for match %d: %w", matchID, err)
	}
	return entries, nil
}
