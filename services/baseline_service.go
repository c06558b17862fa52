package services

import (
	"context"
	"errors"
	"fmt"

	"club-ratings/elo"
	"club-ratings/models"
	"club-ratings/repositories"
)

// BaselineService derives rating states by replaying the match log from
// scratch. It never reads persisted rating rows, so its output depends only
// on the ordered matches themselves.
type BaselineService interface {
	// BaselineBefore replays every completed session created strictly before
	// the given session, in chronological order, starting from the
	// all-default baseline. A session with no predecessors yields an empty
	// map: every participant implicitly at 1500 with zero counters.
	BaselineBefore(ctx context.Context, sessionID int) (map[models.ParticipantRef]models.RatingState, error)
	// ReplaySession applies the session's completed matches, in canonical
	// order, on top of the given baseline.
	ReplaySession(ctx context.Context, sessionID int, baseline map[models.ParticipantRef]models.RatingState) (map[models.ParticipantRef]models.RatingState, []elo.MatchOutcome, error)
	// SessionMatches returns the session's matches in canonical order with
	// doubles team ids resolved, ready for replay.
	SessionMatches(ctx context.Context, sessionID int) ([]*models.Match, error)
}

type baselineService struct {
	sessionRepo repositories.SessionRepository
	matchRepo   repositories.MatchRepository
	teamService DoubleTeamService
}

func NewBaselineService(
	sessionRepo repositories.SessionRepository,
	matchRepo repositories.MatchRepository,
	teamService DoubleTeamService,
) BaselineService {
	return &baselineService{
		sessionRepo: sessionRepo,
		matchRepo:   matchRepo,
		teamService: teamService,
	}
}

func (s *baselineService) BaselineBefore(ctx context.Context, sessionID int) (map[models.ParticipantRef]models.RatingState, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %d: %w", sessionID, err)
	}

	priorSessions, err := s.sessionRepo.ListCompletedBefore(ctx, nil, session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions before session %d: %w", sessionID, err)
	}

	states := make(map[models.ParticipantRef]models.RatingState)
	for _, prior := range priorSessions {
		matches, matchErr := s.SessionMatches(ctx, prior.ID)
		if matchErr != nil {
			return nil, fmt.Errorf("failed to load matches of session %d: %w", prior.ID, matchErr)
		}
		states, _ = elo.Replay(states, matchValues(matches))
	}
	return states, nil
}

func (s *baselineService) ReplaySession(ctx context.Context, sessionID int, baseline map[models.ParticipantRef]models.RatingState) (map[models.ParticipantRef]models.RatingState, []elo.MatchOutcome, error) {
	matches, err := s.SessionMatches(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	states, outcomes := elo.Replay(baseline, matchValues(matches))
	return states, outcomes, nil
}

func (s *baselineService) SessionMatches(ctx context.Context, sessionID int) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for session %d: %w", sessionID, err)
	}
	if err := s.teamService.ResolveMatchTeams(ctx, matches); err != nil {
		return nil, fmt.Errorf("failed to resolve doubles teams for session %d: %w", sessionID, err)
	}
	return matches, nil
}
