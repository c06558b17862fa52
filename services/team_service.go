package services

import (
	"context"
	"errors"
	"fmt"

	"club-ratings/models"
	"club-ratings/repositories"
)

type DoubleTeamService interface {
	// Resolve returns the team identity for a pair of players, creating it
	// on first use. Argument order never matters.
	Resolve(ctx context.Context, playerID1, playerID2 int) (*models.DoubleTeam, error)
	// ResolveMatchTeams fills in the side team ids of every doubles match,
	// in place. Matches missing doubles players are left untouched.
	ResolveMatchTeams(ctx context.Context, matches []*models.Match) error
}

type doubleTeamService struct {
	teamRepo repositories.DoubleTeamRepository
}

func NewDoubleTeamService(teamRepo repositories.DoubleTeamRepository) DoubleTeamService {
	return &doubleTeamService{teamRepo: teamRepo}
}

func (s *doubleTeamService) Resolve(ctx context.Context, playerID1, playerID2 int) (*models.DoubleTeam, error) {
	if playerID1 == playerID2 {
		return nil, ErrPlayersNotDistinct
	}
	team, err := s.teamRepo.GetOrCreateByPair(ctx, nil, playerID1, playerID2)
	if err != nil {
		if errors.Is(err, repositories.ErrDoubleTeamPlayerInvalid) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to resolve double team for pair (%d, %d): %w", playerID1, playerID2, err)
	}
	return team, nil
}

func (s *doubleTeamService) ResolveMatchTeams(ctx context.Context, matches []*models.Match) error {
	cache := make(map[[2]int]int)

	resolve := func(p1, p2 int) (int, error) {
		a, b := models.NormalizePair(p1, p2)
		if id, ok := cache[[2]int{a, b}]; ok {
			return id, nil
		}
		team, err := s.Resolve(ctx, p1, p2)
		if err != nil {
			return 0, err
		}
		cache[[2]int{a, b}] = team.ID
		return team.ID, nil
	}

	for _, m := range matches {
		if !m.IsDoubles() || m.Player3ID == nil || m.Player4ID == nil {
			continue
		}
		side1ID, err := resolve(m.Player1ID, m.Player2ID)
		if err != nil {
			return fmt.Errorf("match %d side 1: %w", m.ID, err)
		}
		side2ID, err := resolve(*m.Player3ID, *m.Player4ID)
		if err != nil {
			return fmt.Errorf("match %d side 2: %w", m.ID, err)
		}
		m.Side1TeamID = &side1ID
		m.Side2TeamID = &side2ID
	}
	return nil
}
