package services

import (
	"context"
	"errors"
	"fmt"

	"club-ratings/models"
	"club-ratings/repositories"
)

// LeaderboardEntry is one row of a projection's standings.
type LeaderboardEntry struct {
	Rank int    `json:"rank"`
	Name string `json:"name"`
	models.Rating
}

type RatingService interface {
	// Leaderboard returns the current standings of one projection, ordered
	// by elo descending with participant id as the tie-break.
	Leaderboard(ctx context.Context, kind models.RatingKind) ([]LeaderboardEntry, error)
	// GetParticipant returns one participant's current rating, or the
	// default unrated state when they have never played in the projection.
	GetParticipant(ctx context.Context, kind models.RatingKind, participantID int) (*models.Rating, error)
}

type ratingService struct {
	ratingRepo repositories.RatingRepository
	playerRepo repositories.PlayerRepository
	teamRepo   repositories.DoubleTeamRepository
}

func NewRatingService(
	ratingRepo repositories.RatingRepository,
	playerRepo repositories.PlayerRepository,
	teamRepo repositories.DoubleTeamRepository,
) RatingService {
	return &ratingService{
		ratingRepo: ratingRepo,
		playerRepo: playerRepo,
		teamRepo:   teamRepo,
	}
}

func (s *ratingService) Leaderboard(ctx context.Context, kind models.RatingKind) ([]LeaderboardEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown rating kind %q", ErrValidationFailed, kind)
	}

	ratings, err := s.ratingRepo.ListByKind(ctx, nil, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ratings: %w", kind, err)
	}

	refs := make([]models.ParticipantRef, 0, len(ratings))
	for _, r := range ratings {
		refs = append(refs, r.Ref())
	}
	names, err := participantNames(ctx, s.playerRepo, s.teamRepo, refs)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(ratings))
	for i, r := range ratings {
		entries = append(entries, LeaderboardEntry{
			Rank:   i + 1,
			Name:   names[r.Ref()],
			Rating: *r,
		})
	}
	return entries, nil
}

func (s *ratingService) GetParticipant(ctx context.Context, kind models.RatingKind, participantID int) (*models.Rating, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown rating kind %q", ErrValidationFailed, kind)
	}

	rating, err := s.ratingRepo.Get(ctx, nil, kind, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrRatingNotFound) {
			return &models.Rating{
				Kind:          kind,
				ParticipantID: participantID,
				RatingState:   models.NewRatingState(),
			}, nil
		}
		return nil, fmt.Errorf("failed to get %s rating for participant %d: %w", kind, participantID, err)
	}
	return rating, nil
}
