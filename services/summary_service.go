package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"club-ratings/models"
	"club-ratings/repositories"
)

// ParticipantSummary describes one participant's movement across a session:
// the rating they entered with, the rating they left with, and the counters
// accumulated inside the session.
type ParticipantSummary struct {
	Kind          models.RatingKind `json:"kind"`
	ParticipantID int               `json:"participant_id"`
	Name          string            `json:"name"`
	EloBefore     int               `json:"elo_before"`
	EloAfter      int               `json:"elo_after"`
	Delta         int               `json:"delta"`
	MatchesPlayed int               `json:"matches_played"`
	Wins          int               `json:"wins"`
	Losses        int               `json:"losses"`
	Draws         int               `json:"draws"`
}

type SessionSummary struct {
	SessionID    int                  `json:"session_id"`
	SessionName  string               `json:"session_name"`
	Status       models.SessionStatus `json:"status"`
	Participants []ParticipantSummary `json:"participants"`
}

// SessionHighlights singles out the best and worst singles performances of a
// session. Both are nil when the session had no singles matches.
type SessionHighlights struct {
	SessionID    int                 `json:"session_id"`
	MostImproved *ParticipantSummary `json:"most_improved,omitempty"`
	LargestDrop  *ParticipantSummary `json:"largest_drop,omitempty"`
}

type SummaryService interface {
	GetSessionSummary(ctx context.Context, sessionID int) (*SessionSummary, error)
	GetSessionHighlights(ctx context.Context, sessionID int) (*SessionHighlights, error)
}

type summaryService struct {
	sessionRepo repositories.SessionRepository
	playerRepo  repositories.PlayerRepository
	teamRepo    repositories.DoubleTeamRepository
	baseline    BaselineService
}

func NewSummaryService(
	sessionRepo repositories.SessionRepository,
	playerRepo repositories.PlayerRepository,
	teamRepo repositories.DoubleTeamRepository,
	baseline BaselineService,
) SummaryService {
	return &summaryService{
		sessionRepo: sessionRepo,
		playerRepo:  playerRepo,
		teamRepo:    teamRepo,
		baseline:    baseline,
	}
}

func (s *summaryService) GetSessionSummary(ctx context.Context, sessionID int) (*SessionSummary, error) {
	var (
		session  *models.Session
		baseline map[models.ParticipantRef]models.RatingState
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.sessionRepo.GetByID(gCtx, nil, sessionID)
		if err != nil {
			if errors.Is(err, repositories.ErrSessionNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to get session %d: %w", sessionID, err)
		}
		session = found
		return nil
	})
	g.Go(func() error {
		// Replaying every prior session dominates the cost of this endpoint.
		states, err := s.baseline.BaselineBefore(gCtx, sessionID)
		if err != nil {
			return err
		}
		baseline = states
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	end, _, err := s.baseline.ReplaySession(ctx, sessionID, baseline)
	if err != nil {
		return nil, err
	}

	participants := diffStates(baseline, end)
	if err := s.attachNames(ctx, participants); err != nil {
		return nil, err
	}

	return &SessionSummary{
		SessionID:    session.ID,
		SessionName:  session.Name,
		Status:       session.Status,
		Participants: participants,
	}, nil
}

func (s *summaryService) GetSessionHighlights(ctx context.Context, sessionID int) (*SessionHighlights, error) {
	summary, err := s.GetSessionSummary(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	highlights := &SessionHighlights{SessionID: sessionID}
	for i := range summary.Participants {
		p := &summary.Participants[i]
		if p.Kind != models.RatingKindSingles {
			continue
		}
		if highlights.MostImproved == nil || betterHighlight(p, highlights.MostImproved) {
			highlights.MostImproved = p
		}
		if highlights.LargestDrop == nil || worseHighlight(p, highlights.LargestDrop) {
			highlights.LargestDrop = p
		}
	}
	return highlights, nil
}

// betterHighlight reports whether candidate beats current for the
// most-improved slot. Ties go to the lower player id so the answer is stable.
func betterHighlight(candidate, current *ParticipantSummary) bool {
	if candidate.Delta != current.Delta {
		return candidate.Delta > current.Delta
	}
	return candidate.ParticipantID < current.ParticipantID
}

func worseHighlight(candidate, current *ParticipantSummary) bool {
	if candidate.Delta != current.Delta {
		return candidate.Delta < current.Delta
	}
	return candidate.ParticipantID < current.ParticipantID
}

// diffStates keeps only the participants whose counters moved during the
// session and expresses their movement relative to the baseline. A
// participant absent from the baseline entered at the default state.
func diffStates(baseline, end map[models.ParticipantRef]models.RatingState) []ParticipantSummary {
	summaries := make([]ParticipantSummary, 0)
	for ref, after := range end {
		before, ok := baseline[ref]
		if !ok {
			before = models.NewRatingState()
		}
		if after.MatchesPlayed == before.MatchesPlayed {
			continue
		}
		summaries = append(summaries, ParticipantSummary{
			Kind:          ref.Kind,
			ParticipantID: ref.ID,
			EloBefore:     before.Elo,
			EloAfter:      after.Elo,
			Delta:         after.Elo - before.Elo,
			MatchesPlayed: after.MatchesPlayed - before.MatchesPlayed,
			Wins:          after.Wins - before.Wins,
			Losses:        after.Losses - before.Losses,
			Draws:         after.Draws - before.Draws,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Kind != summaries[j].Kind {
			return summaries[i].Kind < summaries[j].Kind
		}
		if summaries[i].Delta != summaries[j].Delta {
			return summaries[i].Delta > summaries[j].Delta
		}
		return summaries[i].ParticipantID < summaries[j].ParticipantID
	})
	return summaries
}

func (s *summaryService) attachNames(ctx context.Context, participants []ParticipantSummary) error {
	refs := make([]models.ParticipantRef, 0, len(participants))
	for _, p := range participants {
		refs = append(refs, models.ParticipantRef{Kind: p.Kind, ID: p.ParticipantID})
	}
	names, err := participantNames(ctx, s.playerRepo, s.teamRepo, refs)
	if err != nil {
		return err
	}
	for i := range participants {
		p := &participants[i]
		p.Name = names[models.ParticipantRef{Kind: p.Kind, ID: p.ParticipantID}]
	}
	return nil
}
