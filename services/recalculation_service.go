package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"club-ratings/elo"
	"club-ratings/live"
	"club-ratings/models"
	"club-ratings/repositories"
)

const lockTokenLength = 16

var ErrLockTokenGeneration = errors.New("failed to generate recalculation lock token")

type CorrectMatchInput struct {
	SessionID int
	MatchID   int
	Score1    int
	Score2    int
	EditedBy  *string
	Reason    *string
}

// RecalculationService corrects a single historical match result and
// re-derives every rating that depended on it. Exactly one correction may
// run per session at a time, enforced by a conditional update on the
// session's lock row rather than any in-process mutex.
type RecalculationService interface {
	// CorrectMatch rewrites a completed singles match's score and replays
	// the session from the edited match onward. Concurrent corrections for
	// the same session lose the lock race and get
	// ErrRecalculationInProgress; they are never queued.
	CorrectMatch(ctx context.Context, input CorrectMatchInput) (*models.Match, error)
	// FailStaleLocks flips running locks older than the staleness window to
	// failed, recovering sessions whose recalculation crashed mid-flight.
	FailStaleLocks(ctx context.Context) error
}

type recalculationService struct {
	matchRepo    repositories.MatchRepository
	sessionRepo  repositories.SessionRepository
	ratingRepo   repositories.RatingRepository
	snapshotRepo repositories.SnapshotRepository
	historyRepo  repositories.HistoryRepository
	lockRepo     repositories.RecalculationLockRepository
	baseline     BaselineService
	hub          *live.Hub
	logger       *slog.Logger
	lockTTL      time.Duration
}

func NewRecalculationService(
	matchRepo repositories.MatchRepository,
	sessionRepo repositories.SessionRepository,
	ratingRepo repositories.RatingRepository,
	snapshotRepo repositories.SnapshotRepository,
	historyRepo repositories.HistoryRepository,
	lockRepo repositories.RecalculationLockRepository,
	baseline BaselineService,
	hub *live.Hub,
	logger *slog.Logger,
	lockTTL time.Duration,
) RecalculationService {
	return &recalculationService{
		matchRepo:    matchRepo,
		sessionRepo:  sessionRepo,
		ratingRepo:   ratingRepo,
		snapshotRepo: snapshotRepo,
		historyRepo:  historyRepo,
		lockRepo:     lockRepo,
		baseline:     baseline,
		hub:          hub,
		logger:       logger,
		lockTTL:      lockTTL,
	}
}

func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (s *recalculationService) CorrectMatch(ctx context.Context, input CorrectMatchInput) (*models.Match, error) {
	// Everything that can be rejected is rejected before the lock is taken.
	if input.Score1 < 0 || input.Score2 < 0 {
		return nil, ErrScoreNegative
	}
	if _, err := s.sessionRepo.GetByID(ctx, nil, input.SessionID); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %d: %w", input.SessionID, err)
	}
	match, err := s.matchRepo.GetByID(ctx, nil, input.MatchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", input.MatchID, err)
	}
	if match.SessionID != input.SessionID {
		return nil, ErrMatchNotInSession
	}
	if match.IsDoubles() {
		return nil, ErrDoublesEditForbidden
	}
	if match.Status != models.MatchStatusCompleted || !match.HasScore() {
		return nil, ErrMatchNotCompleted
	}

	token, err := generateSecureToken(lockTokenLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockTokenGeneration, err)
	}
	if err := s.lockRepo.Acquire(ctx, nil, input.SessionID, token, s.lockTTL); err != nil {
		if errors.Is(err, repositories.ErrRecalculationLockHeld) {
			return nil, ErrRecalculationInProgress
		}
		return nil, fmt.Errorf("failed to acquire recalculation lock for session %d: %w", input.SessionID, err)
	}

	started := time.Now()
	corrected, recalcErr := s.recalculate(ctx, input)
	lockStatus := models.RecalculationStatusDone
	if recalcErr != nil {
		lockStatus = models.RecalculationStatusFailed
	}
	if releaseErr := s.lockRepo.Release(ctx, nil, input.SessionID, token, lockStatus); releaseErr != nil {
		// A failed release means the lock was taken over as stale; the
		// request outcome is unaffected.
		s.logger.Error("failed to release recalculation lock",
			slog.Int("session_id", input.SessionID),
			slog.String("status", string(lockStatus)),
			slog.Any("error", releaseErr))
	}
	if recalcErr != nil {
		return nil, recalcErr
	}

	s.logger.Info("match correction recalculated",
		slog.Int("session_id", input.SessionID),
		slog.Int("match_id", input.MatchID),
		slog.Duration("took", time.Since(started)))

	if s.hub != nil {
		s.hub.BroadcastToRoom(strconv.Itoa(input.SessionID), live.EventRatingsRecalculated, corrected)
	}
	return corrected, nil
}

func (s *recalculationService) recalculate(ctx context.Context, input CorrectMatchInput) (*models.Match, error) {
	matches, err := s.baseline.SessionMatches(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	position := -1
	for i, m := range matches {
		if m.ID == input.MatchID {
			position = i
			break
		}
	}
	if position < 0 {
		return nil, ErrMatchNotInSession
	}

	baseline, err := s.baseline.BaselineBefore(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	replayFrom := position
	if position > 0 {
		overlaid, ok, overlayErr := s.overlaySnapshots(ctx, baseline, matches[:position], input.MatchID)
		if overlayErr != nil {
			return nil, overlayErr
		}
		if ok {
			baseline = overlaid
		} else {
			// A missing checkpoint means some prior attempt died half-way.
			// Re-derive the whole session from the coarser baseline instead.
			replayFrom = 0
		}
	}

	replaySet := matchValues(matches[replayFrom:])
	for i := range replaySet {
		if replaySet[i].ID == input.MatchID {
			replaySet[i].Score1 = &input.Score1
			replaySet[i].Score2 = &input.Score2
			break
		}
	}

	// Invalidate every checkpoint in the replay set before re-deriving it,
	// so a crash below can never leave a stale snapshot masquerading as a
	// valid resumption point.
	invalidatedIDs := make([]int, 0, len(matches)-replayFrom)
	for _, m := range matches[replayFrom:] {
		invalidatedIDs = append(invalidatedIDs, m.ID)
	}
	if err := s.snapshotRepo.DeleteByMatchIDs(ctx, nil, invalidatedIDs); err != nil {
		return nil, err
	}
	if err := s.historyRepo.DeleteByMatchIDs(ctx, nil, invalidatedIDs); err != nil {
		return nil, err
	}

	// All state flows through the in-memory map: nothing below reads a
	// database-resident rating, so the result depends only on the baseline
	// and the ordered match list.
	endStates, outcomes := elo.Replay(baseline, replaySet)

	for _, outcome := range outcomes {
		for _, snapshot := range outcomeSnapshots(outcome) {
			if err := s.snapshotRepo.Upsert(ctx, nil, snapshot); err != nil {
				return nil, err
			}
		}
		if err := s.historyRepo.BatchCreate(ctx, nil, outcomeHistory(outcome)); err != nil {
			return nil, err
		}
	}
	if err := s.ratingRepo.BatchUpsert(ctx, nil, statesToRatings(endStates)); err != nil {
		return nil, err
	}
	if err := s.matchRepo.UpdateCorrectedScore(ctx, nil, input.MatchID, input.Score1, input.Score2, input.EditedBy, input.Reason); err != nil {
		return nil, fmt.Errorf("failed to write corrected score for match %d: %w", input.MatchID, err)
	}

	s.verifyPersistedStates(ctx, input.SessionID, endStates)

	corrected, err := s.matchRepo.GetByID(ctx, nil, input.MatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload corrected match %d: %w", input.MatchID, err)
	}
	return corrected, nil
}

// overlaySnapshots lifts the baseline to "just before the edited match" by
// substituting each prefix participant's last checkpoint. Returns ok=false,
// without an error, when an expected checkpoint is missing.
func (s *recalculationService) overlaySnapshots(ctx context.Context, baseline map[models.ParticipantRef]models.RatingState, prefix []*models.Match, matchID int) (map[models.ParticipantRef]models.RatingState, bool, error) {
	states := make(map[models.ParticipantRef]models.RatingState, len(baseline))
	for ref, st := range baseline {
		states[ref] = st
	}

	seen := make(map[models.ParticipantRef]bool)
	for _, m := range prefix {
		if !elo.Applicable(m) {
			continue
		}
		for _, ref := range matchParticipantRefs(m) {
			if seen[ref] {
				continue
			}
			seen[ref] = true

			snapshot, err := s.snapshotRepo.GetBefore(ctx, nil, ref, matchID)
			if err != nil {
				if errors.Is(err, repositories.ErrSnapshotNotFound) {
					s.logger.Error("expected rating snapshot missing, falling back to session baseline",
						slog.Int("match_id", matchID),
						slog.String("kind", string(ref.Kind)),
						slog.Int("participant_id", ref.ID))
					return nil, false, nil
				}
				return nil, false, err
			}
			states[ref] = snapshot.State
		}
	}
	return states, true, nil
}

// verifyPersistedStates re-reads what was just written and compares it to the
// computed result. A mismatch is an observability signal only: the operation
// has already committed.
func (s *recalculationService) verifyPersistedStates(ctx context.Context, sessionID int, computed map[models.ParticipantRef]models.RatingState) {
	persisted, err := s.ratingRepo.ListAll(ctx, nil)
	if err != nil {
		s.logger.Error("post-write verification read failed",
			slog.Int("session_id", sessionID),
			slog.Any("error", err))
		return
	}
	persistedByRef := ratingsToStates(persisted)

	for ref, want := range computed {
		got, ok := persistedByRef[ref]
		if !ok || got != want {
			s.logger.Error("persisted rating differs from computed state",
				slog.Int("session_id", sessionID),
				slog.String("kind", string(ref.Kind)),
				slog.Int("participant_id", ref.ID),
				slog.Any("computed", want),
				slog.Any("persisted", got))
		}
	}
}

func (s *recalculationService) FailStaleLocks(ctx context.Context) error {
	if s.lockTTL <= 0 {
		return nil
	}
	sessionIDs, err := s.lockRepo.FailStale(ctx, nil, s.lockTTL)
	if err != nil {
		return err
	}
	for _, sessionID := range sessionIDs {
		s.logger.Warn("marked stale recalculation lock as failed",
			slog.Int("session_id", sessionID),
			slog.Duration("ttl", s.lockTTL))
	}
	return nil
}
