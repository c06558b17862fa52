package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"club-ratings/live"
	"club-ratings/models"
	"club-ratings/repositories"
	"club-ratings/storage"
)

type SessionService interface {
	Create(ctx context.Context, name string) (*models.Session, error)
	GetByID(ctx context.Context, id int) (*models.Session, error)
	List(ctx context.Context) ([]*models.Session, error)
	Complete(ctx context.Context, id int) (*models.Session, error)
	// Delete removes the chronologically latest completed session and
	// rebuilds every rating from the remaining match log. Deleting any
	// other session is rejected: later sessions' ratings causally depend
	// on earlier ones, so a partial rebuild would be unsound.
	Delete(ctx context.Context, id int) error
}

type sessionService struct {
	db           *sql.DB
	sessionRepo  repositories.SessionRepository
	matchRepo    repositories.MatchRepository
	ratingRepo   repositories.RatingRepository
	snapshotRepo repositories.SnapshotRepository
	historyRepo  repositories.HistoryRepository
	baseline     BaselineService
	archive      storage.ArchiveStore
	hub          *live.Hub
	logger       *slog.Logger
}

func NewSessionService(
	db *sql.DB,
	sessionRepo repositories.SessionRepository,
	matchRepo repositories.MatchRepository,
	ratingRepo repositories.RatingRepository,
	snapshotRepo repositories.SnapshotRepository,
	historyRepo repositories.HistoryRepository,
	baseline BaselineService,
	archive storage.ArchiveStore,
	hub *live.Hub,
	logger *slog.Logger,
) SessionService {
	return &sessionService{
		db:           db,
		sessionRepo:  sessionRepo,
		matchRepo:    matchRepo,
		ratingRepo:   ratingRepo,
		snapshotRepo: snapshotRepo,
		historyRepo:  historyRepo,
		baseline:     baseline,
		archive:      archive,
		hub:          hub,
		logger:       logger,
	}
}

func (s *sessionService) Create(ctx context.Context, name string) (*models.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrSessionNameRequired
	}
	session := &models.Session{
		Name:   name,
		Status: models.SessionStatusActive,
	}
	if err := s.sessionRepo.Create(ctx, nil, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *sessionService) GetByID(ctx context.Context, id int) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %d: %w", id, err)
	}
	matches, err := s.matchRepo.ListBySession(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for session %d: %w", id, err)
	}
	session.Matches = matchValues(matches)
	return session, nil
}

func (s *sessionService) List(ctx context.Context) ([]*models.Session, error) {
	sessions, err := s.sessionRepo.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *sessionService) Complete(ctx context.Context, id int) (*models.Session, error) {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusActive {
		return nil, ErrSessionNotActive
	}

	now := time.Now()
	if err := s.sessionRepo.UpdateStatus(ctx, nil, id, models.SessionStatusCompleted, &now); err != nil {
		return nil, fmt.Errorf("failed to complete session %d: %w", id, err)
	}
	session.Status = models.SessionStatusCompleted
	session.CompletedAt = &now

	if s.hub != nil {
		s.hub.BroadcastToRoom(strconv.Itoa(id), live.EventSessionCompleted, session)
	}
	return session, nil
}

func (s *sessionService) Delete(ctx context.Context, id int) error {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.Status != models.SessionStatusCompleted {
		return ErrSessionNotCompleted
	}
	latest, err := s.sessionRepo.GetLatestCompleted(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to find latest completed session: %w", err)
	}
	if latest.ID != id {
		return ErrSessionNotLatest
	}

	if err := s.archiveSession(ctx, session); err != nil {
		return err
	}

	matchIDs := make([]int, 0, len(session.Matches))
	for _, m := range session.Matches {
		matchIDs = append(matchIDs, m.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin session deletion transaction: %w", err)
	}
	if err := s.deleteSessionData(ctx, tx, id, matchIDs); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed during session deletion",
				slog.Int("session_id", id), slog.Any("error", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session deletion: %w", err)
	}

	if err := s.rebuildRatings(ctx); err != nil {
		// The match log is already consistent; a failed rebuild leaves
		// rating rows behind the log until the next rebuild.
		return fmt.Errorf("session %d deleted, but rating rebuild failed: %w", id, err)
	}

	s.logger.Info("session deleted and ratings rebuilt",
		slog.Int("session_id", id),
		slog.Int("matches_removed", len(matchIDs)))

	if s.hub != nil {
		s.hub.BroadcastToRoom(strconv.Itoa(id), live.EventSessionDeleted, map[string]int{"session_id": id})
	}
	return nil
}

func (s *sessionService) deleteSessionData(ctx context.Context, tx *sql.Tx, sessionID int, matchIDs []int) error {
	if err := s.historyRepo.DeleteByMatchIDs(ctx, tx, matchIDs); err != nil {
		return err
	}
	if err := s.snapshotRepo.DeleteByMatchIDs(ctx, tx, matchIDs); err != nil {
		return err
	}
	if err := s.matchRepo.DeleteBySession(ctx, tx, sessionID); err != nil {
		return err
	}
	if err := s.sessionRepo.Delete(ctx, tx, sessionID); err != nil {
		return err
	}
	return nil
}

// archiveSession stores the session's raw rows as JSON before deletion. An
// archive failure aborts the deletion; an unconfigured store only logs.
func (s *sessionService) archiveSession(ctx context.Context, session *models.Session) error {
	if s.archive == nil {
		s.logger.Warn("archive store not configured, deleting session without archive",
			slog.Int("session_id", session.ID))
		return nil
	}

	payload, err := json.Marshal(struct {
		Session    *models.Session `json:"session"`
		ArchivedAt time.Time       `json:"archived_at"`
	}{Session: session, ArchivedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal session %d archive: %w", session.ID, err)
	}

	key := fmt.Sprintf("sessions/%d.json", session.ID)
	result, err := s.archive.Put(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to archive session %d before deletion: %w", session.ID, err)
	}
	s.logger.Info("session archived",
		slog.Int("session_id", session.ID),
		slog.String("key", result.Key))
	return nil
}

// rebuildRatings re-derives every rating row by replaying all remaining
// completed sessions in chronological order from the default baseline.
// Nothing is ever subtracted from a rating: the K-factor depends on the
// cumulative match count, so undoing means re-deriving forward.
func (s *sessionService) rebuildRatings(ctx context.Context) error {
	if err := s.ratingRepo.DeleteAll(ctx, nil); err != nil {
		return err
	}

	sessions, err := s.sessionRepo.ListCompleted(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to list completed sessions for rebuild: %w", err)
	}

	states := make(map[models.ParticipantRef]models.RatingState)
	for _, session := range sessions {
		states, _, err = s.baseline.ReplaySession(ctx, session.ID, states)
		if err != nil {
			return fmt.Errorf("failed to replay session %d during rebuild: %w", session.ID, err)
		}
		if err := s.ratingRepo.BatchUpsert(ctx, nil, statesToRatings(states)); err != nil {
			return fmt.Errorf("failed to persist ratings after session %d replay: %w", session.ID, err)
		}
	}
	return nil
}
