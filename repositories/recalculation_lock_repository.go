package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"club-ratings/models"
)

var (
	ErrRecalculationLockHeld    = errors.New("recalculation already in progress for this session")
	ErrRecalculationLockNotHeld = errors.New("recalculation lock not held by this token")
)

type RecalculationLockRepository interface {
	// Acquire transitions the session's lock to running via a single
	// conditional upsert. Only one caller can win: the condition admits
	// idle, done and failed locks, plus running locks whose started_at is
	// older than staleAfter (crash takeover). Losers get
	// ErrRecalculationLockHeld. A staleAfter of zero disables takeover.
	Acquire(ctx context.Context, exec SQLExecutor, sessionID int, token string, staleAfter time.Duration) error
	// Release moves a running lock to done or failed, but only for the
	// token that acquired it, so a taken-over attempt cannot clobber its
	// successor's lock.
	Release(ctx context.Context, exec SQLExecutor, sessionID int, token string, status models.RecalculationStatus) error
	Get(ctx context.Context, exec SQLExecutor, sessionID int) (*models.RecalculationLock, error)
	// FailStale marks every running lock older than staleAfter as failed
	// and returns the affected session ids.
	FailStale(ctx context.Context, exec SQLExecutor, staleAfter time.Duration) ([]int, error)
}

type postgresRecalculationLockRepository struct {
	db *sql.DB
}

func NewPostgresRecalculationLockRepository(db *sql.DB) RecalculationLockRepository {
	return &postgresRecalculationLockRepository{db: db}
}

func (r *postgresRecalculationLockRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRecalculationLockRepository) Acquire(ctx context.Context, exec SQLExecutor, sessionID int, token string, staleAfter time.Duration) error {
	executor := r.getExecutor(exec)

	query := `
		INSERT INTO recalculation_locks (session_id, status, token, started_at, updated_at)
		VALUES ($1, 'running', $2, NOW(), NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			status = 'running',
			token = EXCLUDED.token,
			started_at = NOW(),
			updated_at = NOW()
		WHERE recalculation_locks.status IN ('idle', 'done', 'failed')`
	args := []interface{}{sessionID, token}

	if staleAfter > 0 {
		query += `
		   OR (recalculation_locks.status = 'running'
		       AND recalculation_locks.started_at < NOW() - make_interval(secs => $3))`
		args = append(args, staleAfter.Seconds())
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to acquire recalculation lock for session %d: %w", sessionID, err)
	}
	return checkAffectedRows(result, ErrRecalculationLockHeld)
}

func (r *postgresRecalculationLockRepository) Release(ctx context.Context, exec SQLExecutor, sessionID int, token string, status models.RecalculationStatus) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE recalculation_locks
		SET status = $1, updated_at = NOW()
		WHERE session_id = $2 AND token = $3 AND status = 'running'`

	result, err := executor.ExecContext(ctx, query, status, sessionID, token)
	if err != nil {
		return fmt.Errorf("failed to release recalculation lock for session %d: %w", sessionID, err)
	}
	return checkAffectedRows(result, ErrRecalculationLockNotHeld)
}

func (r *postgresRecalculationLockRepository) Get(ctx context.Context, exec SQLExecutor, sessionID int) (*models.RecalculationLock, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT session_id, status, token, started_at, updated_at
		FROM recalculation_locks
		WHERE session_id = $1`

	lock := &models.RecalculationLock{}
	err := executor.QueryRowContext(ctx, query, sessionID).Scan(
		&lock.SessionID,
		&lock.Status,
		&lock.Token,
		&lock.StartedAt,
		&lock.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Never recalculated: report an idle lock rather than an error.
			return &models.RecalculationLock{
				SessionID: sessionID,
				Status:    models.RecalculationStatusIdle,
			}, nil
		}
		return nil, fmt.Errorf("failed to scan recalculation lock for session %d: %w", sessionID, err)
	}
	return lock, nil
}

func (r *postgresRecalculationLockRepository) FailStale(ctx context.Context, exec SQLExecutor, staleAfter time.Duration) ([]int, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE recalculation_locks
		SET status = 'failed', updated_at = NOW()
		WHERE status = 'running' AND started_at < NOW() - make_interval(secs => $1)
		RETURNING session_id`

	rows, err := executor.QueryContext(ctx, query, staleAfter.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to fail stale recalculation locks: %w", err)
	}
	defer rows.Close()

	sessionIDs := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan stale lock session id: %w", scanErr)
		}
		sessionIDs = append(sessionIDs, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during stale lock rows iteration: %w", err)
	}
	return sessionIDs, nil
}
