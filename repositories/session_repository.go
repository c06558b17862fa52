package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"club-ratings/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, session *models.Session) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Session, error)
	List(ctx context.Context, exec SQLExecutor) ([]*models.Session, error)
	// ListCompletedBefore returns completed sessions created strictly before
	// the given instant, oldest first. This ordering is what makes session
	// baselines reproducible.
	ListCompletedBefore(ctx context.Context, exec SQLExecutor, before time.Time) ([]*models.Session, error)
	ListCompleted(ctx context.Context, exec SQLExecutor) ([]*models.Session, error)
	GetLatestCompleted(ctx context.Context, exec SQLExecutor) (*models.Session, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.SessionStatus, completedAt *time.Time) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) SessionRepository {
	return &postgresSessionRepository{db: db}
}

func (r *postgresSessionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSessionRepository) Create(ctx context.Context, exec SQLExecutor, session *models.Session) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO sessions (name, status)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, session.Name, session.Status).
		Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *postgresSessionRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Session, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, name, status, created_at, completed_at
		FROM sessions
		WHERE id = $1`

	row := executor.QueryRowContext(ctx, query, id)
	return r.scanSession(row)
}

func (r *postgresSessionRepository) List(ctx context.Context, exec SQLExecutor) ([]*models.Session, error) {
	query := `
		SELECT id, name, status, created_at, completed_at
		FROM sessions
		ORDER BY created_at DESC, id DESC`
	return r.querySessions(ctx, r.getExecutor(exec), query)
}

func (r *postgresSessionRepository) ListCompletedBefore(ctx context.Context, exec SQLExecutor, before time.Time) ([]*models.Session, error) {
	query := `
		SELECT id, name, status, created_at, completed_at
		FROM sessions
		WHERE status = 'completed' AND created_at < $1
		ORDER BY created_at ASC, id ASC`
	return r.querySessions(ctx, r.getExecutor(exec), query, before)
}

func (r *postgresSessionRepository) ListCompleted(ctx context.Context, exec SQLExecutor) ([]*models.Session, error) {
	query := `
		SELECT id, name, status, created_at, completed_at
		FROM sessions
		WHERE status = 'completed'
		ORDER BY created_at ASC, id ASC`
	return r.querySessions(ctx, r.getExecutor(exec), query)
}

func (r *postgresSessionRepository) GetLatestCompleted(ctx context.Context, exec SQLExecutor) (*models.Session, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, name, status, created_at, completed_at
		FROM sessions
		WHERE status = 'completed'
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	row := executor.QueryRowContext(ctx, query)
	return r.scanSession(row)
}

func (r *postgresSessionRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.SessionStatus, completedAt *time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE sessions
		SET status = $1, completed_at = $2
		WHERE id = $3`

	result, err := executor.ExecContext(ctx, query, status, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update session %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrSessionNotFound)
}

func (r *postgresSessionRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM sessions WHERE id = $1`

	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrSessionNotFound)
}

func (r *postgresSessionRepository) scanSession(row *sql.Row) (*models.Session, error) {
	session := &models.Session{}
	err := row.Scan(&session.ID, &session.Name, &session.Status, &session.CreatedAt, &session.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return session, nil
}

func (r *postgresSessionRepository) querySessions(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.Session, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		var s models.Session
		if scanErr := rows.Scan(&s.ID, &s.Name, &s.Status, &s.CreatedAt, &s.CompletedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", scanErr)
		}
		sessions = append(sessions, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during session rows iteration: %w", err)
	}
	return sessions, nil
}
