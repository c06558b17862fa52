package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"club-ratings/models"

	"github.com/lib/pq"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchSessionInvalid = errors.New("match session conflict or invalid")
	ErrMatchPlayerInvalid  = errors.New("match player conflict or invalid")
	ErrMatchOrderTaken     = errors.New("match order already taken in this round")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// ListBySession returns the session's matches in canonical replay order:
	// (round_number, match_order) ascending.
	ListBySession(ctx context.Context, exec SQLExecutor, sessionID int) ([]*models.Match, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, id int, score1, score2 int) error
	UpdateCorrectedScore(ctx context.Context, exec SQLExecutor, id int, score1, score2 int, editedBy, editReason *string) error
	DeleteBySession(ctx context.Context, exec SQLExecutor, sessionID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, session_id, round_number, match_order, match_type,
	       player1_id, player2_id, player3_id, player4_id,
	       score1, score2, status, edited_by, edit_reason, edited_at, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches
			(session_id, round_number, match_order, match_type,
			 player1_id, player2_id, player3_id, player4_id,
			 score1, score2, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		match.SessionID,
		match.RoundNumber,
		match.MatchOrder,
		match.Type,
		match.Player1ID,
		match.Player2ID,
		match.Player3ID,
		match.Player4ID,
		match.Score1,
		match.Score2,
		match.Status,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE id = $1`

	row := executor.QueryRowContext(ctx, query, id)
	match, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListBySession(ctx context.Context, exec SQLExecutor, sessionID int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE session_id = $1
		ORDER BY round_number ASC, match_order ASC`

	rows, err := executor.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id int, score1, score2 int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET score1 = $1, score2 = $2, status = $3
		WHERE id = $4`

	result, err := executor.ExecContext(ctx, query, score1, score2, models.MatchStatusCompleted, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateCorrectedScore(ctx context.Context, exec SQLExecutor, id int, score1, score2 int, editedBy, editReason *string) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET score1 = $1, score2 = $2, edited_by = $3, edit_reason = $4, edited_at = NOW()
		WHERE id = $5`

	result, err := executor.ExecContext(ctx, query, score1, score2, editedBy, editReason, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) DeleteBySession(ctx context.Context, exec SQLExecutor, sessionID int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM matches WHERE session_id = $1`

	_, err := executor.ExecContext(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete matches for session %d: %w", sessionID, err)
	}
	return nil
}

func scanMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	err := rowScanner.Scan(
		&m.ID,
		&m.SessionID,
		&m.RoundNumber,
		&m.MatchOrder,
		&m.Type,
		&m.Player1ID,
		&m.Player2ID,
		&m.Player3ID,
		&m.Player4ID,
		&m.Score1,
		&m.Score2,
		&m.Status,
		&m.EditedBy,
		&m.EditReason,
		&m.EditedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "matches_session_id_fkey":
			return ErrMatchSessionInvalid
		case "matches_player1_id_fkey", "matches_player2_id_fkey",
			"matches_player3_id_fkey", "matches_player4_id_fkey":
			return ErrMatchPlayerInvalid
		case "matches_session_id_round_number_match_order_key":
			return ErrMatchOrderTaken
		}
	}
	return err
}
