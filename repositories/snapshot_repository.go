package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"club-ratings/models"

	"github.com/lib/pq"
)

var ErrSnapshotNotFound = errors.New("rating snapshot not found")

type SnapshotRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, snapshot *models.RatingSnapshot) error
	// GetBefore returns the participant's snapshot for the match immediately
	// preceding matchID in their own played history within the same session,
	// ordered by (round_number, match_order). ErrSnapshotNotFound means the
	// participant has no earlier snapshot there and the caller should start
	// from the session baseline.
	GetBefore(ctx context.Context, exec SQLExecutor, ref models.ParticipantRef, matchID int) (*models.RatingSnapshot, error)
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.RatingSnapshot, error)
	DeleteByMatchIDs(ctx context.Context, exec SQLExecutor, matchIDs []int) error
}

type postgresSnapshotRepository struct {
	db *sql.DB
}

func NewPostgresSnapshotRepository(db *sql.DB) SnapshotRepository {
	return &postgresSnapshotRepository{db: db}
}

func (r *postgresSnapshotRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSnapshotRepository) Upsert(ctx context.Context, exec SQLExecutor, snapshot *models.RatingSnapshot) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO rating_snapshots
			(match_id, kind, participant_id, elo, matches_played, wins, losses, draws, sets_won, sets_lost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (match_id, kind, participant_id) DO UPDATE SET
			elo = EXCLUDED.elo,
			matches_played = EXCLUDED.matches_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			sets_won = EXCLUDED.sets_won,
			sets_lost = EXCLUDED.sets_lost`

	_, err := executor.ExecContext(ctx, query,
		snapshot.MatchID,
		snapshot.Kind,
		snapshot.ParticipantID,
		snapshot.State.Elo,
		snapshot.State.MatchesPlayed,
		snapshot.State.Wins,
		snapshot.State.Losses,
		snapshot.State.Draws,
		snapshot.State.SetsWon,
		snapshot.State.SetsLost,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot for match %d, %s/%d: %w",
			snapshot.MatchID, snapshot.Kind, snapshot.ParticipantID, err)
	}
	return nil
}

func (r *postgresSnapshotRepository) GetBefore(ctx context.Context, exec SQLExecutor, ref models.ParticipantRef, matchID int) (*models.RatingSnapshot, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT s.match_id, s.kind, s.participant_id,
		       s.elo, s.matches_played, s.wins, s.losses, s.draws, s.sets_won, s.sets_lost, s.created_at
		FROM rating_snapshots s
		JOIN matches m ON m.id = s.match_id
		JOIN matches target ON target.id = $3
		WHERE s.kind = $1
		  AND s.participant_id = $2
		  AND m.session_id = target.session_id
		  AND (m.round_number < target.round_number
		       OR (m.round_number = target.round_number AND m.match_order < target.match_order))
		ORDER BY m.round_number DESC, m.match_order DESC
		LIMIT 1`

	row := executor.QueryRowContext(ctx, query, ref.Kind, ref.ID, matchID)
	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to scan snapshot before match %d for %s/%d: %w", matchID, ref.Kind, ref.ID, err)
	}
	return snapshot, nil
}

func (r *postgresSnapshotRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.RatingSnapshot, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT match_id, kind, participant_id,
		       elo, matches_played, wins, losses, draws, sets_won, sets_lost, created_at
		FROM rating_snapshots
		WHERE match_id = $1
		ORDER BY kind ASC, participant_id ASC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for match %d: %w", matchID, err)
	}
	defer rows.Close()

	snapshots := make([]*models.RatingSnapshot, 0)
	for rows.Next() {
		snapshot, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", scanErr)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during snapshot rows iteration: %w", err)
	}
	return snapshots, nil
}

func (r *postgresSnapshotRepository) DeleteByMatchIDs(ctx context.Context, exec SQLExecutor, matchIDs []int) error {
	if len(matchIDs) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `DELETE FROM rating_snapshots WHERE match_id = ANY($1)`

	if _, err := executor.ExecContext(ctx, query, pq.Array(matchIDs)); err != nil {
		return fmt.Errorf("failed to delete snapshots for %d matches: %w", len(matchIDs), err)
	}
	return nil
}

func scanSnapshot(rowScanner interface{ Scan(...interface{}) error }) (*models.RatingSnapshot, error) {
	var s models.RatingSnapshot
	err := rowScanner.Scan(
		&s.MatchID,
		&s.Kind,
		&s.ParticipantID,
		&s.State.Elo,
		&s.State.MatchesPlayed,
		&s.State.Wins,
		&s.State.Losses,
		&s.State.Draws,
		&s.State.SetsWon,
		&s.State.SetsLost,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
