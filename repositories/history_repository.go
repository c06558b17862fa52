package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"club-ratings/models"

	"github.com/lib/pq"
)

type HistoryRepository interface {
	BatchCreate(ctx context.Context, exec SQLExecutor, entries []*models.EloHistoryEntry) error
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.EloHistoryEntry, error)
	ListByParticipant(ctx context.Context, exec SQLExecutor, ref models.ParticipantRef) ([]*models.EloHistoryEntry, error)
	DeleteByMatchIDs(ctx context.Context, exec SQLExecutor, matchIDs []int) error
}

type postgresHistoryRepository struct {
	db *sql.DB
}

func NewPostgresHistoryRepository(db *sql.DB) HistoryRepository {
	return &postgresHistoryRepository{db: db}
}

func (r *postgresHistoryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresHistoryRepository) BatchCreate(ctx context.Context, exec SQLExecutor, entries []*models.EloHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO elo_history (match_id, kind, participant_id, elo_before, elo_after, delta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	for _, entry := range entries {
		err := executor.QueryRowContext(ctx, query,
			entry.MatchID,
			entry.Kind,
			entry.ParticipantID,
			entry.EloBefore,
			entry.EloAfter,
			entry.Delta,
		).Scan(&entry.ID, &entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create history entry for match %d, %s/%d: %w",
				entry.MatchID, entry.Kind, entry.ParticipantID, err)
		}
	}
	return nil
}

func (r *postgresHistoryRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.EloHistoryEntry, error) {
	query := `
		SELECT id, match_id, kind, participant_id, elo_before, elo_after, delta, created_at
		FROM elo_history
		WHERE match_id = $1
		ORDER BY kind ASC, participant_id ASC`
	return r.queryHistory(ctx, r.getExecutor(exec), query, matchID)
}

func (r *postgresHistoryRepository) ListByParticipant(ctx context.Context, exec SQLExecutor, ref models.ParticipantRef) ([]*models.EloHistoryEntry, error) {
	query := `
		SELECT h.id, h.match_id, h.kind, h.participant_id, h.elo_before, h.elo_after, h.delta, h.created_at
		FROM elo_history h
		JOIN matches m ON m.id = h.match_id
		JOIN sessions s ON s.id = m.session_id
		WHERE h.kind = $1 AND h.participant_id = $2
		ORDER BY s.created_at ASC, m.round_number ASC, m.match_order ASC`
	return r.queryHistory(ctx, r.getExecutor(exec), query, ref.Kind, ref.ID)
}

func (r *postgresHistoryRepository) DeleteByMatchIDs(ctx context.Context, exec SQLExecutor, matchIDs []int) error {
	if len(matchIDs) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `DELETE FROM elo_history WHERE match_id = ANY($1)`

	if _, err := executor.ExecContext(ctx, query, pq.Array(matchIDs)); err != nil {
		return fmt.Errorf("failed to delete history for %d matches: %w", len(matchIDs), err)
	}
	return nil
}

func (r *postgresHistoryRepository) queryHistory(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.EloHistoryEntry, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query elo history: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.EloHistoryEntry, 0)
	for rows.Next() {
		var e models.EloHistoryEntry
		if scanErr := rows.Scan(
			&e.ID,
			&e.MatchID,
			&e.Kind,
			&e.ParticipantID,
			&e.EloBefore,
			&e.EloAfter,
			&e.Delta,
			&e.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", scanErr)
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during history rows iteration: %w", err)
	}
	return entries, nil
}
