package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"club-ratings/models"
)

var ErrRatingNotFound = errors.New("rating not found")

type RatingRepository interface {
	Get(ctx context.Context, exec SQLExecutor, kind models.RatingKind, participantID int) (*models.Rating, error)
	// ListByKind returns one projection's ratings ordered by elo descending,
	// ties broken by participant id ascending for a stable leaderboard.
	ListByKind(ctx context.Context, exec SQLExecutor, kind models.RatingKind) ([]*models.Rating, error)
	ListAll(ctx context.Context, exec SQLExecutor) ([]*models.Rating, error)
	Upsert(ctx context.Context, exec SQLExecutor, rating *models.Rating) error
	BatchUpsert(ctx context.Context, exec SQLExecutor, ratings []*models.Rating) error
	DeleteAll(ctx context.Context, exec SQLExecutor) error
}

type postgresRatingRepository struct {
	db *sql.DB
}

func NewPostgresRatingRepository(db *sql.DB) RatingRepository {
	return &postgresRatingRepository{db: db}
}

func (r *postgresRatingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const ratingColumns = `kind, participant_id, elo, matches_played, wins, losses, draws, sets_won, sets_lost, updated_at`

func (r *postgresRatingRepository) Get(ctx context.Context, exec SQLExecutor, kind models.RatingKind, participantID int) (*models.Rating, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT ` + ratingColumns + `
		FROM ratings
		WHERE kind = $1 AND participant_id = $2`

	row := executor.QueryRowContext(ctx, query, kind, participantID)
	rating, err := scanRating(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("failed to scan rating %s/%d: %w", kind, participantID, err)
	}
	return rating, nil
}

func (r *postgresRatingRepository) ListByKind(ctx context.Context, exec SQLExecutor, kind models.RatingKind) ([]*models.Rating, error) {
	query := `
		SELECT ` + ratingColumns + `
		FROM ratings
		WHERE kind = $1
		ORDER BY elo DESC, participant_id ASC`
	return r.queryRatings(ctx, r.getExecutor(exec), query, kind)
}

func (r *postgresRatingRepository) ListAll(ctx context.Context, exec SQLExecutor) ([]*models.Rating, error) {
	query := `
		SELECT ` + ratingColumns + `
		FROM ratings
		ORDER BY kind ASC, participant_id ASC`
	return r.queryRatings(ctx, r.getExecutor(exec), query)
}

func (r *postgresRatingRepository) Upsert(ctx context.Context, exec SQLExecutor, rating *models.Rating) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO ratings
			(kind, participant_id, elo, matches_played, wins, losses, draws, sets_won, sets_lost, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (kind, participant_id) DO UPDATE SET
			elo = EXCLUDED.elo,
			matches_played = EXCLUDED.matches_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			sets_won = EXCLUDED.sets_won,
			sets_lost = EXCLUDED.sets_lost,
			updated_at = NOW()`

	_, err := executor.ExecContext(ctx, query,
		rating.Kind,
		rating.ParticipantID,
		rating.Elo,
		rating.MatchesPlayed,
		rating.Wins,
		rating.Losses,
		rating.Draws,
		rating.SetsWon,
		rating.SetsLost,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rating %s/%d: %w", rating.Kind, rating.ParticipantID, err)
	}
	return nil
}

func (r *postgresRatingRepository) BatchUpsert(ctx context.Context, exec SQLExecutor, ratings []*models.Rating) error {
	for _, rating := range ratings {
		if err := r.Upsert(ctx, exec, rating); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresRatingRepository) DeleteAll(ctx context.Context, exec SQLExecutor) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx, `DELETE FROM ratings`); err != nil {
		return fmt.Errorf("failed to delete ratings: %w", err)
	}
	return nil
}

func scanRating(rowScanner interface{ Scan(...interface{}) error }) (*models.Rating, error) {
	var rating models.Rating
	err := rowScanner.Scan(
		&rating.Kind,
		&rating.ParticipantID,
		&rating.Elo,
		&rating.MatchesPlayed,
		&rating.Wins,
		&rating.Losses,
		&rating.Draws,
		&rating.SetsWon,
		&rating.SetsLost,
		&rating.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *postgresRatingRepository) queryRatings(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.Rating, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	ratings := make([]*models.Rating, 0)
	for rows.Next() {
		rating, scanErr := scanRating(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", scanErr)
		}
		ratings = append(ratings, rating)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rating rows iteration: %w", err)
	}
	return ratings, nil
}
