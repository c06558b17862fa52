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
	ErrDoubleTeamNotFound      = errors.New("double team not found")
	ErrDoubleTeamPlayerInvalid = errors.New("double team player conflict or invalid")
)

type DoubleTeamRepository interface {
	// GetOrCreateByPair resolves the team for two players, creating it on
	// first use. The pair is normalized before lookup, so argument order
	// never matters, and concurrent first-use converges on one row.
	GetOrCreateByPair(ctx context.Context, exec SQLExecutor, playerID1, playerID2 int) (*models.DoubleTeam, error)
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.DoubleTeam, error)
	ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.DoubleTeam, error)
}

type postgresDoubleTeamRepository struct {
	db *sql.DB
}

func NewPostgresDoubleTeamRepository(db *sql.DB) DoubleTeamRepository {
	return &postgresDoubleTeamRepository{db: db}
}

func (r *postgresDoubleTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresDoubleTeamRepository) GetOrCreateByPair(ctx context.Context, exec SQLExecutor, playerID1, playerID2 int) (*models.DoubleTeam, error) {
	executor := r.getExecutor(exec)
	playerA, playerB := models.NormalizePair(playerID1, playerID2)

	// A losing INSERT under the unique pair constraint affects zero rows;
	// the follow-up SELECT then reads whichever row won.
	insertQuery := `
		INSERT INTO double_teams (player_a_id, player_b_id)
		VALUES ($1, $2)
		ON CONFLICT (player_a_id, player_b_id) DO NOTHING`

	if _, err := executor.ExecContext(ctx, insertQuery, playerA, playerB); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "double_teams_player_a_id_fkey", "double_teams_player_b_id_fkey":
				return nil, ErrDoubleTeamPlayerInvalid
			}
		}
		return nil, fmt.Errorf("failed to create double team for pair (%d, %d): %w", playerA, playerB, err)
	}

	selectQuery := `
		SELECT id, player_a_id, player_b_id, created_at
		FROM double_teams
		WHERE player_a_id = $1 AND player_b_id = $2`

	row := executor.QueryRowContext(ctx, selectQuery, playerA, playerB)
	team, err := r.scanDoubleTeam(row)
	if err != nil {
		return nil, fmt.Errorf("failed to read back double team for pair (%d, %d): %w", playerA, playerB, err)
	}
	return team, nil
}

func (r *postgresDoubleTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.DoubleTeam, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, player_a_id, player_b_id, created_at
		FROM double_teams
		WHERE id = $1`

	row := executor.QueryRowContext(ctx, query, id)
	team, err := r.scanDoubleTeam(row)
	if err != nil {
		if errors.Is(err, ErrDoubleTeamNotFound) {
			return nil, ErrDoubleTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan double team by id %d: %w", id, err)
	}
	return team, nil
}

func (r *postgresDoubleTeamRepository) ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.DoubleTeam, error) {
	executor := r.getExecutor(exec)
	if len(ids) == 0 {
		return []*models.DoubleTeam{}, nil
	}
	query := `
		SELECT id, player_a_id, player_b_id, created_at
		FROM double_teams
		WHERE id = ANY($1)
		ORDER BY id ASC`

	rows, err := executor.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query double teams by ids: %w", err)
	}
	defer rows.Close()

	teams := make([]*models.DoubleTeam, 0)
	for rows.Next() {
		var t models.DoubleTeam
		if scanErr := rows.Scan(&t.ID, &t.PlayerAID, &t.PlayerBID, &t.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan double team row: %w", scanErr)
		}
		teams = append(teams, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during double team rows iteration: %w", err)
	}
	return teams, nil
}

func (r *postgresDoubleTeamRepository) scanDoubleTeam(row *sql.Row) (*models.DoubleTeam, error) {
	var t models.DoubleTeam
	err := row.Scan(&t.ID, &t.PlayerAID, &t.PlayerBID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDoubleTeamNotFound
		}
		return nil, err
	}
	return &t, nil
}
