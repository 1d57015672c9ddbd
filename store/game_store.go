package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"shopdemo/api/models"
)

// ErrNotFound is returned when a game or order id does not exist.
var ErrNotFound = errors.New("not found")

const gamesSchema = `
	CREATE TABLE IF NOT EXISTS games (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		release_date TIMESTAMPTZ NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

const gameColumns = `id, name, category, release_date, price, created_at, updated_at`

type GameStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewGameStore(db *sqlx.DB, logger *zap.Logger) *GameStore {
	return &GameStore{db: db, logger: logger}
}

func (s *GameStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, gamesSchema); err != nil {
		return fmt.Errorf("failed to create games table: %w", err)
	}
	s.logger.Info("Games table synchronized")
	return nil
}

func (s *GameStore) ListGames(ctx context.Context) ([]models.Game, error) {
	games := []models.Game{}
	query := `SELECT ` + gameColumns + ` FROM games ORDER BY id`
	if err := s.db.SelectContext(ctx, &games, query); err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return games, nil
}

func (s *GameStore) GetGame(ctx context.Context, id int64) (*models.Game, error) {
	game := &models.Game{}
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	if err := s.db.GetContext(ctx, game, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("game %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get game %d: %w", id, err)
	}
	return game, nil
}

func (s *GameStore) CreateGame(ctx context.Context, req models.CreateGameRequest) (*models.Game, error) {
	game := &models.Game{}
	query := `
		INSERT INTO games (name, category, release_date, price)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + gameColumns
	err := s.db.QueryRowxContext(ctx, query, req.Name, req.Category, req.ReleaseDate.UTC(), *req.Price).StructScan(game)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	s.logger.Info("Game created", zap.Int64("id", game.ID), zap.String("name", game.Name))
	return game, nil
}

// UpdateGame applies the non-nil fields of req.
func (s *GameStore) UpdateGame(ctx context.Context, id int64, req models.UpdateGameRequest) (*models.Game, error) {
	var releaseDate *time.Time
	if req.ReleaseDate != nil {
		t := req.ReleaseDate.UTC()
		releaseDate = &t
	}

	game := &models.Game{}
	query := `
		UPDATE games SET
			name = COALESCE($2, name),
			category = COALESCE($3, category),
			release_date = COALESCE($4, release_date),
			price = COALESCE($5, price),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + gameColumns
	err := s.db.QueryRowxContext(ctx, query, id, req.Name, req.Category, releaseDate, req.Price).StructScan(game)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("game %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update game %d: %w", id, err)
	}
	return game, nil
}

func (s *GameStore) DeleteGame(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete game %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	s.logger.Info("Game deleted", zap.Int64("id", id))
	return nil
}
