package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/domain"

	_ "github.com/lib/pq"
)

var ErrNotFound = errors.New("game not found")

// Repository archives finished games.
type Repository interface {
	SaveGame(ctx context.Context, rec *domain.GameRecord) error
	GetGame(ctx context.Context, matchUUID string) (*domain.GameRecord, error)
	Recent(ctx context.Context, limit int) ([]*domain.GameRecord, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS xiangqi_games (
	id            BIGSERIAL PRIMARY KEY,
	match_uuid    UUID NOT NULL UNIQUE,
	mode          TEXT NOT NULL,
	engine_side   TEXT NOT NULL DEFAULT '',
	engine_preset TEXT NOT NULL DEFAULT '',
	result        TEXT NOT NULL,
	result_method TEXT NOT NULL,
	moves         JSONB NOT NULL,
	final_fen     TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT,
	engine_moves  INT NOT NULL DEFAULT 0,
	engine_errors INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS xiangqi_games_ended_at_idx ON xiangqi_games (ended_at DESC);`

type pgRepository struct {
	db *sql.DB
}

// Open connects to PostgreSQL and makes sure the archive table exists.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &pgRepository{db: db}, nil
}

func (r *pgRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveGame upserts by match UUID; a reopened and refinished match replaces its row.
func (r *pgRepository) SaveGame(ctx context.Context, rec *domain.GameRecord) error {
	if rec == nil {
		return fmt.Errorf("nil game record")
	}
	moves, err := json.Marshal(normalizeMoves(rec.Moves))
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	duration := rec.Duration.Milliseconds()
	if duration < 0 {
		duration = 0
	}

	const query = `
		INSERT INTO xiangqi_games (
			match_uuid, mode, engine_side, engine_preset,
			result, result_method, moves, final_fen,
			started_at, ended_at, duration_ms, engine_moves, engine_errors
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (match_uuid) DO UPDATE SET
			mode=EXCLUDED.mode,
			engine_side=EXCLUDED.engine_side,
			engine_preset=EXCLUDED.engine_preset,
			result=EXCLUDED.result,
			result_method=EXCLUDED.result_method,
			moves=EXCLUDED.moves,
			final_fen=EXCLUDED.final_fen,
			started_at=EXCLUDED.started_at,
			ended_at=EXCLUDED.ended_at,
			duration_ms=EXCLUDED.duration_ms,
			engine_moves=EXCLUDED.engine_moves,
			engine_errors=EXCLUDED.engine_errors
		RETURNING id`

	err = r.db.QueryRowContext(ctx, query,
		rec.MatchUUID, rec.Mode, rec.EngineSide, rec.EnginePreset,
		rec.Result, strings.TrimSpace(rec.ResultMethod), moves, rec.FinalFEN,
		rec.StartedAt, rec.EndedAt, duration, rec.EngineMoves, rec.EngineErrors,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("upsert xiangqi game: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT
		id, match_uuid, mode, engine_side, engine_preset,
		result, result_method, moves, final_fen,
		started_at, ended_at, duration_ms, engine_moves, engine_errors
	FROM xiangqi_games`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.GameRecord, error) {
	var (
		rec        domain.GameRecord
		movesJSON  []byte
		durationMS sql.NullInt64
	)
	if err := row.Scan(
		&rec.ID, &rec.MatchUUID, &rec.Mode, &rec.EngineSide, &rec.EnginePreset,
		&rec.Result, &rec.ResultMethod, &movesJSON, &rec.FinalFEN,
		&rec.StartedAt, &rec.EndedAt, &durationMS, &rec.EngineMoves, &rec.EngineErrors,
	); err != nil {
		return nil, err
	}
	if durationMS.Valid {
		rec.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if err := json.Unmarshal(movesJSON, &rec.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves: %w", err)
	}
	return &rec, nil
}

func (r *pgRepository) GetGame(ctx context.Context, matchUUID string) (*domain.GameRecord, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE match_uuid = $1`, matchUUID)
	rec, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select xiangqi game: %w", err)
	}
	return rec, nil
}

func (r *pgRepository) Recent(ctx context.Context, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select xiangqi games: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.GameRecord, 0, limit)
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan xiangqi game: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func normalizeMoves(moves []string) []string {
	if moves == nil {
		return []string{}
	}
	return moves
}
