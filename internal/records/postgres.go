package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

// Schema creates the game record table.
const Schema = `
CREATE TABLE IF NOT EXISTS arena_games (
	id          BIGSERIAL PRIMARY KEY,
	session_id  TEXT NOT NULL UNIQUE,
	mode        TEXT NOT NULL,
	white_id    TEXT NOT NULL,
	black_id    TEXT NOT NULL,
	result      TEXT NOT NULL,
	reason      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	start_fen   TEXT NOT NULL,
	eco         TEXT NOT NULL DEFAULT '',
	opening     TEXT NOT NULL DEFAULT '',
	moves_uci   TEXT[] NOT NULL DEFAULT '{}',
	moves_san   TEXT[] NOT NULL DEFAULT '{}',
	pgn         TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS arena_games_white_idx ON arena_games (white_id, ended_at DESC);
CREATE INDEX IF NOT EXISTS arena_games_black_idx ON arena_games (black_id, ended_at DESC);
`

const uniqueViolation = "23505"

type pgrepo struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &pgrepo{db: db}
}

func (r *pgrepo) InsertGame(ctx context.Context, rec *chessdto.GameRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("nil game record")
	}
	const query = `
		INSERT INTO arena_games (
			session_id, mode, white_id, black_id,
			result, reason, detail, start_fen, eco, opening,
			moves_uci, moves_san, pgn, started_at, ended_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		rec.SessionID, rec.Mode, rec.White, rec.Black,
		rec.Result, rec.Reason, rec.Detail, rec.StartFEN, rec.ECO, rec.Opening,
		pq.Array(rec.MovesUCI), pq.Array(rec.MovesSAN), rec.PGN,
		rec.StartedAt, rec.EndedAt,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return 0, ErrDuplicateGame
		}
		return 0, fmt.Errorf("insert game: %w", err)
	}
	return id, nil
}

const selectColumns = `id, session_id, mode, white_id, black_id, result, reason, detail,
	start_fen, eco, opening, moves_uci, moves_san, pgn, started_at, ended_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*chessdto.GameRecord, error) {
	var rec chessdto.GameRecord
	var uci, san pq.StringArray
	if err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.Mode, &rec.White, &rec.Black,
		&rec.Result, &rec.Reason, &rec.Detail, &rec.StartFEN, &rec.ECO, &rec.Opening,
		&uci, &san, &rec.PGN, &rec.StartedAt, &rec.EndedAt,
	); err != nil {
		return nil, err
	}
	rec.MovesUCI = []string(uci)
	rec.MovesSAN = []string(san)
	return &rec, nil
}

func (r *pgrepo) GetGame(ctx context.Context, sessionID string) (*chessdto.GameRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM arena_games WHERE session_id = $1`, sessionID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	return rec, nil
}

func (r *pgrepo) RecentGames(ctx context.Context, playerID string, limit int) ([]chessdto.GameRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM arena_games
		WHERE white_id = $1 OR black_id = $1
		ORDER BY ended_at DESC, id DESC
		LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent games: %w", err)
	}
	defer rows.Close()
	var out []chessdto.GameRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
