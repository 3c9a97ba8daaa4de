package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

// Schema creates the tables the postgres store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS arena_profiles (
	player_id    TEXT PRIMARY KEY,
	rating       INTEGER NOT NULL DEFAULT 1000,
	coins        INTEGER NOT NULL DEFAULT 0,
	games_played INTEGER NOT NULL DEFAULT 0,
	wins         INTEGER NOT NULL DEFAULT 0,
	losses       INTEGER NOT NULL DEFAULT 0,
	draws        INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS arena_profiles_rating_idx ON arena_profiles (rating DESC);
CREATE TABLE IF NOT EXISTS arena_quest_progress (
	player_id TEXT NOT NULL,
	day       DATE NOT NULL,
	quest_id  TEXT NOT NULL,
	progress  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (player_id, day, quest_id)
);`

type pgstore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) Store {
	return &pgstore{db: db}
}

const selectProfile = `
	SELECT player_id, rating, coins, games_played, wins, losses, draws, created_at, updated_at
	FROM arena_profiles`

func scanProfile(row interface{ Scan(...any) error }) (*chessdto.Profile, error) {
	var p chessdto.Profile
	if err := row.Scan(&p.PlayerID, &p.Rating, &p.Coins, &p.GamesPlayed, &p.Wins, &p.Losses, &p.Draws, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pgstore) GetProfile(ctx context.Context, playerID string) (*chessdto.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, selectProfile+` WHERE player_id = $1`, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return p, nil
}

func (r *pgstore) UpdateProfiles(ctx context.Context, ids []string, fn func(map[string]*chessdto.Profile) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// rows are locked in player_id order
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO arena_profiles (player_id) SELECT unnest($1::text[]) ON CONFLICT (player_id) DO NOTHING`,
		pq.Array(sorted)); err != nil {
		return fmt.Errorf("insert profiles: %w", err)
	}
	rows, err := tx.QueryContext(ctx, selectProfile+` WHERE player_id = ANY($1) ORDER BY player_id FOR UPDATE`, pq.Array(sorted))
	if err != nil {
		return fmt.Errorf("lock profiles: %w", err)
	}
	work := make(map[string]*chessdto.Profile, len(ids))
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan profile: %w", err)
		}
		work[p.PlayerID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if err := fn(work); err != nil {
		return err
	}
	for _, p := range work {
		if _, err := tx.ExecContext(ctx, `
			UPDATE arena_profiles SET
				rating = $2, coins = $3, games_played = $4, wins = $5, losses = $6, draws = $7, updated_at = NOW()
			WHERE player_id = $1`,
			p.PlayerID, p.Rating, p.Coins, p.GamesPlayed, p.Wins, p.Losses, p.Draws); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
	}
	return tx.Commit()
}

func (r *pgstore) QuestProgress(ctx context.Context, playerID, day string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT quest_id, progress FROM arena_quest_progress WHERE player_id = $1 AND day = $2`, playerID, day)
	if err != nil {
		return nil, fmt.Errorf("select quests: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan quest: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (r *pgstore) AddQuestProgress(ctx context.Context, playerID, day, questID string, n, target int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var before int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO arena_quest_progress (player_id, day, quest_id, progress) VALUES ($1, $2, $3, 0)
		ON CONFLICT (player_id, day, quest_id) DO UPDATE SET progress = arena_quest_progress.progress
		RETURNING progress`, playerID, day, questID).Scan(&before)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return false, fmt.Errorf("upsert quest (%s): %w", pqErr.Code.Name(), err)
		}
		return false, fmt.Errorf("upsert quest: %w", err)
	}
	if before >= target {
		return false, nil
	}
	after := min(before+n, target)
	if _, err := tx.ExecContext(ctx,
		`UPDATE arena_quest_progress SET progress = $4 WHERE player_id = $1 AND day = $2 AND quest_id = $3`,
		playerID, day, questID, after); err != nil {
		return false, fmt.Errorf("update quest: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return after >= target, nil
}

func (r *pgstore) TopProfiles(ctx context.Context, limit int) ([]chessdto.Profile, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, selectProfile+` ORDER BY rating DESC, player_id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer rows.Close()
	out := make([]chessdto.Profile, 0, limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
