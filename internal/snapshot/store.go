// Package snapshot mirrors committed session state into Redis so a client
// can resynchronize after the in-memory session is gone.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

const (
	defaultTTL   = 24 * time.Hour
	maxTxRetries = 5
)

// Store reads and writes mirrored session states.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl, log: obslog.L()}
}

func (s *Store) keyState(id string) string     { return "arena:session:" + strings.TrimSpace(id) }
func (s *Store) keyUserIdx(user string) string { return "arena:index:user:" + strings.TrimSpace(user) }

// Save writes state unless a newer version is already stored.
func (s *Store) Save(ctx context.Context, state chessdto.SessionState) error {
	if state.SessionID == "" {
		return fmt.Errorf("snapshot without session id")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	key := s.keyState(state.SessionID)
	for i := 0; i < maxTxRetries; i++ {
		err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, key).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if err == nil {
				var prev chessdto.SessionState
				if json.Unmarshal(cur, &prev) == nil && prev.Version >= state.Version {
					return nil
				}
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, raw, s.ttl)
				for _, user := range []string{state.White, state.Black} {
					if user == "" || user == chessdto.AIIdentity {
						continue
					}
					pipe.SAdd(ctx, s.keyUserIdx(user), state.SessionID)
					pipe.Expire(ctx, s.keyUserIdx(user), s.ttl)
				}
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// Load returns the mirrored state or ErrUnknownSession.
func (s *Store) Load(ctx context.Context, id string) (chessdto.SessionState, error) {
	raw, err := s.rdb.Get(ctx, s.keyState(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return chessdto.SessionState{}, fmt.Errorf("session %s: %w", id, chessdto.ErrUnknownSession)
	}
	if err != nil {
		return chessdto.SessionState{}, err
	}
	var st chessdto.SessionState
	if err := json.Unmarshal(raw, &st); err != nil {
		return chessdto.SessionState{}, err
	}
	return st, nil
}

// ByUser lists the mirrored sessions identity played in, most recent first.
// Expired states are pruned from the index.
func (s *Store) ByUser(ctx context.Context, identity string) ([]chessdto.SessionState, error) {
	ids, err := s.rdb.SMembers(ctx, s.keyUserIdx(identity)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]chessdto.SessionState, 0, len(ids))
	for _, id := range ids {
		st, err := s.Load(ctx, id)
		if errors.Is(err, chessdto.ErrUnknownSession) {
			_ = s.rdb.SRem(ctx, s.keyUserIdx(identity), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Active returns identity's unfinished sessions, most recent first.
func (s *Store) Active(ctx context.Context, identity string) ([]chessdto.SessionState, error) {
	all, err := s.ByUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, st := range all {
		if !st.GameOver {
			active = append(active, st)
		}
	}
	return active, nil
}

// Mirror is the post-commit hook that keeps the store current.
type Mirror struct {
	arena.NopHook
	store *Store
}

func NewMirror(store *Store) *Mirror { return &Mirror{store: store} }

func (m *Mirror) Name() string { return "snapshot" }

func (m *Mirror) Committed(ctx context.Context, state chessdto.SessionState) error {
	return m.store.Save(ctx, state)
}
