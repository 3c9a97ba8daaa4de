package lobby

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

// Seater is the part of the session registry a lobby drives.
type Seater interface {
	CreateWaiting(host string) (*arena.Session, error)
	Seat(sessionID, identity string) (rules.Side, string, error)
	Resign(sessionID, identity string) (chessdto.GameOverPayload, error)
}

type Manager struct {
	rdb   *redis.Client
	store *Store
	seats Seater
	now   func() time.Time
}

func NewManager(rdb *redis.Client, seats Seater) *Manager {
	return &Manager{rdb: rdb, store: NewStore(rdb), seats: seats, now: time.Now}
}

// Make opens a private room for identity and a waiting session behind it.
func (m *Manager) Make(ctx context.Context, identity string, rating int) (*MakeResult, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("identity required: %w", chessdto.ErrBadRequest)
	}
	// 동일 사용자가 동시에 2개 이상 대기방 생성 불가
	if open, err := m.openByCreator(ctx, identity); err != nil {
		return nil, err
	} else if open != nil {
		return nil, fmt.Errorf("already hosting %s: %w", open.Code, chessdto.ErrAlreadyQueued)
	}

	for i := 0; i < 5; i++ {
		c, err := codeGen()
		if err != nil {
			return nil, err
		}
		ok, err := m.rdb.SetNX(ctx, m.store.keyMeta(c), []byte("{}"), ttlLobby).Result()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		sess, err := m.seats.CreateWaiting(identity)
		if err != nil {
			_ = m.rdb.Del(ctx, m.store.keyMeta(c)).Err()
			return nil, err
		}
		meta := &Meta{
			Code:          c,
			State:         StateLobby,
			CreatedAt:     m.now(),
			CreatorID:     identity,
			CreatorRating: rating,
			SessionID:     sess.ID(),
		}
		if err := m.store.SaveMeta(ctx, meta); err != nil {
			return nil, err
		}
		if err := m.store.AddParticipant(ctx, c, identity); err != nil {
			return nil, err
		}
		if err := m.store.AddOpen(ctx, c); err != nil {
			return nil, err
		}
		obslog.L().Info("lobby_make", zap.String("code", c), zap.String("creator_id", identity), zap.String("session_id", sess.ID()))
		return &MakeResult{Code: c, SessionID: sess.ID()}, nil
	}
	return nil, fmt.Errorf("failed to allocate lobby code")
}

func (m *Manager) openByCreator(ctx context.Context, identity string) (*Meta, error) {
	codes, err := m.store.CodesByUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	for _, c := range codes {
		meta, err := m.store.LoadMeta(ctx, c)
		if err != nil {
			return nil, err
		}
		if meta != nil && meta.State == StateLobby && meta.CreatorID == identity {
			return meta, nil
		}
	}
	return nil, nil
}

// Join seats identity as the second player and starts the game with random
// sides. A third participant gets ErrLobbyFull.
func (m *Manager) Join(ctx context.Context, code, identity string) (*JoinResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	identity = strings.TrimSpace(identity)
	if code == "" || identity == "" {
		return nil, fmt.Errorf("code and identity required: %w", chessdto.ErrBadRequest)
	}
	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return nil, err
	}
	if meta == nil || meta.State == StateAborted {
		return nil, fmt.Errorf("lobby %s: %w", code, chessdto.ErrLobbyNotFound)
	}
	if meta.CreatorID == identity {
		return nil, fmt.Errorf("cannot join own lobby: %w", chessdto.ErrBadRequest)
	}

	// WATCH participants to prevent race joins
	partKey := m.store.keyParticipants(code)
	err = m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cnt, err := tx.SCard(ctx, partKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cnt >= 2 {
			return fmt.Errorf("lobby %s: %w", code, chessdto.ErrLobbyFull)
		}
		pipe := tx.TxPipeline()
		pipe.SAdd(ctx, partKey, identity)
		pipe.Expire(ctx, partKey, ttlLobby)
		pipe.SAdd(ctx, m.store.keyUserIdx(identity), code)
		pipe.Expire(ctx, m.store.keyUserIdx(identity), ttlLobby)
		_, pErr := pipe.Exec(ctx)
		return pErr
	}, partKey)
	if errors.Is(err, redis.TxFailedErr) {
		// 동시에 다른 참가자가 먼저 들어온 경우
		err = fmt.Errorf("lobby %s: %w", code, chessdto.ErrLobbyFull)
	}
	if err != nil {
		obslog.L().Warn("lobby_join_error", zap.String("code", code), zap.String("user_id", identity), zap.Error(err))
		return nil, err
	}

	side, host, err := m.seats.Seat(meta.SessionID, identity)
	if err != nil {
		// the waiting session is gone or no longer seatable; the room is dead
		_ = m.store.RemoveParticipant(ctx, code, identity)
		meta.State = StateAborted
		_ = m.store.SaveMeta(ctx, meta)
		_ = m.store.RemoveOpen(ctx, code)
		obslog.L().Warn("lobby_seat_failed", zap.String("code", code), zap.String("session_id", meta.SessionID), zap.Error(err))
		if errors.Is(err, chessdto.ErrUnknownSession) {
			return nil, fmt.Errorf("lobby %s: %w", code, chessdto.ErrLobbyNotFound)
		}
		return nil, err
	}

	if side == rules.White {
		meta.WhiteID, meta.BlackID = identity, host
	} else {
		meta.WhiteID, meta.BlackID = host, identity
	}
	meta.State = StateActive
	if err := m.store.SaveMeta(ctx, meta); err != nil {
		return nil, err
	}
	_ = m.store.RemoveOpen(ctx, code)
	obslog.L().Info("lobby_start_game", zap.String("code", code), zap.String("session_id", meta.SessionID), zap.String("white_id", meta.WhiteID), zap.String("black_id", meta.BlackID))
	return &JoinResult{SessionID: meta.SessionID, Side: side.String(), Opponent: host}, nil
}

// Cancel closes a room nobody joined yet. Only the creator may cancel.
func (m *Manager) Cancel(ctx context.Context, code, identity string) error {
	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return err
	}
	if meta == nil || meta.State == StateAborted {
		return fmt.Errorf("lobby %s: %w", code, chessdto.ErrLobbyNotFound)
	}
	if meta.CreatorID != identity {
		return fmt.Errorf("lobby %s: %w", code, chessdto.ErrNotAParticipant)
	}
	if meta.State != StateLobby {
		return fmt.Errorf("lobby %s: %w", code, chessdto.ErrLobbyFull)
	}
	if _, err := m.seats.Resign(meta.SessionID, identity); err != nil && !errors.Is(err, chessdto.ErrUnknownSession) {
		return err
	}
	meta.State = StateAborted
	if err := m.store.SaveMeta(ctx, meta); err != nil {
		return err
	}
	_ = m.store.RemoveOpen(ctx, meta.Code)
	obslog.L().Info("lobby_cancel", zap.String("code", meta.Code), zap.String("creator_id", identity))
	return nil
}

// Get returns the room behind code.
func (m *Manager) Get(ctx context.Context, code string) (*Meta, error) {
	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("lobby %s: %w", code, chessdto.ErrLobbyNotFound)
	}
	return meta, nil
}

// ListOpen returns rooms waiting for a player, oldest first.
func (m *Manager) ListOpen(ctx context.Context) ([]*Meta, error) {
	out, err := m.store.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
