package lobby

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const ttlLobby = 24 * time.Hour

type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) keyMeta(code string) string         { return "lobby:" + strings.ToUpper(strings.TrimSpace(code)) }
func (s *Store) keyParticipants(code string) string { return s.keyMeta(code) + ":participants" }
func (s *Store) keyUserIdx(user string) string      { return "lobby:index:user:" + strings.TrimSpace(user) }
func (s *Store) keyOpen() string                    { return "lobby:open" }

func (s *Store) SaveMeta(ctx context.Context, meta *Meta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keyMeta(meta.Code), raw, ttlLobby).Err(); err != nil {
		return err
	}
	_ = s.rdb.Expire(ctx, s.keyParticipants(meta.Code), ttlLobby).Err()
	return nil
}

// LoadMeta returns nil without error when the code is unknown or expired.
func (s *Store) LoadMeta(ctx context.Context, code string) (*Meta, error) {
	raw, err := s.rdb.Get(ctx, s.keyMeta(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) Participants(ctx context.Context, code string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyParticipants(code)).Result()
}

func (s *Store) AddParticipant(ctx context.Context, code, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	if err := s.rdb.SAdd(ctx, s.keyParticipants(code), userID).Err(); err != nil {
		return err
	}
	_ = s.rdb.Expire(ctx, s.keyParticipants(code), ttlLobby).Err()
	if err := s.rdb.SAdd(ctx, s.keyUserIdx(userID), code).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, s.keyUserIdx(userID), ttlLobby).Err()
}

// RemoveParticipant undoes AddParticipant.
func (s *Store) RemoveParticipant(ctx context.Context, code, userID string) error {
	if err := s.rdb.SRem(ctx, s.keyParticipants(code), userID).Err(); err != nil {
		return err
	}
	return s.rdb.SRem(ctx, s.keyUserIdx(userID), code).Err()
}

func (s *Store) CodesByUser(ctx context.Context, userID string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyUserIdx(userID)).Result()
}

func (s *Store) AddOpen(ctx context.Context, code string) error {
	if err := s.rdb.SAdd(ctx, s.keyOpen(), code).Err(); err != nil {
		return err
	}
	_ = s.rdb.Expire(ctx, s.keyOpen(), ttlLobby).Err()
	return nil
}

func (s *Store) RemoveOpen(ctx context.Context, code string) error {
	return s.rdb.SRem(ctx, s.keyOpen(), code).Err()
}

// ListOpen returns rooms still waiting for a second player. Expired codes are
// dropped from the index on the way.
func (s *Store) ListOpen(ctx context.Context) ([]*Meta, error) {
	codes, err := s.rdb.SMembers(ctx, s.keyOpen()).Result()
	if err != nil {
		return nil, err
	}
	var out []*Meta
	for _, c := range codes {
		m, err := s.LoadMeta(ctx, c)
		if err != nil {
			return nil, err
		}
		if m == nil || m.State != StateLobby {
			_ = s.RemoveOpen(ctx, c)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// codeGen returns `CH-` + 6 upper alnum.
func codeGen() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return fmt.Sprintf("CH-%s", string(b)), nil
}
