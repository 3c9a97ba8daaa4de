// Package records stores finished games with their PGN.
package records

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

var ErrDuplicateGame = errors.New("game record already exists")

type Repository interface {
	InsertGame(ctx context.Context, rec *chessdto.GameRecord) (int64, error)
	GetGame(ctx context.Context, sessionID string) (*chessdto.GameRecord, error)
	// RecentGames lists a player's games, newest first.
	RecentGames(ctx context.Context, playerID string, limit int) ([]chessdto.GameRecord, error)
}

// memrepo is used when no database is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	bySession map[string]*chessdto.GameRecord
	byPlayer  map[string][]*chessdto.GameRecord
}

func NewMemoryRepository() Repository {
	return &memrepo{
		bySession: make(map[string]*chessdto.GameRecord),
		byPlayer:  make(map[string][]*chessdto.GameRecord),
	}
}

func (m *memrepo) InsertGame(_ context.Context, rec *chessdto.GameRecord) (int64, error) {
	if rec == nil || strings.TrimSpace(rec.SessionID) == "" {
		return 0, errors.New("empty game record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bySession[rec.SessionID]; ok {
		return 0, ErrDuplicateGame
	}
	m.nextID++
	cp := *rec
	cp.ID = m.nextID
	m.bySession[cp.SessionID] = &cp
	for _, p := range []string{cp.White, cp.Black} {
		if p == "" || p == chessdto.AIIdentity {
			continue
		}
		m.byPlayer[p] = append(m.byPlayer[p], &cp)
	}
	return cp.ID, nil
}

func (m *memrepo) GetGame(_ context.Context, sessionID string) (*chessdto.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.bySession[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memrepo) RecentGames(_ context.Context, playerID string, limit int) ([]chessdto.GameRecord, error) {
	m.mu.RLock()
	list := m.byPlayer[playerID]
	items := make([]chessdto.GameRecord, 0, len(list))
	for _, r := range list {
		items = append(items, *r)
	}
	m.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
