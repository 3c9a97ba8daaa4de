package progress

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

// Store persists profiles and daily quest progress.
type Store interface {
	// GetProfile returns nil without error for unknown players.
	GetProfile(ctx context.Context, playerID string) (*chessdto.Profile, error)
	// UpdateProfiles loads the players, creating missing ones, and saves
	// whatever fn leaves in the map, atomically.
	UpdateProfiles(ctx context.Context, ids []string, fn func(map[string]*chessdto.Profile) error) error
	// QuestProgress returns questID → progress for a UTC day.
	QuestProgress(ctx context.Context, playerID, day string) (map[string]int, error)
	// AddQuestProgress adds n capped at target. completed is true only for
	// the call that reached the target.
	AddQuestProgress(ctx context.Context, playerID, day, questID string, n, target int) (completed bool, err error)
	TopProfiles(ctx context.Context, limit int) ([]chessdto.Profile, error)
}

func newProfile(id string, now time.Time) *chessdto.Profile {
	return &chessdto.Profile{PlayerID: id, Rating: InitialRating, CreatedAt: now, UpdatedAt: now}
}

// memstore is the in-process Store used when no DB is configured.
type memstore struct {
	mu       sync.RWMutex
	profiles map[string]*chessdto.Profile
	quests   map[string]map[string]int // playerID|day -> quest -> progress
	now      func() time.Time
}

func NewMemoryStore() Store {
	return &memstore{
		profiles: make(map[string]*chessdto.Profile),
		quests:   make(map[string]map[string]int),
		now:      time.Now,
	}
}

func (m *memstore) GetProfile(_ context.Context, playerID string) (*chessdto.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[playerID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memstore) UpdateProfiles(_ context.Context, ids []string, fn func(map[string]*chessdto.Profile) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	work := make(map[string]*chessdto.Profile, len(ids))
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			cp := *p
			work[id] = &cp
		} else {
			work[id] = newProfile(id, now)
		}
	}
	if err := fn(work); err != nil {
		return err
	}
	for id, p := range work {
		p.UpdatedAt = now
		m.profiles[id] = p
	}
	return nil
}

func (m *memstore) questKey(playerID, day string) string {
	return strings.TrimSpace(playerID) + "|" + day
}

func (m *memstore) QuestProgress(_ context.Context, playerID, day string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int)
	for k, v := range m.quests[m.questKey(playerID, day)] {
		out[k] = v
	}
	return out, nil
}

func (m *memstore) AddQuestProgress(_ context.Context, playerID, day, questID string, n, target int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.questKey(playerID, day)
	q, ok := m.quests[key]
	if !ok {
		q = make(map[string]int)
		m.quests[key] = q
	}
	before := q[questID]
	if before >= target {
		return false, nil
	}
	after := before + n
	if after > target {
		after = target
	}
	q[questID] = after
	return after >= target, nil
}

func (m *memstore) TopProfiles(_ context.Context, limit int) ([]chessdto.Profile, error) {
	m.mu.RLock()
	out := make([]chessdto.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
