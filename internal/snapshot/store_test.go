package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

func state(id string, v int64, over bool) chessdto.SessionState {
	return chessdto.SessionState{
		SessionID: id,
		Mode:      chessdto.ModePvP,
		Status:    chessdto.StatusInProgress,
		White:     "u1",
		Black:     "u2",
		Version:   v,
		GameOver:  over,
		UpdatedAt: time.Unix(v, 0),
	}
}

func TestSaveIsMonotonic(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, state("g1", 3, false)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, state("g1", 2, false)); err != nil {
		t.Fatalf("Save older: %v", err)
	}
	got, err := s.Load(ctx, "g1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != 3 {
		t.Fatalf("version = %d, older write won", got.Version)
	}
	if err := s.Save(ctx, state("g1", 4, true)); err != nil {
		t.Fatalf("Save newer: %v", err)
	}
	if got, _ := s.Load(ctx, "g1"); got.Version != 4 || !got.GameOver {
		t.Fatalf("got %+v", got)
	}
}

func TestLoadMissing(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Load(context.Background(), "nope"); !errors.Is(err, chessdto.ErrUnknownSession) {
		t.Fatalf("err = %v", err)
	}
}

func TestUserIndexAndExpiry(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, state("g1", 1, true))
	_ = s.Save(ctx, state("g2", 2, false))
	ai := state("g3", 5, false)
	ai.Black = chessdto.AIIdentity
	_ = s.Save(ctx, ai)

	all, err := s.ByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ByUser: %v", err)
	}
	if len(all) != 3 || all[0].SessionID != "g3" {
		t.Fatalf("all = %+v", all)
	}
	active, _ := s.Active(ctx, "u1")
	if len(active) != 2 {
		t.Fatalf("active = %+v", active)
	}
	if ok := mr.Exists(s.keyUserIdx(chessdto.AIIdentity)); ok {
		t.Fatalf("ai identity indexed")
	}

	mr.Del(s.keyState("g2"))
	left, _ := s.ByUser(ctx, "u2")
	if len(left) != 1 || left[0].SessionID != "g1" {
		t.Fatalf("left = %+v", left)
	}
	if members, _ := mr.Members(s.keyUserIdx("u2")); len(members) != 1 {
		t.Fatalf("index not pruned: %v", members)
	}
}

func TestMirrorHook(t *testing.T) {
	s, _ := newTestStore(t)
	m := NewMirror(s)
	if m.Name() != "snapshot" {
		t.Fatalf("name = %s", m.Name())
	}
	if err := m.Committed(context.Background(), state("g9", 1, false)); err != nil {
		t.Fatalf("Committed: %v", err)
	}
	if _, err := s.Load(context.Background(), "g9"); err != nil {
		t.Fatalf("Load: %v", err)
	}
}
