package records

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

func foolsMate(id string, ended time.Time) arena.FinishedEvent {
	return arena.FinishedEvent{
		SessionID: id,
		Mode:      chessdto.ModePvP,
		White:     "u1",
		Black:     "u2",
		WinnerID:  "u2",
		Winner:    "black",
		Reason:    chessdto.ReasonCheckmate,
		Detail:    "checkmate",
		StartFEN:  rules.StartFEN,
		MovesUCI:  []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		MovesSAN:  []string{"f3", "e5", "g4", "Qh4#"},
		StartedAt: ended.Add(-time.Minute),
		EndedAt:   ended,
	}
}

func TestFromFinishedPGN(t *testing.T) {
	rec := FromFinished(foolsMate("g1", time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)))
	if rec.Result != "0-1" {
		t.Fatalf("result = %q", rec.Result)
	}
	for _, want := range []string{
		`[Date "2026.05.04"]`,
		`[White "u1"]`,
		`[Termination "checkmate"]`,
		`[Result "0-1"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(rec.PGN, want) {
			t.Errorf("pgn missing %q:\n%s", want, rec.PGN)
		}
	}
	if strings.Contains(rec.PGN, "[FEN") {
		t.Errorf("standard start should not carry a FEN tag")
	}
}

func TestResultToken(t *testing.T) {
	cases := []struct{ winner, reason, want string }{
		{"white", chessdto.ReasonResignation, "1-0"},
		{"black", chessdto.ReasonDisconnect, "0-1"},
		{"", chessdto.ReasonDraw, "1/2-1/2"},
		{"", chessdto.ReasonAbandoned, "*"},
	}
	for _, c := range cases {
		if got := resultToken(c.winner, c.reason); got != c.want {
			t.Errorf("resultToken(%q,%q) = %q", c.winner, c.reason, got)
		}
	}
}

func TestSanitizePGN(t *testing.T) {
	if got := sanitizePGN(` a"b\c `); got != "a'b c" {
		t.Fatalf("sanitize = %q", got)
	}
}

func TestHookStoresOnce(t *testing.T) {
	repo := NewMemoryRepository()
	h := NewHook(repo)
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	if err := h.GameFinished(ctx, foolsMate("g1", base)); err != nil {
		t.Fatalf("GameFinished: %v", err)
	}
	if err := h.GameFinished(ctx, foolsMate("g1", base)); err != nil {
		t.Fatalf("duplicate should be ignored: %v", err)
	}
	if err := h.GameFinished(ctx, foolsMate("g2", base.Add(time.Hour))); err != nil {
		t.Fatalf("GameFinished: %v", err)
	}

	list, err := repo.RecentGames(ctx, "u2", 10)
	if err != nil {
		t.Fatalf("RecentGames: %v", err)
	}
	if len(list) != 2 || list[0].SessionID != "g2" || list[1].SessionID != "g1" {
		t.Fatalf("list = %+v", list)
	}
	if list, _ := repo.RecentGames(ctx, "u1", 1); len(list) != 1 {
		t.Fatalf("limit ignored: %d", len(list))
	}

	got, err := repo.GetGame(ctx, "g1")
	if err != nil || got == nil || got.ID == 0 || len(got.MovesSAN) != 4 {
		t.Fatalf("GetGame = %+v, %v", got, err)
	}
	if miss, _ := repo.GetGame(ctx, "nope"); miss != nil {
		t.Fatalf("unexpected record %+v", miss)
	}
}

func TestMemoryRepositoryDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	rec := FromFinished(foolsMate("g1", time.Now()))
	if _, err := repo.InsertGame(context.Background(), &rec); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.InsertGame(context.Background(), &rec); !errors.Is(err, ErrDuplicateGame) {
		t.Fatalf("err = %v", err)
	}
}

func TestComputerHasNoHistory(t *testing.T) {
	repo := NewMemoryRepository()
	ev := foolsMate("g1", time.Now())
	ev.Mode, ev.Black = chessdto.ModeAI, chessdto.AIIdentity
	rec := FromFinished(ev)
	_, _ = repo.InsertGame(context.Background(), &rec)
	if list, _ := repo.RecentGames(context.Background(), chessdto.AIIdentity, 0); len(list) != 0 {
		t.Fatalf("ai history = %d", len(list))
	}
}

func TestClassifyOpening(t *testing.T) {
	code, title := classifyOpening(rules.StartFEN, []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"})
	if !strings.HasPrefix(code, "C") || title == "" {
		t.Fatalf("ruy lopez line = %q %q", code, title)
	}
	if code, _ := classifyOpening(rules.StartFEN, []string{"f2f3", "e7e5", "g2g4", "d8h4"}); !strings.HasPrefix(code, "A0") {
		t.Fatalf("barnes line = %q", code)
	}
	if code, _ := classifyOpening("8/8/8/8/8/8/4K3/4k3 w - - 0 1", []string{"e2e3"}); code != "" {
		t.Fatalf("custom start classified as %q", code)
	}
	if code, _ := classifyOpening(rules.StartFEN, nil); code != "" {
		t.Fatalf("empty game classified as %q", code)
	}
	if code, _ := classifyOpening(rules.StartFEN, []string{"e2e5"}); code != "" {
		t.Fatalf("illegal first move classified as %q", code)
	}
}

func TestPGNCarriesOpening(t *testing.T) {
	rec := FromFinished(foolsMate("g9", time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)))
	if rec.ECO == "" || !strings.Contains(rec.PGN, `[ECO "`+rec.ECO+`"]`) {
		t.Fatalf("eco = %q pgn:\n%s", rec.ECO, rec.PGN)
	}
}
