// Package progress keeps player ratings, coins and daily quests up to date
// as games start and finish.
package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

type Service struct {
	store   Store
	catalog *Catalog
	now     func() time.Time
	log     *zap.Logger
}

func NewService(store Store, catalog *Catalog) *Service {
	return &Service{store: store, catalog: catalog, now: time.Now, log: obslog.L()}
}

func (s *Service) day() string { return s.now().UTC().Format("2006-01-02") }

func validPlayer(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && id != chessdto.AIIdentity
}

// Profile returns the stored profile or a fresh default one.
func (s *Service) Profile(ctx context.Context, playerID string) (chessdto.Profile, error) {
	p, err := s.store.GetProfile(ctx, playerID)
	if err != nil {
		return chessdto.Profile{}, err
	}
	if p == nil {
		return *newProfile(playerID, s.now()), nil
	}
	return *p, nil
}

// Rating returns playerID's rating, InitialRating when unknown or on error.
func (s *Service) Rating(ctx context.Context, playerID string) int {
	p, err := s.Profile(ctx, playerID)
	if err != nil {
		s.log.Warn("rating_lookup_failed", zap.String("player_id", playerID), zap.Error(err))
		return InitialRating
	}
	return p.Rating
}

// Quests returns today's board for playerID.
func (s *Service) Quests(ctx context.Context, playerID string) (chessdto.QuestBoard, error) {
	day := s.day()
	prog, err := s.store.QuestProgress(ctx, playerID, day)
	if err != nil {
		return chessdto.QuestBoard{}, err
	}
	board := chessdto.QuestBoard{Day: day}
	for _, q := range s.catalog.All() {
		n := prog[q.ID]
		board.Quests = append(board.Quests, chessdto.QuestProgress{
			ID:        q.ID,
			Title:     q.Title,
			Progress:  n,
			Target:    q.Target,
			Reward:    q.Reward,
			Completed: n >= q.Target,
		})
	}
	return board, nil
}

// Leaderboard returns the top players by rating.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]chessdto.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	top, err := s.store.TopProfiles(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]chessdto.LeaderboardEntry, len(top))
	for i, p := range top {
		out[i] = chessdto.LeaderboardEntry{Rank: i + 1, PlayerID: p.PlayerID, Rating: p.Rating, Wins: p.Wins}
	}
	return out, nil
}

// Advance adds n to a quest and pays its reward when it completes.
func (s *Service) Advance(ctx context.Context, playerID, questID string, n int) error {
	if !validPlayer(playerID) || n <= 0 {
		return nil
	}
	q, ok := s.catalog.Get(questID)
	if !ok {
		return nil
	}
	done, err := s.store.AddQuestProgress(ctx, playerID, s.day(), questID, n, q.Target)
	if err != nil || !done {
		return err
	}
	s.log.Info("quest_completed", zap.String("player_id", playerID), zap.String("quest", questID), zap.Int("reward", q.Reward))
	if q.Reward == 0 {
		return nil
	}
	return s.store.UpdateProfiles(ctx, []string{playerID}, func(ps map[string]*chessdto.Profile) error {
		ps[playerID].Coins += q.Reward
		return nil
	})
}

// RecordResult applies rating, coin and quest changes of a finished game.
func (s *Service) RecordResult(ctx context.Context, ev arena.FinishedEvent) error {
	if ev.Reason == chessdto.ReasonAbandoned {
		return nil
	}
	var err error
	if ev.Mode == chessdto.ModeAI {
		err = s.recordAI(ctx, ev)
	} else {
		err = s.recordPvP(ctx, ev)
	}
	if err != nil {
		return err
	}
	if !validPlayer(ev.WinnerID) {
		return nil
	}
	errs := []error{s.Advance(ctx, ev.WinnerID, QuestWin, 1)}
	if ev.Reason == chessdto.ReasonCheckmate {
		errs = append(errs, s.Advance(ctx, ev.WinnerID, QuestCheckmate, 1))
	}
	return errors.Join(errs...)
}

func (s *Service) recordPvP(ctx context.Context, ev arena.FinishedEvent) error {
	if !validPlayer(ev.White) || !validPlayer(ev.Black) || ev.White == ev.Black {
		return fmt.Errorf("pvp result with players %q/%q", ev.White, ev.Black)
	}
	return s.store.UpdateProfiles(ctx, []string{ev.White, ev.Black}, func(ps map[string]*chessdto.Profile) error {
		w, b := ps[ev.White], ps[ev.Black]
		w.GamesPlayed++
		b.GamesPlayed++
		score := 0.5
		switch ev.WinnerID {
		case ev.White:
			score = 1
			w.Wins++
			b.Losses++
			w.Coins += winCoins
		case ev.Black:
			score = 0
			b.Wins++
			w.Losses++
			b.Coins += winCoins
		default:
			w.Draws++
			b.Draws++
			w.Coins += drawCoins
			b.Coins += drawCoins
		}
		oldW, oldB := w.Rating, b.Rating
		w.Rating, b.Rating = Elo(w.Rating, b.Rating, score)
		s.log.Info("rating_update",
			zap.String("session_id", ev.SessionID),
			zap.String("white", ev.White), zap.Int("white_from", oldW), zap.Int("white_to", w.Rating),
			zap.String("black", ev.Black), zap.Int("black_from", oldB), zap.Int("black_to", b.Rating),
		)
		return nil
	})
}

func (s *Service) recordAI(ctx context.Context, ev arena.FinishedEvent) error {
	human := ev.White
	if human == chessdto.AIIdentity {
		human = ev.Black
	}
	if !validPlayer(human) {
		return fmt.Errorf("ai result without human player")
	}
	return s.store.UpdateProfiles(ctx, []string{human}, func(ps map[string]*chessdto.Profile) error {
		p := ps[human]
		p.GamesPlayed++
		switch {
		case ev.WinnerID == human:
			p.Wins++
			p.Rating += aiRatingDelta
			p.Coins += winCoins
		case ev.WinnerID == "":
			p.Draws++
			p.Coins += drawCoins
		default:
			p.Losses++
			p.Rating = clampRating(p.Rating - aiRatingDelta)
		}
		return nil
	})
}

// Hook feeds game events into the service.
type Hook struct {
	arena.NopHook
	svc *Service
}

func NewHook(svc *Service) *Hook { return &Hook{svc: svc} }

func (h *Hook) Name() string { return "progress" }

func (h *Hook) SessionStarted(ctx context.Context, ev arena.StartedEvent) error {
	return errors.Join(
		h.svc.Advance(ctx, ev.White, QuestPlay, 1),
		h.svc.Advance(ctx, ev.Black, QuestPlay, 1),
	)
}

func (h *Hook) Captured(ctx context.Context, ev arena.PieceEvent) error {
	return h.svc.Advance(ctx, ev.PlayerID, QuestCapture, 1)
}

func (h *Hook) Promoted(ctx context.Context, ev arena.PieceEvent) error {
	return h.svc.Advance(ctx, ev.PlayerID, QuestPromote, 1)
}

func (h *Hook) GameFinished(ctx context.Context, ev arena.FinishedEvent) error {
	return h.svc.RecordResult(ctx, ev)
}
