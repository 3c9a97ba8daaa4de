package records

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

// FromFinished builds the stored record of a finished session.
func FromFinished(ev arena.FinishedEvent) chessdto.GameRecord {
	rec := chessdto.GameRecord{
		SessionID: ev.SessionID,
		Mode:      ev.Mode,
		White:     ev.White,
		Black:     ev.Black,
		Result:    resultToken(ev.Winner, ev.Reason),
		Reason:    ev.Reason,
		Detail:    ev.Detail,
		StartFEN:  ev.StartFEN,
		MovesUCI:  append([]string(nil), ev.MovesUCI...),
		MovesSAN:  append([]string(nil), ev.MovesSAN...),
		StartedAt: ev.StartedAt,
		EndedAt:   ev.EndedAt,
	}
	rec.ECO, rec.Opening = classifyOpening(ev.StartFEN, ev.MovesUCI)
	rec.PGN = BuildPGN(rec)
	return rec
}

// Hook stores every finished game once.
type Hook struct {
	arena.NopHook
	repo Repository
	log  *zap.Logger
}

func NewHook(repo Repository) *Hook { return &Hook{repo: repo, log: obslog.L()} }

func (h *Hook) Name() string { return "records" }

func (h *Hook) GameFinished(ctx context.Context, ev arena.FinishedEvent) error {
	rec := FromFinished(ev)
	id, err := h.repo.InsertGame(ctx, &rec)
	if errors.Is(err, ErrDuplicateGame) {
		return nil
	}
	if err != nil {
		return err
	}
	h.log.Debug("game_recorded", zap.String("session_id", ev.SessionID), zap.Int64("id", id), zap.String("result", rec.Result))
	return nil
}
