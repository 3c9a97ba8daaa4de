package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/render"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

func (h *handler) createAIGame(c *fiber.Ctx) error {
	var req chessdto.CreateAIGameRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.Registry.CreateAIGame(identityOf(c), req.Difficulty)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(chessdto.CreateAIGameResponse{SessionID: s.ID(), Side: rules.White.String()})
}

// loadState returns the live snapshot, falling back to the mirrored one once
// the session is gone.
func (h *handler) loadState(ctx context.Context, id string) (chessdto.SessionState, error) {
	st, err := h.Registry.Snapshot(id)
	if err == nil || !errors.Is(err, chessdto.ErrUnknownSession) || h.Snapshots == nil {
		return st, err
	}
	return h.Snapshots.Load(ctx, id)
}

func (h *handler) getSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if c.QueryBool("wait") {
		since, err := strconv.ParseInt(c.Query("version", "0"), 10, 64)
		if err != nil || since < 0 {
			return fmt.Errorf("version must be a non-negative integer: %w", chessdto.ErrBadRequest)
		}
		ready := func() bool {
			s, err := h.Registry.Get(id)
			return err != nil || s.Version() > since
		}
		h.Hub.Waits().Wait(c.Context(), id, h.opts.LongPollTimeout, ready)
	}
	st, err := h.loadState(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (h *handler) submitMove(c *fiber.Ctx) error {
	var req chessdto.MoveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	out, err := h.Registry.SubmitMove(c.Context(), c.Params("id"), identityOf(c), req.From, req.To, req.Promotion)
	if err != nil {
		return err
	}
	return c.JSON(chessdto.MoveResponse{Events: out.Events})
}

func (h *handler) resign(c *fiber.Ctx) error {
	over, err := h.Registry.Resign(c.Params("id"), identityOf(c))
	if err != nil {
		return err
	}
	return c.JSON(over)
}

func (h *handler) undo(c *fiber.Ctx) error {
	payload, err := h.Registry.Undo(c.Params("id"), identityOf(c))
	if err != nil {
		return err
	}
	return c.JSON(payload)
}

func (h *handler) chat(c *fiber.Ctx) error {
	var req chessdto.ChatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ev, err := h.Registry.Chat(c.Params("id"), identityOf(c), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(ev)
}

func (h *handler) boardPNG(c *fiber.Ctx) error {
	id := c.Params("id")
	st, err := h.loadState(c.Context(), id)
	if err != nil {
		return err
	}
	var pos rules.Position
	if s, err := h.Registry.Get(id); err == nil {
		pos = s.Board()
	} else {
		e, err := rules.NewFromFEN(st.FEN)
		if err != nil {
			return err
		}
		pos = e.Position()
	}

	opts := render.Options{
		Header:   headerFor(st),
		Turn:     st.Turn + " to move",
		Material: st.Material.White - st.Material.Black,
	}
	if st.GameOver {
		opts.Turn = "game over"
	}
	if identityOf(c) == st.Black || c.Query("side") == rules.Black.String() {
		opts.Perspective = rules.Black
	}
	if n := len(st.MovesUCI); n > 0 {
		last := st.MovesUCI[n-1]
		from, errFrom := rules.ParseSquare(last[:2])
		to, errTo := rules.ParseSquare(last[2:4])
		if errFrom == nil && errTo == nil {
			opts.Highlight = &render.Highlight{From: from, To: to}
		}
	}

	img, err := h.Renderer.RenderPNG(c.Context(), pos, opts)
	if err != nil {
		h.log.Warn("board_render_failed", zap.String("session_id", id), zap.Error(err))
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(img)
}

func headerFor(st chessdto.SessionState) string {
	white, black := st.White, st.Black
	if white == "" {
		white = "?"
	}
	if black == "" {
		black = "?"
	}
	return strings.TrimSpace(white + " vs " + black)
}
