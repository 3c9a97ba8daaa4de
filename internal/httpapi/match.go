package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/syncwire"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

func ticketResponse(t arena.MatchTicket) chessdto.MatchResponse {
	if t.Pending {
		return chessdto.MatchResponse{Pending: true}
	}
	return chessdto.MatchResponse{SessionID: t.SessionID, Side: t.Side.String(), Opponent: t.Opponent}
}

func (h *handler) ratingFor(c *fiber.Ctx, requested int) int {
	if requested > 0 {
		return requested
	}
	return h.Progress.Rating(c.Context(), identityOf(c))
}

func (h *handler) enqueue(c *fiber.Ctx) error {
	var req chessdto.MatchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := h.Registry.Enqueue(identityOf(c), h.ratingFor(c, req.Rating))
	if err != nil {
		return err
	}
	status := fiber.StatusCreated
	if t.Pending {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(ticketResponse(t))
}

// matchStatus reports the caller's queue entry; with wait=true it parks
// until the caller is paired or the long-poll window ends.
func (h *handler) matchStatus(c *fiber.Ctx) error {
	identity := identityOf(c)
	if c.QueryBool("wait") {
		ready := func() bool {
			t, ok := h.Registry.MatchStatus(identity)
			return !ok || !t.Pending
		}
		if !h.Hub.Waits().Wait(c.Context(), syncwire.MatchKey(identity), h.opts.LongPollTimeout, ready) && c.Context().Err() != nil {
			// the caller went away while parked
			h.Registry.LeaveQueue(identity)
			return c.Context().Err()
		}
	}
	t, ok := h.Registry.MatchStatus(identity)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(chessdto.ErrorResponse{Error: "not queued", Code: "NOT_QUEUED"})
	}
	return c.JSON(ticketResponse(t))
}

func (h *handler) leaveQueue(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"left": h.Registry.LeaveQueue(identityOf(c))})
}

func lobbyCode(c *fiber.Ctx) string { return strings.ToUpper(strings.TrimSpace(c.Params("code"))) }

func (h *handler) createLobby(c *fiber.Ctx) error {
	var req chessdto.LobbyCreateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.Lobbies.Make(c.Context(), identityOf(c), h.ratingFor(c, req.Rating))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(chessdto.LobbyResponse{Code: res.Code, SessionID: res.SessionID})
}

func (h *handler) joinLobby(c *fiber.Ctx) error {
	res, err := h.Lobbies.Join(c.Context(), lobbyCode(c), identityOf(c))
	if err != nil {
		return err
	}
	return c.JSON(chessdto.MatchResponse{SessionID: res.SessionID, Side: res.Side, Opponent: res.Opponent})
}

func (h *handler) cancelLobby(c *fiber.Ctx) error {
	if err := h.Lobbies.Cancel(c.Context(), lobbyCode(c), identityOf(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handler) getLobby(c *fiber.Ctx) error {
	meta, err := h.Lobbies.Get(c.Context(), lobbyCode(c))
	if err != nil {
		return err
	}
	return c.JSON(meta)
}

func (h *handler) listLobbies(c *fiber.Ctx) error {
	list, err := h.Lobbies.ListOpen(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"lobbies": list})
}
