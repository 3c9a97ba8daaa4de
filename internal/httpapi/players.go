package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

func (h *handler) profile(c *fiber.Ctx) error {
	p, err := h.Progress.Profile(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (h *handler) quests(c *fiber.Ctx) error {
	board, err := h.Progress.Quests(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(board)
}

func (h *handler) playerGames(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := h.Records.RecentGames(c.Context(), c.Params("id"), limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []chessdto.GameRecord{}
	}
	return c.JSON(fiber.Map{"games": list})
}

// playerSessions lists mirrored sessions; all=true includes finished ones.
func (h *handler) playerSessions(c *fiber.Ctx) error {
	list := []chessdto.SessionState{}
	if h.Snapshots != nil {
		var err error
		if c.QueryBool("all") {
			list, err = h.Snapshots.ByUser(c.Context(), c.Params("id"))
		} else {
			list, err = h.Snapshots.Active(c.Context(), c.Params("id"))
		}
		if err != nil {
			return err
		}
	}
	return c.JSON(fiber.Map{"sessions": list})
}

func (h *handler) leaderboard(c *fiber.Ctx) error {
	top, err := h.Progress.Leaderboard(c.Context(), c.QueryInt("limit", 10))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"players": top})
}
