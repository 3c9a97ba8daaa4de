// Package httpapi exposes sessions, matchmaking and player data over HTTP
// and WebSocket.
package httpapi

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/progress"
	"github.com/park285/cheese-arena/internal/records"
	"github.com/park285/cheese-arena/internal/render"
	"github.com/park285/cheese-arena/internal/snapshot"
	"github.com/park285/cheese-arena/internal/syncwire"
)

// Deps are the collaborators the handlers drive. Snapshots may be nil.
type Deps struct {
	Registry  *arena.Registry
	Hub       *syncwire.Hub
	Lobbies   *lobby.Manager
	Snapshots *snapshot.Store
	Progress  *progress.Service
	Records   records.Repository
	Renderer  render.Renderer
	Logger    *zap.Logger
}

type Options struct {
	LongPollTimeout time.Duration
	CORSOrigins     string
	RateLimitPerMin int
	// AccessLog enables the per-request log line.
	AccessLog bool
}

type handler struct {
	Deps
	opts Options
	log  *zap.Logger
}

// NewApp builds the fiber application with every route registered.
func NewApp(deps Deps, opts Options) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = obslog.L()
	}
	if deps.Renderer == nil {
		deps.Renderer = render.NewRenderer()
	}
	if opts.LongPollTimeout <= 0 {
		opts.LongPollTimeout = syncwire.DefaultWaitTimeout
	}
	if strings.TrimSpace(opts.CORSOrigins) == "" {
		opts.CORSOrigins = "*"
	}
	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = 120
	}
	h := &handler{Deps: deps, opts: opts, log: deps.Logger}

	app := fiber.New(fiber.Config{
		ErrorHandler:          h.errorHandler,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          opts.LongPollTimeout + 10*time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${status} ${method} ${path} ${latency}\n",
			Output: zap.NewStdLog(deps.Logger.Named("http")).Writer(),
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CORSOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept," + headerPlayerID,
	}))

	app.Get("/health", h.health)

	app.Get("/ws/games/:id", requireIdentity(), sessionParam(), wsUpgrade(), websocket.New(h.handleWS))

	api := app.Group("", requireIdentity(), limiter.New(limiter.Config{
		Max:        opts.RateLimitPerMin,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return identityOf(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
				"code":  "RATE_LIMITED",
			})
		},
	}))

	api.Post("/games/ai", h.createAIGame)
	api.Get("/games/:id", sessionParam(), h.getSession)
	api.Get("/games/:id/board.png", sessionParam(), h.boardPNG)
	api.Post("/games/:id/moves", sessionParam(), h.submitMove)
	api.Post("/games/:id/resign", sessionParam(), h.resign)
	api.Post("/games/:id/undo", sessionParam(), h.undo)
	api.Post("/games/:id/chat", sessionParam(), h.chat)

	api.Post("/match", h.enqueue)
	api.Get("/match", h.matchStatus)
	api.Delete("/match", h.leaveQueue)

	api.Get("/lobbies", h.listLobbies)
	api.Post("/lobbies", h.createLobby)
	api.Get("/lobbies/:code", h.getLobby)
	api.Post("/lobbies/:code/join", h.joinLobby)
	api.Delete("/lobbies/:code", h.cancelLobby)

	api.Get("/players/:id", h.profile)
	api.Get("/players/:id/quests", h.quests)
	api.Get("/players/:id/games", h.playerGames)
	api.Get("/players/:id/sessions", h.playerSessions)
	api.Get("/leaderboard", h.leaderboard)

	return app
}

func (h *handler) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"time":     time.Now().Unix(),
		"sessions": h.Registry.Len(),
		"queued":   h.Registry.QueueLen(),
	})
}
