package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	HTTPAddr string

	RedisURL    string
	DatabaseURL string

	MatchPolicy     string
	DisconnectGrace time.Duration
	QueueTTL        time.Duration

	AIWorkers   int
	AIQueueSize int
	AITimeout   time.Duration

	SessionIdleTTL    time.Duration
	FinishedRetention time.Duration
	SweepInterval     time.Duration
	HookTimeout       time.Duration

	LongPollTimeout time.Duration
	SnapshotTTL     time.Duration

	NotifyURL   string
	NotifyToken string

	CORSOrigins     string
	RateLimitPerMin int
	AccessLog       bool

	QuestsFile string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:        ":8080",
		MatchPolicy:     "closest",
		AIWorkers:       4,
		AIQueueSize:     64,
		AITimeout:       5 * time.Second,
		SessionIdleTTL:  2 * time.Hour,
		SweepInterval:   5 * time.Minute,
		HookTimeout:     10 * time.Second,
		LongPollTimeout: 25 * time.Second,
		SnapshotTTL:     24 * time.Hour,
		CORSOrigins:     "*",
		RateLimitPerMin: 120,
	}

	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")

	if v := strings.ToLower(env("MATCH_POLICY")); v == "closest" || v == "fifo" {
		cfg.MatchPolicy = v
	}
	durationVar(&cfg.DisconnectGrace, "DISCONNECT_GRACE", true)

	intVar(&cfg.AIWorkers, "AI_WORKERS")
	intVar(&cfg.AIQueueSize, "AI_QUEUE_SIZE")
	durationVar(&cfg.AITimeout, "AI_TIMEOUT", false)

	durationVar(&cfg.SessionIdleTTL, "SESSION_IDLE_TTL", false)
	// 0 destroys finished sessions as soon as their hooks ran
	durationVar(&cfg.FinishedRetention, "FINISHED_RETENTION", true)
	durationVar(&cfg.SweepInterval, "SWEEP_INTERVAL", false)
	durationVar(&cfg.HookTimeout, "HOOK_TIMEOUT", false)

	durationVar(&cfg.LongPollTimeout, "LONGPOLL_TIMEOUT", false)
	durationVar(&cfg.SnapshotTTL, "SNAPSHOT_TTL", false)
	// a queued player that stops polling GET /match is dropped after two missed polls
	cfg.QueueTTL = 2 * cfg.LongPollTimeout
	durationVar(&cfg.QueueTTL, "QUEUE_TTL", true)

	cfg.NotifyURL = env("NOTIFY_URL")
	cfg.NotifyToken = env("NOTIFY_TOKEN")

	if v := env("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = v
	}
	intVar(&cfg.RateLimitPerMin, "RATE_LIMIT_PER_MIN")
	if v := env("ACCESS_LOG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AccessLog = b
		}
	}

	cfg.QuestsFile = env("QUESTS_FILE")

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.NotifyToken != "" && cfg.NotifyURL == "" {
		return nil, errors.New("NOTIFY_TOKEN set without NOTIFY_URL")
	}

	return cfg, nil
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

// intVar keeps the default unless the value parses to a positive int.
func intVar(dst *int, key string) {
	if v := env(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

// durationVar accepts Go durations ("90s", "2h") or whole seconds.
func durationVar(dst *time.Duration, key string, allowZero bool) {
	v := env(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		n, nerr := strconv.Atoi(v)
		if nerr != nil {
			return
		}
		d = time.Duration(n) * time.Second
	}
	if d < 0 || (d == 0 && !allowZero) {
		return
	}
	*dst = d
}
