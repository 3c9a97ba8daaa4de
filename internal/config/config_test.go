package config

import (
	"testing"
	"time"
)

func TestLoadRequiresRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without REDIS_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.MatchPolicy != "closest" || cfg.AIWorkers != 4 || cfg.AIQueueSize != 64 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.DisconnectGrace != 0 || cfg.SessionIdleTTL != 2*time.Hour || cfg.LongPollTimeout != 25*time.Second {
		t.Fatalf("durations = %+v", cfg)
	}
	if cfg.DatabaseURL != "" || cfg.NotifyURL != "" || cfg.CORSOrigins != "*" || cfg.RateLimitPerMin != 120 {
		t.Fatalf("optional = %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", " redis://r:6379/1 ")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MATCH_POLICY", "FIFO")
	t.Setenv("DISCONNECT_GRACE", "45s")
	t.Setenv("AI_WORKERS", "8")
	t.Setenv("AI_QUEUE_SIZE", "-3")
	t.Setenv("SESSION_IDLE_TTL", "600")
	t.Setenv("SWEEP_INTERVAL", "0")
	t.Setenv("LONGPOLL_TIMEOUT", "soon")
	t.Setenv("ACCESS_LOG", "true")
	t.Setenv("NOTIFY_URL", "http://bot.local/hook")
	t.Setenv("NOTIFY_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cases := []struct {
		name string
		got  any
		want any
	}{
		{"redis trimmed", cfg.RedisURL, "redis://r:6379/1"},
		{"addr", cfg.HTTPAddr, ":9090"},
		{"policy lowercased", cfg.MatchPolicy, "fifo"},
		{"grace", cfg.DisconnectGrace, 45 * time.Second},
		{"workers", cfg.AIWorkers, 8},
		{"negative queue ignored", cfg.AIQueueSize, 64},
		{"seconds form", cfg.SessionIdleTTL, 10 * time.Minute},
		{"zero sweep ignored", cfg.SweepInterval, 5 * time.Minute},
		{"bad duration ignored", cfg.LongPollTimeout, 25 * time.Second},
		{"access log", cfg.AccessLog, true},
		{"token", cfg.NotifyToken, "secret"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestQueueTTLFollowsLongPoll(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("QUEUE_TTL", "")
	t.Setenv("LONGPOLL_TIMEOUT", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.QueueTTL != 50*time.Second {
		t.Fatalf("default queue ttl = %v", cfg.QueueTTL)
	}

	t.Setenv("LONGPOLL_TIMEOUT", "10s")
	if cfg, _ = Load(); cfg.QueueTTL != 20*time.Second {
		t.Fatalf("queue ttl with 10s polls = %v", cfg.QueueTTL)
	}

	t.Setenv("QUEUE_TTL", "90")
	if cfg, _ = Load(); cfg.QueueTTL != 90*time.Second {
		t.Fatalf("explicit queue ttl = %v", cfg.QueueTTL)
	}
}

func TestTokenNeedsURL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("NOTIFY_URL", "")
	t.Setenv("NOTIFY_TOKEN", "secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for orphan token")
	}
}
