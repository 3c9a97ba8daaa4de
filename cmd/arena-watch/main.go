package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/watch"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

func main() {
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("ARENA_WS_URL")), "/")
	playerID := strings.TrimSpace(os.Getenv("ARENA_PLAYER_ID"))
	if baseURL == "" {
		baseURL = "ws://127.0.0.1:8080"
	}
	if playerID == "" {
		log.Fatal("ARENA_PLAYER_ID is required")
	}
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <session-id>", os.Args[0])
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	c := watch.NewClient(baseURL+"/ws/games/"+os.Args[1], playerID, watch.WithReconnect(5, time.Second))
	c.OnStateChange(func(state watch.State) {
		log.Printf("stream state: %s", state)
	})
	c.OnEvent(func(ev chessdto.Event) {
		fmt.Println(describe(ev))
	})

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := c.Connect(cctx); err != nil {
		cancel()
		log.Fatalf("connect error: %v", err)
	}
	cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-c.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.Close(ctx)
}

// describe renders one event as a single line.
func describe(ev chessdto.Event) string {
	prefix := fmt.Sprintf("[v%d] %-9s", ev.Version, ev.Type)
	switch ev.Type {
	case chessdto.EventSnapshot:
		var st chessdto.SessionState
		if ev.Decode(&st) == nil {
			return fmt.Sprintf("%s %s vs %s, %s to move, %d plies, fen %s", prefix, st.White, st.Black, st.Turn, len(st.MovesUCI), st.FEN)
		}
	case chessdto.EventMove:
		var mv chessdto.MovePayload
		if ev.Decode(&mv) == nil {
			check := ""
			if mv.InCheck {
				check = " (check)"
			}
			return fmt.Sprintf("%s %s %s %s%s", prefix, mv.Side, mv.By, mv.Move.SAN, check)
		}
	case chessdto.EventGameOver:
		var over chessdto.GameOverPayload
		if ev.Decode(&over) == nil {
			winner := over.Winner
			if winner == "" {
				winner = "nobody"
			}
			return fmt.Sprintf("%s %s, winner %s", prefix, over.Reason, winner)
		}
	case chessdto.EventChat:
		var chat chessdto.ChatPayload
		if ev.Decode(&chat) == nil {
			return fmt.Sprintf("%s <%s> %s", prefix, chat.From, chat.Text)
		}
	case chessdto.EventUndo:
		var u chessdto.UndoPayload
		if ev.Decode(&u) == nil {
			return fmt.Sprintf("%s took back %s", prefix, strings.Join(u.Undone, " "))
		}
	}
	return fmt.Sprintf("%s %s", prefix, string(ev.Payload))
}
