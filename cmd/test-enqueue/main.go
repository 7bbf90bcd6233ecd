// Command test-enqueue queues one turn for a running worker and prints the
// events it publishes until the turn is done.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jwebster45206/turn-engine/internal/services/events"
	queuesvc "github.com/jwebster45206/turn-engine/internal/services/queue"
	"github.com/jwebster45206/turn-engine/pkg/queue"
	"github.com/jwebster45206/turn-engine/pkg/turn"
)

func main() {
	redisURL := flag.String("redis", "redis://localhost:6379", "Redis URL")
	list := flag.String("queue", queuesvc.DefaultRequestList, "request list name")
	sessionKey := flag.String("session", "", "session key (required)")
	action := flag.String("action", "look around", "player action")
	wait := flag.Duration("wait", 2*time.Minute, "how long to wait for the turn")
	flag.Parse()

	if *sessionKey == "" {
		fmt.Fprintln(os.Stderr, "usage: test-enqueue -session KEY [-action TEXT]")
		os.Exit(2)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), *wait)
	defer cancel()

	client, err := queuesvc.NewClient(ctx, *redisURL, quiet)
	if err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}
	defer client.Close()

	// Subscribe first so no event is missed.
	sub, err := events.NewBroadcaster(client.Redis(), quiet).Subscribe(ctx, *sessionKey)
	if err != nil {
		log.Fatal("Failed to subscribe: ", err)
	}
	defer sub.Close()

	req := queue.NewRequest(*sessionKey, *action, "")
	q := queuesvc.NewTurnQueue(client, *list)
	if err := q.Enqueue(ctx, req); err != nil {
		log.Fatal("Failed to enqueue request: ", err)
	}
	depth, _ := q.Depth(ctx)
	fmt.Printf("Enqueued %s (queue depth %d)\n\n", req.RequestID, depth)

	for {
		payload, ok := sub.Next(ctx)
		if !ok {
			log.Fatal("Stopped waiting for the turn: ", ctx.Err())
		}
		var ev turn.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			fmt.Printf("? %s\n", payload)
			continue
		}
		switch ev.Type {
		case turn.EventToken:
			fmt.Print(ev.Content)
		case turn.EventDone:
			fmt.Println("\n[done]")
			return
		default:
			fmt.Printf("\n[%s] %s\n", ev.Type, compact(ev.Content))
		}
	}
}

func compact(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
