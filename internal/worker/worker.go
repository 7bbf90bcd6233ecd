// Package worker runs queued turns through the turn pipeline and publishes
// their events for SSE relays.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jwebster45206/turn-engine/internal/errutil"
	"github.com/jwebster45206/turn-engine/internal/logger"
	"github.com/jwebster45206/turn-engine/pkg/chat"
	"github.com/jwebster45206/turn-engine/pkg/queue"
	"github.com/jwebster45206/turn-engine/pkg/turn"
)

const (
	// dequeueTimeout bounds each blocking pop so Stop is noticed promptly.
	dequeueTimeout = time.Second
	errorBackoff   = time.Second
)

// Queue yields queued turn requests.
type Queue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Request, error)
}

// Runner executes one turn.
type Runner interface {
	Run(ctx context.Context, req chat.TurnRequest, emit turn.Emitter) (*turn.Result, error)
}

// Publisher hands out an event sink per session.
type Publisher interface {
	Emitter(sessionKey string) turn.Emitter
}

// Worker processes turn requests from the queue one at a time. It takes no
// session lock: two queued turns for one session are run as they arrive and
// the later save wins.
type Worker struct {
	id        string
	queue     Queue
	runner    Runner
	publisher Publisher
	log       *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a new worker instance
func New(q Queue, runner Runner, publisher Publisher, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = "worker-" + ulid.Make().String()[20:]
	}

	return &Worker{
		id:        workerID,
		queue:     q,
		runner:    runner,
		publisher: publisher,
		log:       log.With("worker_id", workerID),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// ID returns the worker's identifier.
func (w *Worker) ID() string {
	return w.id
}

// Start processes requests until Stop is called. It blocks.
func (w *Worker) Start() error {
	defer close(w.done)
	w.log.Info("Worker starting")

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			return nil
		default:
		}

		if err := w.processNextRequest(); err != nil {
			w.log.Error("Error processing request", "error", err)
			select {
			case <-w.ctx.Done():
			case <-time.After(errorBackoff):
			}
		}
	}
}

// Stop asks the worker to finish its current turn and waits until it has.
// The context bounds the wait.
func (w *Worker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() {
		w.log.Info("Worker stop requested")
		w.cancel()
	})
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker %s did not stop: %w", w.id, ctx.Err())
	}
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.Dequeue(w.ctx, dequeueTimeout)
	if err != nil {
		if w.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		return nil
	}

	w.processRequest(req)
	return nil
}

// processRequest runs one turn. Turn failures are reported on the event
// stream by the pipeline and only logged here.
func (w *Worker) processRequest(req *queue.Request) {
	log := logger.WithSession(logger.WithRequestID(w.log, req.RequestID), req.SessionKey)
	emit := w.publisher.Emitter(req.SessionKey)

	if err := req.Validate(); err != nil {
		logger.WithError(log, err).Warn("Dropping invalid turn request")
		ev := turn.Event{Type: turn.EventError, Content: turn.ErrorContent{Message: err.Error()}}
		if perr := emit.Emit(w.ctx, ev); perr != nil {
			logger.WithError(log, perr).Warn("Failed to publish request error")
		}
		return
	}

	log.Info("Processing turn request", "queued_for", time.Since(req.EnqueuedAt).String())
	start := time.Now()

	// The turn runs detached from Stop so a shutdown never leaves a
	// half-streamed turn behind.
	res, err := w.runner.Run(context.WithoutCancel(w.ctx), req.TurnRequest(), emit)
	if err != nil {
		errutil.LogError(log, "Turn request failed", err)
		return
	}

	log.Info("Turn request processed",
		"outcome", string(res.Outcome),
		"turn", res.TurnCount,
		"attempts", res.Attempts,
		"duration_ms", time.Since(start).Milliseconds())
}
