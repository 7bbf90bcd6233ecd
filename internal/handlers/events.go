package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/turn-engine/internal/logger"
	"github.com/jwebster45206/turn-engine/internal/services/events"
)

const keepaliveInterval = 30 * time.Second

// Subscriber opens a feed of one session's published turn events.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionKey string) (*events.Subscription, error)
}

// EventsHandler relays turns run by workers to the client as server-sent
// events. Payloads are forwarded as published.
// GET /v1/sessions/{key}/events
type EventsHandler struct {
	subscriber Subscriber
	logger     *slog.Logger
	keepalive  time.Duration
}

func NewEventsHandler(subscriber Subscriber, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		subscriber: subscriber,
		logger:     logger,
		keepalive:  keepaliveInterval,
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, h.logger, http.StatusBadRequest, "session key is required in the path", codeInvalidRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, http.StatusInternalServerError, "Streaming not supported.", "")
		return
	}

	ctx := r.Context()
	log := logger.WithSession(h.logger, key)
	sub, err := h.subscriber.Subscribe(ctx, key)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	defer func() {
		if err := sub.Close(); err != nil {
			logger.WithError(log, err).Error("Failed to close subscription")
		}
	}()

	log.Info("SSE connection established", "remote_addr", r.RemoteAddr)

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	// Tells the client the subscription is live.
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	msgs := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			log.Info("SSE client disconnected")
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg.Payload); err != nil {
				logger.WithError(log, err).Warn("Failed to write event")
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				logger.WithError(log, err).Warn("Failed to write keepalive")
				return
			}
			flusher.Flush()
		}
	}
}
