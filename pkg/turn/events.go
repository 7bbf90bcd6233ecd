package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/jwebster45206/turn-engine/pkg/state"
)

// EventType names one kind of turn stream event.
type EventType string

const (
	EventSessionID   EventType = "session_id"
	EventPrefix      EventType = "prefix"
	EventToken       EventType = "token"
	EventSectionEnd  EventType = "section_end"
	EventRetry       EventType = "retry"
	EventFallback    EventType = "fallback"
	EventEndingStart EventType = "ending_start"
	EventStats       EventType = "stats"
	EventWorldState  EventType = "world_state"
	EventNPCStatus   EventType = "npc_status"
	EventError       EventType = "error"
	EventDone        EventType = "done"
)

// Event is one message on the turn stream.
type Event struct {
	Type    EventType `json:"type"`
	Content any       `json:"content,omitempty"`
}

// PrefixContent opens an attempt's narration section.
type PrefixContent struct {
	Attempt    int    `json:"attempt"`
	SceneID    string `json:"scene_id"`
	Title      string `json:"title,omitempty"`
	Background string `json:"background,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

// RetryContent tells the client to discard the partial narration.
type RetryContent struct {
	Attempt int `json:"attempt"`
	Max     int `json:"max"`
}

// EndingContent announces that the session reached an ending.
type EndingContent struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ErrorContent carries a user-visible failure.
type ErrorContent struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WorldView is the world_state event payload.
type WorldView struct {
	Time        state.GameTime  `json:"time"`
	TurnCount   int             `json:"turn_count"`
	StuckCount  int             `json:"stuck_count"`
	GlobalFlags map[string]bool `json:"global_flags"`
	Location    string          `json:"location"`
	Ending      string          `json:"ending,omitempty"`
}

// Emitter receives turn events in order. An error from Emit means the
// receiver is gone.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, ev Event) error

func (f EmitterFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Collector records events in memory.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Emit(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// Events returns a copy of everything emitted so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}

// Types returns the emitted event types in order.
func (c *Collector) Types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventType, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

// Text concatenates the content of every token event.
func (c *Collector) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	for _, ev := range c.events {
		if t, ok := ev.Content.(string); ok && ev.Type == EventToken {
			b.WriteString(t)
		}
	}
	return b.String()
}

// WriteSSE writes ev as a single server-sent event data line.
func WriteSSE(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}

// statsEvent, worldEvent and npcEvent are the derived views sent after every
// finished turn.
func statsEvent(m *state.Manager) Event {
	p := *m.Player
	return Event{Type: EventStats, Content: &p}
}

func worldEvent(m *state.Manager) Event {
	w := m.World
	return Event{Type: EventWorldState, Content: WorldView{
		Time:        w.Time,
		TurnCount:   w.TurnCount,
		StuckCount:  w.StuckCount,
		GlobalFlags: w.GlobalFlags,
		Location:    w.Location,
		Ending:      w.Ending,
	}}
}

func npcEvent(m *state.Manager) Event {
	npcs := make([]state.NPC, 0, len(m.World.NPCs))
	for name, npc := range m.World.NPCs {
		npc.Name = name
		npcs = append(npcs, npc)
	}
	sort.Slice(npcs, func(i, j int) bool { return npcs[i].Name < npcs[j].Name })
	return Event{Type: EventNPCStatus, Content: npcs}
}
