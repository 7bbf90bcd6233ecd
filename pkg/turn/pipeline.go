// Package turn runs one player action through the narrator and the effect
// applier and streams the result as ordered events.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jwebster45206/turn-engine/internal/errutil"
	"github.com/jwebster45206/turn-engine/pkg/chat"
	"github.com/jwebster45206/turn-engine/pkg/prompts"
	"github.com/jwebster45206/turn-engine/pkg/scenario"
	"github.com/jwebster45206/turn-engine/pkg/session"
	"github.com/jwebster45206/turn-engine/pkg/state"
	"github.com/jwebster45206/turn-engine/pkg/storage"
)

const (
	DefaultMaxAttempts  = 3
	DefaultModelTimeout = 45 * time.Second
)

// Narrator streams model output for a prepared prompt.
type Narrator interface {
	Stream(ctx context.Context, messages []chat.ChatMessage, model string) (<-chan chat.StreamChunk, error)
}

// Scenarios resolves scenario seeds by id.
type Scenarios interface {
	Get(id string) (*scenario.Scenario, bool)
}

// Recorder receives turn metrics.
type Recorder interface {
	TurnFinished(outcome string)
	AttemptRetried(reason string)
	EffectApplied(kind string)
	EffectRejected(code string)
	NarratorStreamed(d time.Duration)
	EventEmitted(eventType string)
}

type nopRecorder struct{}

func (nopRecorder) TurnFinished(string)            {}
func (nopRecorder) AttemptRetried(string)          {}
func (nopRecorder) EffectApplied(string)           {}
func (nopRecorder) EffectRejected(string)          {}
func (nopRecorder) NarratorStreamed(time.Duration) {}
func (nopRecorder) EventEmitted(string)            {}

// Outcome is how a turn finished.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeFallback  Outcome = "fallback"
	OutcomeAborted   Outcome = "aborted"
	OutcomeFailed    Outcome = "failed"
)

// Result summarizes a finished turn.
type Result struct {
	TurnID     string
	SessionKey string
	Outcome    Outcome
	Attempts   int
	TurnCount  int
	Ending     string

	// Player and World are the state after the turn. They are set even when
	// the save failed, so the caller can retry it.
	Player  *state.PlayerState
	World   *state.WorldState
	SaveErr error
}

// Pipeline runs turns. It holds no per-session state and takes no locks:
// two turns on one session race and the last save wins.
type Pipeline struct {
	store        storage.SessionStore
	narrator     Narrator
	scenarios    Scenarios
	logger       *slog.Logger
	tracer       trace.Tracer
	metrics      Recorder
	maxAttempts  int
	modelTimeout time.Duration
	model        string
}

// NewPipeline creates a pipeline with three attempts per turn and a 45s
// narrator timeout.
func NewPipeline(store storage.SessionStore, narrator Narrator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		store:        store,
		narrator:     narrator,
		logger:       logger,
		tracer:       noop.NewTracerProvider().Tracer("turn"),
		metrics:      nopRecorder{},
		maxAttempts:  DefaultMaxAttempts,
		modelTimeout: DefaultModelTimeout,
	}
}

// WithScenarios sets the scenario lookup used for prompts, move costs and endings.
// Returns the Pipeline for method chaining
func (p *Pipeline) WithScenarios(s Scenarios) *Pipeline {
	p.scenarios = s
	return p
}

// WithTracer sets the tracer for turn spans.
// Returns the Pipeline for method chaining
func (p *Pipeline) WithTracer(t trace.Tracer) *Pipeline {
	if t != nil {
		p.tracer = t
	}
	return p
}

// WithMetrics sets the metrics recorder.
// Returns the Pipeline for method chaining
func (p *Pipeline) WithMetrics(r Recorder) *Pipeline {
	if r != nil {
		p.metrics = r
	}
	return p
}

// WithMaxAttempts sets how many narrator attempts a turn gets before falling back.
// Returns the Pipeline for method chaining
func (p *Pipeline) WithMaxAttempts(n int) *Pipeline {
	if n > 0 {
		p.maxAttempts = n
	}
	return p
}

// WithModelTimeout bounds each narrator attempt.
// Returns the Pipeline for method chaining
func (p *Pipeline) WithModelTimeout(d time.Duration) *Pipeline {
	if d > 0 {
		p.modelTimeout = d
	}
	return p
}

// WithModel sets the model used when a request names none.
// Returns the Pipeline for method chaining
func (p *Pipeline) WithModel(model string) *Pipeline {
	p.model = model
	return p
}

// run carries the per-turn values through the pipeline stages.
type run struct {
	p       *Pipeline
	req     chat.TurnRequest
	emitter Emitter
	log     *slog.Logger
	res     *Result
	sc      *scenario.Scenario
	opening bool
	gone    bool
}

// Run executes one turn and streams its events to emit. The returned error is
// non-nil when the turn could not run at all, was aborted, or failed to save.
// A fallback turn is not an error.
func (p *Pipeline) Run(ctx context.Context, req chat.TurnRequest, emit Emitter) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid turn request: %w", err)
	}

	r := &run{
		p:       p,
		req:     req,
		emitter: emit,
		res:     &Result{TurnID: ulid.Make().String(), Outcome: OutcomeFailed},
	}
	r.log = p.logger.With("turn_id", r.res.TurnID)

	ctx, span := p.tracer.Start(ctx, "turn.run", trace.WithAttributes(
		attribute.String("turn.id", r.res.TurnID),
	))
	defer span.End()

	err := r.execute(ctx)
	span.SetAttributes(
		attribute.String("session.key", r.res.SessionKey),
		attribute.String("turn.outcome", string(r.res.Outcome)),
		attribute.Int("turn.attempts", r.res.Attempts),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.metrics.TurnFinished(string(r.res.Outcome))
	return r.res, err
}

func (r *run) execute(ctx context.Context) error {
	sess, err := r.open(ctx)
	if err != nil {
		errutil.LogError(r.log, "Failed to open session", err)
		r.emitQuiet(ctx, errorEvent(err))
		return err
	}
	r.res.SessionKey = sess.SessionKey
	r.log = r.log.With("session_key", sess.SessionKey)

	if err := r.emit(ctx, Event{Type: EventSessionID, Content: sess.SessionKey}); err != nil {
		return r.abort(err)
	}
	if sess.Ended() {
		err := sessionEnded(sess.SessionKey, sess.WorldState.Ending)
		r.log.Info("Turn rejected on ended session", "ending", sess.WorldState.Ending)
		r.emitQuiet(ctx, errorEvent(err))
		return err
	}

	if r.p.scenarios != nil {
		r.sc, _ = r.p.scenarios.Get(sess.ScenarioID)
	}
	base := sess.Manager()
	if r.sc != nil {
		base.WithScenes(r.sc.SceneIDs())
	}
	r.opening = base.World.TurnCount == 0 && chat.IsStartCommand(r.req.Action)

	var reason string
	for attempt := 1; attempt <= r.p.maxAttempts; attempt++ {
		r.res.Attempts = attempt
		work, ending, err := r.attempt(ctx, attempt, base, reason)
		if err == nil {
			return r.commit(ctx, work, ending, OutcomeCommitted)
		}
		if ctx.Err() != nil || errors.Is(err, errEmitterGone) {
			return r.abort(err)
		}

		code := errutil.Code(err)
		r.p.metrics.EffectRejected(code)
		r.log.Warn("Turn attempt rejected", "attempt", attempt, "max", r.p.maxAttempts, "code", code, "error", err)
		if attempt == r.p.maxAttempts {
			break
		}

		r.p.metrics.AttemptRetried(code)
		if err := r.emit(ctx, Event{Type: EventRetry, Content: RetryContent{Attempt: attempt, Max: r.p.maxAttempts}}); err != nil {
			return r.abort(err)
		}
		reason = retryReason(err)
	}

	if err := ctx.Err(); err != nil {
		return r.abort(err)
	}
	r.log.Warn("All attempts failed, using fallback narration", "attempts", r.res.Attempts)
	work := base.Clone()
	return r.commit(ctx, work, "", OutcomeFallback)
}

// open loads the request's session, creating one first when no key was given.
func (r *run) open(ctx context.Context) (*session.Session, error) {
	key := r.req.SessionKey
	if key == "" {
		var err error
		if key, err = r.p.store.Create(ctx, r.req.ScenarioID); err != nil {
			return nil, err
		}
		r.log.Info("Session created for turn", "session_key", key, "scenario_id", r.req.ScenarioID)
	}
	return r.p.store.Load(ctx, key)
}

// attempt runs one Prefix → Narrating → EffectCheck pass. On success it returns
// a working copy of base with the effects applied.
func (r *run) attempt(ctx context.Context, n int, base *state.Manager, reason string) (*state.Manager, string, error) {
	ctx, span := r.p.tracer.Start(ctx, "turn.attempt", trace.WithAttributes(attribute.Int("turn.attempt", n)))
	defer span.End()

	if err := r.emit(ctx, r.prefix(n, base)); err != nil {
		return nil, "", err
	}

	msgs, err := prompts.New().
		WithState(base).
		WithScenario(r.sc).
		WithAction(r.req.Action).
		AsOpening(r.opening).
		WithRetry(reason).
		Build()
	if err != nil {
		return nil, "", err
	}

	block, err := r.narrate(ctx, msgs)
	if err != nil {
		span.RecordError(err)
		return nil, "", err
	}

	work := base.Clone()
	ending, err := r.apply(work, block)
	if err != nil {
		span.RecordError(err)
		return nil, "", err
	}
	span.SetAttributes(attribute.Int("turn.effects", len(block.Effects)))
	return work, ending, nil
}

func (r *run) prefix(n int, m *state.Manager) Event {
	pc := PrefixContent{Attempt: n, SceneID: m.World.Location}
	if r.sc != nil {
		if scene, ok := r.sc.Scene(m.World.Location); ok {
			pc.Title = scene.Title
			pc.Background = scene.Background
			if m.Hint() != state.HintNone {
				pc.Hint = scene.Hint
			}
		}
	}
	return Event{Type: EventPrefix, Content: pc}
}

// narrate streams one narrator reply, forwarding prose as tokens, and parses
// the effects block that follows it.
func (r *run) narrate(ctx context.Context, msgs []chat.ChatMessage) (*state.Block, error) {
	sctx, cancel := context.WithTimeout(ctx, r.p.modelTimeout)
	defer cancel()
	sctx, span := r.p.tracer.Start(sctx, "narrator.stream")
	defer span.End()

	start := time.Now()
	defer func() { r.p.metrics.NarratorStreamed(time.Since(start)) }()

	model := r.req.Model
	if model == "" {
		model = r.p.model
	}
	chunks, err := r.p.narrator.Stream(sctx, msgs, model)
	if err != nil {
		return nil, r.streamError(ctx, sctx, err)
	}

	seg := NewSegmenter()
	for done := false; !done; {
		select {
		case <-sctx.Done():
			return nil, r.streamError(ctx, sctx, sctx.Err())
		case c, ok := <-chunks:
			if !ok {
				done = true
				break
			}
			if c.Content != "" {
				prose, end := seg.Feed(c.Content)
				if prose != "" {
					if err := r.emit(ctx, Event{Type: EventToken, Content: prose}); err != nil {
						return nil, err
					}
				}
				if end {
					if err := r.emit(ctx, Event{Type: EventSectionEnd}); err != nil {
						return nil, err
					}
				}
			}
			if c.Done {
				if c.Err != nil {
					return nil, r.streamError(ctx, sctx, c.Err)
				}
				done = true
			}
		}
	}

	if rest := seg.Flush(); rest != "" {
		if err := r.emit(ctx, Event{Type: EventToken, Content: rest}); err != nil {
			return nil, err
		}
	}
	return seg.Parse()
}

// streamError classifies a narrator failure: caller cancellation aborts, the
// attempt deadline is a model timeout, anything else is a narrator failure.
func (r *run) streamError(ctx, sctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(sctx.Err(), context.DeadlineExceeded):
		return state.ModelTimeout(r.p.modelTimeout)
	default:
		return narratorFailure(err)
	}
}

// apply is the EffectCheck stage. It validates the block's ending, applies the
// effects atomically to work and resolves any ending the turn reached.
func (r *run) apply(work *state.Manager, block *state.Block) (string, error) {
	if block.Ending != "" {
		if _, ok := r.endingFor(block.Ending); !ok {
			return "", unknownEnding(block.Ending)
		}
	}

	applier := state.NewApplier(r.log).WithObserver(func(kind state.Kind, err error) {
		if err == nil {
			r.p.metrics.EffectApplied(string(kind))
		}
	})
	if r.sc != nil {
		applier.WithMoveCost(r.sc.Settings.HPLossPerMove, r.sc.Settings.SanityLossPerMove)
	}
	res, err := applier.Apply(work, block.Effects)
	if err != nil {
		return "", err
	}

	switch {
	case r.opening:
	case res.Progress:
		work.RecordProgress()
	default:
		work.RecordAttempt(r.req.Action)
	}

	if block.Ending != "" {
		return block.Ending, nil
	}
	return r.vitalsEnding(work), nil
}

// vitalsEnding returns the scenario ending triggered by zero hp or sanity.
func (r *run) vitalsEnding(m *state.Manager) string {
	if r.sc == nil {
		return ""
	}
	set := r.sc.Settings
	switch {
	case m.Player.HP <= 0 && set.HPZeroEnding != "":
		return set.HPZeroEnding
	case m.Player.Sanity <= 0 && set.SanityZeroEnding != "":
		return set.SanityZeroEnding
	}
	return ""
}

func (r *run) endingFor(id string) (scenario.Ending, bool) {
	if r.sc == nil {
		return scenario.Ending{}, false
	}
	return r.sc.Ending(id)
}

// commit advances the turn, saves it and streams the closing events. A failed
// save is reported with an error event before the derived views.
func (r *run) commit(ctx context.Context, work *state.Manager, ending string, outcome Outcome) error {
	turn := work.IncrementTurn()
	if ending != "" {
		work.World.Ending = ending
	}

	r.res.Outcome = outcome
	r.res.TurnCount = turn
	r.res.Ending = ending
	r.res.Player = work.Player
	r.res.World = work.World

	// The turn is committed; a caller that goes away now does not undo it.
	saveCtx := context.WithoutCancel(ctx)
	saveErr := r.p.store.Save(saveCtx, r.res.SessionKey, work.Player, work.World, work.World.Location, turn)
	if saveErr != nil {
		r.res.SaveErr = saveErr
		errutil.LogError(r.log, "Failed to save turn", saveErr)
	} else {
		r.log.Info("Turn finished",
			"outcome", string(outcome),
			"turn", turn,
			"attempts", r.res.Attempts,
			"ending", ending)
	}

	if outcome == OutcomeFallback {
		r.emitQuiet(saveCtx, Event{Type: EventFallback, Content: FallbackNarration})
	}
	if ending != "" {
		e, _ := r.endingFor(ending)
		r.emitQuiet(saveCtx, Event{Type: EventEndingStart, Content: EndingContent{ID: ending, Title: e.Title, Text: e.Text}})
	}
	if saveErr != nil {
		r.emitQuiet(saveCtx, errorEvent(saveErr))
	}
	r.emitQuiet(saveCtx, statsEvent(work))
	r.emitQuiet(saveCtx, worldEvent(work))
	r.emitQuiet(saveCtx, npcEvent(work))
	r.emitQuiet(saveCtx, Event{Type: EventDone})
	return saveErr
}

func (r *run) abort(err error) error {
	r.res.Outcome = OutcomeAborted
	r.log.Info("Turn aborted before commit", "attempts", r.res.Attempts, "error", err)
	return err
}

func (r *run) emit(ctx context.Context, ev Event) error {
	if r.gone {
		return errEmitterGone
	}
	r.p.metrics.EventEmitted(string(ev.Type))
	if err := r.emitter.Emit(ctx, ev); err != nil {
		r.gone = true
		return fmt.Errorf("%w: %w", errEmitterGone, err)
	}
	return nil
}

// emitQuiet emits where a vanished receiver must not change the turn's result.
func (r *run) emitQuiet(ctx context.Context, ev Event) {
	if r.gone {
		return
	}
	if err := r.emit(ctx, ev); err != nil {
		r.log.Debug("Event receiver gone, dropping remaining events", "type", string(ev.Type), "error", err)
	}
}

func errorEvent(err error) Event {
	return Event{Type: EventError, Content: ErrorContent{Message: userMessage(err), Code: errutil.Code(err)}}
}

// retryReason is the short failure description fed back to the narrator.
func retryReason(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if runes := []rune(msg); len(runes) > 200 {
		msg = string(runes[:200])
	}
	return msg
}
