package state

import (
	"log/slog"
)

// Applier validates and applies an effect batch as a unit. Effects run in
// order against a working copy of the state, which replaces the live state
// only if every effect succeeded.
type Applier struct {
	logger     *slog.Logger
	hpPerMove  int
	sanPerMove int
	observe    func(kind Kind, err error)
}

// NewApplier creates an applier. A nil logger discards output.
func NewApplier(logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Applier{logger: logger}
}

// WithMoveCost charges the player hp and sanity for every scene move.
// Returns the Applier for method chaining
func (a *Applier) WithMoveCost(hp, sanity int) *Applier {
	a.hpPerMove = hp
	a.sanPerMove = sanity
	return a
}

// WithObserver registers a callback invoked once per effect with its result.
// Returns the Applier for method chaining
func (a *Applier) WithObserver(fn func(kind Kind, err error)) *Applier {
	a.observe = fn
	return a
}

// Result summarizes a committed batch.
type Result struct {
	Outcomes []Outcome
	Deaths   []HPResult
	// Progress is true if any effect changed the state.
	Progress bool
	Moved    bool
}

// Apply commits effects to m atomically. On error m is left untouched.
func (a *Applier) Apply(m *Manager, effects []Effect) (*Result, error) {
	work := m.Clone()
	res := &Result{Outcomes: make([]Outcome, 0, len(effects))}

	for i, e := range effects {
		out, err := work.ApplyEffect(e)
		a.notify(e, err)
		if err != nil {
			a.logger.Warn("Effect rejected, discarding batch",
				"index", i,
				"kind", kindOf(e),
				"batch_size", len(effects),
				"error", err)
			return nil, withIndex(err, i)
		}

		if _, ok := e.(SceneMove); ok && out.Progress {
			res.Moved = true
			a.chargeMove(work)
		}
		if out.Death != nil {
			res.Deaths = append(res.Deaths, *out.Death)
			a.logger.Info("NPC died", "npc", out.Death.NPC)
		}
		res.Progress = res.Progress || out.Progress
		res.Outcomes = append(res.Outcomes, out)
	}

	*m.Player = *work.Player
	*m.World = *work.World
	a.logger.Debug("Effects committed", "count", len(effects), "progress", res.Progress)
	return res, nil
}

func (a *Applier) chargeMove(m *Manager) {
	if a.hpPerMove > 0 {
		m.playerHP(-a.hpPerMove)
	}
	if a.sanPerMove > 0 {
		m.Player.Sanity = max(m.Player.Sanity-a.sanPerMove, 0)
	}
}

func (a *Applier) notify(e Effect, err error) {
	if a.observe != nil {
		a.observe(kindOf(e), err)
	}
}

func kindOf(e Effect) Kind {
	if e == nil {
		return ""
	}
	return e.Kind()
}
