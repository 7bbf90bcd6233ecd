package state

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// HintLevel is how strongly the narrator should nudge a stuck player.
type HintLevel int

const (
	HintNone HintLevel = iota
	HintWeak
	HintMedium
	HintStrong
)

func (h HintLevel) String() string {
	switch h {
	case HintWeak:
		return "weak"
	case HintMedium:
		return "medium"
	case HintStrong:
		return "strong"
	default:
		return "none"
	}
}

// HintFor maps a stuck count to a hint band: 0 none, 1 weak, 2-3 medium, 4+ strong.
func HintFor(stuckCount int) HintLevel {
	switch {
	case stuckCount <= 0:
		return HintNone
	case stuckCount == 1:
		return HintWeak
	case stuckCount <= 3:
		return HintMedium
	default:
		return HintStrong
	}
}

// Hint returns the hint band for the current stuck count.
func (m *Manager) Hint() HintLevel {
	return HintFor(m.World.StuckCount)
}

// NormalizeSignature reduces an action to a comparable signature: Unicode
// NFKC, case folded, whitespace collapsed.
func NormalizeSignature(action string) string {
	s := norm.NFKC.String(action)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// RecordAttempt notes an action that did not change the state. Repeating the
// previous unproductive action increments the stuck count.
func (m *Manager) RecordAttempt(action string) {
	sig := NormalizeSignature(action)
	if sig == "" {
		return
	}
	if sig == m.World.LastAction {
		m.World.StuckCount++
	}
	m.World.LastAction = sig
}

// RecordProgress resets the stuck counter after a state-changing turn.
func (m *Manager) RecordProgress() {
	m.World.StuckCount = 0
	m.World.LastAction = ""
}
