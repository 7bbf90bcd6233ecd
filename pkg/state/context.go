package state

import (
	"fmt"
	"slices"
	"strings"
)

const (
	contextHeader = "=== AUTHORITATIVE GAME STATE ==="
	contextFooter = "=== END GAME STATE ==="
)

// LLMContext renders the current facts as a labeled block for the narrator
// prompt. The output is deterministic for a given state.
func (m *Manager) LLMContext() string {
	p, w := m.Player, m.World

	var b strings.Builder
	b.WriteString(contextHeader + "\n")
	b.WriteString("These facts are ground truth. Narration must never contradict them.\n")
	fmt.Fprintf(&b, "Location: %s\n", orNone(w.Location))
	fmt.Fprintf(&b, "Time: %s\n", w.Time)
	fmt.Fprintf(&b, "Turn: %d | Stuck: %d\n", w.TurnCount, w.StuckCount)
	fmt.Fprintf(&b, "Player: HP %d/%d | MP %d/%d | Sanity %d | Gold %d\n",
		p.HP, p.MaxHP, p.MP, p.MaxMP, p.Sanity, p.Gold)

	if len(p.Inventory) > 0 {
		fmt.Fprintf(&b, "Inventory: %s\n", strings.Join(p.ItemNames(), ", "))
	} else {
		b.WriteString("Inventory: (empty)\n")
	}
	if flags := trueFlags(p.Flags); len(flags) > 0 {
		fmt.Fprintf(&b, "Player flags: %s\n", strings.Join(flags, ", "))
	}
	if flags := trueFlags(w.GlobalFlags); len(flags) > 0 {
		fmt.Fprintf(&b, "World flags: %s\n", strings.Join(flags, ", "))
	}
	if len(p.CustomStats) > 0 {
		keys := sortedKeys(p.CustomStats)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%g", k, p.CustomStats[k]))
		}
		fmt.Fprintf(&b, "Stats: %s\n", strings.Join(parts, ", "))
	}

	if len(w.NPCs) == 0 {
		b.WriteString("NPCs: (none)\n")
	} else {
		b.WriteString("NPCs:\n")
		for _, name := range sortedKeys(w.NPCs) {
			b.WriteString(npcLine(name, w.NPCs[name]))
		}
	}
	b.WriteString(contextFooter)
	return b.String()
}

func npcLine(name string, n NPC) string {
	if n.IsDead() {
		return fmt.Sprintf("- %s: DEAD (HP 0/%d). Dead characters cannot act, speak or return.\n", name, n.MaxHP)
	}
	line := fmt.Sprintf("- %s: %s, HP %d/%d, relationship %d", name, n.Status, n.HP, n.MaxHP, n.Relationship)
	if n.Location != "" {
		line += ", at " + n.Location
	}
	if n.Emotion != "" {
		line += ", feeling " + n.Emotion
	}
	if n.IsHostile {
		line += ", hostile"
	}
	return line + "\n"
}

func trueFlags(flags map[string]bool) []string {
	var out []string
	for k, v := range flags {
		if v {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func orNone(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}
