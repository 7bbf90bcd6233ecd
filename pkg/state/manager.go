package state

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

// Manager owns the ground truth for one session: the player and the world.
// It is not safe for concurrent use; a turn mutates its own Manager.
type Manager struct {
	Player *PlayerState
	World  *WorldState

	// scenes restricts scene_move targets. nil accepts any scene id.
	scenes map[string]bool
}

// NewManager wraps a player and world snapshot. Nil maps are initialized.
func NewManager(player *PlayerState, world *WorldState) *Manager {
	if player == nil {
		player = NewPlayerState("")
	}
	if world == nil {
		world = NewWorldState(player.CurrentSceneID)
	}
	if player.Flags == nil {
		player.Flags = make(map[string]bool)
	}
	if player.CustomStats == nil {
		player.CustomStats = make(map[string]float64)
	}
	if world.GlobalFlags == nil {
		world.GlobalFlags = make(map[string]bool)
	}
	if world.NPCs == nil {
		world.NPCs = make(map[string]NPC)
	}
	return &Manager{Player: player, World: world}
}

// WithScenes limits scene_move to the given scene ids.
func (m *Manager) WithScenes(ids []string) *Manager {
	if len(ids) == 0 {
		m.scenes = nil
		return m
	}
	m.scenes = make(map[string]bool, len(ids))
	for _, id := range ids {
		m.scenes[id] = true
	}
	return m
}

// Clone returns a deep copy that shares nothing with m.
func (m *Manager) Clone() *Manager {
	p := *m.Player
	p.Inventory = slices.Clone(m.Player.Inventory)
	p.Flags = maps.Clone(m.Player.Flags)
	p.CustomStats = maps.Clone(m.Player.CustomStats)

	w := *m.World
	w.GlobalFlags = maps.Clone(m.World.GlobalFlags)
	w.NPCs = maps.Clone(m.World.NPCs)

	return &Manager{Player: &p, World: &w, scenes: m.scenes}
}

// HPResult describes the outcome of an NPC hit point change.
type HPResult struct {
	NPC   string
	NewHP int
	// IsDead is true only on the call that killed the NPC.
	IsDead bool
	// AlreadyDead is true when the NPC was dead before the call.
	AlreadyDead bool
	Message     string
}

// UpdateNPCHP adds delta to an NPC's hit points. HP is clamped at zero and
// reaching zero kills the NPC permanently. Changes to a dead NPC are ignored.
func (m *Manager) UpdateNPCHP(name string, delta int) (HPResult, error) {
	key, ok := m.lookupNPC(name)
	if !ok {
		return HPResult{}, unknownNPC(name)
	}
	npc := m.World.NPCs[key]

	if npc.IsDead() {
		return HPResult{
			NPC:         key,
			NewHP:       npc.HP,
			AlreadyDead: true,
			Message:     fmt.Sprintf("%s is already dead.", key),
		}, nil
	}

	old := npc.HP
	npc.HP += delta
	if npc.HP < 0 {
		npc.HP = 0
	}

	res := HPResult{NPC: key, NewHP: npc.HP}
	if npc.HP <= 0 {
		npc.Status = NPCDead
		res.IsDead = true
		res.Message = fmt.Sprintf("%s has died (HP %d -> 0).", key, old)
	} else {
		res.Message = fmt.Sprintf("%s HP %d -> %d.", key, old, npc.HP)
	}
	m.World.NPCs[key] = npc
	return res, nil
}

// Outcome is what a single applied effect produced.
type Outcome struct {
	Message string
	// Death is set when an NPC died from this effect.
	Death *HPResult
	// Progress is true when the effect changed state.
	Progress bool
}

// ApplyEffect applies one effect directly to the state. Callers that need
// all-or-nothing batches should go through Applier.
func (m *Manager) ApplyEffect(e Effect) (Outcome, error) {
	switch e := e.(type) {
	case HPDelta:
		if e.Target == "" || strings.EqualFold(e.Target, PlayerTarget) {
			return m.playerHP(e.Delta), nil
		}
		res, err := m.UpdateNPCHP(e.Target, e.Delta)
		if err != nil {
			return Outcome{}, err
		}
		out := Outcome{Message: res.Message, Progress: !res.AlreadyDead}
		if res.IsDead {
			out.Death = &res
		}
		return out, nil

	case GoldDelta:
		return m.gold(e.Delta)

	case ItemAdd:
		m.Player.Inventory = append(m.Player.Inventory, e.Item)
		return Outcome{Message: fmt.Sprintf("Gained %s.", e.Item.Name), Progress: true}, nil

	case ItemRemove:
		i := m.Player.itemIndex(e.Name)
		if i < 0 {
			return Outcome{}, unknownItem(e.Name)
		}
		name := m.Player.Inventory[i].Name
		m.Player.Inventory = slices.Delete(m.Player.Inventory, i, i+1)
		return Outcome{Message: fmt.Sprintf("Lost %s.", name), Progress: true}, nil

	case FlagSet:
		flags := m.Player.Flags
		if e.Scope == ScopeWorld {
			flags = m.World.GlobalFlags
		}
		prev, had := flags[e.Flag]
		flags[e.Flag] = e.Value
		return Outcome{Progress: !had || prev != e.Value}, nil

	case RelationshipDelta:
		key, ok := m.lookupNPC(e.NPC)
		if !ok {
			return Outcome{}, unknownNPC(e.NPC)
		}
		npc := m.World.NPCs[key]
		old := npc.Relationship
		npc.Relationship = clamp(npc.Relationship+e.Delta, 0, 100)
		m.World.NPCs[key] = npc
		return Outcome{
			Message:  fmt.Sprintf("%s relationship %d -> %d.", key, old, npc.Relationship),
			Progress: old != npc.Relationship,
		}, nil

	case SceneMove:
		if m.scenes != nil && !m.scenes[e.Scene] {
			return Outcome{}, unknownScene(e.Scene)
		}
		moved := m.World.Location != e.Scene
		m.World.Location = e.Scene
		m.Player.CurrentSceneID = e.Scene
		return Outcome{Message: fmt.Sprintf("Moved to %s.", e.Scene), Progress: moved}, nil

	case StatDelta:
		return m.stat(e)
	}

	if e == nil {
		return Outcome{}, unsupported("<nil>")
	}
	return Outcome{}, unsupported(string(e.Kind()))
}

// IncrementTurn advances the turn counter by one.
func (m *Manager) IncrementTurn() int {
	m.World.TurnCount++
	return m.World.TurnCount
}

func (m *Manager) playerHP(delta int) Outcome {
	old := m.Player.HP
	hp := m.Player.HP + delta
	if m.Player.MaxHP > 0 && hp > m.Player.MaxHP {
		hp = m.Player.MaxHP
	}
	if hp < 0 {
		hp = 0
	}
	m.Player.HP = hp
	return Outcome{Message: fmt.Sprintf("HP %d -> %d.", old, hp), Progress: old != hp}
}

func (m *Manager) gold(delta int) (Outcome, error) {
	g := m.Player.Gold + delta
	if g < 0 {
		return Outcome{}, invalid(KindGoldDelta, "gold would drop to %d", g)
	}
	old := m.Player.Gold
	m.Player.Gold = g
	return Outcome{Message: fmt.Sprintf("Gold %d -> %d.", old, g), Progress: old != g}, nil
}

// wholeDelta converts a built-in stat delta to int. Fractions and values
// outside the int32 range are rejected before conversion.
func wholeDelta(stat string, f float64) (int, error) {
	if f != math.Trunc(f) {
		return 0, invalid(KindStatDelta, "%s delta must be a whole number", stat)
	}
	if math.Abs(f) > math.MaxInt32 {
		return 0, invalid(KindStatDelta, "%s delta %g is out of range", stat, f)
	}
	return int(f), nil
}

func (m *Manager) stat(e StatDelta) (Outcome, error) {
	name := strings.ToLower(e.Stat)
	builtin := func(v *int, lo int, hi *int) (Outcome, error) {
		d, err := wholeDelta(name, e.Delta)
		if err != nil {
			return Outcome{}, err
		}
		old := *v
		n := old + d
		if n < lo {
			n = lo
		}
		if hi != nil && *hi > 0 && n > *hi {
			n = *hi
		}
		*v = n
		return Outcome{Message: fmt.Sprintf("%s %d -> %d.", name, old, n), Progress: old != n}, nil
	}

	switch name {
	case "hp":
		d, err := wholeDelta(name, e.Delta)
		if err != nil {
			return Outcome{}, err
		}
		return m.playerHP(d), nil
	case "gold":
		d, err := wholeDelta(name, e.Delta)
		if err != nil {
			return Outcome{}, err
		}
		return m.gold(d)
	case "mp":
		return builtin(&m.Player.MP, 0, &m.Player.MaxMP)
	case "sanity":
		return builtin(&m.Player.Sanity, 0, nil)
	case "max_hp":
		d, err := wholeDelta(name, e.Delta)
		if err != nil {
			return Outcome{}, err
		}
		if m.Player.MaxHP+d <= 0 {
			return Outcome{}, invalid(KindStatDelta, "max_hp must stay positive")
		}
		out, err := builtin(&m.Player.MaxHP, 1, nil)
		if err == nil && m.Player.HP > m.Player.MaxHP {
			m.Player.HP = m.Player.MaxHP
		}
		return out, err
	case "max_mp":
		out, err := builtin(&m.Player.MaxMP, 0, nil)
		if err == nil && m.Player.MP > m.Player.MaxMP {
			m.Player.MP = m.Player.MaxMP
		}
		return out, err
	}

	old := m.Player.CustomStats[e.Stat]
	m.Player.CustomStats[e.Stat] = old + e.Delta
	return Outcome{
		Message:  fmt.Sprintf("%s %g -> %g.", e.Stat, old, old+e.Delta),
		Progress: e.Delta != 0,
	}, nil
}

// lookupNPC resolves an NPC key by exact name, then by a unique
// case-insensitive match.
func (m *Manager) lookupNPC(name string) (string, bool) {
	if _, ok := m.World.NPCs[name]; ok {
		return name, true
	}
	found := ""
	for k := range m.World.NPCs {
		if strings.EqualFold(k, name) {
			if found != "" {
				return "", false
			}
			found = k
		}
	}
	return found, found != ""
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
