package state

// Kind names one entry of the closed effect vocabulary.
type Kind string

const (
	KindHPDelta           Kind = "hp_delta"
	KindGoldDelta         Kind = "gold_delta"
	KindItemAdd           Kind = "item_add"
	KindItemRemove        Kind = "item_remove"
	KindFlagSet           Kind = "flag_set"
	KindRelationshipDelta Kind = "relationship_delta"
	KindSceneMove         Kind = "scene_move"
	KindStatDelta         Kind = "stat_delta"
)

// PlayerTarget addresses the player in an hp_delta effect.
const PlayerTarget = "player"

// Effect is a validated state change. The concrete types below are the only
// implementations.
type Effect interface {
	Kind() Kind
	effect()
}

// HPDelta changes the hit points of the player or of a named NPC.
type HPDelta struct {
	Target string
	Delta  int
}

// GoldDelta changes the player's gold. Gold never goes below zero.
type GoldDelta struct {
	Delta int
}

// ItemAdd puts an item in the player's inventory.
type ItemAdd struct {
	Item Item
}

// ItemRemove takes an item out of the player's inventory.
type ItemRemove struct {
	Name string
}

// FlagScope selects the player's flags or the world's global flags.
type FlagScope string

const (
	ScopePlayer FlagScope = "player"
	ScopeWorld  FlagScope = "world"
)

// FlagSet sets a boolean flag.
type FlagSet struct {
	Flag  string
	Value bool
	Scope FlagScope
}

// RelationshipDelta moves an NPC's relationship within [0, 100].
type RelationshipDelta struct {
	NPC   string
	Delta int
}

// SceneMove relocates the player to another scene.
type SceneMove struct {
	Scene string
}

// StatDelta changes a built-in vital (mp, max_mp, max_hp, sanity) or a custom stat.
type StatDelta struct {
	Stat  string
	Delta float64
}

func (HPDelta) Kind() Kind           { return KindHPDelta }
func (GoldDelta) Kind() Kind         { return KindGoldDelta }
func (ItemAdd) Kind() Kind           { return KindItemAdd }
func (ItemRemove) Kind() Kind        { return KindItemRemove }
func (FlagSet) Kind() Kind           { return KindFlagSet }
func (RelationshipDelta) Kind() Kind { return KindRelationshipDelta }
func (SceneMove) Kind() Kind         { return KindSceneMove }
func (StatDelta) Kind() Kind         { return KindStatDelta }

func (HPDelta) effect()           {}
func (GoldDelta) effect()         {}
func (ItemAdd) effect()           {}
func (ItemRemove) effect()        {}
func (FlagSet) effect()           {}
func (RelationshipDelta) effect() {}
func (SceneMove) effect()         {}
func (StatDelta) effect()         {}
