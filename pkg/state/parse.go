package state

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// Block is the structured section that follows the narration in a model response.
type Block struct {
	Effects []Effect
	// Ending optionally names a scenario ending reached this turn.
	Ending string
}

type rawBlock struct {
	Effects *[]json.RawMessage `json:"effects"`
	Ending  string             `json:"ending"`
}

type rawEffect struct {
	Kind   string          `json:"kind"`
	Type   string          `json:"type"`
	Target *string         `json:"target"`
	NPC    *string         `json:"npc"`
	Delta  json.RawMessage `json:"delta"`
	Item   *string         `json:"item"`
	Image  string          `json:"image"`
	Flag   *string         `json:"flag"`
	Value  *bool           `json:"value"`
	Scope  string          `json:"scope"`
	Scene  *string         `json:"scene"`
	Stat   *string         `json:"stat"`
}

// ParseBlock parses an effects section. It accepts either a bare JSON array of
// effects or an object {"effects": [...], "ending": "id"}, optionally inside a
// markdown code fence. Anything else is malformed.
func ParseBlock(raw []byte) (*Block, error) {
	body := stripFence(bytes.TrimSpace(raw))
	if len(body) == 0 {
		return nil, malformed("empty effects section")
	}

	switch body[0] {
	case '[':
		effects, err := ParseEffects(body)
		if err != nil {
			return nil, err
		}
		return &Block{Effects: effects}, nil
	case '{':
		var rb rawBlock
		if err := json.Unmarshal(body, &rb); err != nil {
			return nil, malformed("effects object: %v", err)
		}
		if rb.Effects == nil {
			return nil, malformed("effects object has no \"effects\" list")
		}
		effects, err := parseList(*rb.Effects)
		if err != nil {
			return nil, err
		}
		return &Block{Effects: effects, Ending: strings.TrimSpace(rb.Ending)}, nil
	default:
		return nil, malformed("effects section is not JSON")
	}
}

// ParseEffects parses a JSON array of effect objects into typed effects.
func ParseEffects(raw []byte) ([]Effect, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, malformed("effects list: %v", err)
	}
	return parseList(list)
}

func parseList(list []json.RawMessage) ([]Effect, error) {
	effects := make([]Effect, 0, len(list))
	for i, item := range list {
		e, err := parseEffect(item)
		if err != nil {
			return nil, withIndex(err, i)
		}
		effects = append(effects, e)
	}
	return effects, nil
}

func parseEffect(raw json.RawMessage) (Effect, error) {
	var re rawEffect
	if err := json.Unmarshal(raw, &re); err != nil {
		return nil, malformed("effect: %v", err)
	}
	kind := Kind(re.Kind)
	if kind == "" {
		kind = Kind(re.Type)
	}
	if kind == "" {
		return nil, malformed("effect has no kind")
	}

	switch kind {
	case KindHPDelta:
		d, err := intDelta(kind, re.Delta)
		if err != nil {
			return nil, err
		}
		target := PlayerTarget
		if s := firstString(re.Target, re.NPC); s != "" {
			target = s
		}
		return HPDelta{Target: target, Delta: d}, nil

	case KindGoldDelta:
		d, err := intDelta(kind, re.Delta)
		if err != nil {
			return nil, err
		}
		return GoldDelta{Delta: d}, nil

	case KindItemAdd, KindItemRemove:
		name := firstString(re.Item)
		if name == "" {
			return nil, malformed("%s: missing item", kind)
		}
		if kind == KindItemAdd {
			return ItemAdd{Item: Item{Name: name, Image: re.Image}}, nil
		}
		return ItemRemove{Name: name}, nil

	case KindFlagSet:
		flag := firstString(re.Flag)
		if flag == "" {
			return nil, malformed("flag_set: missing flag")
		}
		value := true
		if re.Value != nil {
			value = *re.Value
		}
		scope := FlagScope(re.Scope)
		switch scope {
		case "":
			scope = ScopePlayer
		case ScopePlayer, ScopeWorld:
		default:
			return nil, malformed("flag_set: unknown scope %q", re.Scope)
		}
		return FlagSet{Flag: flag, Value: value, Scope: scope}, nil

	case KindRelationshipDelta:
		npc := firstString(re.NPC, re.Target)
		if npc == "" {
			return nil, malformed("relationship_delta: missing npc")
		}
		d, err := intDelta(kind, re.Delta)
		if err != nil {
			return nil, err
		}
		return RelationshipDelta{NPC: npc, Delta: d}, nil

	case KindSceneMove:
		scene := firstString(re.Scene, re.Target)
		if scene == "" {
			return nil, malformed("scene_move: missing scene")
		}
		return SceneMove{Scene: scene}, nil

	case KindStatDelta:
		stat := firstString(re.Stat)
		if stat == "" {
			return nil, malformed("stat_delta: missing stat")
		}
		d, err := numericDelta(kind, re.Delta)
		if err != nil {
			return nil, err
		}
		return StatDelta{Stat: stat, Delta: d}, nil
	}

	return nil, unsupported(string(kind))
}

func numericDelta(kind Kind, raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, malformed("%s: missing delta", kind)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, malformed("%s: delta must be numeric, got %s", kind, raw)
	}
	return f, nil
}

func intDelta(kind Kind, raw json.RawMessage) (int, error) {
	f, err := numericDelta(kind, raw)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, malformed("%s: delta must be a whole number, got %s", kind, raw)
	}
	return int(f), nil
}

func firstString(values ...*string) string {
	for _, v := range values {
		if v != nil {
			if s := strings.TrimSpace(*v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stripFence(b []byte) []byte {
	if !bytes.HasPrefix(b, []byte("```")) {
		return b
	}
	b = b[3:]
	if nl := bytes.IndexByte(b, '\n'); nl >= 0 {
		b = b[nl+1:]
	} else {
		return nil
	}
	if end := bytes.LastIndex(b, []byte("```")); end >= 0 {
		b = b[:end]
	}
	return bytes.TrimSpace(b)
}
