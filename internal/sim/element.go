package sim

import (
	"fmt"

	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
)

// Kind discriminates element behavior. Keeping it a closed enum (instead of
// a free-form tag) gives the per-kind dispatch table exhaustiveness.
type Kind int

const (
	KindGeneric Kind = iota
	KindPlant
	KindHerbivore
	KindCarnivore
)

func (k Kind) String() string {
	switch k {
	case KindPlant:
		return "plant"
	case KindHerbivore:
		return "herbivore"
	case KindCarnivore:
		return "carnivore"
	default:
		return "generic"
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "plant":
		return KindPlant, nil
	case "herbivore":
		return KindHerbivore, nil
	case "carnivore":
		return KindCarnivore, nil
	case "generic", "":
		return KindGeneric, nil
	}
	return KindGeneric, fmt.Errorf("unknown element kind %q", s)
}

// preyOf maps an eater kind to the kind it hunts. Kinds absent from the
// table do not hunt.
var preyOf = map[Kind]Kind{
	KindHerbivore: KindPlant,
	KindCarnivore: KindHerbivore,
}

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }

// Element is one simulated organism or object. Creature fields (Energy,
// MaxEnergy, Consumption, Hungry) are meaningful for herbivores and
// carnivores; Size and GrowthRate for plants.
type Element struct {
	ID   string
	Kind Kind
	Pos  Vec3

	Energy      float64
	MaxEnergy   float64
	Consumption float64
	Size        float64
	GrowthRate  float64
	Hungry      bool

	Player bool
	BornAt float64 // simulation time at creation
}

func (e *Element) isCreature() bool {
	return e.Kind == KindHerbivore || e.Kind == KindCarnivore
}

// State returns the externally visible copy used in event payloads.
func (e *Element) State() protocol.ElementState {
	return protocol.ElementState{
		ID:          e.ID,
		Kind:        e.Kind.String(),
		Position:    protocol.Vec3{X: e.Pos.X, Y: e.Pos.Y, Z: e.Pos.Z},
		Energy:      e.Energy,
		MaxEnergy:   e.MaxEnergy,
		Consumption: e.Consumption,
		Size:        e.Size,
		GrowthRate:  e.GrowthRate,
		Hungry:      e.Hungry,
		IsPlayer:    e.Player,
		BornAt:      e.BornAt,
	}
}
