package protocol

// Vec3 is a position or direction in planet space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlanetConfig is treated as an opaque value object: the core stores the
// latest copy but does not validate ranges.
type PlanetConfig struct {
	Type          string  `json:"type"`
	Gravity       float64 `json:"gravity"`
	Atmosphere    float64 `json:"atmosphere"`
	Luminosity    float64 `json:"luminosity"`
	WaterCoverage float64 `json:"waterCoverage"`
	Temperature   float64 `json:"temperature"`
}

// SpeedChange carries the SIMULATION_SPEED_CHANGE multiplier.
type SpeedChange struct {
	Speed float64 `json:"speed"`
}

// PlayerMove carries one PLAYER_MOVE step request.
type PlayerMove struct {
	Direction Vec3 `json:"direction"`
}

// ElementSpec describes an element to create (ELEMENT_ADDED request).
// Properties may override the per-kind defaults (energy, maxEnergy,
// consumptionRate, size, growthRate).
type ElementSpec struct {
	Kind       string             `json:"type"`
	Position   Vec3               `json:"position"`
	Properties map[string]float64 `json:"properties,omitempty"`
	IsPlayer   bool               `json:"isPlayer,omitempty"`
}

// AddElement wraps ElementSpec the way collaborators send it.
type AddElement struct {
	Element ElementSpec `json:"element"`
}

// ElementState is the externally visible state of one live element.
type ElementState struct {
	ID          string  `json:"id"`
	Kind        string  `json:"type"`
	Position    Vec3    `json:"position"`
	Energy      float64 `json:"energy,omitempty"`
	MaxEnergy   float64 `json:"maxEnergy,omitempty"`
	Consumption float64 `json:"consumptionRate,omitempty"`
	Size        float64 `json:"size,omitempty"`
	GrowthRate  float64 `json:"growthRate,omitempty"`
	Hungry      bool    `json:"isHungry,omitempty"`
	IsPlayer    bool    `json:"isPlayer,omitempty"`
	BornAt      float64 `json:"createdAt"`
}

// ElementAdded is the ELEMENT_ADDED_COMPLETE payload (id assigned).
type ElementAdded struct {
	Element ElementState `json:"element"`
}

// ElementRemoved is the ELEMENT_REMOVED payload.
type ElementRemoved struct {
	ID string `json:"id"`
}

// PlanetGenerated is the PLANET_GENERATION_COMPLETE payload.
type PlanetGenerated struct {
	Config PlanetConfig `json:"config"`
}

// SimulationState is the full per-frame state snapshot.
type SimulationState struct {
	Running  bool           `json:"isRunning"`
	Paused   bool           `json:"isPaused"`
	Speed    float64        `json:"speed"`
	Planet   PlanetConfig   `json:"planet"`
	Elements []ElementState `json:"elements"`
}

// SimulationUpdated is the SIMULATION_UPDATED payload.
type SimulationUpdated struct {
	DeltaTime   float64         `json:"deltaTime"`
	ElapsedTime float64         `json:"elapsedTime"`
	FrameCount  uint64          `json:"frameCount"`
	State       SimulationState `json:"simulationState"`
}

// SystemError is the SYSTEM_ERROR payload.
type SystemError struct {
	Source string `json:"source"`
	Action string `json:"action"`
	Error  string `json:"error"`
}
