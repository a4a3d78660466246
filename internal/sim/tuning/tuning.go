package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz          int     `yaml:"tick_rate_hz"`
	Speed               float64 `yaml:"speed"`
	SnapshotEveryFrames int     `yaml:"snapshot_every_frames"`
	HistoryLimit        int     `yaml:"history_limit"`

	WorldRadius    float64 `yaml:"world_radius"`
	EatDistance    float64 `yaml:"eat_distance"`
	HungerFraction float64 `yaml:"hunger_fraction"`
	MoveSpeed      float64 `yaml:"move_speed"`
	Jitter         float64 `yaml:"jitter"`
	PlayerStep     float64 `yaml:"player_step"`
	FeedEnergy     float64 `yaml:"feed_energy"`
	PlantBite      float64 `yaml:"plant_bite"`

	Defaults ElementDefaults `yaml:"element_defaults"`
}

type ElementDefaults struct {
	CreatureEnergy       float64 `yaml:"creature_energy"`
	CreatureMaxEnergy    float64 `yaml:"creature_max_energy"`
	HerbivoreConsumption float64 `yaml:"herbivore_consumption"`
	CarnivoreConsumption float64 `yaml:"carnivore_consumption"`
	PlantSize            float64 `yaml:"plant_size"`
	PlantGrowthRate      float64 `yaml:"plant_growth_rate"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:     "1.0",
		TickRateHz:          30,
		Speed:               1.0,
		SnapshotEveryFrames: 1800,
		HistoryLimit:        50,
		WorldRadius:         50,
		EatDistance:         1.5,
		HungerFraction:      0.5,
		MoveSpeed:           2.0,
		Jitter:              0.3,
		PlayerStep:          1.0,
		FeedEnergy:          30,
		PlantBite:           0.5,
		Defaults: ElementDefaults{
			CreatureEnergy:       100,
			CreatureMaxEnergy:    100,
			HerbivoreConsumption: 2.0,
			CarnivoreConsumption: 3.0,
			PlantSize:            1.0,
			PlantGrowthRate:      0.05,
		},
	}
}

// Load reads path over the built-in defaults, so a partial file only
// overrides what it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
