package sim

import (
	"github.com/JonJonesBR/Ecosse-sub003/internal/persistence/snapshot"
)

const snapshotVersion = 1

// ExportSnapshot captures the full simulation state. Loop-goroutine only.
func (e *Engine) ExportSnapshot() snapshot.SimulationV1 {
	snap := snapshot.SimulationV1{
		Header: snapshot.Header{
			Version: snapshotVersion,
			SimID:   e.id,
			Frame:   e.frames,
		},
		Elapsed:   e.elapsed,
		Speed:     e.speed,
		Running:   e.running,
		Paused:    e.paused,
		HasPlanet: e.hasPlanet,
		Planet: snapshot.PlanetV1{
			Type:          e.planet.Type,
			Gravity:       e.planet.Gravity,
			Atmosphere:    e.planet.Atmosphere,
			Luminosity:    e.planet.Luminosity,
			WaterCoverage: e.planet.WaterCoverage,
			Temperature:   e.planet.Temperature,
		},
	}
	for _, el := range e.store.All() {
		snap.Elements = append(snap.Elements, snapshot.ElementV1{
			ID:          el.ID,
			Kind:        el.Kind.String(),
			Pos:         [3]float64{el.Pos.X, el.Pos.Y, el.Pos.Z},
			Energy:      el.Energy,
			MaxEnergy:   el.MaxEnergy,
			Consumption: el.Consumption,
			Size:        el.Size,
			GrowthRate:  el.GrowthRate,
			Hungry:      el.Hungry,
			Player:      el.Player,
			BornAt:      el.BornAt,
		})
	}
	return snap
}

// applySnapshot replaces the current state with a persisted one. The clock
// is left stopped; collaborators decide when to start again.
func (e *Engine) applySnapshot(snap snapshot.SimulationV1) {
	e.stopClock()
	e.frames = snap.Header.Frame
	e.elapsed = snap.Elapsed
	if snap.Speed > 0 {
		e.speed = snap.Speed
	}
	e.hasPlanet = snap.HasPlanet
	e.planet.Type = snap.Planet.Type
	e.planet.Gravity = snap.Planet.Gravity
	e.planet.Atmosphere = snap.Planet.Atmosphere
	e.planet.Luminosity = snap.Planet.Luminosity
	e.planet.WaterCoverage = snap.Planet.WaterCoverage
	e.planet.Temperature = snap.Planet.Temperature

	e.store.Clear()
	e.player = ""
	for _, ev := range snap.Elements {
		kind, err := ParseKind(ev.Kind)
		if err != nil {
			e.log.Printf("sim: snapshot element %s: %v, treating as generic", ev.ID, err)
		}
		el := &Element{
			ID:          ev.ID,
			Kind:        kind,
			Pos:         Vec3{X: ev.Pos[0], Y: ev.Pos[1], Z: ev.Pos[2]},
			Energy:      ev.Energy,
			MaxEnergy:   ev.MaxEnergy,
			Consumption: ev.Consumption,
			Size:        ev.Size,
			GrowthRate:  ev.GrowthRate,
			Hungry:      ev.Hungry,
			Player:      ev.Player,
			BornAt:      ev.BornAt,
		}
		if el.Player {
			if e.player == "" {
				e.player = el.ID
			} else {
				el.Player = false
			}
		}
		e.store.Add(el)
	}
}

// ImportSnapshot is the pre-Run resume path used by the composition root.
func (e *Engine) ImportSnapshot(snap snapshot.SimulationV1) {
	e.applySnapshot(snap)
}
