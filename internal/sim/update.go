package sim

import (
	"fmt"
	"math"

	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
)

// frame is the guarded per-tick boundary: a panic anywhere in the update is
// reported as SYSTEM_ERROR and the loop keeps scheduling. This deliberately
// trades the original's silent halt for liveness.
func (e *Engine) frame(dt float64) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e.log.Printf("sim: panic in frame %d: %v", e.frames, r)
		e.bus.Publish(protocol.EvSystemError, protocol.SystemError{
			Source: "sim",
			Action: "update",
			Error:  fmt.Sprint(r),
		})
	}()
	e.StepOnce(dt)
}

// kindUpdate dispatches the per-kind behavior for one element. Kinds absent
// from the table (generic) have no autonomous behavior.
var kindUpdate = map[Kind]func(*Engine, *Element, float64){
	KindPlant:     (*Engine).updatePlant,
	KindHerbivore: (*Engine).updateCreature,
	KindCarnivore: (*Engine).updateCreature,
}

// StepOnce advances the simulation by one frame with the given raw delta
// time (seconds). The delta is scaled by the speed multiplier. It is called
// from the Run loop and directly by tests and replays.
func (e *Engine) StepOnce(dt float64) {
	scaled := dt * e.speed
	e.elapsed += scaled
	e.frames++

	for _, el := range e.store.All() {
		if el.Player {
			continue // moved only by PLAYER_MOVE
		}
		if fn := kindUpdate[el.Kind]; fn != nil {
			fn(e, el, scaled)
		}
	}

	e.resolveFeeding()
	e.removeMarked()

	e.bus.Publish(protocol.EvSimulationUpdated, protocol.SimulationUpdated{
		DeltaTime:   scaled,
		ElapsedTime: e.elapsed,
		FrameCount:  e.frames,
		State:       e.stateSnapshot(),
	})

	every := e.cfg.SnapshotEveryFrames
	if e.snapshotSink != nil && every > 0 && e.frames%uint64(every) == 0 {
		select {
		case e.snapshotSink <- e.ExportSnapshot():
		default:
			// Drop snapshot if the sink is backed up.
		}
	}
}

func (e *Engine) updatePlant(el *Element, dt float64) {
	el.Size += el.GrowthRate * dt
}

func (e *Engine) updateCreature(el *Element, dt float64) {
	el.Energy -= el.Consumption * dt
	if el.Energy <= 0 {
		e.store.Mark(el.ID)
		return
	}
	el.Hungry = el.Energy < e.cfg.HungerFraction*el.MaxEnergy
	if el.Hungry {
		if prey := e.nearestPrey(el); prey != nil {
			e.moveToward(el, prey.Pos, e.cfg.MoveSpeed*dt)
			return
		}
	}
	el.Pos.X += (e.rng.Float64()*2 - 1) * e.cfg.Jitter * dt
	el.Pos.Z += (e.rng.Float64()*2 - 1) * e.cfg.Jitter * dt
}

// nearestPrey scans the full element list; the first element achieving the
// minimum distance wins ties.
func (e *Engine) nearestPrey(el *Element) *Element {
	target, ok := preyOf[el.Kind]
	if !ok {
		return nil
	}
	var best *Element
	bestDist := math.Inf(1)
	for _, cand := range e.store.All() {
		if cand.Kind != target || cand.ID == el.ID || !e.store.Alive(cand.ID) {
			continue
		}
		if d := dist(el.Pos, cand.Pos); d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best
}

func (e *Engine) moveToward(el *Element, target Vec3, step float64) {
	d := dist(el.Pos, target)
	if d == 0 {
		return
	}
	if step > d {
		step = d
	}
	f := step / d
	el.Pos.X += (target.X - el.Pos.X) * f
	el.Pos.Y += (target.Y - el.Pos.Y) * f
	el.Pos.Z += (target.Z - el.Pos.Z) * f
}

// resolveFeeding lets every hungry eater consume the first alive prey in
// list order within eat distance. At most one feed per eater per frame.
func (e *Engine) resolveFeeding() {
	for _, eater := range e.store.All() {
		if !eater.Hungry || !eater.isCreature() || !e.store.Alive(eater.ID) {
			continue
		}
		target := preyOf[eater.Kind]
		for _, prey := range e.store.All() {
			if prey.Kind != target || !e.store.Alive(prey.ID) {
				continue
			}
			if dist(eater.Pos, prey.Pos) > e.cfg.EatDistance {
				continue
			}
			eater.Energy = math.Min(eater.Energy+e.cfg.FeedEnergy, eater.MaxEnergy)
			eater.Hungry = eater.Energy < e.cfg.HungerFraction*eater.MaxEnergy
			if prey.Kind == KindPlant {
				prey.Size -= e.cfg.PlantBite
				if prey.Size <= 0 {
					e.store.Mark(prey.ID)
				}
			} else {
				e.store.Mark(prey.ID)
			}
			break
		}
	}
}

func (e *Engine) removeMarked() {
	for _, el := range e.store.Compact() {
		if el.Player {
			e.player = ""
		}
		e.bus.Publish(protocol.EvElementRemoved, protocol.ElementRemoved{ID: el.ID})
	}
}

func (e *Engine) stateSnapshot() protocol.SimulationState {
	elems := make([]protocol.ElementState, 0, e.store.Len())
	for _, el := range e.store.All() {
		elems = append(elems, el.State())
	}
	return protocol.SimulationState{
		Running:  e.running,
		Paused:   e.paused,
		Speed:    e.speed,
		Planet:   e.planet,
		Elements: elems,
	}
}

func dist(a, b Vec3) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
