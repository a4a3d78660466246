// Package sim owns the authoritative ecosystem state: the element list and
// the simulation clock. All state is mutated only on the engine loop
// goroutine; collaborators reach it through bus events, which feed a channel
// inbox applied at frame boundaries.
package sim

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/JonJonesBR/Ecosse-sub003/internal/events"
	"github.com/JonJonesBR/Ecosse-sub003/internal/persistence/snapshot"
	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
	"github.com/JonJonesBR/Ecosse-sub003/internal/sim/tuning"
)

type commandOp int

const (
	opStart commandOp = iota + 1
	opStop
	opPause
	opResume
	opReset
	opSpeed
	opPlanet
	opAdd
	opMove
	opLoad
)

type command struct {
	op     commandOp
	speed  float64
	dir    Vec3
	spec   protocol.ElementSpec
	planet protocol.PlanetConfig
	snap   *snapshot.SimulationV1
}

type Engine struct {
	id  string
	cfg tuning.Tuning
	bus *events.Bus
	log *log.Logger
	rng *rand.Rand

	running bool
	paused  bool
	speed   float64
	elapsed float64
	frames  uint64

	planet    protocol.PlanetConfig
	hasPlanet bool

	store  *Store
	player string // id of the player element, empty if none

	inbox    chan command
	stop     chan struct{}
	lastTick time.Time
	ticker   *time.Ticker

	// Optional snapshot sink (may be nil). Snapshot writing is off-thread.
	snapshotSink chan<- snapshot.SimulationV1

	unsubs []func() bool
}

func New(id string, cfg tuning.Tuning, bus *events.Bus, logger *log.Logger) *Engine {
	e := &Engine{
		id:    id,
		cfg:   cfg,
		bus:   bus,
		log:   logger,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		speed: cfg.Speed,
		store: NewStore(),
		inbox: make(chan command, 1024),
		stop:  make(chan struct{}),
	}
	if e.speed <= 0 {
		e.speed = 1.0
	}
	e.attach()
	return e
}

func (e *Engine) SetSnapshotSink(ch chan<- snapshot.SimulationV1) { e.snapshotSink = ch }

// attach subscribes the engine to every consumed control event. Handlers run
// on the publisher's goroutine and only enqueue; the loop goroutine applies.
func (e *Engine) attach() {
	sub := func(name string, fn events.Handler) {
		e.unsubs = append(e.unsubs, e.bus.Subscribe(name, fn, e))
	}
	sub(protocol.EvSimulationStart, func(any) { e.enqueue(command{op: opStart}) })
	sub(protocol.EvSimulationStop, func(any) { e.enqueue(command{op: opStop}) })
	sub(protocol.EvSimulationPause, func(any) { e.enqueue(command{op: opPause}) })
	sub(protocol.EvSimulationResume, func(any) { e.enqueue(command{op: opResume}) })
	sub(protocol.EvSimulationReset, func(any) { e.enqueue(command{op: opReset}) })
	sub(protocol.EvSimulationSpeedChange, func(p any) {
		speed, ok := speedFrom(p)
		if !ok {
			e.log.Printf("sim: SIMULATION_SPEED_CHANGE without numeric speed ignored: %#v", p)
			return
		}
		e.enqueue(command{op: opSpeed, speed: speed})
	})
	sub(protocol.EvPlanetGenerated, func(p any) {
		cfg, ok := planetFrom(p)
		if !ok {
			e.log.Printf("sim: PLANET_GENERATED with unusable payload ignored: %#v", p)
			return
		}
		e.enqueue(command{op: opPlanet, planet: cfg})
	})
	sub(protocol.EvElementAdded, func(p any) {
		spec, ok := elementSpecFrom(p)
		if !ok {
			e.log.Printf("sim: ELEMENT_ADDED with unusable payload ignored: %#v", p)
			return
		}
		e.enqueue(command{op: opAdd, spec: spec})
	})
	sub(protocol.EvPlayerMove, func(p any) {
		dir, ok := directionFrom(p)
		if !ok {
			e.log.Printf("sim: PLAYER_MOVE without direction ignored: %#v", p)
			return
		}
		e.enqueue(command{op: opMove, dir: dir})
	})
	sub(protocol.EvStateLoaded, func(p any) {
		snap, ok := snapshotFrom(p)
		if !ok {
			e.log.Printf("sim: STATE_LOADED with unusable payload ignored: %#v", p)
			return
		}
		e.enqueue(command{op: opLoad, snap: snap})
	})
}

// Detach removes the engine's bus subscriptions.
func (e *Engine) Detach() {
	for _, u := range e.unsubs {
		u()
	}
	e.unsubs = nil
}

func (e *Engine) enqueue(cmd command) {
	select {
	case e.inbox <- cmd:
	default:
		e.log.Printf("sim: inbox full, dropping command op=%d", cmd.op)
	}
}

// Run drives the engine until ctx is canceled or Shutdown is called. Frames
// fire from a ticker armed only while the clock is running and not paused.
func (e *Engine) Run(ctx context.Context) error {
	defer e.disarm()
	for {
		var tick <-chan time.Time
		if e.ticker != nil {
			tick = e.ticker.C
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case cmd := <-e.inbox:
			e.apply(cmd)
		case now := <-tick:
			dt := now.Sub(e.lastTick).Seconds()
			e.lastTick = now
			e.frame(dt)
		}
	}
}

// Shutdown stops the Run loop.
func (e *Engine) Shutdown() { close(e.stop) }

// Drain applies every pending command without blocking. It is the
// deterministic counterpart to Run for tests and replays.
func (e *Engine) Drain() {
	for {
		select {
		case cmd := <-e.inbox:
			e.apply(cmd)
		default:
			return
		}
	}
}

func (e *Engine) apply(cmd command) {
	switch cmd.op {
	case opStart:
		e.start()
	case opStop:
		e.stopClock()
	case opPause:
		e.pause()
	case opResume:
		e.resume()
	case opReset:
		e.reset()
	case opSpeed:
		e.setSpeed(cmd.speed)
	case opPlanet:
		e.setPlanet(cmd.planet)
	case opAdd:
		e.addElement(cmd.spec)
	case opMove:
		e.movePlayer(cmd.dir)
	case opLoad:
		e.applySnapshot(*cmd.snap)
	}
}

func (e *Engine) arm() {
	e.disarm()
	hz := e.cfg.TickRateHz
	if hz <= 0 {
		hz = 30
	}
	e.lastTick = time.Now()
	e.ticker = time.NewTicker(time.Second / time.Duration(hz))
}

func (e *Engine) disarm() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
}

func (e *Engine) start() {
	if e.running {
		return
	}
	e.running = true
	e.paused = false
	e.arm()
	e.bus.Publish(protocol.EvSimulationStarted, nil)
}

func (e *Engine) stopClock() {
	if !e.running {
		return
	}
	e.disarm()
	e.running = false
	e.paused = false
	e.bus.Publish(protocol.EvSimulationStopped, nil)
}

func (e *Engine) pause() {
	if !e.running || e.paused {
		return
	}
	e.disarm()
	e.paused = true
	e.bus.Publish(protocol.EvSimulationPaused, nil)
}

func (e *Engine) resume() {
	if !e.running || !e.paused {
		return
	}
	e.paused = false
	e.arm()
	e.bus.Publish(protocol.EvSimulationResumed, nil)
}

func (e *Engine) reset() {
	e.stopClock()
	e.elapsed = 0
	e.frames = 0
	e.store.Clear()
	e.player = ""
	if e.hasPlanet {
		e.bus.Publish(protocol.EvPlanetGenerationComplete, protocol.PlanetGenerated{Config: e.planet})
	}
	e.bus.Publish(protocol.EvSimulationResetComplete, nil)
}

func (e *Engine) setSpeed(speed float64) {
	e.speed = speed
	e.bus.Publish(protocol.EvSimulationSpeedChanged, protocol.SpeedChange{Speed: speed})
}

func (e *Engine) setPlanet(cfg protocol.PlanetConfig) {
	e.planet = cfg
	e.hasPlanet = true
	e.bus.Publish(protocol.EvPlanetGenerationComplete, protocol.PlanetGenerated{Config: cfg})
}

func (e *Engine) addElement(spec protocol.ElementSpec) {
	kind, err := ParseKind(spec.Kind)
	if err != nil {
		e.log.Printf("sim: %v, treating as generic", err)
	}

	el := &Element{
		ID:     e.newElementID(),
		Kind:   kind,
		Pos:    Vec3{X: spec.Position.X, Y: spec.Position.Y, Z: spec.Position.Z},
		BornAt: e.elapsed,
	}
	d := e.cfg.Defaults
	switch kind {
	case KindHerbivore:
		el.Energy = d.CreatureEnergy
		el.MaxEnergy = d.CreatureMaxEnergy
		el.Consumption = d.HerbivoreConsumption
	case KindCarnivore:
		el.Energy = d.CreatureEnergy
		el.MaxEnergy = d.CreatureMaxEnergy
		el.Consumption = d.CarnivoreConsumption
	case KindPlant:
		el.Size = d.PlantSize
		el.GrowthRate = d.PlantGrowthRate
	}
	applyOverrides(el, spec.Properties)

	if spec.IsPlayer {
		if e.player == "" {
			el.Player = true
			e.player = el.ID
		} else {
			e.log.Printf("sim: player element already present, isPlayer ignored for %s", el.ID)
		}
	}

	e.store.Add(el)
	e.bus.Publish(protocol.EvElementAddedComplete, protocol.ElementAdded{Element: el.State()})
}

func applyOverrides(el *Element, props map[string]float64) {
	for k, v := range props {
		switch k {
		case "energy":
			el.Energy = v
		case "maxEnergy":
			el.MaxEnergy = v
		case "consumptionRate":
			el.Consumption = v
		case "size":
			el.Size = v
		case "growthRate":
			el.GrowthRate = v
		}
	}
}

func (e *Engine) movePlayer(dir Vec3) {
	if e.player == "" {
		return
	}
	p := e.store.Get(e.player)
	if p == nil {
		return
	}
	p.Pos = p.Pos.Add(dir.Scale(e.cfg.PlayerStep))
}

func (e *Engine) newElementID() string {
	return fmt.Sprintf("el_%d_%06d", time.Now().UnixMilli(), e.rng.Intn(1000000))
}

// Payload coercion helpers. In-process publishers use the typed protocol
// structs; the websocket transport decodes into the same types, but a loose
// collaborator may publish plain maps, so both are accepted.

func speedFrom(p any) (float64, bool) {
	switch v := p.(type) {
	case protocol.SpeedChange:
		return v.Speed, true
	case *protocol.SpeedChange:
		return v.Speed, true
	case map[string]any:
		f, ok := v["speed"].(float64)
		return f, ok
	}
	return 0, false
}

func planetFrom(p any) (protocol.PlanetConfig, bool) {
	switch v := p.(type) {
	case protocol.PlanetConfig:
		return v, true
	case *protocol.PlanetConfig:
		return *v, true
	}
	return protocol.PlanetConfig{}, false
}

func elementSpecFrom(p any) (protocol.ElementSpec, bool) {
	switch v := p.(type) {
	case protocol.AddElement:
		return v.Element, true
	case *protocol.AddElement:
		return v.Element, true
	case protocol.ElementSpec:
		return v, true
	case *protocol.ElementSpec:
		return *v, true
	}
	return protocol.ElementSpec{}, false
}

func directionFrom(p any) (Vec3, bool) {
	switch v := p.(type) {
	case protocol.PlayerMove:
		return Vec3{X: v.Direction.X, Y: v.Direction.Y, Z: v.Direction.Z}, true
	case *protocol.PlayerMove:
		return Vec3{X: v.Direction.X, Y: v.Direction.Y, Z: v.Direction.Z}, true
	}
	return Vec3{}, false
}

func snapshotFrom(p any) (*snapshot.SimulationV1, bool) {
	switch v := p.(type) {
	case snapshot.SimulationV1:
		return &v, true
	case *snapshot.SimulationV1:
		return v, true
	}
	return nil, false
}
