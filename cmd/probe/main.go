// Command probe connects to a running server, seeds a planet with a small
// food chain, starts the clock and logs what comes back. Useful for smoke
// testing a deployment without a renderer.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name       = flag.String("name", "probe", "client name")
		planetType = flag.String("planet", "terrestrial", "planet type")
		water      = flag.Float64("water", 0.6, "water coverage 0..1")
		seed       = flag.Int64("seed", 0, "seed for element placement (0 = time-based)")
		withPlayer = flag.Bool("player", false, "also add a player element at the origin")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[probe] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 32},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil || welcome.Type != protocol.TypeWelcome {
		logger.Fatalf("unexpected first message: %s", msg)
	}
	logger.Printf("WELCOME client_id=%s tick_rate=%d speed=%.2f", welcome.ClientID, welcome.SimParams.TickRateHz, welcome.SimParams.Speed)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	seedEcosystem(conn, logger, *planetType, *water, *seed, *withPlayer)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev struct {
			Type    string          `json:"type"`
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(msg, &ev); err != nil || ev.Type != protocol.TypeEvent {
			continue
		}
		switch ev.Event {
		case protocol.EvSimulationUpdated:
			var u protocol.SimulationUpdated
			if err := json.Unmarshal(ev.Payload, &u); err != nil {
				continue
			}
			if u.FrameCount%uint64(max(welcome.SimParams.TickRateHz, 1)) == 0 {
				logger.Printf("frame=%d elapsed=%.1fs elements=%d", u.FrameCount, u.ElapsedTime, len(u.State.Elements))
			}
		case protocol.EvElementRemoved:
			var r protocol.ElementRemoved
			_ = json.Unmarshal(ev.Payload, &r)
			logger.Printf("removed %s", r.ID)
		case protocol.EvSystemError:
			logger.Printf("SYSTEM_ERROR: %s", ev.Payload)
		}
	}
}

// seedEcosystem places flora and fauna scaled by water coverage: wetter
// planets support more plants, which in turn support more herbivores.
func seedEcosystem(conn *websocket.Conn, logger *log.Logger, planetType string, water float64, seed int64, withPlayer bool) {
	send := func(event string, payload any) {
		raw, _ := json.Marshal(payload)
		cmd := protocol.CommandMsg{
			Type:            protocol.TypeCommand,
			ProtocolVersion: protocol.Version,
			Event:           event,
			Payload:         raw,
		}
		if err := conn.WriteJSON(cmd); err != nil {
			logger.Fatalf("send %s: %v", event, err)
		}
	}

	send(protocol.EvPlanetGenerated, protocol.PlanetConfig{
		Type:          planetType,
		Gravity:       9.8,
		Atmosphere:    1.0,
		Luminosity:    1.0,
		WaterCoverage: water,
		Temperature:   288,
	})

	rng := rand.New(rand.NewSource(seed))
	pos := func(radius float64) protocol.Vec3 {
		return protocol.Vec3{
			X: (rng.Float64()*2 - 1) * radius,
			Z: (rng.Float64()*2 - 1) * radius,
		}
	}

	plants := 6 + int(water*20)
	herbivores := 2 + int(water*6)
	carnivores := 1 + int(water*2)

	for i := 0; i < plants; i++ {
		send(protocol.EvElementAdded, protocol.AddElement{Element: protocol.ElementSpec{
			Kind:     "plant",
			Position: pos(30),
		}})
	}
	for i := 0; i < herbivores; i++ {
		send(protocol.EvElementAdded, protocol.AddElement{Element: protocol.ElementSpec{
			Kind:     "herbivore",
			Position: pos(20),
		}})
	}
	for i := 0; i < carnivores; i++ {
		send(protocol.EvElementAdded, protocol.AddElement{Element: protocol.ElementSpec{
			Kind:     "carnivore",
			Position: pos(15),
		}})
	}
	if withPlayer {
		send(protocol.EvElementAdded, protocol.AddElement{Element: protocol.ElementSpec{
			Kind:     "generic",
			IsPlayer: true,
		}})
	}

	send(protocol.EvSimulationStart, nil)
	logger.Printf("seeded planet=%s water=%.2f plants=%d herbivores=%d carnivores=%d", planetType, water, plants, herbivores, carnivores)
}
