// Package ws bridges remote collaborators (renderer, panel UI, bots) to the
// in-process event bus over a JSON websocket protocol.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JonJonesBR/Ecosse-sub003/internal/events"
	"github.com/JonJonesBR/Ecosse-sub003/internal/persistence/snapshot"
	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
)

type Server struct {
	bus    *events.Bus
	params protocol.SimParams
	log    *log.Logger

	nextClient atomic.Uint64

	upgrader websocket.Upgrader
}

func NewServer(bus *events.Bus, params protocol.SimParams, logger *log.Logger) *Server {
	return &Server{
		bus:    bus,
		params: params,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		clientID, out := s.handshake(conn)
		if clientID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Mirror every produced bus event to this client. SIMULATION_UPDATED
		// is coalesced (latest wins); everything else is dropped only when
		// the client cannot keep up.
		var unsubs []func() bool
		for _, name := range protocol.ProducedEvents {
			name := name
			unsubs = append(unsubs, s.bus.Subscribe(name, func(p any) {
				b, err := json.Marshal(protocol.EventMsg{
					Type:            protocol.TypeEvent,
					ProtocolVersion: protocol.Version,
					Event:           name,
					Payload:         p,
				})
				if err != nil {
					return
				}
				if name == protocol.EvSimulationUpdated {
					sendLatest(out, b)
					return
				}
				select {
				case out <- b:
				default:
				}
			}, clientID))
		}
		defer func() {
			for _, u := range unsubs {
				u()
			}
		}()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeCommand {
				continue
			}
			var cmd protocol.CommandMsg
			if err := json.Unmarshal(msg, &cmd); err != nil {
				continue
			}
			if cmd.ProtocolVersion != protocol.Version {
				continue
			}
			if !protocol.ConsumedEvents[cmd.Event] {
				s.log.Printf("ws: client %s sent unknown event %q", clientID, cmd.Event)
				continue
			}
			payload, err := decodeCommandPayload(cmd.Event, cmd.Payload)
			if err != nil {
				s.log.Printf("ws: client %s bad %s payload: %v", clientID, cmd.Event, err)
				continue
			}
			s.bus.Publish(cmd.Event, payload)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (clientID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 16
	}
	if maxQ > 128 {
		maxQ = 128
	}
	out = make(chan []byte, maxQ)

	clientID = fmt.Sprintf("C%d", s.nextClient.Add(1))
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ClientID:        clientID,
		SimParams:       s.params,
	}
	b, err := json.Marshal(welcome)
	if err != nil {
		return "", nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return "", nil
	}
	return clientID, out
}

// decodeCommandPayload turns the raw JSON payload of one COMMAND into the
// typed value the engine's bus handlers expect. Control events carry none.
func decodeCommandPayload(event string, raw json.RawMessage) (any, error) {
	switch event {
	case protocol.EvSimulationSpeedChange:
		// Decoded loosely so a payload without a numeric speed stays
		// distinguishable from speed 0 and gets ignored by the engine.
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case protocol.EvPlanetGenerated:
		var cfg protocol.PlanetConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case protocol.EvElementAdded:
		var add protocol.AddElement
		if err := json.Unmarshal(raw, &add); err != nil {
			return nil, err
		}
		return add, nil
	case protocol.EvPlayerMove:
		var mv protocol.PlayerMove
		if err := json.Unmarshal(raw, &mv); err != nil {
			return nil, err
		}
		return mv, nil
	case protocol.EvStateLoaded:
		var snap snapshot.SimulationV1
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, err
		}
		return snap, nil
	}
	return nil, nil
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
