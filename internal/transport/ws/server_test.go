package ws

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JonJonesBR/Ecosse-sub003/internal/events"
	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
)

func dialTestServer(t *testing.T, bus *events.Bus) *websocket.Conn {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	s := NewServer(bus, protocol.SimParams{TickRateHz: 30, Speed: 1, HistoryLimit: 50}, logger)
	h := httptest.NewServer(s.Handler())
	t.Cleanup(h.Close)

	url := "ws" + strings.TrimPrefix(h.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandshake_HelloWelcome(t *testing.T) {
	bus := events.New(log.New(io.Discard, "", 0), 0)
	conn := dialTestServer(t, bus)

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "test",
	}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("send HELLO: %v", err)
	}

	var welcome protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read WELCOME: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome || welcome.ClientID == "" {
		t.Fatalf("welcome: %+v", welcome)
	}
	if welcome.SimParams.TickRateHz != 30 {
		t.Fatalf("sim params: %+v", welcome.SimParams)
	}
}

func TestHandshake_NonHelloRejected(t *testing.T) {
	bus := events.New(log.New(io.Discard, "", 0), 0)
	conn := dialTestServer(t, bus)

	if err := conn.WriteJSON(protocol.CommandMsg{Type: protocol.TypeCommand, ProtocolVersion: protocol.Version, Event: protocol.EvSimulationStart}); err != nil {
		t.Fatalf("send: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected close after non-HELLO first message")
	}
}

func TestCommands_PublishOntoBusAndEventsMirrorBack(t *testing.T) {
	bus := events.New(log.New(io.Discard, "", 0), 0)

	started := make(chan struct{}, 1)
	bus.Subscribe(protocol.EvSimulationStart, func(any) { started <- struct{}{} }, nil)

	moved := make(chan protocol.PlayerMove, 1)
	bus.Subscribe(protocol.EvPlayerMove, func(p any) {
		if mv, ok := p.(protocol.PlayerMove); ok {
			moved <- mv
		}
	}, nil)

	conn := dialTestServer(t, bus)
	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"}); err != nil {
		t.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read WELCOME: %v", err)
	}

	send := func(event string, payload any) {
		t.Helper()
		var raw json.RawMessage
		if payload != nil {
			b, err := json.Marshal(payload)
			if err != nil {
				t.Fatalf("marshal payload: %v", err)
			}
			raw = b
		}
		if err := conn.WriteJSON(protocol.CommandMsg{
			Type:            protocol.TypeCommand,
			ProtocolVersion: protocol.Version,
			Event:           event,
			Payload:         raw,
		}); err != nil {
			t.Fatalf("send %s: %v", event, err)
		}
	}

	send(protocol.EvSimulationStart, nil)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("SIMULATION_START never reached the bus")
	}

	send(protocol.EvPlayerMove, protocol.PlayerMove{Direction: protocol.Vec3{X: 1}})
	select {
	case mv := <-moved:
		if mv.Direction.X != 1 {
			t.Fatalf("direction: %+v", mv.Direction)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PLAYER_MOVE never reached the bus")
	}

	// Unknown events are not published.
	send("NOT_AN_EVENT", nil)

	// Produced bus events are mirrored to the client as EVENT messages.
	bus.Publish(protocol.EvElementRemoved, protocol.ElementRemoved{ID: "el_1"})
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var ev protocol.EventMsg
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read EVENT: %v", err)
		}
		if ev.Event != protocol.EvElementRemoved {
			continue
		}
		m, ok := ev.Payload.(map[string]any)
		if !ok || m["id"] != "el_1" {
			t.Fatalf("payload: %#v", ev.Payload)
		}
		return
	}
}

func TestDecodeCommandPayload_SpeedStaysLoose(t *testing.T) {
	p, err := decodeCommandPayload(protocol.EvSimulationSpeedChange, json.RawMessage(`{"speed":2}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, ok := p.(map[string]any)
	if !ok || m["speed"] != 2.0 {
		t.Fatalf("payload: %#v", p)
	}

	p, err = decodeCommandPayload(protocol.EvSimulationSpeedChange, json.RawMessage(`{"speed":"fast"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := p.(map[string]any)["speed"].(float64); ok {
		t.Fatal("non-numeric speed decoded as number")
	}
}
