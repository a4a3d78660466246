package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	ClientID        string    `json:"client_id"`
	SimParams       SimParams `json:"sim_params"`
}

type SimParams struct {
	TickRateHz          int     `json:"tick_rate_hz"`
	Speed               float64 `json:"speed"`
	HistoryLimit        int     `json:"history_limit"`
	SnapshotEveryFrames int     `json:"snapshot_every_frames"`
}

// COMMAND (client -> server): injects one consumed bus event.
type CommandMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Event           string          `json:"event"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// EVENT (server -> client): mirrors one produced bus event.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Event           string `json:"event"`
	Payload         any    `json:"payload,omitempty"`
}
