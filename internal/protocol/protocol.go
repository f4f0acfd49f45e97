package protocol

import "encoding/json"

// Version is the observer stream protocol version.
const Version = "1.0"

// Observer message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeGrid      = "GRID"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// SUBSCRIBE (client -> server). First message on the observer connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Roster asks for the ring-ordered roster alongside each grid.
	Roster bool `json:"roster,omitempty"`
}

// GRID (server -> client). Sent once after SUBSCRIBE and after every
// committed change.
type GridMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Revision        uint64          `json:"revision"`
	Op              string          `json:"op,omitempty"`
	Source          string          `json:"source,omitempty"`
	Config          json.RawMessage `json:"config"`
	Roster          []RosterEntry   `json:"roster,omitempty"`
}
