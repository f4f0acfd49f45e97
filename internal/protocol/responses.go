package protocol

import "encoding/json"

// Envelope is shared by every API response. Config is the full state file
// after the call.
type Envelope struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Base gives handlers access to the envelope of any response embedding it.
func (e *Envelope) Base() *Envelope { return e }

type AssignResp struct {
	Envelope
	Name      string `json:"name"`
	Cell      string `json:"cell"`
	Previous  string `json:"previous,omitempty"`
	Displaced string `json:"displaced,omitempty"`
	Created   bool   `json:"created,omitempty"`
}

type MoveResp struct {
	Envelope
	Moved   string `json:"moved,omitempty"`
	Swapped string `json:"swapped,omitempty"`
}

type RemoveResp struct {
	Envelope
	Changed bool `json:"changed"`
}

type EditResp struct {
	Envelope
	Name     string `json:"name"`
	Renamed  bool   `json:"renamed,omitempty"`
	Collided string `json:"collided,omitempty"`
	Released string `json:"released,omitempty"`
}

type Placement struct {
	Name string `json:"name"`
	Cell string `json:"cell"`
	Ring int    `json:"ring"`
}

type AutoResp struct {
	Envelope
	Sort     string      `json:"sort"`
	Placed   []Placement `json:"placed"`
	Leftover []string    `json:"leftover"`
}

type UploadCSVResp struct {
	Envelope
	Added     int      `json:"added"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	BlankName int      `json:"blank_name,omitempty"`
	BadHQ     int      `json:"bad_hq,omitempty"`
	Names     []string `json:"names,omitempty"`
}

type RosterEntry struct {
	Name   string `json:"name"`
	Rank   string `json:"rank"`
	HQ     *int   `json:"hq"`
	Power  string `json:"power,omitempty"`
	Notes  string `json:"notes,omitempty"`
	Cell   string `json:"cell,omitempty"`
	Ring   int    `json:"ring"`
	WorldX int    `json:"world_x,omitempty"`
	WorldY int    `json:"world_y,omitempty"`
}

type RosterResp struct {
	Envelope
	Revision uint64        `json:"revision"`
	Roster   []RosterEntry `json:"roster"`
}
