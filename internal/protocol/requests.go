package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Request bodies for POST /api/<name>.

type AssignReq struct {
	Name string `json:"name"`
	Col  int    `json:"col"`
	Row  int    `json:"row"`
}

// MoveReq cells use the "col,row" form.
type MoveReq struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type SwapReq struct {
	A string `json:"a"`
	B string `json:"b"`
}

// NameReq is the body of unassign and delete.
type NameReq struct {
	Name string `json:"name"`
}

type EditReq struct {
	OldName string  `json:"old_name"`
	Name    string  `json:"name"`
	Rank    string  `json:"rank"`
	HQ      HQField `json:"hq"`
	Power   string  `json:"power"`
	Notes   string  `json:"notes"`
}

type ClearReq struct {
	Mode string `json:"mode"`
}

type AutoReq struct {
	SortBy string `json:"sort_by"`
}

type UploadCSVReq struct {
	CSV string `json:"csv"`
	// Policy is "dominance" (default) or "always".
	Policy string `json:"policy,omitempty"`
}

type SetNameReq struct {
	AllianceName string `json:"alliance_name"`
}

// SetMGReq coordinates left out keep their current value.
type SetMGReq struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

// HQField holds the raw text of an hq value sent as a number, a string or
// null. Parsing is left to the caller.
type HQField string

func (h *HQField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*h = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*h = HQField(strings.TrimSpace(s))
		return nil
	}
	*h = HQField(b)
	return nil
}
