package hive

import (
	"github.com/Bullochman/hivegrid/internal/grid"
	"github.com/Bullochman/hivegrid/internal/protocol"
)

// RosterView is the wire form of grid.State.Roster shared by the HTTP API
// and the observer stream.
func RosterView(st *grid.State) []protocol.RosterEntry {
	entries := st.Roster()
	out := make([]protocol.RosterEntry, 0, len(entries))
	for _, e := range entries {
		re := protocol.RosterEntry{
			Name:  e.Name,
			Rank:  e.Member.Rank.String(),
			HQ:    e.Member.HQ,
			Power: e.Member.Power,
			Notes: e.Member.Notes,
			Ring:  e.Ring,
		}
		if e.Cell != nil {
			re.Cell = e.Cell.String()
			re.WorldX, re.WorldY = e.WorldX, e.WorldY
		}
		out = append(out, re)
	}
	return out
}
