package grid

import "sort"

// ExportRow is one line of the flat roster export.
type ExportRow struct {
	Rank  Rank
	Name  string
	HQ    *int
	Power string
	Notes string
}

// ExportRows projects the roster sorted by rank (R5 first) then name.
func (s *State) ExportRows() []ExportRow {
	rows := make([]ExportRow, 0, len(s.Members))
	for name, m := range s.Members {
		rows = append(rows, ExportRow{Rank: m.Rank, Name: name, HQ: m.HQ, Power: m.Power, Notes: m.Notes})
	}
	sort.Slice(rows, func(i, j int) bool {
		if si, sj := rows[i].Rank.Severity(), rows[j].Rank.Severity(); si != sj {
			return si < sj
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

type RosterEntry struct {
	Name   string
	Member Member
	// Cell is nil and Ring is -1 for unassigned members.
	Cell   *Cell
	Ring   int
	WorldX int
	WorldY int
}

// Roster lists assigned members by ring (closest first, then power), followed
// by unassigned members in auto-assign order.
func (s *State) Roster() []RosterEntry {
	var placed []RosterEntry
	for c, name := range s.Assignments {
		cell := c
		x, y := s.Config.WorldCoord(cell)
		placed = append(placed, RosterEntry{
			Name:   name,
			Member: s.Members[name],
			Cell:   &cell,
			Ring:   s.Config.Ring(cell),
			WorldX: x,
			WorldY: y,
		})
	}
	sort.Slice(placed, func(i, j int) bool {
		if placed[i].Ring != placed[j].Ring {
			return placed[i].Ring < placed[j].Ring
		}
		if pi, pj := placed[i].Member.PowerValue(), placed[j].Member.PowerValue(); pi != pj {
			return pi > pj
		}
		return placed[i].Name < placed[j].Name
	})
	for _, name := range s.PlacementQueue(DefaultSort) {
		placed = append(placed, RosterEntry{Name: name, Member: s.Members[name], Ring: -1})
	}
	return placed
}
