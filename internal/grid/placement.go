package grid

import (
	"sort"
	"strings"
)

type SortField string

const (
	SortRank  SortField = "rank"
	SortPower SortField = "power"
	SortHQ    SortField = "hq"
)

// DefaultSort is the auto-assign priority used when the caller names none.
var DefaultSort = []SortField{SortRank, SortPower}

// ParseSortFields reads a comma-separated field list such as "rank,power".
// Unknown fields are ignored; an empty result falls back to DefaultSort.
func ParseSortFields(list string) []SortField {
	var out []SortField
	for _, part := range strings.Split(list, ",") {
		switch f := SortField(strings.ToLower(strings.TrimSpace(part))); f {
		case SortRank, SortPower, SortHQ:
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return append([]SortField(nil), DefaultSort...)
	}
	return out
}

// FormatSortFields is the inverse of ParseSortFields.
func FormatSortFields(fields []SortField) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

// lessBy compares two members by the composite key; ties fall through to the
// name so ordering never depends on map iteration.
func lessBy(fields []SortField, an string, a Member, bn string, b Member) bool {
	for _, f := range fields {
		switch f {
		case SortRank:
			if sa, sb := a.Rank.Severity(), b.Rank.Severity(); sa != sb {
				return sa < sb
			}
		case SortHQ:
			if ha, hb := a.HQLevel(), b.HQLevel(); ha != hb {
				return ha > hb
			}
		case SortPower:
			if pa, pb := a.PowerValue(), b.PowerValue(); pa != pb {
				return pa > pb
			}
		}
	}
	return an < bn
}

func (s *State) sortMembers(names []string, fields []SortField) {
	sort.SliceStable(names, func(i, j int) bool {
		return lessBy(fields, names[i], s.Members[names[i]], names[j], s.Members[names[j]])
	})
}

// PlacementQueue returns unassigned members in the order auto-assign will
// place them. With rank as the primary field, R5/R4 members all come before
// everyone else.
func (s *State) PlacementQueue(fields []SortField) []string {
	if len(fields) == 0 {
		fields = DefaultSort
	}
	unassigned := s.Unassigned()
	if fields[0] != SortRank {
		s.sortMembers(unassigned, fields)
		return unassigned
	}
	var lead, rest []string
	for _, n := range unassigned {
		if s.Members[n].Rank.Leadership() {
			lead = append(lead, n)
		} else {
			rest = append(rest, n)
		}
	}
	s.sortMembers(lead, fields)
	s.sortMembers(rest, fields)
	return append(lead, rest...)
}

// PlacementCells returns the empty cells nearest ring first, and within a
// ring by bearing from the anchor.
func (s *State) PlacementCells() []Cell {
	cells := s.EmptyCells()
	cfg := s.Config
	sort.SliceStable(cells, func(i, j int) bool {
		ri, rj := cfg.Ring(cells[i]), cfg.Ring(cells[j])
		if ri != rj {
			return ri < rj
		}
		bi, bj := cfg.Bearing(cells[i]), cfg.Bearing(cells[j])
		if bi != bj {
			return bi < bj
		}
		if cells[i].Col != cells[j].Col {
			return cells[i].Col < cells[j].Col
		}
		return cells[i].Row < cells[j].Row
	})
	return cells
}

type Placement struct {
	Name string
	Cell Cell
	Ring int
}

type PlacementReport struct {
	Sort   []SortField
	Placed []Placement
	// Leftover members found no empty cell.
	Leftover []string
}

// AutoAssign fills empty cells with unassigned members, pairing the
// placement queue with the ordered empty cells until either runs out.
func (s *State) AutoAssign(fields []SortField) PlacementReport {
	if len(fields) == 0 {
		fields = DefaultSort
	}
	queue := s.PlacementQueue(fields)
	cells := s.PlacementCells()

	rep := PlacementReport{Sort: fields}
	n := min(len(queue), len(cells))
	for i := 0; i < n; i++ {
		s.Assignments[cells[i]] = queue[i]
		rep.Placed = append(rep.Placed, Placement{Name: queue[i], Cell: cells[i], Ring: s.Config.Ring(cells[i])})
	}
	if n < len(queue) {
		rep.Leftover = append([]string(nil), queue[n:]...)
	}
	return rep
}
