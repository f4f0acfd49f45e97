package grid

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// State is the whole hive: geometry, roster and cell assignments. Callers
// load it, mutate a Clone, and persist the result as a unit.
type State struct {
	Alliance    string
	Config      Config
	Members     map[string]Member
	Assignments map[Cell]string
}

func NewState(cfg Config) *State {
	return &State{
		Config:      cfg,
		Members:     map[string]Member{},
		Assignments: map[Cell]string{},
	}
}

func (s *State) Clone() *State {
	out := &State{
		Alliance:    s.Alliance,
		Config:      s.Config,
		Members:     make(map[string]Member, len(s.Members)),
		Assignments: make(map[Cell]string, len(s.Assignments)),
	}
	for k, v := range s.Members {
		out.Members[k] = v.clone()
	}
	for k, v := range s.Assignments {
		out.Assignments[k] = v
	}
	return out
}

// foldName builds a fresh Caser per call; Casers carry state and must not be
// shared across goroutines.
func foldName(s string) string { return cases.Fold().String(s) }

// Lookup resolves a typed name to a member key: exact match first, then a
// case-insensitive match. Ambiguous case-insensitive matches do not resolve.
func (s *State) Lookup(name string) (string, bool) {
	if _, ok := s.Members[name]; ok {
		return name, true
	}
	want := foldName(name)
	found := ""
	for k := range s.Members {
		if foldName(k) != want {
			continue
		}
		if found != "" {
			return "", false
		}
		found = k
	}
	return found, found != ""
}

// PositionOf returns the cell held by the named member. Matching follows
// Lookup rules; an assigned name without a record still matches exactly.
func (s *State) PositionOf(name string) (Cell, bool) {
	key := name
	if k, ok := s.Lookup(name); ok {
		key = k
	}
	for c, v := range s.Assignments {
		if v == key {
			return c, true
		}
	}
	return Cell{}, false
}

func (s *State) Occupant(c Cell) (string, bool) {
	v, ok := s.Assignments[c]
	return v, ok
}

// Positions maps every assigned member to its cell.
func (s *State) Positions() map[string]Cell {
	out := make(map[string]Cell, len(s.Assignments))
	for c, v := range s.Assignments {
		out[v] = c
	}
	return out
}

// Unassigned returns members without a cell, sorted by name.
func (s *State) Unassigned() []string {
	placed := s.Positions()
	out := make([]string, 0, len(s.Members))
	for name := range s.Members {
		if _, ok := placed[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// EmptyCells lists every unoccupied, non-anchor cell in column-major order.
func (s *State) EmptyCells() []Cell {
	var out []Cell
	for col := 0; col < s.Config.Cols; col++ {
		for row := 0; row < s.Config.Rows; row++ {
			c := Cell{Col: col, Row: row}
			if s.Config.IsAnchor(c) {
				continue
			}
			if _, ok := s.Assignments[c]; ok {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

// Validate checks the geometry and every assignment invariant.
func (s *State) Validate() error {
	if err := s.Config.Validate(); err != nil {
		return err
	}
	var problems []string
	seen := map[string]Cell{}
	for _, c := range sortedCells(s.Assignments) {
		name := s.Assignments[c]
		if !s.Config.InBounds(c) {
			problems = append(problems, fmt.Sprintf("cell %s out of bounds", c))
		}
		if s.Config.IsAnchor(c) {
			problems = append(problems, fmt.Sprintf("anchor cell %s is assigned", c))
		}
		if _, ok := s.Members[name]; !ok {
			problems = append(problems, fmt.Sprintf("cell %s holds unknown member %q", c, name))
		}
		if prev, dup := seen[name]; dup {
			problems = append(problems, fmt.Sprintf("member %q holds %s and %s", name, prev, c))
		}
		seen[name] = c
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid grid state: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Normalize repairs a freshly loaded state so that Validate passes on the
// assignments: invalid cells and duplicate holders are dropped and missing
// member records are created. It returns one line per repair.
func (s *State) Normalize() []string {
	if s.Members == nil {
		s.Members = map[string]Member{}
	}
	if s.Assignments == nil {
		s.Assignments = map[Cell]string{}
	}
	var fixes []string
	seen := map[string]bool{}
	for _, c := range sortedCells(s.Assignments) {
		name := s.Assignments[c]
		switch {
		case !s.Config.InBounds(c):
			fixes = append(fixes, fmt.Sprintf("dropped %q from out-of-bounds cell %s", name, c))
			delete(s.Assignments, c)
		case s.Config.IsAnchor(c):
			fixes = append(fixes, fmt.Sprintf("dropped %q from anchor cell %s", name, c))
			delete(s.Assignments, c)
		case strings.TrimSpace(name) == "":
			fixes = append(fixes, fmt.Sprintf("dropped blank name from cell %s", c))
			delete(s.Assignments, c)
		case seen[name]:
			fixes = append(fixes, fmt.Sprintf("dropped duplicate %q from cell %s", name, c))
			delete(s.Assignments, c)
		default:
			seen[name] = true
			if _, ok := s.Members[name]; !ok {
				s.Members[name] = Member{}
				fixes = append(fixes, fmt.Sprintf("created missing member record %q", name))
			}
		}
	}
	return fixes
}

// sortedCells orders cells by column then row.
func sortedCells(m map[Cell]string) []Cell {
	out := make([]Cell, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Col != out[j].Col {
			return out[i].Col < out[j].Col
		}
		return out[i].Row < out[j].Row
	})
	return out
}
