package grid

import (
	"strings"

	"github.com/Bullochman/hivegrid/internal/protocol"
)

// Every operation below checks its input before touching the state: an
// error return means s is unchanged.

type AssignResult struct {
	Name string
	Cell Cell
	// Previous is the cell the member left, if any.
	Previous *Cell
	// Displaced is the member that held Cell before and is now unassigned.
	Displaced string
	// Created is set when the member record was added by this call.
	Created bool
}

// Assign places name on cell. A member already on the grid is moved; a
// different occupant of cell is unassigned but kept on the roster; an unknown
// name gets an empty member record.
func (s *State) Assign(name string, cell Cell) (AssignResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return AssignResult{}, validationf(protocol.ErrBadRequest, "name required")
	}
	if err := s.Config.checkAssignable(cell); err != nil {
		return AssignResult{}, err
	}

	key := name
	if k, ok := s.Lookup(name); ok {
		key = k
	}
	res := AssignResult{Name: key, Cell: cell}

	if prev, ok := s.PositionOf(key); ok && prev != cell {
		delete(s.Assignments, prev)
		p := prev
		res.Previous = &p
	}
	if occ, ok := s.Assignments[cell]; ok && occ != key {
		res.Displaced = occ
	}
	s.Assignments[cell] = key
	if _, ok := s.Members[key]; !ok {
		s.Members[key] = Member{}
		res.Created = true
	}
	return res, nil
}

type MoveResult struct {
	// Moved went from -> to; Swapped (if any) went to -> from.
	Moved   string
	Swapped string
}

// Move exchanges the occupants of two cells. When one side is empty the
// occupied side relocates and the other cell is vacated.
func (s *State) Move(from, to Cell) (MoveResult, error) {
	if from == to {
		return MoveResult{}, validationf(protocol.ErrBadRequest, "invalid move: source and destination are both %s", from)
	}
	if s.Config.IsAnchor(from) || s.Config.IsAnchor(to) {
		return MoveResult{}, validationf(protocol.ErrInvalidTarget, "cannot move the anchor cell")
	}
	if err := s.Config.checkAssignable(from); err != nil {
		return MoveResult{}, err
	}
	if err := s.Config.checkAssignable(to); err != nil {
		return MoveResult{}, err
	}

	src, hasSrc := s.Assignments[from]
	dst, hasDst := s.Assignments[to]
	delete(s.Assignments, from)
	delete(s.Assignments, to)
	var res MoveResult
	if hasSrc {
		s.Assignments[to] = src
		res.Moved = src
	}
	if hasDst {
		s.Assignments[from] = dst
		res.Swapped = dst
	}
	return res, nil
}

// Swap exchanges the cells of two assigned members.
func (s *State) Swap(a, b string) error {
	pa, ok := s.PositionOf(strings.TrimSpace(a))
	if !ok {
		return notFoundf("%q not on grid", a)
	}
	pb, ok := s.PositionOf(strings.TrimSpace(b))
	if !ok {
		return notFoundf("%q not on grid", b)
	}
	na, nb := s.Assignments[pa], s.Assignments[pb]
	s.Assignments[pa] = nb
	s.Assignments[pb] = na
	return nil
}

// Unassign frees the member's cell. It reports whether a cell was freed.
func (s *State) Unassign(name string) bool {
	pos, ok := s.PositionOf(strings.TrimSpace(name))
	if !ok {
		return false
	}
	delete(s.Assignments, pos)
	return true
}

// Delete unassigns the member and drops the roster record.
func (s *State) Delete(name string) bool {
	name = strings.TrimSpace(name)
	key := name
	if k, ok := s.Lookup(name); ok {
		key = k
	}
	removed := s.Unassign(key)
	if _, ok := s.Members[key]; ok {
		delete(s.Members, key)
		removed = true
	}
	return removed
}

type EditRequest struct {
	OldName string
	Name    string
	Rank    Rank
	HQ      *int
	Power   string
	Notes   string
}

type EditResult struct {
	Name    string
	Renamed bool
	// Collided names the pre-existing member whose record was replaced
	// because the new name was already taken.
	Collided string
	// Released is the cell given up by the collided member so that no
	// name holds two cells.
	Released *Cell
}

// Edit replaces OldName's record with a record under Name, carrying the grid
// position across a rename. If Name already belongs to another member that
// record is overwritten.
func (s *State) Edit(req EditRequest) (EditResult, error) {
	newName := strings.TrimSpace(req.Name)
	if newName == "" {
		return EditResult{}, validationf(protocol.ErrBadRequest, "name required")
	}
	oldName := strings.TrimSpace(req.OldName)
	if k, ok := s.Lookup(oldName); ok && oldName != "" {
		oldName = k
	}

	_, oldExists := s.Members[oldName]
	res := EditResult{Name: newName, Renamed: oldExists && oldName != newName}

	var pos Cell
	hasPos := false
	if oldName != "" {
		pos, hasPos = s.exactPosition(oldName)
	}
	if oldName != newName {
		if _, taken := s.Members[newName]; taken {
			res.Collided = newName
		}
	}

	if oldExists {
		delete(s.Members, oldName)
	}
	s.Members[newName] = Member{
		Rank:  req.Rank,
		HQ:    req.HQ,
		Power: strings.TrimSpace(req.Power),
		Notes: strings.TrimSpace(req.Notes),
	}.clone()

	if hasPos && oldName != newName {
		if cpos, ok := s.exactPosition(newName); ok && res.Collided != "" {
			delete(s.Assignments, cpos)
			c := cpos
			res.Released = &c
		}
		s.Assignments[pos] = newName
	}
	return res, nil
}

func (s *State) exactPosition(name string) (Cell, bool) {
	for c, v := range s.Assignments {
		if v == name {
			return c, true
		}
	}
	return Cell{}, false
}

type ClearMode string

const (
	ClearAssignments ClearMode = "assignments"
	ClearAll         ClearMode = "all"
)

// ParseClearMode maps "" to ClearAssignments and rejects unknown modes.
func ParseClearMode(s string) (ClearMode, error) {
	switch ClearMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ClearAssignments:
		return ClearAssignments, nil
	case ClearAll:
		return ClearAll, nil
	default:
		return "", validationf(protocol.ErrBadRequest, "unknown clear mode %q", s)
	}
}

func (s *State) Clear(mode ClearMode) error {
	if mode != ClearAssignments && mode != ClearAll {
		return validationf(protocol.ErrBadRequest, "unknown clear mode %q", mode)
	}
	s.Assignments = map[Cell]string{}
	if mode == ClearAll {
		s.Members = map[string]Member{}
	}
	return nil
}

// SetAnchorWorld moves the anchor's world coordinate; every cell's world
// coordinate follows.
func (s *State) SetAnchorWorld(x, y int) {
	s.Config.AnchorWorldX = x
	s.Config.AnchorWorldY = y
}

func (s *State) SetAlliance(name string) { s.Alliance = strings.TrimSpace(name) }
