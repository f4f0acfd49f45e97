package grid

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAssignDisplacesOccupant(t *testing.T) {
	s := newTestState(t)
	mustAssign(t, s, "Alice", 1, 1)
	res, err := s.Assign("Bob", Cell{1, 1})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Displaced != "Alice" || !res.Created {
		t.Fatalf("result=%+v", res)
	}
	if got := s.Assignments[Cell{1, 1}]; got != "Bob" {
		t.Fatalf("cell holds %q want Bob", got)
	}
	if _, ok := s.PositionOf("Alice"); ok {
		t.Fatalf("Alice should be unassigned")
	}
	if _, ok := s.Members["Alice"]; !ok {
		t.Fatalf("Alice must stay on the roster")
	}
	mustValid(t, s)
}

func TestAssignMovesExistingMember(t *testing.T) {
	s := newTestState(t)
	s.Members["Alice"] = Member{Rank: R4, Power: "10M"}
	mustAssign(t, s, "alice", 1, 1)
	res, err := s.Assign("ALICE", Cell{2, 2})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Name != "Alice" || res.Previous == nil || *res.Previous != (Cell{1, 1}) || res.Created {
		t.Fatalf("result=%+v", res)
	}
	want := map[Cell]string{{2, 2}: "Alice"}
	if diff := cmp.Diff(want, s.Assignments); diff != "" {
		t.Fatalf("assignments (-want +got):\n%s", diff)
	}
	if s.Members["Alice"].Rank != R4 {
		t.Fatalf("existing record overwritten")
	}
}

func TestAssignRejectsWithoutChange(t *testing.T) {
	s := newTestState(t)
	mustAssign(t, s, "Alice", 1, 1)
	before := s.Clone()

	cases := []struct {
		name string
		cell Cell
	}{
		{"Alice", Cell{4, 4}},
		{"Alice", Cell{10, 0}},
		{"Alice", Cell{0, -1}},
		{"  ", Cell{2, 2}},
	}
	for _, tc := range cases {
		if _, err := s.Assign(tc.name, tc.cell); !IsValidation(err) {
			t.Fatalf("Assign(%q,%v) err=%v want validation", tc.name, tc.cell, err)
		}
	}
	if diff := cmp.Diff(before, s); diff != "" {
		t.Fatalf("state changed on rejected assign:\n%s", diff)
	}
}

func TestMoveIntoEmptyCell(t *testing.T) {
	s := newTestState(t)
	mustAssign(t, s, "Carol", 9, 9)
	res, err := s.Move(Cell{0, 0}, Cell{9, 9})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if res.Moved != "" || res.Swapped != "Carol" {
		t.Fatalf("result=%+v", res)
	}
	want := map[Cell]string{{0, 0}: "Carol"}
	if diff := cmp.Diff(want, s.Assignments); diff != "" {
		t.Fatalf("assignments (-want +got):\n%s", diff)
	}
}

func TestMoveRoundTrip(t *testing.T) {
	s := newTestState(t)
	mustAssign(t, s, "Alice", 1, 1)
	mustAssign(t, s, "Bob", 2, 2)
	mustAssign(t, s, "Carol", 3, 3)
	before := s.Clone()

	a, b := Cell{1, 1}, Cell{2, 2}
	if _, err := s.Move(a, b); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if s.Assignments[a] != "Bob" || s.Assignments[b] != "Alice" {
		t.Fatalf("not swapped: %v", s.Assignments)
	}
	if _, err := s.Move(b, a); err != nil {
		t.Fatalf("Move back: %v", err)
	}
	if diff := cmp.Diff(before.Assignments, s.Assignments); diff != "" {
		t.Fatalf("round trip changed assignments:\n%s", diff)
	}
}

func TestMoveRejects(t *testing.T) {
	s := newTestState(t)
	mustAssign(t, s, "Alice", 1, 1)
	before := s.Clone()
	cases := [][2]Cell{
		{{1, 1}, {1, 1}},
		{{1, 1}, {4, 4}},
		{{4, 4}, {1, 1}},
		{{1, 1}, {12, 0}},
	}
	for _, tc := range cases {
		if _, err := s.Move(tc[0], tc[1]); !IsValidation(err) {
			t.Fatalf("Move(%v,%v) err=%v want validation", tc[0], tc[1], err)
		}
	}
	if diff := cmp.Diff(before, s); diff != "" {
		t.Fatalf("state changed:\n%s", diff)
	}
}

func TestSwap(t *testing.T) {
	s := newTestState(t)
	mustAssign(t, s, "Alice", 1, 1)
	mustAssign(t, s, "Bob", 2, 2)
	s.Members["Dave"] = Member{}

	if err := s.Swap("alice", "Bob"); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if s.Assignments[Cell{1, 1}] != "Bob" || s.Assignments[Cell{2, 2}] != "Alice" {
		t.Fatalf("swap failed: %v", s.Assignments)
	}
	before := s.Clone()
	if err := s.Swap("Alice", "Dave"); !IsNotFound(err) {
		t.Fatalf("Swap with unassigned member err=%v want not found", err)
	}
	if diff := cmp.Diff(before, s); diff != "" {
		t.Fatalf("state changed:\n%s", diff)
	}
}

func TestUnassignIsIdempotent(t *testing.T) {
	s := newTestState(t)
	mustAssign(t, s, "Alice", 1, 1)
	if !s.Unassign("Alice") {
		t.Fatalf("first unassign should free a cell")
	}
	once := s.Clone()
	if s.Unassign("Alice") {
		t.Fatalf("second unassign should be a no-op")
	}
	if diff := cmp.Diff(once, s); diff != "" {
		t.Fatalf("second unassign changed state:\n%s", diff)
	}
	if _, ok := s.Members["Alice"]; !ok {
		t.Fatalf("unassign removed the member")
	}
}

func TestDelete(t *testing.T) {
	s := newTestState(t)
	mustAssign(t, s, "Alice", 1, 1)
	if !s.Delete("Alice") {
		t.Fatalf("delete reported nothing removed")
	}
	if len(s.Members) != 0 || len(s.Assignments) != 0 {
		t.Fatalf("delete left %v / %v", s.Members, s.Assignments)
	}
	if s.Delete("Alice") {
		t.Fatalf("second delete should be a no-op")
	}
}

func TestEditRenameKeepsCell(t *testing.T) {
	s := newTestState(t)
	s.Members["KittijKittij"] = Member{Rank: R3, Notes: "old"}
	mustAssign(t, s, "KittijKittij", 3, 3)

	res, err := s.Edit(EditRequest{OldName: "KittijKittij", Name: "KittyKitty", Rank: R4, HQ: HQ(27), Power: "31.2M"})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !res.Renamed || res.Collided != "" {
		t.Fatalf("result=%+v", res)
	}
	if s.Assignments[Cell{3, 3}] != "KittyKitty" {
		t.Fatalf("cell not renamed: %v", s.Assignments)
	}
	if _, ok := s.Members["KittijKittij"]; ok {
		t.Fatalf("old record kept")
	}
	m := s.Members["KittyKitty"]
	if m.Rank != R4 || m.HQLevel() != 27 || m.Power != "31.2M" || m.Notes != "" {
		t.Fatalf("record=%+v", m)
	}
	mustValid(t, s)
}

func TestEditCollisionOverwritesAndKeepsInvariant(t *testing.T) {
	s := newTestState(t)
	s.Members["Ann"] = Member{Rank: R2}
	s.Members["Bea"] = Member{Rank: R5, Power: "99M"}
	mustAssign(t, s, "Ann", 1, 1)
	mustAssign(t, s, "Bea", 2, 2)

	res, err := s.Edit(EditRequest{OldName: "Ann", Name: "Bea", Rank: R2})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if res.Collided != "Bea" || res.Released == nil || *res.Released != (Cell{2, 2}) {
		t.Fatalf("result=%+v", res)
	}
	if s.Members["Bea"].Rank != R2 || len(s.Members) != 1 {
		t.Fatalf("members=%v", s.Members)
	}
	want := map[Cell]string{{1, 1}: "Bea"}
	if diff := cmp.Diff(want, s.Assignments); diff != "" {
		t.Fatalf("assignments (-want +got):\n%s", diff)
	}
	mustValid(t, s)
}

func TestEditRequiresName(t *testing.T) {
	s := newTestState(t)
	s.Members["Ann"] = Member{}
	before := s.Clone()
	if _, err := s.Edit(EditRequest{OldName: "Ann", Name: " "}); !IsValidation(err) {
		t.Fatalf("err=%v want validation", err)
	}
	if diff := cmp.Diff(before, s); diff != "" {
		t.Fatalf("state changed:\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	s := newTestState(t)
	mustAssign(t, s, "Alice", 1, 1)
	if err := s.Clear(ClearAssignments); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(s.Assignments) != 0 || len(s.Members) != 1 {
		t.Fatalf("clear assignments: %v %v", s.Assignments, s.Members)
	}
	if err := s.Clear(ClearAll); err != nil {
		t.Fatalf("Clear all: %v", err)
	}
	if len(s.Members) != 0 {
		t.Fatalf("clear all left members")
	}
	if _, err := ParseClearMode("everything"); !IsValidation(err) {
		t.Fatalf("unknown mode err=%v", err)
	}
	if m, err := ParseClearMode(""); err != nil || m != ClearAssignments {
		t.Fatalf("default mode=%q err=%v", m, err)
	}
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	s := newTestState(t)
	rng := rand.New(rand.NewSource(7))
	names := []string{"Ann", "Bea", "Cid", "Dot", "Eve", "Fay"}
	cell := func() Cell { return Cell{Col: rng.Intn(12) - 1, Row: rng.Intn(12) - 1} }

	for i := 0; i < 2000; i++ {
		name := names[rng.Intn(len(names))]
		before := s.Clone()
		var err error
		switch rng.Intn(8) {
		case 0, 1:
			_, err = s.Assign(name, cell())
		case 2:
			_, err = s.Move(cell(), cell())
		case 3:
			err = s.Swap(name, names[rng.Intn(len(names))])
		case 4:
			s.Unassign(name)
		case 5:
			s.Delete(name)
		case 6:
			_, err = s.Edit(EditRequest{OldName: name, Name: names[rng.Intn(len(names))], Rank: Ranks[rng.Intn(len(Ranks))]})
		case 7:
			s.AutoAssign(DefaultSort)
		}
		if err != nil {
			if diff := cmp.Diff(before, s); diff != "" {
				t.Fatalf("step %d: failed op changed state: %v\n%s", i, err, diff)
			}
		}
		if verr := s.Validate(); verr != nil {
			t.Fatalf("step %d: %v", i, verr)
		}
	}
}
