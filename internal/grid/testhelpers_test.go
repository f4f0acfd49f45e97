package grid

import "testing"

func newTestState(t *testing.T) *State {
	t.Helper()
	return NewState(DefaultConfig())
}

func mustAssign(t *testing.T, s *State, name string, col, row int) {
	t.Helper()
	if _, err := s.Assign(name, Cell{Col: col, Row: row}); err != nil {
		t.Fatalf("Assign(%q,%d,%d): %v", name, col, row, err)
	}
}

func mustValid(t *testing.T, s *State) {
	t.Helper()
	if err := s.Validate(); err != nil {
		t.Fatalf("state invalid: %v", err)
	}
}
