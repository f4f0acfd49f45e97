package grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Bullochman/hivegrid/internal/protocol"
)

// Cell addresses one grid slot by column and row.
type Cell struct {
	Col int
	Row int
}

func (c Cell) String() string { return strconv.Itoa(c.Col) + "," + strconv.Itoa(c.Row) }

// ParseCell parses the "col,row" form used by the state file, the HTTP API
// and the CLI.
func ParseCell(s string) (Cell, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cell{}, validationf(protocol.ErrBadRequest, "missing cell")
	}
	cs, rs, ok := strings.Cut(s, ",")
	if !ok {
		return Cell{}, validationf(protocol.ErrBadRequest, "malformed cell %q: want col,row", s)
	}
	col, err1 := strconv.Atoi(strings.TrimSpace(cs))
	row, err2 := strconv.Atoi(strings.TrimSpace(rs))
	if err1 != nil || err2 != nil {
		return Cell{}, validationf(protocol.ErrBadRequest, "malformed cell %q: col and row must be integers", s)
	}
	return Cell{Col: col, Row: row}, nil
}

func (c Cell) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Cell) UnmarshalText(b []byte) error {
	v, err := ParseCell(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c Config) InBounds(cell Cell) bool {
	return cell.Col >= 0 && cell.Col < c.Cols && cell.Row >= 0 && cell.Row < c.Rows
}

func (c Config) IsAnchor(cell Cell) bool {
	return cell.Col == c.AnchorCol && cell.Row == c.AnchorRow
}

// WorldCoord converts a cell to in-game map coordinates.
func (c Config) WorldCoord(cell Cell) (x, y int) {
	return c.AnchorWorldX + (cell.Col-c.AnchorCol)*c.Step,
		c.AnchorWorldY + (cell.Row-c.AnchorRow)*c.Step
}

// Ring is the Chebyshev distance from the anchor; the anchor is ring 0.
func (c Config) Ring(cell Cell) int {
	return max(abs(cell.Col-c.AnchorCol), abs(cell.Row-c.AnchorRow))
}

// Bearing is atan2(dx, -dy) from the anchor. It only orders cells that share
// a ring.
func (c Config) Bearing(cell Cell) float64 {
	return math.Atan2(float64(cell.Col-c.AnchorCol), -float64(cell.Row-c.AnchorRow))
}

// checkAssignable rejects cells that no member may occupy.
func (c Config) checkAssignable(cell Cell) error {
	if !c.InBounds(cell) {
		return validationf(protocol.ErrInvalidTarget, "(%d,%d) out of range 0-%d x 0-%d", cell.Col, cell.Row, c.Cols-1, c.Rows-1)
	}
	if c.IsAnchor(cell) {
		return validationf(protocol.ErrInvalidTarget, "(%d,%d) is the anchor cell", cell.Col, cell.Row)
	}
	return nil
}

// WorldLabel formats WorldCoord as "(x,y)".
func (c Config) WorldLabel(cell Cell) string {
	x, y := c.WorldCoord(cell)
	return fmt.Sprintf("(%d,%d)", x, y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
