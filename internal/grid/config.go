package grid

import (
	"fmt"

	"github.com/Bullochman/hivegrid/internal/protocol"
)

// Config fixes the grid geometry around the anchor (the Marshall's Guard).
type Config struct {
	Cols      int
	Rows      int
	AnchorCol int
	AnchorRow int
	// Step is the world-tile distance between neighbouring cells.
	Step         int
	AnchorWorldX int
	AnchorWorldY int
}

// DefaultConfig is the 10x10 hive with the anchor at (4,4).
func DefaultConfig() Config {
	return Config{
		Cols:         10,
		Rows:         10,
		AnchorCol:    4,
		AnchorRow:    4,
		Step:         3,
		AnchorWorldX: 486,
		AnchorWorldY: 432,
	}
}

func (c Config) Validate() error {
	if c.Cols <= 0 || c.Rows <= 0 {
		return validationf(protocol.ErrBadRequest, "grid size must be positive, got %dx%d", c.Cols, c.Rows)
	}
	if c.AnchorCol < 0 || c.AnchorCol >= c.Cols || c.AnchorRow < 0 || c.AnchorRow >= c.Rows {
		return validationf(protocol.ErrBadRequest, "anchor (%d,%d) outside %dx%d grid", c.AnchorCol, c.AnchorRow, c.Cols, c.Rows)
	}
	if c.Step <= 0 {
		return validationf(protocol.ErrBadRequest, "step must be positive, got %d", c.Step)
	}
	return nil
}

func (c Config) Anchor() Cell { return Cell{Col: c.AnchorCol, Row: c.AnchorRow} }

// Capacity is the number of assignable cells.
func (c Config) Capacity() int { return c.Cols*c.Rows - 1 }

func (c Config) String() string {
	return fmt.Sprintf("%dx%d anchor=(%d,%d) step=%d world=(%d,%d)",
		c.Cols, c.Rows, c.AnchorCol, c.AnchorRow, c.Step, c.AnchorWorldX, c.AnchorWorldY)
}
