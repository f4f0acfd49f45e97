package layout

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Bullochman/hivegrid/internal/grid"
)

// File is the hive layout used to seed a fresh state file.
type File struct {
	Alliance    string     `yaml:"alliance"`
	Grid        GridSpec   `yaml:"grid"`
	AnchorWorld WorldPoint `yaml:"anchor_world"`
}

type GridSpec struct {
	Cols      int `yaml:"cols"`
	Rows      int `yaml:"rows"`
	AnchorCol int `yaml:"anchor_col"`
	AnchorRow int `yaml:"anchor_row"`
	Step      int `yaml:"step"`
}

type WorldPoint struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func Load(path string) (File, error) {
	f := defaults()
	if strings.TrimSpace(path) == "" {
		return f, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("hive.yaml: %w", err)
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("hive.yaml: %w", err)
	}
	return f, nil
}

func defaults() File {
	cfg := grid.DefaultConfig()
	return File{
		Grid: GridSpec{
			Cols:      cfg.Cols,
			Rows:      cfg.Rows,
			AnchorCol: cfg.AnchorCol,
			AnchorRow: cfg.AnchorRow,
			Step:      cfg.Step,
		},
		AnchorWorld: WorldPoint{X: cfg.AnchorWorldX, Y: cfg.AnchorWorldY},
	}
}

// Normalize fills zero-valued geometry with the defaults. An explicit
// anchor at (0,0) is kept.
func (f *File) Normalize() {
	if f == nil {
		return
	}
	d := defaults()
	f.Alliance = strings.TrimSpace(f.Alliance)
	if f.Grid.Cols == 0 {
		f.Grid.Cols = d.Grid.Cols
	}
	if f.Grid.Rows == 0 {
		f.Grid.Rows = d.Grid.Rows
	}
	if f.Grid.Step == 0 {
		f.Grid.Step = d.Grid.Step
	}
}

func (f File) Validate() error {
	return f.GridConfig().Validate()
}

func (f File) GridConfig() grid.Config {
	return grid.Config{
		Cols:         f.Grid.Cols,
		Rows:         f.Grid.Rows,
		AnchorCol:    f.Grid.AnchorCol,
		AnchorRow:    f.Grid.AnchorRow,
		Step:         f.Grid.Step,
		AnchorWorldX: f.AnchorWorld.X,
		AnchorWorldY: f.AnchorWorld.Y,
	}
}

// NewState returns an empty hive with this layout.
func (f File) NewState() *grid.State {
	s := grid.NewState(f.GridConfig())
	s.SetAlliance(f.Alliance)
	return s
}

// LoadMigratePlan reads a rename/departure plan:
//
//	renames:
//	  OldName: NewName
//	departed:
//	  - Someone
func LoadMigratePlan(path string) (grid.MigratePlan, error) {
	var plan grid.MigratePlan
	b, err := os.ReadFile(path)
	if err != nil {
		return plan, err
	}
	if err := yaml.Unmarshal(b, &plan); err != nil {
		return plan, fmt.Errorf("migrate plan: %w", err)
	}
	seen := map[string]string{}
	olds := make([]string, 0, len(plan.Renames))
	for old := range plan.Renames {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	for _, old := range olds {
		to := strings.TrimSpace(plan.Renames[old])
		if to == "" {
			return plan, fmt.Errorf("migrate plan: rename of %q has no target", old)
		}
		if prev, dup := seen[to]; dup {
			return plan, fmt.Errorf("migrate plan: %q and %q both rename to %q", prev, old, to)
		}
		seen[to] = old
	}
	return plan, nil
}
