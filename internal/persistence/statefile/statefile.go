package statefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Bullochman/hivegrid/internal/grid"
	"github.com/Bullochman/hivegrid/internal/hive"
)

// FileName is the state file name used by the web tool and the CLI.
const FileName = "hive_config.json"

type fileV1 struct {
	AllianceName string              `json:"alliance_name"`
	Revision     uint64              `json:"revision,omitempty"`
	Grid         gridV1              `json:"grid"`
	MG           worldV1             `json:"mg"`
	Members      map[string]memberV1 `json:"members"`
	Assignments  map[string]string   `json:"assignments"`
}

type gridV1 struct {
	Cols  int `json:"cols"`
	Rows  int `json:"rows"`
	MGCol int `json:"mg_col"`
	MGRow int `json:"mg_row"`
	Step  int `json:"step"`
}

type worldV1 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type memberV1 struct {
	Rank  string  `json:"rank"`
	HQ    *hqV1   `json:"hq"`
	Power *string `json:"power"`
	Notes string  `json:"notes"`
}

// hqV1 accepts a number or a numeric string; older files hold either.
// Values that are not a non-negative whole number are kept for Decode to
// drop and report.
type hqV1 float64

func (h *hqV1) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("hq %s: not a number", b)
	}
	*h = hqV1(f)
	return nil
}

func (h hqV1) level() (int, bool) {
	f := float64(h)
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// Decode reads a state file. Missing geometry falls back to base. Entries
// that break an invariant are repaired and reported in Document.Fixes.
func Decode(r io.Reader, base grid.Config) (hive.Document, error) {
	var f fileV1
	dec := json.NewDecoder(r)
	if err := dec.Decode(&f); err != nil {
		return hive.Document{}, fmt.Errorf("decode state: %w", err)
	}

	cfg := base
	if f.Grid.Cols > 0 {
		cfg.Cols = f.Grid.Cols
	}
	if f.Grid.Rows > 0 {
		cfg.Rows = f.Grid.Rows
	}
	if f.Grid.Step > 0 {
		cfg.Step = f.Grid.Step
	}
	if f.Grid != (gridV1{}) {
		cfg.AnchorCol, cfg.AnchorRow = f.Grid.MGCol, f.Grid.MGRow
	}
	if f.MG != (worldV1{}) {
		cfg.AnchorWorldX, cfg.AnchorWorldY = f.MG.X, f.MG.Y
	}
	if err := cfg.Validate(); err != nil {
		return hive.Document{}, fmt.Errorf("decode state: %w", err)
	}

	st := grid.NewState(cfg)
	st.SetAlliance(f.AllianceName)
	var fixes []string
	names := make([]string, 0, len(f.Members))
	for name := range f.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := f.Members[name]
		mem := grid.Member{Rank: grid.ParseRank(m.Rank), Notes: m.Notes}
		if m.HQ != nil {
			if lv, ok := m.HQ.level(); ok {
				mem.HQ = grid.HQ(lv)
			} else {
				fixes = append(fixes, fmt.Sprintf("dropped invalid hq %v for %q", float64(*m.HQ), name))
			}
		}
		if m.Power != nil {
			mem.Power = strings.TrimSpace(*m.Power)
		}
		st.Members[name] = mem
	}

	keys := make([]string, 0, len(f.Assignments))
	for k := range f.Assignments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cell, err := grid.ParseCell(k)
		if err != nil {
			fixes = append(fixes, fmt.Sprintf("dropped assignment %q: %v", k, err))
			continue
		}
		st.Assignments[cell] = f.Assignments[k]
	}
	fixes = append(fixes, st.Normalize()...)
	return hive.Document{State: st, Revision: f.Revision, Fixes: fixes}, nil
}

// Encode writes the indented JSON form read by Decode.
func Encode(w io.Writer, doc hive.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toFile(doc))
}

// Marshal returns the compact form of the state file. The HTTP API and the
// observer stream send it as the "config" payload.
func Marshal(doc hive.Document) (json.RawMessage, error) {
	return json.Marshal(toFile(doc))
}

func toFile(doc hive.Document) fileV1 {
	st := doc.State
	f := fileV1{
		AllianceName: st.Alliance,
		Revision:     doc.Revision,
		Grid: gridV1{
			Cols:  st.Config.Cols,
			Rows:  st.Config.Rows,
			MGCol: st.Config.AnchorCol,
			MGRow: st.Config.AnchorRow,
			Step:  st.Config.Step,
		},
		MG:          worldV1{X: st.Config.AnchorWorldX, Y: st.Config.AnchorWorldY},
		Members:     make(map[string]memberV1, len(st.Members)),
		Assignments: make(map[string]string, len(st.Assignments)),
	}
	for name, m := range st.Members {
		mv := memberV1{Rank: m.Rank.String(), Notes: m.Notes}
		if m.HQ != nil {
			h := hqV1(*m.HQ)
			mv.HQ = &h
		}
		if m.Power != "" {
			p := m.Power
			mv.Power = &p
		}
		f.Members[name] = mv
	}
	for c, name := range st.Assignments {
		f.Assignments[c.String()] = name
	}
	return f
}

// Store keeps the state in one JSON file replaced atomically on save.
type Store struct {
	path string
	seed *grid.State
}

// New returns a store for path. When the file does not exist yet, Load
// returns seed and writes it out.
func New(path string, seed *grid.State) *Store {
	if seed == nil {
		seed = grid.NewState(grid.DefaultConfig())
	}
	return &Store{path: path, seed: seed.Clone()}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load() (hive.Document, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		doc := hive.Document{State: s.seed.Clone()}
		if err := s.Save(doc); err != nil {
			return hive.Document{}, fmt.Errorf("seed %s: %w", s.path, err)
		}
		return doc, nil
	}
	if err != nil {
		return hive.Document{}, err
	}
	doc, err := Decode(bytes.NewReader(b), s.seed.Config)
	if err != nil {
		return hive.Document{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return doc, nil
}

// Save writes doc to a temp file in the same directory and renames it over
// the state file, so readers see either the old or the new file.
func (s *Store) Save(doc hive.Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := Encode(tmp, doc); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
