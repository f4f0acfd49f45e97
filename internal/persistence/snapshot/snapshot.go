package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Bullochman/hivegrid/internal/grid"
)

type Header struct {
	Version  int    `json:"version"`
	Alliance string `json:"alliance"`
	Revision uint64 `json:"revision"`
	Op       string `json:"op"`
	SavedAt  string `json:"saved_at"`
	Members  int    `json:"members"`
	Assigned int    `json:"assigned"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Config      ConfigV1       `json:"config"`
	Members     []MemberV1     `json:"members"`
	Assignments []AssignmentV1 `json:"assignments"`
}

type ConfigV1 struct {
	Cols         int `json:"cols"`
	Rows         int `json:"rows"`
	AnchorCol    int `json:"anchor_col"`
	AnchorRow    int `json:"anchor_row"`
	Step         int `json:"step"`
	AnchorWorldX int `json:"anchor_world_x"`
	AnchorWorldY int `json:"anchor_world_y"`
}

type MemberV1 struct {
	Name  string `json:"name"`
	Rank  uint8  `json:"rank"`
	HasHQ bool   `json:"has_hq"`
	HQ    int    `json:"hq"`
	Power string `json:"power"`
	Notes string `json:"notes"`
}

type AssignmentV1 struct {
	Col  int    `json:"col"`
	Row  int    `json:"row"`
	Name string `json:"name"`
}

// FromState captures st; members and assignments are sorted so equal
// states produce equal snapshots.
func FromState(st *grid.State, rev uint64, op string, at time.Time) SnapshotV1 {
	c := st.Config
	snap := SnapshotV1{
		Header: Header{
			Version:  1,
			Alliance: st.Alliance,
			Revision: rev,
			Op:       op,
			SavedAt:  at.UTC().Format(time.RFC3339Nano),
			Members:  len(st.Members),
			Assigned: len(st.Assignments),
		},
		Config: ConfigV1{
			Cols: c.Cols, Rows: c.Rows,
			AnchorCol: c.AnchorCol, AnchorRow: c.AnchorRow,
			Step:         c.Step,
			AnchorWorldX: c.AnchorWorldX, AnchorWorldY: c.AnchorWorldY,
		},
	}
	for name, m := range st.Members {
		mv := MemberV1{Name: name, Rank: uint8(m.Rank), Power: m.Power, Notes: m.Notes}
		if m.HQ != nil {
			mv.HasHQ, mv.HQ = true, *m.HQ
		}
		snap.Members = append(snap.Members, mv)
	}
	sort.Slice(snap.Members, func(i, j int) bool { return snap.Members[i].Name < snap.Members[j].Name })
	for cell, name := range st.Assignments {
		snap.Assignments = append(snap.Assignments, AssignmentV1{Col: cell.Col, Row: cell.Row, Name: name})
	}
	sort.Slice(snap.Assignments, func(i, j int) bool {
		a, b := snap.Assignments[i], snap.Assignments[j]
		if a.Col != b.Col {
			return a.Col < b.Col
		}
		return a.Row < b.Row
	})
	return snap
}

// State rebuilds a validated grid state.
func (s SnapshotV1) State() (*grid.State, error) {
	st := grid.NewState(grid.Config{
		Cols: s.Config.Cols, Rows: s.Config.Rows,
		AnchorCol: s.Config.AnchorCol, AnchorRow: s.Config.AnchorRow,
		Step:         s.Config.Step,
		AnchorWorldX: s.Config.AnchorWorldX, AnchorWorldY: s.Config.AnchorWorldY,
	})
	st.SetAlliance(s.Header.Alliance)
	for _, m := range s.Members {
		mem := grid.Member{Rank: grid.Rank(m.Rank), Power: m.Power, Notes: m.Notes}
		if m.HasHQ {
			mem.HQ = grid.HQ(m.HQ)
		}
		st.Members[m.Name] = mem
	}
	for _, a := range s.Assignments {
		st.Assignments[grid.Cell{Col: a.Col, Row: a.Row}] = a.Name
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot rev %d: %w", s.Header.Revision, err)
	}
	return st, nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 64*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	// The header line duplicates snap.Header; gob carries the full value.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
