package grid

import (
	"sort"
	"strings"
)

// MigratePlan reconciles the roster with a fresh alliance export: members who
// left are dropped, renamed members keep their cell under the new name.
type MigratePlan struct {
	Renames  map[string]string `yaml:"renames"`
	Departed []string          `yaml:"departed"`
}

type Rename struct {
	From string
	To   string
	// Cell is set when the member held a cell that now carries the new name.
	Cell *Cell
}

type MigrateReport struct {
	Departed []string
	Renamed  []Rename
	// Released lists renamed members whose old cell was freed because the
	// new name already held a cell.
	Released []string
	Merge    MergeReport
	// Unmatched members are on the roster but absent from the batch.
	Unmatched []string
}

// Migrate applies plan, then merges records with OverwriteAlways. A nil
// records slice skips the merge and the unmatched report.
func (s *State) Migrate(plan MigratePlan, records []Record) (MigrateReport, error) {
	var rep MigrateReport

	for _, name := range plan.Departed {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if s.Delete(name) {
			rep.Departed = append(rep.Departed, name)
		}
	}

	olds := make([]string, 0, len(plan.Renames))
	for old := range plan.Renames {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	for _, old := range olds {
		to := strings.TrimSpace(plan.Renames[old])
		old = strings.TrimSpace(old)
		if old == "" || to == "" || old == to {
			continue
		}
		rec, had := s.Members[old]
		pos, placed := s.exactPosition(old)
		if !had && !placed {
			continue
		}
		r := Rename{From: old, To: to}
		if placed {
			if _, taken := s.exactPosition(to); taken {
				delete(s.Assignments, pos)
				rep.Released = append(rep.Released, old)
			} else {
				s.Assignments[pos] = to
				c := pos
				r.Cell = &c
			}
		}
		delete(s.Members, old)
		if _, exists := s.Members[to]; !exists {
			s.Members[to] = rec
		}
		rep.Renamed = append(rep.Renamed, r)
	}

	if records == nil {
		return rep, nil
	}
	mr, err := s.Merge(records, MergeOptions{Policy: OverwriteAlways})
	if err != nil {
		return rep, err
	}
	rep.Merge = mr

	inBatch := map[string]bool{}
	for _, r := range records {
		if k, ok := s.Lookup(strings.TrimSpace(r.Name)); ok {
			inBatch[k] = true
		}
	}
	for name := range s.Members {
		if !inBatch[name] {
			rep.Unmatched = append(rep.Unmatched, name)
		}
	}
	sort.Strings(rep.Unmatched)
	return rep, nil
}
