package hive

import (
	"fmt"
	"strings"

	"github.com/Bullochman/hivegrid/internal/grid"
)

func (s *Service) Assign(name string, cell grid.Cell) (grid.AssignResult, Document, error) {
	var res grid.AssignResult
	doc, err := s.Update(OpAssign, func(st *grid.State) (string, string, error) {
		r, err := st.Assign(name, cell)
		if err != nil {
			return "", "", err
		}
		res = r
		detail := cell.String()
		if r.Displaced != "" {
			s.opts.Logger.Printf("assign %s to %s displaced %s", r.Name, cell, r.Displaced)
			detail += " displaced=" + r.Displaced
		}
		return r.Name, detail, nil
	})
	return res, doc, err
}

func (s *Service) Move(from, to grid.Cell) (grid.MoveResult, Document, error) {
	var res grid.MoveResult
	doc, err := s.Update(OpMove, func(st *grid.State) (string, string, error) {
		r, err := st.Move(from, to)
		if err != nil {
			return "", "", err
		}
		res = r
		return r.Moved, fmt.Sprintf("%s->%s swapped=%s", from, to, r.Swapped), nil
	})
	return res, doc, err
}

func (s *Service) Swap(a, b string) (Document, error) {
	return s.Update(OpSwap, func(st *grid.State) (string, string, error) {
		if err := st.Swap(a, b); err != nil {
			return "", "", err
		}
		return a, "with " + b, nil
	})
}

func (s *Service) Unassign(name string) (bool, Document, error) {
	var freed bool
	doc, err := s.Update(OpUnassign, func(st *grid.State) (string, string, error) {
		freed = st.Unassign(name)
		return name, "", nil
	})
	return freed, doc, err
}

func (s *Service) Delete(name string) (bool, Document, error) {
	var removed bool
	doc, err := s.Update(OpDelete, func(st *grid.State) (string, string, error) {
		removed = st.Delete(name)
		return name, "", nil
	})
	return removed, doc, err
}

func (s *Service) Edit(req grid.EditRequest) (grid.EditResult, Document, error) {
	var res grid.EditResult
	doc, err := s.Update(OpEdit, func(st *grid.State) (string, string, error) {
		r, err := st.Edit(req)
		if err != nil {
			return "", "", err
		}
		res = r
		var detail []string
		if r.Renamed {
			detail = append(detail, "from="+strings.TrimSpace(req.OldName))
		}
		if r.Collided != "" {
			s.opts.Logger.Printf("edit %q overwrote existing member %q", req.OldName, r.Collided)
			detail = append(detail, "overwrote="+r.Collided)
		}
		return r.Name, strings.Join(detail, " "), nil
	})
	return res, doc, err
}

func (s *Service) Clear(mode grid.ClearMode) (Document, error) {
	return s.Update(OpClear, func(st *grid.State) (string, string, error) {
		if err := st.Clear(mode); err != nil {
			return "", "", err
		}
		return "", string(mode), nil
	})
}

func (s *Service) AutoAssign(fields []grid.SortField) (grid.PlacementReport, Document, error) {
	var rep grid.PlacementReport
	doc, err := s.Update(OpAuto, func(st *grid.State) (string, string, error) {
		rep = st.AutoAssign(fields)
		return "", fmt.Sprintf("sort=%s placed=%d leftover=%d", grid.FormatSortFields(rep.Sort), len(rep.Placed), len(rep.Leftover)), nil
	})
	return rep, doc, err
}

func (s *Service) Import(records []grid.Record, opts grid.MergeOptions) (grid.MergeReport, Document, error) {
	var rep grid.MergeReport
	doc, err := s.Update(OpImport, func(st *grid.State) (string, string, error) {
		r, err := st.Merge(records, opts)
		if err != nil {
			return "", "", err
		}
		rep = r
		return "", fmt.Sprintf("added=%d updated=%d skipped=%d", len(r.Added), len(r.Updated), len(r.Skipped)), nil
	})
	return rep, doc, err
}

func (s *Service) Migrate(plan grid.MigratePlan, records []grid.Record) (grid.MigrateReport, Document, error) {
	var rep grid.MigrateReport
	doc, err := s.Update(OpMigrate, func(st *grid.State) (string, string, error) {
		r, err := st.Migrate(plan, records)
		if err != nil {
			return "", "", err
		}
		rep = r
		return "", fmt.Sprintf("departed=%d renamed=%d unmatched=%d", len(r.Departed), len(r.Renamed), len(r.Unmatched)), nil
	})
	return rep, doc, err
}

func (s *Service) SetAlliance(name string) (Document, error) {
	return s.Update(OpSetName, func(st *grid.State) (string, string, error) {
		st.SetAlliance(name)
		return st.Alliance, "", nil
	})
}

// SetAnchorWorld moves the anchor's world coordinate. A nil axis keeps its
// current value.
func (s *Service) SetAnchorWorld(x, y *int) (Document, error) {
	return s.Update(OpSetAnchor, func(st *grid.State) (string, string, error) {
		nx, ny := st.Config.AnchorWorldX, st.Config.AnchorWorldY
		if x != nil {
			nx = *x
		}
		if y != nil {
			ny = *y
		}
		st.SetAnchorWorld(nx, ny)
		return "", fmt.Sprintf("(%d,%d)", nx, ny), nil
	})
}

// Restore replaces the whole state, typically with a snapshot. The grid
// geometry comes from the restored state.
func (s *Service) Restore(st *grid.State, from string) (Document, error) {
	return s.Update(OpRestore, func(cur *grid.State) (string, string, error) {
		if err := st.Validate(); err != nil {
			return "", "", err
		}
		*cur = *st.Clone()
		return "", from, nil
	})
}

// Normalize writes back the repairs Load applied to a hand-edited file.
func (s *Service) Normalize() ([]string, Document, error) {
	cur, err := s.Current()
	if err != nil {
		return nil, Document{}, err
	}
	doc, err := s.Update(OpNormalize, func(*grid.State) (string, string, error) {
		return "", fmt.Sprintf("fixes=%d", len(cur.Fixes)), nil
	})
	return cur.Fixes, doc, err
}
