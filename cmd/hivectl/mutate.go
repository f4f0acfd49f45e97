package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/Bullochman/hivegrid/internal/grid"
	"github.com/Bullochman/hivegrid/internal/importer"
	"github.com/Bullochman/hivegrid/internal/layout"
)

func (c *cli) assignCmd(args []string) error {
	fs, cm := c.flags("assign")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	pos, err := positional(fs, 3, "NAME COL ROW")
	if err != nil {
		return err
	}
	col, err1 := strconv.Atoi(pos[1])
	row, err2 := strconv.Atoi(pos[2])
	if err1 != nil || err2 != nil {
		return usagef("COL and ROW must be integers")
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, doc, err := rt.Service.Assign(pos[0], grid.Cell{Col: col, Row: row})
	if err != nil {
		return err
	}
	if res.Displaced != "" {
		c.printf("warn: cell %s was held by %s; they are now unassigned\n", res.Cell, res.Displaced)
	}
	if res.Created {
		c.printf("info: added %q to members with no rank or power\n", res.Name)
	}
	cfg := doc.State.Config
	c.printf("ok: %s -> col %d, row %d  %s  ring %d\n", res.Name, col, row, cfg.WorldLabel(res.Cell), cfg.Ring(res.Cell))
	return nil
}

func (c *cli) moveCmd(args []string) error {
	fs, cm := c.flags("move")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	pos, err := positional(fs, 2, "FROM TO (cells as col,row)")
	if err != nil {
		return err
	}
	from, err := grid.ParseCell(pos[0])
	if err != nil {
		return err
	}
	to, err := grid.ParseCell(pos[1])
	if err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, _, err := rt.Service.Move(from, to)
	if err != nil {
		return err
	}
	switch {
	case res.Moved != "" && res.Swapped != "":
		c.printf("ok: %s -> %s, %s -> %s\n", res.Moved, to, res.Swapped, from)
	case res.Moved != "":
		c.printf("ok: %s -> %s\n", res.Moved, to)
	case res.Swapped != "":
		c.printf("ok: %s -> %s\n", res.Swapped, from)
	default:
		c.printf("ok: both cells were empty\n")
	}
	return nil
}

func (c *cli) swapCmd(args []string) error {
	fs, cm := c.flags("swap")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	pos, err := positional(fs, 2, "NAME1 NAME2")
	if err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	doc, err := rt.Service.Swap(pos[0], pos[1])
	if err != nil {
		return err
	}
	st := doc.State
	p1, _ := st.PositionOf(pos[0])
	p2, _ := st.PositionOf(pos[1])
	c.printf("ok: swapped %s -> %s, %s -> %s\n", pos[0], st.Config.WorldLabel(p1), pos[1], st.Config.WorldLabel(p2))
	return nil
}

func (c *cli) unassignCmd(args []string) error {
	fs, cm := c.flags("unassign")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	pos, err := positional(fs, 1, "NAME")
	if err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	freed, _, err := rt.Service.Unassign(pos[0])
	if err != nil {
		return err
	}
	if !freed {
		c.printf("info: %q was not on the grid\n", pos[0])
		return nil
	}
	c.printf("ok: %s removed from the grid\n", pos[0])
	return nil
}

func (c *cli) deleteCmd(args []string) error {
	fs, cm := c.flags("delete")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	pos, err := positional(fs, 1, "NAME")
	if err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	removed, _, err := rt.Service.Delete(pos[0])
	if err != nil {
		return err
	}
	if !removed {
		c.printf("info: no member named %q\n", pos[0])
		return nil
	}
	c.printf("ok: deleted %s\n", pos[0])
	return nil
}

func (c *cli) editCmd(args []string) error {
	fs, cm := c.flags("edit")
	oldName := fs.String("old", "", "current name (empty to create)")
	name := fs.String("name", "", "new name (required)")
	rank := fs.String("rank", "", "R1..R5")
	hq := fs.String("hq", "", "headquarters level")
	power := fs.String("power", "", `total power, e.g. "54.8M"`)
	notes := fs.String("notes", "", "free text")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if _, err := positional(fs, 0, "-name NEW [flags]"); err != nil {
		return err
	}
	level, ok := grid.ParseHQ(*hq)
	if !ok {
		return usagef("-hq must be a non-negative integer")
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, _, err := rt.Service.Edit(grid.EditRequest{
		OldName: *oldName,
		Name:    *name,
		Rank:    grid.ParseRank(*rank),
		HQ:      level,
		Power:   *power,
		Notes:   *notes,
	})
	if err != nil {
		return err
	}
	if res.Collided != "" {
		c.printf("warn: replaced the existing record for %s\n", res.Collided)
	}
	if res.Released != nil {
		c.printf("warn: %s's previous cell %s is now empty\n", res.Collided, res.Released)
	}
	if res.Renamed {
		c.printf("ok: renamed %s -> %s\n", *oldName, res.Name)
		return nil
	}
	c.printf("ok: saved %s\n", res.Name)
	return nil
}

func (c *cli) autoCmd(args []string) error {
	fs, cm := c.flags("auto")
	sortBy := fs.String("sort", "", "priority fields, e.g. rank,power or power,hq")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	rep, doc, err := rt.Service.AutoAssign(grid.ParseSortFields(*sortBy))
	if err != nil {
		return err
	}
	cfg := doc.State.Config
	for _, p := range rep.Placed {
		c.printf("  %-22s -> %-6s %s  ring %d\n", p.Name, p.Cell, cfg.WorldLabel(p.Cell), p.Ring)
	}
	c.printf("ok: placed %d (sort %s)\n", len(rep.Placed), grid.FormatSortFields(rep.Sort))
	if len(rep.Leftover) > 0 {
		c.printf("warn: no empty cell left for %d members: %v\n", len(rep.Leftover), rep.Leftover)
	}
	return nil
}

func (c *cli) importCmd(args []string) error {
	fs, cm := c.flags("import")
	policy := fs.String("policy", string(grid.OverwriteAlways), "always | dominance")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	pos, err := positional(fs, 1, "[-policy P] FILE.csv")
	if err != nil {
		return err
	}
	records, stats, err := readCSV(pos[0])
	if err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	rep, _, err := rt.Service.Import(records, grid.MergeOptions{Policy: grid.OverwritePolicy(*policy)})
	if err != nil {
		return err
	}
	if stats.BadHQ > 0 {
		c.printf("warn: %d rows had an unreadable HQ level\n", stats.BadHQ)
	}
	c.printf("ok: import complete: %d added, %d updated, %d kept\n", len(rep.Added), len(rep.Updated), len(rep.Skipped))
	return nil
}

func (c *cli) migrateCmd(args []string) error {
	fs, cm := c.flags("migrate")
	planPath := fs.String("plan", "", "migration plan yaml (renames, departed)")
	archiveAs := fs.String("archive", "", "archive the latest snapshot under this label first")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 1 || *planPath == "" {
		return usagef("usage: hivectl migrate -plan PLAN.yaml [FILE.csv]")
	}
	plan, err := layout.LoadMigratePlan(*planPath)
	if err != nil {
		return err
	}
	var records []grid.Record
	if fs.NArg() == 1 {
		if records, _, err = readCSV(fs.Arg(0)); err != nil {
			return err
		}
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	if *archiveAs != "" {
		meta, err := archiveSnapshot(rt.History, *cm.dataDir, *archiveAs, 0)
		if err != nil {
			return err
		}
		c.printf("  archived  revision %d as %s\n", meta.Revision, meta.Label)
	}
	rep, _, err := rt.Service.Migrate(plan, records)
	if err != nil {
		return err
	}
	for _, n := range rep.Departed {
		c.printf("  departed  %s\n", n)
	}
	for _, r := range rep.Renamed {
		cell := "-"
		if r.Cell != nil {
			cell = r.Cell.String()
		}
		c.printf("  renamed   %s -> %s  cell %s\n", r.From, r.To, cell)
	}
	for _, n := range rep.Released {
		c.printf("  released  %s (new name already placed)\n", n)
	}
	if records != nil {
		c.printf("  merged    %d added, %d updated\n", len(rep.Merge.Added), len(rep.Merge.Updated))
		for _, n := range rep.Unmatched {
			c.printf("  unmatched %s\n", n)
		}
	}
	c.printf("ok: migration applied\n")
	return nil
}

func (c *cli) clearCmd(args []string) error {
	fs, cm := c.flags("clear")
	mode := fs.String("mode", "assignments", "assignments | all")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	m, err := grid.ParseClearMode(*mode)
	if err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.Service.Clear(m); err != nil {
		return err
	}
	c.printf("ok: cleared %s\n", m)
	return nil
}

func (c *cli) setNameCmd(args []string) error {
	fs, cm := c.flags("set-name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	pos, err := positional(fs, 1, "NAME")
	if err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	doc, err := rt.Service.SetAlliance(pos[0])
	if err != nil {
		return err
	}
	c.printf("ok: alliance name %q\n", doc.State.Alliance)
	return nil
}

func (c *cli) setMGCmd(args []string) error {
	fs, cm := c.flags("set-mg")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	pos, err := positional(fs, 2, "X Y")
	if err != nil {
		return err
	}
	x, err1 := strconv.Atoi(pos[0])
	y, err2 := strconv.Atoi(pos[1])
	if err1 != nil || err2 != nil {
		return usagef("X and Y must be integers")
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.Service.SetAnchorWorld(&x, &y); err != nil {
		return err
	}
	c.printf("ok: MG at (%d,%d)\n", x, y)
	return nil
}

func readCSV(path string) ([]grid.Record, importer.ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, importer.ReadStats{}, err
	}
	defer f.Close()
	records, stats, err := importer.ReadRecords(f)
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", path, err)
	}
	return records, stats, nil
}
