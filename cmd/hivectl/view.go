package main

import (
	"strconv"
	"strings"

	"github.com/Bullochman/hivegrid/internal/grid"
)

const cellWidth = 18

// memberTag renders "(RANK,HQ,POWER)" with "?" for no rank and "-" for
// missing values.
func memberTag(m grid.Member) string {
	rank := m.Rank.String()
	if rank == "" {
		rank = "?"
	}
	hq := "-"
	if m.HQ != nil {
		hq = strconv.Itoa(*m.HQ)
	}
	power := m.Power
	if power == "" {
		power = "-"
	}
	return "(" + rank + "," + hq + "," + power + ")"
}

func (c *cli) listCmd(args []string) error {
	fs, cm := c.flags("list")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()
	doc, err := rt.Service.Current()
	if err != nil {
		return err
	}

	c.printf("%-22s %-16s %4s %4s  %-11s %s\n", "NAME", "TAG", "COL", "ROW", "COORD", "RING")
	c.printf("%s\n", strings.Repeat("-", 70))
	unassignedHeader := false
	for _, e := range doc.State.Roster() {
		if e.Cell == nil {
			if !unassignedHeader {
				c.printf("\n-- unassigned --\n")
				unassignedHeader = true
			}
			c.printf("%-22s %s\n", e.Name, memberTag(e.Member))
			continue
		}
		c.printf("%-22s %-16s %4d %4d  %-11s %d\n", e.Name, memberTag(e.Member), e.Cell.Col, e.Cell.Row,
			doc.State.Config.WorldLabel(*e.Cell), e.Ring)
	}
	return nil
}

func (c *cli) viewCmd(args []string) error {
	fs, cm := c.flags("view")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()
	doc, err := rt.Service.Current()
	if err != nil {
		return err
	}
	st := doc.State
	cfg := st.Config

	title := "ALLIANCE HIVE GRID"
	if st.Alliance != "" {
		title = st.Alliance + " " + title
	}
	c.printf("%s\nMG @ (%d,%d)   cols 0-%d   rows 0-%d   step %d\n\n", title, cfg.AnchorWorldX, cfg.AnchorWorldY, cfg.Cols-1, cfg.Rows-1, cfg.Step)
	bar := "+" + strings.Repeat(strings.Repeat("-", cellWidth)+"+", cfg.Cols)
	for row := 0; row < cfg.Rows; row++ {
		c.printf("%s\n", bar)
		names := make([]string, cfg.Cols)
		tags := make([]string, cfg.Cols)
		for col := 0; col < cfg.Cols; col++ {
			cell := grid.Cell{Col: col, Row: row}
			switch name, ok := st.Occupant(cell); {
			case cfg.IsAnchor(cell):
				names[col], tags[col] = "MG", cfg.WorldLabel(cell)
			case ok:
				names[col], tags[col] = name, memberTag(st.Members[name])
			default:
				names[col], tags[col] = "", cfg.WorldLabel(cell)
			}
		}
		c.printf("|%s\n", joinCells(names))
		c.printf("|%s\n", joinCells(tags))
	}
	c.printf("%s\n", bar)
	return nil
}

func joinCells(vals []string) string {
	var b strings.Builder
	for _, v := range vals {
		if len(v) > cellWidth {
			v = v[:cellWidth]
		}
		b.WriteString(v)
		b.WriteString(strings.Repeat(" ", cellWidth-len(v)))
		b.WriteString("|")
	}
	return b.String()
}

func (c *cli) coordsCmd(args []string) error {
	fs, cm := c.flags("coords")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()
	doc, err := rt.Service.Current()
	if err != nil {
		return err
	}
	cfg := doc.State.Config
	c.printf("%5s", "")
	for col := 0; col < cfg.Cols; col++ {
		c.printf(" %10s", "col "+strconv.Itoa(col))
	}
	c.printf("\n")
	for row := 0; row < cfg.Rows; row++ {
		c.printf("r%-4d", row)
		for col := 0; col < cfg.Cols; col++ {
			label := cfg.WorldLabel(grid.Cell{Col: col, Row: row})
			if cfg.IsAnchor(grid.Cell{Col: col, Row: row}) {
				label = "MG" + label
			}
			c.printf(" %10s", label)
		}
		c.printf("\n")
	}
	return nil
}
