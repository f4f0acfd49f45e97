package main

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Bullochman/hivegrid/internal/persistence/indexdb"
)

func (c *cli) dbCmd(args []string) error {
	fs, cm := c.flags("db")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/hive.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	q := "roster"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = indexdb.DefaultPath(*cm.dataDir)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	switch q {
	case "roster":
		return c.queryRoster(db, *limit)
	case "audits":
		return c.queryAudits(db, *limit)
	case "snapshots":
		return c.querySnapshots(db, *limit)
	default:
		return usagef("unknown query %q (want roster, audits or snapshots)", q)
	}
}

type rosterRow struct {
	Name   string  `json:"name"`
	Rank   string  `json:"rank"`
	HQ     *int64  `json:"hq"`
	Power  string  `json:"power"`
	Value  float64 `json:"power_value"`
	Cell   *string `json:"cell"`
	Ring   *int64  `json:"ring"`
	WorldX *int64  `json:"world_x,omitempty"`
	WorldY *int64  `json:"world_y,omitempty"`
}

func (c *cli) queryRoster(db *sql.DB, limit int) error {
	rows, err := db.Query(`SELECT name,rank,hq,power,power_value,cell,ring,world_x,world_y FROM roster
		ORDER BY ring IS NULL, ring, severity, power_value DESC, name LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	out := []rosterRow{}
	for rows.Next() {
		var r rosterRow
		if err := rows.Scan(&r.Name, &r.Rank, &r.HQ, &r.Power, &r.Value, &r.Cell, &r.Ring, &r.WorldX, &r.WorldY); err != nil {
			return err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return c.printJSON(out)
}

type auditRow struct {
	Revision int64  `json:"revision"`
	Time     string `json:"time"`
	Source   string `json:"source"`
	Op       string `json:"op"`
	Subject  string `json:"subject"`
	Detail   string `json:"detail"`
}

func (c *cli) queryAudits(db *sql.DB, limit int) error {
	rows, err := db.Query(`SELECT revision,time,source,op,subject,detail FROM audits ORDER BY revision DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	out := []auditRow{}
	for rows.Next() {
		var r auditRow
		if err := rows.Scan(&r.Revision, &r.Time, &r.Source, &r.Op, &r.Subject, &r.Detail); err != nil {
			return err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return c.printJSON(out)
}

type snapshotRow struct {
	Revision int64  `json:"revision"`
	Path     string `json:"path"`
	Op       string `json:"op"`
	SavedAt  string `json:"saved_at"`
	Members  int    `json:"members"`
	Assigned int    `json:"assigned"`
}

func (c *cli) querySnapshots(db *sql.DB, limit int) error {
	rows, err := db.Query(`SELECT revision,path,op,saved_at,members,assigned FROM snapshots ORDER BY revision DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	out := []snapshotRow{}
	for rows.Next() {
		var r snapshotRow
		if err := rows.Scan(&r.Revision, &r.Path, &r.Op, &r.SavedAt, &r.Members, &r.Assigned); err != nil {
			return err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return c.printJSON(out)
}
