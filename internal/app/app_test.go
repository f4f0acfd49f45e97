package app

import (
	"database/sql"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/Bullochman/hivegrid/internal/grid"
	"github.com/Bullochman/hivegrid/internal/persistence/indexdb"
	persistlog "github.com/Bullochman/hivegrid/internal/persistence/log"
)

func TestOpenWiresExportsAuditAndIndex(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{DataDir: dir, Source: "cli", SnapshotKeep: 2, Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc := rt.Service
	for i, name := range []string{"Ann", "Ben", "Cid"} {
		if _, _, err := svc.Assign(name, grid.Cell{Col: i, Row: 0}); err != nil {
			t.Fatalf("assign %s: %v", name, err)
		}
	}
	rt.Close()

	for _, p := range []string{StatePath(dir), ExportPath(dir)} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
	}
	revs, err := rt.History.Revisions()
	if err != nil || len(revs) != 2 || revs[0] != 2 || revs[1] != 3 {
		t.Fatalf("revisions=%v err=%v", revs, err)
	}

	entries, err := persistlog.ReadAudit(persistlog.AuditDir(dir))
	if err != nil || len(entries) != 3 || entries[2].Subject != "Cid" || entries[2].Source != "cli" {
		t.Fatalf("audit=%+v err=%v", entries, err)
	}

	db, err := sql.Open("sqlite", indexdb.DefaultPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM roster WHERE cell IS NOT NULL`).Scan(&n); err != nil || n != 3 {
		t.Fatalf("roster rows=%d err=%v", n, err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil || n != 3 {
		t.Fatalf("snapshot rows=%d err=%v", n, err)
	}
}

func TestOpenWithoutIndexAndBadLayout(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{DataDir: dir, DisableDB: true, Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if rt.Index != nil || rt.Mirror != nil {
		t.Fatalf("index=%v mirror=%v", rt.Index, rt.Mirror)
	}
	rt.Close()
	if _, err := os.Stat(filepath.Join(dir, "index")); !os.IsNotExist(err) {
		t.Fatalf("index dir created: %v", err)
	}

	bad := filepath.Join(dir, "hive.yaml")
	if err := os.WriteFile(bad, []byte("grid:\n  cols: 3\n  rows: 3\n  anchor_col: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(Options{DataDir: dir, LayoutPath: bad, DisableDB: true}); err == nil {
		t.Fatalf("expected layout error")
	}
}
