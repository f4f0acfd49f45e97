package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Bullochman/hivegrid/internal/grid"
	"github.com/Bullochman/hivegrid/internal/hive"
	"github.com/Bullochman/hivegrid/internal/persistence/snapshot"
)

// SQLiteIndex is a queryable read model of the hive. The JSON state file
// stays authoritative; rows are written by one goroutine and dropped when
// the queue is full.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
	dropRoster   atomic.Uint64
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropAuditTotal    uint64
	DropSnapshotTotal uint64
	DropRosterTotal   uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqSnapshot
	reqRoster
)

type req struct {
	kind reqKind

	audit    hive.AuditEntry
	snapshot snapshotRow
	roster   rosterBatch
}

type snapshotRow struct {
	Revision uint64
	Path     string
	Op       string
	SavedAt  string
	Members  int
	Assigned int
}

type rosterBatch struct {
	Revision uint64
	Alliance string
	Rows     []rosterRow
}

type rosterRow struct {
	Name       string
	Rank       string
	Severity   int
	HQ         sql.NullInt64
	Power      string
	PowerValue float64
	Notes      string
	Cell       sql.NullString
	Ring       sql.NullInt64
	WorldX     sql.NullInt64
	WorldY     sql.NullInt64
}

// DefaultPath is the index location inside a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "hive.sqlite")
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS roster (
			name TEXT PRIMARY KEY,
			rank TEXT NOT NULL,
			severity INTEGER NOT NULL,
			hq INTEGER,
			power TEXT NOT NULL,
			power_value REAL NOT NULL,
			notes TEXT NOT NULL,
			cell TEXT UNIQUE,
			ring INTEGER,
			world_x INTEGER,
			world_y INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_roster_rank_power ON roster(severity, power_value DESC);`,
		`CREATE TABLE IF NOT EXISTS audits (
			revision INTEGER PRIMARY KEY,
			time TEXT NOT NULL,
			source TEXT NOT NULL,
			op TEXT NOT NULL,
			subject TEXT NOT NULL,
			detail TEXT NOT NULL,
			members INTEGER NOT NULL,
			assigned INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_subject ON audits(subject, revision);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			revision INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			op TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			members INTEGER NOT NULL,
			assigned INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropRosterTotal:   s.dropRoster.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteAudit(entry hive.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry}, &s.dropAudit)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Revision: snap.Header.Revision,
		Path:     path,
		Op:       snap.Header.Op,
		SavedAt:  snap.Header.SavedAt,
		Members:  snap.Header.Members,
		Assigned: snap.Header.Assigned,
	}}, &s.dropSnapshot)
}

func (s *SQLiteIndex) Name() string { return "sqlite" }

// Export replaces the roster table with the committed state.
func (s *SQLiteIndex) Export(ch hive.Change) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqRoster, roster: rosterFromState(ch.Revision, ch.State)}, &s.dropRoster)
	return nil
}

func rosterFromState(rev uint64, st *grid.State) rosterBatch {
	b := rosterBatch{Revision: rev, Alliance: st.Alliance}
	for _, e := range st.Roster() {
		r := rosterRow{
			Name:       e.Name,
			Rank:       e.Member.Rank.String(),
			Severity:   e.Member.Rank.Severity(),
			Power:      e.Member.Power,
			PowerValue: e.Member.PowerValue(),
			Notes:      e.Member.Notes,
		}
		if e.Member.HQ != nil {
			r.HQ = sql.NullInt64{Int64: int64(*e.Member.HQ), Valid: true}
		}
		if e.Cell != nil {
			r.Cell = sql.NullString{String: e.Cell.String(), Valid: true}
			r.Ring = sql.NullInt64{Int64: int64(e.Ring), Valid: true}
			r.WorldX = sql.NullInt64{Int64: int64(e.WorldX), Valid: true}
			r.WorldY = sql.NullInt64{Int64: int64(e.WorldY), Valid: true}
		}
		b.Rows = append(b.Rows, r)
	}
	return b
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(revision,time,source,op,subject,detail,members,assigned,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(revision,path,op,saved_at,members,assigned) VALUES(?,?,?,?,?,?)`)
	insertMember, _ := s.db.Prepare(`INSERT INTO roster(name,rank,severity,hq,power,power_value,notes,cell,ring,world_x,world_y) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	setMeta, _ := s.db.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertAudit, insertSnapshot, insertMember, setMeta} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var tx *sql.Tx
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAudit:
			a := r.audit
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(int64(a.Revision), a.Time, a.Source, a.Op, a.Subject, a.Detail, a.Members, a.Assigned, string(raw)); err != nil {
					rollback()
					continue
				}
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(int64(sn.Revision), sn.Path, sn.Op, sn.SavedAt, sn.Members, sn.Assigned); err != nil {
					rollback()
					continue
				}
			}

		case reqRoster:
			if err := s.replaceRoster(tx, insertMember, setMeta, r.roster); err != nil {
				rollback()
				continue
			}
		}
		// Commit once the burst is drained so readers see each save promptly.
		if len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}

func (s *SQLiteIndex) replaceRoster(tx *sql.Tx, insertMember, setMeta *sql.Stmt, b rosterBatch) error {
	if insertMember == nil || setMeta == nil {
		return fmt.Errorf("roster statements unavailable")
	}
	if _, err := tx.Exec(`DELETE FROM roster`); err != nil {
		return err
	}
	ins := tx.Stmt(insertMember)
	for _, r := range b.Rows {
		if _, err := ins.Exec(r.Name, r.Rank, r.Severity, r.HQ, r.Power, r.PowerValue, r.Notes, r.Cell, r.Ring, r.WorldX, r.WorldY); err != nil {
			return err
		}
	}
	meta := tx.Stmt(setMeta)
	if _, err := meta.Exec("roster_revision", strconv.FormatUint(b.Revision, 10)); err != nil {
		return err
	}
	_, err := meta.Exec("alliance", b.Alliance)
	return err
}
