package hive

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Bullochman/hivegrid/internal/grid"
)

type memStore struct {
	doc      Document
	saves    int
	failSave error
}

func newMemStore() *memStore {
	return &memStore{doc: Document{State: grid.NewState(grid.DefaultConfig())}}
}

func (m *memStore) Load() (Document, error) {
	return Document{State: m.doc.State.Clone(), Revision: m.doc.Revision, Fixes: m.doc.Fixes}, nil
}

func (m *memStore) Save(d Document) error {
	if m.failSave != nil {
		return m.failSave
	}
	m.saves++
	m.doc = Document{State: d.State.Clone(), Revision: d.Revision}
	return nil
}

type recorder struct {
	name    string
	changes []Change
	err     error
}

func (r *recorder) Name() string { return r.name }
func (r *recorder) Export(ch Change) error {
	r.changes = append(r.changes, ch)
	return r.err
}

type auditSink struct{ entries []AuditEntry }

func (a *auditSink) WriteAudit(e AuditEntry) error {
	a.entries = append(a.entries, e)
	return nil
}

func newTestService(t *testing.T, store Store, exps ...Exporter) (*Service, *auditSink) {
	t.Helper()
	audit := &auditSink{}
	svc := NewService(store, Options{
		Source:    "test",
		Logger:    log.New(io.Discard, "", 0),
		Exporters: exps,
		Audit:     []AuditLogger{audit},
		Now:       func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	return svc, audit
}

func TestServiceAssignPersistsExportsAndAudits(t *testing.T) {
	store := newMemStore()
	csv := &recorder{name: "csv"}
	ws := &recorder{name: "observer", err: errors.New("no subscribers")}
	svc, audit := newTestService(t, store, csv, ws)

	if _, _, err := svc.Assign("Alice", grid.Cell{Col: 1, Row: 1}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	res, doc, err := svc.Assign("Bob", grid.Cell{Col: 1, Row: 1})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.Displaced != "Alice" || doc.Revision != 2 {
		t.Fatalf("res=%+v rev=%d", res, doc.Revision)
	}
	if store.saves != 2 || store.doc.State.Assignments[grid.Cell{Col: 1, Row: 1}] != "Bob" {
		t.Fatalf("store not updated: saves=%d %v", store.saves, store.doc.State.Assignments)
	}
	if len(csv.changes) != 2 || len(ws.changes) != 2 {
		t.Fatalf("exporters called csv=%d ws=%d", len(csv.changes), len(ws.changes))
	}
	if st := svc.Stats(); st.Updates != 2 || st.ExportErrors != 2 {
		t.Fatalf("stats=%+v", st)
	}
	want := AuditEntry{
		Revision: 2,
		Time:     "2026-01-02T03:04:05Z",
		Source:   "test",
		Op:       OpAssign,
		Subject:  "Bob",
		Detail:   "1,1 displaced=Alice",
		Members:  2,
		Assigned: 1,
	}
	if diff := cmp.Diff(want, audit.entries[1]); diff != "" {
		t.Fatalf("audit entry (-want +got):\n%s", diff)
	}
}

func TestServiceRejectedMutationLeavesStoreUntouched(t *testing.T) {
	store := newMemStore()
	exp := &recorder{name: "csv"}
	svc, audit := newTestService(t, store, exp)

	_, _, err := svc.Assign("Alice", grid.Cell{Col: 4, Row: 4})
	if !grid.IsValidation(err) {
		t.Fatalf("err=%v want validation", err)
	}
	if store.saves != 0 || len(exp.changes) != 0 || len(audit.entries) != 0 {
		t.Fatalf("rejected op had side effects")
	}
	if svc.Stats().Rejected != 1 {
		t.Fatalf("stats=%+v", svc.Stats())
	}
}

func TestServiceRejectsInvariantBreakingMutation(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	_, err := svc.Update("broken", func(st *grid.State) (string, string, error) {
		st.Assignments[grid.Cell{Col: 4, Row: 4}] = "Ghost"
		return "", "", nil
	})
	if err == nil {
		t.Fatalf("expected invariant error")
	}
	if store.saves != 0 {
		t.Fatalf("invalid state was saved")
	}
}

func TestServiceSaveFailure(t *testing.T) {
	store := newMemStore()
	store.failSave = errors.New("disk full")
	exp := &recorder{name: "csv"}
	svc, _ := newTestService(t, store, exp)
	if _, err := svc.SetAlliance("Wolves"); err == nil {
		t.Fatalf("expected save error")
	}
	if len(exp.changes) != 0 {
		t.Fatalf("exporters ran after a failed save")
	}
	if svc.Stats().SaveErrors != 1 {
		t.Fatalf("stats=%+v", svc.Stats())
	}
}

func TestServiceCurrentIsACopy(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	doc, err := svc.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	doc.State.Members["Intruder"] = grid.Member{}
	again, _ := svc.Current()
	if _, ok := again.State.Members["Intruder"]; ok {
		t.Fatalf("Current leaked the stored state")
	}
}

func TestServiceRestoreAndAuto(t *testing.T) {
	store := newMemStore()
	svc, audit := newTestService(t, store)

	snap := grid.NewState(grid.DefaultConfig())
	snap.Members["A"] = grid.Member{Rank: grid.R5, Power: "10M"}
	snap.Members["B"] = grid.Member{Rank: grid.R1, Power: "50M"}
	if _, err := svc.Restore(snap, "000000000007.snap.zst"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	rep, doc, err := svc.AutoAssign(nil)
	if err != nil {
		t.Fatalf("auto: %v", err)
	}
	if len(rep.Placed) != 2 || doc.State.Assignments[grid.Cell{Col: 3, Row: 5}] != "A" {
		t.Fatalf("rep=%+v", rep)
	}
	if got := audit.entries[1].Detail; got != "sort=rank,power placed=2 leftover=0" {
		t.Fatalf("detail=%q", got)
	}
	if len(snap.Assignments) != 0 {
		t.Fatalf("restore source mutated")
	}
}

func TestServiceNormalizeReportsFixes(t *testing.T) {
	store := newMemStore()
	store.doc.Fixes = []string{"dropped 4,4"}
	svc, audit := newTestService(t, store)
	fixes, doc, err := svc.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(fixes) != 1 || doc.Revision != 1 || audit.entries[0].Detail != "fixes=1" {
		t.Fatalf("fixes=%v rev=%d audit=%+v", fixes, doc.Revision, audit.entries)
	}
}
