package hive

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Bullochman/hivegrid/internal/grid"
)

type Options struct {
	// Source tags audit entries ("api", "cli").
	Source    string
	Logger    *log.Logger
	Exporters []Exporter
	Audit     []AuditLogger
	Now       func() time.Time
}

// Service serialises every load-mutate-save cycle on one state file. The
// grid core has no locking of its own; this is the only writer.
type Service struct {
	mu    sync.Mutex
	store Store
	opts  Options

	updates     atomic.Uint64
	rejected    atomic.Uint64
	saveErrors  atomic.Uint64
	exportFails atomic.Uint64
}

type Stats struct {
	Updates      uint64
	Rejected     uint64
	SaveErrors   uint64
	ExportErrors uint64
}

func NewService(store Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[hive] ", log.LstdFlags|log.Lmicroseconds)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Source == "" {
		opts.Source = "api"
	}
	return &Service{store: store, opts: opts}
}

// AddExporter appends e to the exporters run after each save. Call it before
// the service is shared.
func (s *Service) AddExporter(e Exporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Exporters = append(s.opts.Exporters, e)
}

func (s *Service) Stats() Stats {
	return Stats{
		Updates:      s.updates.Load(),
		Rejected:     s.rejected.Load(),
		SaveErrors:   s.saveErrors.Load(),
		ExportErrors: s.exportFails.Load(),
	}
}

// Current returns a private copy of the persisted state.
func (s *Service) Current() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.store.Load()
	if err != nil {
		return Document{}, fmt.Errorf("load state: %w", err)
	}
	s.logFixes(doc.Fixes)
	doc.State = doc.State.Clone()
	return doc, nil
}

// Mutation edits st in place and returns the audit subject and detail. A
// returned error discards st.
type Mutation func(st *grid.State) (subject, detail string, err error)

// Update runs fn against a copy of the current state and persists the result
// only if fn succeeds and the state still satisfies every grid invariant.
func (s *Service) Update(op string, fn Mutation) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load()
	if err != nil {
		return Document{}, fmt.Errorf("load state: %w", err)
	}
	s.logFixes(doc.Fixes)

	next := doc.State.Clone()
	subject, detail, err := fn(next)
	if err != nil {
		s.rejected.Add(1)
		return Document{}, err
	}
	if err := next.Validate(); err != nil {
		s.rejected.Add(1)
		return Document{}, fmt.Errorf("%s: %w", op, err)
	}

	out := Document{State: next, Revision: doc.Revision + 1}
	if err := s.store.Save(out); err != nil {
		s.saveErrors.Add(1)
		return Document{}, fmt.Errorf("save state: %w", err)
	}
	s.updates.Add(1)

	now := s.opts.Now().UTC()
	ch := Change{Revision: out.Revision, Op: op, Source: s.opts.Source, Time: now, State: next.Clone()}
	s.export(ch)
	s.audit(AuditEntry{
		Revision: out.Revision,
		Time:     now.Format(time.RFC3339Nano),
		Source:   s.opts.Source,
		Op:       op,
		Subject:  subject,
		Detail:   detail,
		Members:  len(next.Members),
		Assigned: len(next.Assignments),
	})

	out.State = next.Clone()
	return out, nil
}

func (s *Service) export(ch Change) {
	for _, e := range s.opts.Exporters {
		if e == nil {
			continue
		}
		if err := e.Export(ch); err != nil {
			s.exportFails.Add(1)
			s.opts.Logger.Printf("export %s rev=%d: %v", e.Name(), ch.Revision, err)
		}
	}
}

func (s *Service) audit(entry AuditEntry) {
	for _, a := range s.opts.Audit {
		if a == nil {
			continue
		}
		if err := a.WriteAudit(entry); err != nil {
			s.opts.Logger.Printf("audit rev=%d: %v", entry.Revision, err)
		}
	}
}

func (s *Service) logFixes(fixes []string) {
	for _, f := range fixes {
		s.opts.Logger.Printf("state repair: %s", f)
	}
}
