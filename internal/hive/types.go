package hive

import (
	"time"

	"github.com/Bullochman/hivegrid/internal/grid"
)

// Document is the persisted unit: the hive state plus a save counter.
type Document struct {
	State    *grid.State
	Revision uint64
	// Fixes lists repairs applied while loading; they are written back on
	// the next save.
	Fixes []string
}

// Store loads and atomically replaces the authoritative state.
type Store interface {
	Load() (Document, error)
	Save(Document) error
}

// Change describes one committed save. State is shared by every exporter
// and must be treated as read-only.
type Change struct {
	Revision uint64
	Op       string
	Source   string
	Time     time.Time
	State    *grid.State
}

// Exporter derives a secondary artifact from a committed save. Errors are
// logged and never undo the save.
type Exporter interface {
	Name() string
	Export(Change) error
}

type AuditEntry struct {
	Revision uint64 `json:"revision"`
	Time     string `json:"time"`
	Source   string `json:"source"`
	Op       string `json:"op"`
	Subject  string `json:"subject,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Members  int    `json:"members"`
	Assigned int    `json:"assigned"`
}

type AuditLogger interface {
	WriteAudit(AuditEntry) error
}

// Op names recorded in the audit trail and sent to observers.
const (
	OpAssign    = "assign"
	OpMove      = "move"
	OpSwap      = "swap"
	OpUnassign  = "unassign"
	OpDelete    = "delete"
	OpEdit      = "edit"
	OpClear     = "clear"
	OpAuto      = "auto"
	OpImport    = "import"
	OpMigrate   = "migrate"
	OpSetName   = "set-name"
	OpSetAnchor = "set-mg"
	OpRestore   = "restore"
	OpNormalize = "normalize"
)
