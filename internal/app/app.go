// Package app assembles the persistence stack shared by the server and the
// CLI: state file, derived exports, snapshot history, index and mirror.
package app

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Bullochman/hivegrid/internal/config"
	"github.com/Bullochman/hivegrid/internal/hive"
	"github.com/Bullochman/hivegrid/internal/importer"
	"github.com/Bullochman/hivegrid/internal/layout"
	"github.com/Bullochman/hivegrid/internal/persistence/indexdb"
	persistlog "github.com/Bullochman/hivegrid/internal/persistence/log"
	"github.com/Bullochman/hivegrid/internal/persistence/r2s3"
	"github.com/Bullochman/hivegrid/internal/persistence/snapshot"
	"github.com/Bullochman/hivegrid/internal/persistence/statefile"
)

type Options struct {
	DataDir    string
	LayoutPath string
	// Source tags audit entries ("api", "cli").
	Source       string
	SnapshotKeep int
	DisableDB    bool
	R2           config.R2
	Logger       *log.Logger
}

type Runtime struct {
	Layout  layout.File
	Store   *statefile.Store
	Service *hive.Service
	History *snapshot.History
	// Index and Mirror are nil when disabled.
	Index  *indexdb.SQLiteIndex
	Mirror *r2s3.Mirror

	audit  *persistlog.AuditLogger
	logger *log.Logger
}

func StatePath(dataDir string) string   { return filepath.Join(dataDir, statefile.FileName) }
func ExportPath(dataDir string) string  { return filepath.Join(dataDir, importer.ExportFileName) }
func SnapshotDir(dataDir string) string { return filepath.Join(dataDir, "snapshots") }

// Open wires the stack. Exporters run in this order after each save: CSV
// export, snapshot, index, mirror.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[hive] ", log.LstdFlags|log.Lmicroseconds)
	}
	if opts.DataDir == "" {
		opts.DataDir = "."
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, err
	}
	lay, err := layout.Load(opts.LayoutPath)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Layout:  lay,
		Store:   statefile.New(StatePath(opts.DataDir), lay.NewState()),
		History: snapshot.NewHistory(SnapshotDir(opts.DataDir), opts.SnapshotKeep),
		audit:   persistlog.NewAuditLogger(opts.DataDir),
		logger:  logger,
	}

	if !opts.DisableDB {
		idx, err := indexdb.OpenSQLite(indexdb.DefaultPath(opts.DataDir))
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open index: %w", err)
		}
		rt.Index = idx
	}
	if opts.R2.Enabled {
		client, err := r2s3.New(opts.R2.Endpoint, opts.R2.Bucket, opts.R2.AccessKeyID, opts.R2.SecretAccessKey)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("r2 mirror: %w", err)
		}
		rt.Mirror = r2s3.NewMirror(client, opts.DataDir, opts.R2.Prefix, opts.R2.Workers, logger)
		rt.Mirror.MirrorOnSave(StatePath(opts.DataDir), ExportPath(opts.DataDir))
	}

	rt.History.OnWrite = func(path string, snap snapshot.SnapshotV1) {
		if rt.Index != nil {
			rt.Index.RecordSnapshot(path, snap)
		}
		if rt.Mirror != nil {
			rt.Mirror.Enqueue(path)
		}
	}

	exporters := []hive.Exporter{importer.NewCSVExporter(ExportPath(opts.DataDir)), rt.History}
	audits := []hive.AuditLogger{rt.audit}
	if rt.Index != nil {
		exporters = append(exporters, rt.Index)
		audits = append(audits, rt.Index)
	}
	if rt.Mirror != nil {
		exporters = append(exporters, rt.Mirror)
	}
	rt.Service = hive.NewService(rt.Store, hive.Options{
		Source:    opts.Source,
		Logger:    logger,
		Exporters: exporters,
		Audit:     audits,
	})
	return rt, nil
}

// Close flushes the audit log, the index queue and pending uploads.
func (rt *Runtime) Close() {
	if rt.audit != nil {
		if err := rt.audit.Close(); err != nil {
			rt.logger.Printf("close audit log: %v", err)
		}
	}
	if rt.Index != nil {
		if err := rt.Index.Close(); err != nil {
			rt.logger.Printf("close index: %v", err)
		}
	}
	if rt.Mirror != nil {
		rt.Mirror.Close()
	}
}
