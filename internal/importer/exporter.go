package importer

import (
	"os"
	"path/filepath"

	"github.com/Bullochman/hivegrid/internal/hive"
)

// ExportFileName is the roster export written next to the state file.
const ExportFileName = "hive_members_export.csv"

// CSVExporter rewrites the roster export after every save.
type CSVExporter struct {
	path string
}

func NewCSVExporter(path string) *CSVExporter { return &CSVExporter{path: path} }

func (e *CSVExporter) Name() string { return "csv" }

func (e *CSVExporter) Export(ch hive.Change) error {
	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(e.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if err := WriteExport(tmp, ch.State.ExportRows()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, e.path)
}
