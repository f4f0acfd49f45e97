// Package archive keeps labelled copies of snapshots outside the pruned
// history, typically one per season before a migration.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/Bullochman/hivegrid/internal/persistence/snapshot"
)

type Meta struct {
	Label      string `json:"label"`
	Alliance   string `json:"alliance"`
	Revision   uint64 `json:"revision"`
	Snapshot   string `json:"snapshot"`
	Members    int    `json:"members"`
	Assigned   int    `json:"assigned"`
	ArchivedAt string `json:"archived_at"`
}

var labelRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

func Dir(dataDir string) string { return filepath.Join(dataDir, "archives") }

// Archive copies the snapshot at snapshotPath into archives/<label>/ and
// writes meta.json next to it. An existing label is refused.
func Archive(dataDir, label, snapshotPath string, hdr snapshot.Header, now time.Time) (Meta, error) {
	if !labelRE.MatchString(label) {
		return Meta{}, fmt.Errorf("bad archive label %q", label)
	}
	dir := filepath.Join(Dir(dataDir), label)
	if _, err := os.Stat(dir); err == nil {
		return Meta{}, fmt.Errorf("archive %q already exists", label)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Meta{}, err
	}
	dst := filepath.Join(dir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return Meta{}, err
	}

	meta := Meta{
		Label:      label,
		Alliance:   hdr.Alliance,
		Revision:   hdr.Revision,
		Snapshot:   filepath.Base(dst),
		Members:    hdr.Members,
		Assigned:   hdr.Assigned,
		ArchivedAt: now.UTC().Format(time.RFC3339),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Meta{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), append(b, '\n'), 0o644); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// List returns the metadata of every archive, ordered by label.
func List(dataDir string) ([]Meta, error) {
	ents, err := os.ReadDir(Dir(dataDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Meta
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(Dir(dataDir), e.Name(), "meta.json"))
		if err != nil {
			continue
		}
		var m Meta
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("archive %s: %w", e.Name(), err)
		}
		out = append(out, m)
	}
	return out, nil
}

// SnapshotPath locates the archived snapshot for label.
func SnapshotPath(dataDir string, m Meta) string {
	return filepath.Join(Dir(dataDir), m.Label, m.Snapshot)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
