package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Bullochman/hivegrid/internal/hive"
)

const fileSuffix = ".snap.zst"

// History keeps one snapshot per saved revision under dir and prunes all
// but the newest keep files. keep <= 0 disables pruning.
type History struct {
	dir  string
	keep int
	// OnWrite runs after each snapshot file is written (R2 mirror, index).
	OnWrite func(path string, snap SnapshotV1)
}

func NewHistory(dir string, keep int) *History {
	return &History{dir: dir, keep: keep}
}

func (h *History) Dir() string { return h.dir }

func (h *History) Path(rev uint64) string {
	return filepath.Join(h.dir, fmt.Sprintf("%012d%s", rev, fileSuffix))
}

func (h *History) Name() string { return "snapshot" }

func (h *History) Export(ch hive.Change) error {
	snap := FromState(ch.State, ch.Revision, ch.Op, ch.Time)
	path := h.Path(ch.Revision)
	if err := WriteSnapshot(path, snap); err != nil {
		return err
	}
	if h.OnWrite != nil {
		h.OnWrite(path, snap)
	}
	if h.keep > 0 {
		if _, err := h.Prune(h.keep); err != nil {
			return fmt.Errorf("prune: %w", err)
		}
	}
	return nil
}

// Revisions lists stored revisions, oldest first.
func (h *History) Revisions() ([]uint64, error) {
	entries, err := os.ReadDir(h.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var revs []uint64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		rev, err := strconv.ParseUint(strings.TrimSuffix(name, fileSuffix), 10, 64)
		if err != nil {
			continue
		}
		revs = append(revs, rev)
	}
	sort.Slice(revs, func(i, j int) bool { return revs[i] < revs[j] })
	return revs, nil
}

// Latest returns the newest revision, or ok=false when there is none.
func (h *History) Latest() (uint64, bool, error) {
	revs, err := h.Revisions()
	if err != nil || len(revs) == 0 {
		return 0, false, err
	}
	return revs[len(revs)-1], true, nil
}

func (h *History) Read(rev uint64) (SnapshotV1, error) {
	return ReadSnapshot(h.Path(rev))
}

// Prune deletes all but the newest keep snapshots and returns the removed
// revisions.
func (h *History) Prune(keep int) ([]uint64, error) {
	revs, err := h.Revisions()
	if err != nil || len(revs) <= keep {
		return nil, err
	}
	drop := revs[:len(revs)-keep]
	for _, rev := range drop {
		if err := os.Remove(h.Path(rev)); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	return drop, nil
}
