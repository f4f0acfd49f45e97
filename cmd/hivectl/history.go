package main

import (
	"fmt"
	"time"

	"github.com/Bullochman/hivegrid/internal/app"
	"github.com/Bullochman/hivegrid/internal/persistence/archive"
	persistlog "github.com/Bullochman/hivegrid/internal/persistence/log"
	"github.com/Bullochman/hivegrid/internal/persistence/snapshot"
	"github.com/Bullochman/hivegrid/internal/persistence/statefile"
)

func (c *cli) stateCmd(args []string) error {
	fs, cm := c.flags("state")
	normalize := fs.Bool("normalize", false, "write back repairs applied to a hand-edited file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	if *normalize {
		fixes, doc, err := rt.Service.Normalize()
		if err != nil {
			return err
		}
		for _, f := range fixes {
			c.printf("fixed: %s\n", f)
		}
		c.printf("ok: normalized, revision %d\n", doc.Revision)
		return nil
	}
	doc, err := rt.Service.Current()
	if err != nil {
		return err
	}
	return statefile.Encode(c.stdout, doc)
}

func (c *cli) snapshotsCmd(args []string) error {
	fs, cm := c.flags("snapshots")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	h := snapshot.NewHistory(app.SnapshotDir(*cm.dataDir), 0)
	revs, err := h.Revisions()
	if err != nil {
		return err
	}
	out := make([]snapshot.Header, 0, len(revs))
	for _, rev := range revs {
		hdr, err := snapshot.ReadHeader(h.Path(rev))
		if err != nil {
			return err
		}
		out = append(out, hdr)
	}
	return c.printJSON(out)
}

func (c *cli) restoreCmd(args []string) error {
	fs, cm := c.flags("restore")
	rev := fs.Uint64("rev", 0, "snapshot revision (default: latest)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	rt, err := c.open(cm)
	if err != nil {
		return err
	}
	defer rt.Close()

	want := *rev
	if want == 0 {
		latest, ok, err := rt.History.Latest()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no snapshots under %s", rt.History.Dir())
		}
		want = latest
	}
	snap, err := rt.History.Read(want)
	if err != nil {
		return err
	}
	st, err := snap.State()
	if err != nil {
		return err
	}
	doc, err := rt.Service.Restore(st, fmt.Sprintf("snapshot %d", want))
	if err != nil {
		return err
	}
	c.printf("ok: restored snapshot %d as revision %d (%d members, %d assigned)\n",
		want, doc.Revision, len(doc.State.Members), len(doc.State.Assignments))
	return nil
}

func (c *cli) auditCmd(args []string) error {
	fs, cm := c.flags("audit")
	limit := fs.Int("limit", 20, "newest entries to show (0 for all)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	entries, err := persistlog.ReadAudit(persistlog.AuditDir(*cm.dataDir))
	if err != nil {
		return err
	}
	if *limit > 0 && len(entries) > *limit {
		entries = entries[len(entries)-*limit:]
	}
	return c.printJSON(entries)
}

// archiveCmd lists archives, or with -label copies a snapshot into one.
func (c *cli) archiveCmd(args []string) error {
	fs, cm := c.flags("archive")
	label := fs.String("label", "", "archive name, e.g. season_3")
	rev := fs.Uint64("rev", 0, "snapshot revision (default: latest)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *label == "" {
		list, err := archive.List(*cm.dataDir)
		if err != nil {
			return err
		}
		if list == nil {
			list = []archive.Meta{}
		}
		return c.printJSON(list)
	}
	meta, err := archiveSnapshot(snapshot.NewHistory(app.SnapshotDir(*cm.dataDir), 0), *cm.dataDir, *label, *rev)
	if err != nil {
		return err
	}
	c.printf("ok: archived revision %d as %s\n", meta.Revision, meta.Label)
	return nil
}

func archiveSnapshot(h *snapshot.History, dataDir, label string, rev uint64) (archive.Meta, error) {
	if rev == 0 {
		latest, ok, err := h.Latest()
		if err != nil {
			return archive.Meta{}, err
		}
		if !ok {
			return archive.Meta{}, fmt.Errorf("no snapshots under %s", h.Dir())
		}
		rev = latest
	}
	hdr, err := snapshot.ReadHeader(h.Path(rev))
	if err != nil {
		return archive.Meta{}, err
	}
	return archive.Archive(dataDir, label, h.Path(rev), hdr, time.Now())
}
