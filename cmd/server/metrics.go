package main

import (
	"fmt"
	"io"

	"github.com/Bullochman/hivegrid/internal/persistence/indexdb"
	"github.com/Bullochman/hivegrid/internal/persistence/r2s3"
	"github.com/Bullochman/hivegrid/internal/transport/api"
	"github.com/Bullochman/hivegrid/internal/transport/observer"
)

func indexMetrics(idx *indexdb.SQLiteIndex) api.MetricsWriter {
	return func(w io.Writer) {
		if idx == nil {
			return
		}
		s := idx.Stats()
		fmt.Fprintf(w, "# HELP hivegrid_index_queue_depth SQLite index queue depth.\n")
		fmt.Fprintf(w, "# TYPE hivegrid_index_queue_depth gauge\n")
		fmt.Fprintf(w, "hivegrid_index_queue_depth %d\n", s.QueueDepth)

		fmt.Fprintf(w, "# HELP hivegrid_index_queue_capacity SQLite index queue capacity.\n")
		fmt.Fprintf(w, "# TYPE hivegrid_index_queue_capacity gauge\n")
		fmt.Fprintf(w, "hivegrid_index_queue_capacity %d\n", s.QueueCapacity)

		fmt.Fprintf(w, "# HELP hivegrid_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(w, "# TYPE hivegrid_index_dropped_total counter\n")
		fmt.Fprintf(w, "hivegrid_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
		fmt.Fprintf(w, "hivegrid_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
		fmt.Fprintf(w, "hivegrid_index_dropped_total{kind=%q} %d\n", "roster", s.DropRosterTotal)
	}
}

func mirrorMetrics(m *r2s3.Mirror) api.MetricsWriter {
	return func(w io.Writer) {
		if m == nil {
			return
		}
		s := m.Stats()
		fmt.Fprintf(w, "# HELP hivegrid_r2_mirror_queue_depth Current R2 mirror queue depth.\n")
		fmt.Fprintf(w, "# TYPE hivegrid_r2_mirror_queue_depth gauge\n")
		fmt.Fprintf(w, "hivegrid_r2_mirror_queue_depth %d\n", s.QueueDepth)

		fmt.Fprintf(w, "# HELP hivegrid_r2_mirror_enqueued_total Total mirror enqueue attempts.\n")
		fmt.Fprintf(w, "# TYPE hivegrid_r2_mirror_enqueued_total counter\n")
		fmt.Fprintf(w, "hivegrid_r2_mirror_enqueued_total %d\n", s.EnqueuedTotal)

		fmt.Fprintf(w, "# HELP hivegrid_r2_mirror_dropped_total Uploads dropped on a full queue.\n")
		fmt.Fprintf(w, "# TYPE hivegrid_r2_mirror_dropped_total counter\n")
		fmt.Fprintf(w, "hivegrid_r2_mirror_dropped_total %d\n", s.DroppedTotal)

		fmt.Fprintf(w, "# HELP hivegrid_r2_mirror_upload_success_total Successful mirror uploads.\n")
		fmt.Fprintf(w, "# TYPE hivegrid_r2_mirror_upload_success_total counter\n")
		fmt.Fprintf(w, "hivegrid_r2_mirror_upload_success_total %d\n", s.UploadSuccessTotal)

		fmt.Fprintf(w, "# HELP hivegrid_r2_mirror_upload_fail_total Mirror uploads that failed after retry.\n")
		fmt.Fprintf(w, "# TYPE hivegrid_r2_mirror_upload_fail_total counter\n")
		fmt.Fprintf(w, "hivegrid_r2_mirror_upload_fail_total %d\n", s.UploadFailTotal)

		fmt.Fprintf(w, "# HELP hivegrid_r2_mirror_last_success_unix Unix timestamp of the last successful upload.\n")
		fmt.Fprintf(w, "# TYPE hivegrid_r2_mirror_last_success_unix gauge\n")
		fmt.Fprintf(w, "hivegrid_r2_mirror_last_success_unix %d\n", s.LastSuccessUnix)
	}
}

func observerMetrics(o *observer.Server) api.MetricsWriter {
	return func(w io.Writer) {
		s := o.Stats()
		fmt.Fprintf(w, "# HELP hivegrid_observers Connected observer sessions.\n")
		fmt.Fprintf(w, "# TYPE hivegrid_observers gauge\n")
		fmt.Fprintf(w, "hivegrid_observers %d\n", s.Subscribers)

		fmt.Fprintf(w, "# HELP hivegrid_observer_messages_total Grid messages sent or dropped.\n")
		fmt.Fprintf(w, "# TYPE hivegrid_observer_messages_total counter\n")
		fmt.Fprintf(w, "hivegrid_observer_messages_total{result=%q} %d\n", "sent", s.SentTotal)
		fmt.Fprintf(w, "hivegrid_observer_messages_total{result=%q} %d\n", "dropped", s.DroppedTotal)
	}
}
