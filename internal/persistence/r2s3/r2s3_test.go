package r2s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Bullochman/hivegrid/internal/hive"
)

func TestClientPutFileSignsRequest(t *testing.T) {
	var gotPath, gotAuth, gotBody, gotHash string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotHash = r.Header.Get("x-amz-content-sha256")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "hive", "AKID", "SECRET")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC) }

	local := filepath.Join(t.TempDir(), "a b.csv")
	if err := os.WriteFile(local, []byte("Rank,Name\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.PutFile(context.Background(), "/exports//a b.csv", local); err != nil {
		t.Fatalf("put: %v", err)
	}
	if gotPath != "/hive/exports/a%20b.csv" {
		t.Fatalf("path=%s", gotPath)
	}
	if gotBody != "Rank,Name\n" || gotHash != sha256Hex([]byte("Rank,Name\n")) {
		t.Fatalf("body=%q hash=%s", gotBody, gotHash)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKID/20260405/auto/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=") {
		t.Fatalf("auth=%s", gotAuth)
	}
}

func TestClientPutFileErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()
	c, _ := New(srv.URL, "hive", "AKID", "SECRET")
	local := filepath.Join(t.TempDir(), "x")
	_ = os.WriteFile(local, []byte("x"), 0o644)
	err := c.PutFile(context.Background(), "x", local)
	if err == nil || !strings.Contains(err.Error(), "status=403") {
		t.Fatalf("err=%v", err)
	}
	if _, err := New("", "b", "k", "s"); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestNormalizeObjectKey(t *testing.T) {
	cases := map[string]string{
		"a/b":       "a/b",
		`\a\b`:      "a/b",
		"/../etc":   "etc",
		"  ":        "",
		"a/../../b": "b",
	}
	for in, want := range cases {
		if got := normalizeObjectKey(in); got != want {
			t.Fatalf("normalizeObjectKey(%q)=%q want %q", in, got, want)
		}
	}
}

type fakeUploader struct {
	mu    sync.Mutex
	keys  []string
	fails int
}

func (f *fakeUploader) PutFile(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("temporary")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestMirrorUploadsRelativeKeysAndRetries(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "hive_config.json")
	snap := filepath.Join(dir, "snapshots", "000000000001.snap.zst")
	_ = os.MkdirAll(filepath.Dir(snap), 0o755)
	for _, p := range []string{state, snap} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	up := &fakeUploader{fails: 1}
	m := NewMirror(up, dir, "/hives/wolves/", 1, nil)
	m.backoff = time.Millisecond
	m.MirrorOnSave(state)
	m.Enqueue(snap)
	if err := m.Export(hive.Change{Revision: 1}); err != nil {
		t.Fatalf("export: %v", err)
	}
	m.Enqueue(filepath.Join(t.TempDir(), "outside"))
	m.Close()

	want := map[string]bool{"hives/wolves/snapshots/000000000001.snap.zst": true, "hives/wolves/hive_config.json": true}
	if len(up.keys) != 2 || !want[up.keys[0]] || !want[up.keys[1]] {
		t.Fatalf("keys=%v", up.keys)
	}
	st := m.Stats()
	if st.EnqueuedTotal != 3 || st.UploadSuccessTotal != 2 || st.UploadFailTotal != 0 {
		t.Fatalf("stats=%+v", st)
	}
}
