package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Bullochman/hivegrid/internal/grid"
	"github.com/Bullochman/hivegrid/internal/hive"
	"github.com/Bullochman/hivegrid/internal/persistence/statefile"
	"github.com/Bullochman/hivegrid/internal/protocol"
)

func newTestAPI(t *testing.T) (http.Handler, *hive.Service) {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	store := statefile.New(filepath.Join(t.TempDir(), statefile.FileName), grid.NewState(grid.DefaultConfig()))
	svc := hive.NewService(store, hive.Options{Logger: quiet})
	return NewServer(svc, quiet).Handler(), svc
}

type result struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Code   string          `json:"code"`
	Config json.RawMessage `json:"config"`
	raw    map[string]any
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, result) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var res result
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		b := rec.Body.Bytes()
		if err := json.Unmarshal(b, &res); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, b, err)
		}
		_ = json.Unmarshal(b, &res.raw)
	}
	return rec.Code, res
}

func decodeConfig(t *testing.T, raw json.RawMessage) *grid.State {
	t.Helper()
	doc, err := statefile.Decode(strings.NewReader(string(raw)), grid.DefaultConfig())
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return doc.State
}

func TestAssignReturnsConfigAndPersists(t *testing.T) {
	h, svc := newTestAPI(t)
	code, res := call(t, h, http.MethodPost, "/api/assign", `{"name":"Ann","col":3,"row":5}`)
	if code != http.StatusOK || !res.OK {
		t.Fatalf("code=%d res=%+v", code, res)
	}
	if res.raw["cell"] != "3,5" || res.raw["created"] != true {
		t.Fatalf("raw=%v", res.raw)
	}
	st := decodeConfig(t, res.Config)
	if name, _ := st.Occupant(grid.Cell{Col: 3, Row: 5}); name != "Ann" {
		t.Fatalf("config occupant=%q", name)
	}

	_, res = call(t, h, http.MethodPost, "/api/assign", `{"name":"Ben","col":3,"row":5}`)
	if !res.OK || res.raw["displaced"] != "Ann" {
		t.Fatalf("displace=%v", res.raw)
	}
	doc, err := svc.Current()
	if err != nil || doc.Revision != 2 {
		t.Fatalf("rev=%d err=%v", doc.Revision, err)
	}
}

func TestGridRejectionsAreOKFalse(t *testing.T) {
	h, _ := newTestAPI(t)
	cases := []struct {
		path, body, code string
	}{
		{"/api/assign", `{"name":"Ann","col":4,"row":4}`, protocol.ErrInvalidTarget},
		{"/api/assign", `{"name":"  ","col":1,"row":1}`, protocol.ErrBadRequest},
		{"/api/move", `{"from":"1,1","to":"1,1"}`, protocol.ErrBadRequest},
		{"/api/move", `{"from":"4,4","to":"1,1"}`, protocol.ErrInvalidTarget},
		{"/api/move", `{"from":"a","to":"1,1"}`, protocol.ErrBadRequest},
		{"/api/swap", `{"a":"Ann","b":"Ben"}`, protocol.ErrNotFound},
		{"/api/edit", `{"name":"Ann","hq":"tall"}`, protocol.ErrBadRequest},
		{"/api/clear", `{"mode":"everything"}`, protocol.ErrBadRequest},
		{"/api/upload-csv", `{"csv":"Rank,Power\nR1,2M\n"}`, protocol.ErrBadRequest},
	}
	for _, tc := range cases {
		code, res := call(t, h, http.MethodPost, tc.path, tc.body)
		if code != http.StatusOK || res.OK || res.Code != tc.code || res.Error == "" {
			t.Fatalf("%s %s: code=%d res=%+v", tc.path, tc.body, code, res)
		}
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	h, _ := newTestAPI(t)
	for _, body := range []string{`{"name":"Ann","col":"x","row":1}`, `{`} {
		code, res := call(t, h, http.MethodPost, "/api/assign", body)
		if code != http.StatusBadRequest || res.OK || res.Code != protocol.ErrProtoBadRequest {
			t.Fatalf("%s: code=%d res=%+v", body, code, res)
		}
	}
	if code, _ := call(t, h, http.MethodGet, "/api/assign", ""); code != http.StatusMethodNotAllowed {
		t.Fatalf("GET assign=%d", code)
	}
}

func TestUploadCSVAppliesDominance(t *testing.T) {
	h, _ := newTestAPI(t)
	if _, res := call(t, h, http.MethodPost, "/api/edit", `{"name":"Dave","rank":"R3","hq":25,"power":"20M"}`); !res.OK {
		t.Fatalf("edit: %+v", res)
	}
	csv := "Member,Rank,HQ Level:,Total Power\nDave,R2,30,30M\nEve,R1,,5M\n,R1,1,1M\n"
	body, _ := json.Marshal(protocol.UploadCSVReq{CSV: csv})
	_, res := call(t, h, http.MethodPost, "/api/upload-csv", string(body))
	if !res.OK || res.raw["added"] != float64(1) || res.raw["skipped"] != float64(1) || res.raw["blank_name"] != float64(1) {
		t.Fatalf("upload=%v", res.raw)
	}
	st := decodeConfig(t, res.Config)
	if d := st.Members["Dave"]; d.Rank != grid.R3 || d.Power != "20M" {
		t.Fatalf("Dave=%+v", d)
	}
	if _, ok := st.Members["Eve"]; !ok {
		t.Fatalf("Eve missing")
	}

	body, _ = json.Marshal(protocol.UploadCSVReq{CSV: csv, Policy: "always"})
	_, res = call(t, h, http.MethodPost, "/api/upload-csv", string(body))
	if st := decodeConfig(t, res.Config); st.Members["Dave"].Rank != grid.R2 {
		t.Fatalf("always policy kept Dave=%+v", st.Members["Dave"])
	}
}

func TestAutoEditAndRoster(t *testing.T) {
	h, _ := newTestAPI(t)
	for _, b := range []string{
		`{"name":"Ann","rank":"R1","power":"90M"}`,
		`{"name":"Ben","rank":"R4","power":"10M"}`,
	} {
		if _, res := call(t, h, http.MethodPost, "/api/edit", b); !res.OK {
			t.Fatalf("edit %s: %+v", b, res)
		}
	}
	_, res := call(t, h, http.MethodPost, "/api/auto", `{}`)
	if !res.OK || res.raw["sort"] != "rank,power" {
		t.Fatalf("auto=%v", res.raw)
	}
	placed := res.raw["placed"].([]any)
	if first := placed[0].(map[string]any); first["name"] != "Ben" || first["cell"] != "3,5" {
		t.Fatalf("placed=%v", placed)
	}

	_, res = call(t, h, http.MethodPost, "/api/edit", `{"old_name":"ben","name":"Benny","rank":"R4","hq":"31"}`)
	if !res.OK || res.raw["renamed"] != true {
		t.Fatalf("rename=%v", res.raw)
	}

	code, res := call(t, h, http.MethodGet, "/api/roster", "")
	if code != http.StatusOK || !res.OK {
		t.Fatalf("roster code=%d", code)
	}
	roster := res.raw["roster"].([]any)
	if len(roster) != 2 {
		t.Fatalf("roster=%v", roster)
	}
	// Both sit on ring 1; Ann leads on power.
	first, second := roster[0].(map[string]any), roster[1].(map[string]any)
	if first["name"] != "Ann" || second["name"] != "Benny" || second["cell"] != "3,5" || second["hq"] != float64(31) {
		t.Fatalf("roster=%v", roster)
	}
}

func TestSetNameSetMGAndConfig(t *testing.T) {
	h, _ := newTestAPI(t)
	if _, res := call(t, h, http.MethodPost, "/api/set-name", `{"alliance_name":"  Iron Wolves "}`); !res.OK {
		t.Fatalf("set-name: %+v", res)
	}
	if _, res := call(t, h, http.MethodPost, "/api/set-mg", `{"x":600}`); !res.OK {
		t.Fatalf("set-mg: %+v", res)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	st := decodeConfig(t, rec.Body.Bytes())
	if st.Alliance != "Iron Wolves" || st.Config.AnchorWorldX != 600 || st.Config.AnchorWorldY != 432 {
		t.Fatalf("alliance=%q config=%+v", st.Alliance, st.Config)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := newTestAPI(t)
	call(t, h, http.MethodPost, "/api/assign", `{"name":"Ann","col":1,"row":1}`)
	call(t, h, http.MethodPost, "/api/assign", `{"name":"Ann","col":4,"row":4}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz=%d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"hivegrid_updates_total 1\n", "hivegrid_rejected_total 1\n", "hivegrid_assigned 1\n", "hivegrid_revision 1\n"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}
