package observer

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bullochman/hivegrid/internal/grid"
	"github.com/Bullochman/hivegrid/internal/hive"
	"github.com/Bullochman/hivegrid/internal/protocol"
)

type fixedSource struct{ doc hive.Document }

func (f fixedSource) Current() (hive.Document, error) { return f.doc, nil }

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readGrid(t *testing.T, conn *websocket.Conn) protocol.GridMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg protocol.GridMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestObserverStreamsCurrentThenChanges(t *testing.T) {
	st := grid.NewState(grid.DefaultConfig())
	st.SetAlliance("Wolves")
	obs := NewServer(fixedSource{doc: hive.Document{State: st, Revision: 3}}, nil)
	srv := httptest.NewServer(obs.WSHandler())
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version, Roster: true}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	first := readGrid(t, conn)
	if first.Type != protocol.TypeGrid || first.Revision != 3 || !strings.Contains(string(first.Config), `"alliance_name":"Wolves"`) {
		t.Fatalf("first=%+v", first)
	}

	next := st.Clone()
	if _, err := next.Assign("Ann", grid.Cell{Col: 3, Row: 5}); err != nil {
		t.Fatal(err)
	}
	if err := obs.Export(hive.Change{Revision: 4, Op: hive.OpAssign, Source: "api", State: next}); err != nil {
		t.Fatalf("export: %v", err)
	}
	upd := readGrid(t, conn)
	if upd.Revision != 4 || upd.Op != hive.OpAssign || len(upd.Roster) != 1 || upd.Roster[0].Cell != "3,5" {
		t.Fatalf("update=%+v", upd)
	}
	if s := obs.Stats(); s.Subscribers != 1 || s.SentTotal != 1 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestObserverRejectsBadSubscribe(t *testing.T) {
	obs := NewServer(fixedSource{doc: hive.Document{State: grid.NewState(grid.DefaultConfig())}}, nil)
	srv := httptest.NewServer(obs.WSHandler())
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v", err)
	}
}

func TestExportWithoutSubscribersIsNoop(t *testing.T) {
	obs := NewServer(nil, nil)
	if err := obs.Export(hive.Change{Revision: 1, State: grid.NewState(grid.DefaultConfig())}); err != nil {
		t.Fatalf("export: %v", err)
	}
}
