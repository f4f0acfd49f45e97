package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bullochman/hivegrid/internal/hive"
	"github.com/Bullochman/hivegrid/internal/persistence/statefile"
	"github.com/Bullochman/hivegrid/internal/protocol"
)

// Source supplies the grid a new subscriber starts from.
type Source interface {
	Current() (hive.Document, error)
}

type Stats struct {
	Subscribers  int
	SentTotal    uint64
	DroppedTotal uint64
}

// Server streams the grid to websocket observers. It is a hive.Exporter:
// every committed change is broadcast to all subscribers.
type Server struct {
	src Source
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	subs map[string]*subscriber

	sentTotal    atomic.Uint64
	droppedTotal atomic.Uint64
}

type subscriber struct {
	roster bool
	out    chan []byte
}

func NewServer(src Source, logger *log.Logger) *Server {
	return &Server{
		src:  src,
		log:  logger,
		subs: map[string]*subscriber{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Name() string { return "observer" }

// Export broadcasts ch. Slow subscribers whose queue is full miss the
// message; the next one carries the full grid again.
func (s *Server) Export(ch hive.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return nil
	}
	doc := hive.Document{State: ch.State, Revision: ch.Revision}
	var plain, withRoster []byte
	for sid, sub := range s.subs {
		var err error
		msg := plain
		if sub.roster {
			msg = withRoster
		}
		if msg == nil {
			msg, err = gridMessage(doc, ch.Op, ch.Source, sub.roster)
			if err != nil {
				return err
			}
			if sub.roster {
				withRoster = msg
			} else {
				plain = msg
			}
		}
		select {
		case sub.out <- msg:
			s.sentTotal.Add(1)
		default:
			n := s.droppedTotal.Add(1)
			s.printf("observer drop session=%s rev=%d dropped_total=%d", sid, ch.Revision, n)
		}
	}
	return nil
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	n := len(s.subs)
	s.mu.Unlock()
	return Stats{Subscribers: n, SentTotal: s.sentTotal.Load(), DroppedTotal: s.droppedTotal.Load()}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if base, err := protocol.DecodeBase(msg); err != nil || base.Type != protocol.TypeSubscribe {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}
		var sub protocol.SubscribeMsg
		if err := protocol.DecodeRequest("subscribe", msg, &sub); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad subscribe")
			return
		}
		if sub.ProtocolVersion != protocol.Version {
			closeWith(conn, websocket.ClosePolicyViolation, "unsupported protocol_version")
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 32)
		s.mu.Lock()
		s.subs[sid] = &subscriber{roster: sub.Roster, out: out}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.subs, sid)
			s.mu.Unlock()
		}()

		doc, err := s.src.Current()
		if err != nil {
			s.printf("observer session=%s load: %v", sid, err)
			closeWith(conn, websocket.CloseInternalServerErr, "load failed")
			return
		}
		first, err := gridMessage(doc, "", "", sub.Roster)
		if err != nil {
			closeWith(conn, websocket.CloseInternalServerErr, "encode failed")
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, first); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Observers are read-only; the reader only notices the close.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func gridMessage(doc hive.Document, op, source string, roster bool) ([]byte, error) {
	cfg, err := statefile.Marshal(doc)
	if err != nil {
		return nil, err
	}
	msg := protocol.GridMsg{
		Type:            protocol.TypeGrid,
		ProtocolVersion: protocol.Version,
		Revision:        doc.Revision,
		Op:              op,
		Source:          source,
		Config:          cfg,
	}
	if roster {
		msg.Roster = hive.RosterView(doc.State)
	}
	return json.Marshal(msg)
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func (s *Server) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
