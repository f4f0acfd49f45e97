package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/Bullochman/hivegrid/internal/grid"
	"github.com/Bullochman/hivegrid/internal/hive"
	"github.com/Bullochman/hivegrid/internal/importer"
	"github.com/Bullochman/hivegrid/internal/persistence/statefile"
	"github.com/Bullochman/hivegrid/internal/protocol"
)

const maxBodyBytes = 4 << 20

type response interface {
	Base() *protocol.Envelope
}

// MetricsWriter appends Prometheus text lines for one component.
type MetricsWriter func(w io.Writer)

// Server maps the JSON API onto a hive.Service.
type Server struct {
	svc     *hive.Service
	log     *log.Logger
	metrics []MetricsWriter
}

func NewServer(svc *hive.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Server{svc: svc, log: logger}
}

// AddMetrics registers an extra section for /metrics.
func (s *Server) AddMetrics(w MetricsWriter) { s.metrics = append(s.metrics, w) }

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/roster", s.handleRoster)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/api/assign", s.post("assign", s.assign))
	mux.HandleFunc("/api/move", s.post("move", s.move))
	mux.HandleFunc("/api/swap", s.post("swap", s.swap))
	mux.HandleFunc("/api/unassign", s.post("unassign", s.unassign))
	mux.HandleFunc("/api/delete", s.post("delete", s.remove))
	mux.HandleFunc("/api/edit", s.post("edit", s.edit))
	mux.HandleFunc("/api/clear", s.post("clear", s.clear))
	mux.HandleFunc("/api/auto", s.post("auto", s.auto))
	mux.HandleFunc("/api/upload-csv", s.post("upload-csv", s.uploadCSV))
	mux.HandleFunc("/api/set-name", s.post("set-name", s.setName))
	mux.HandleFunc("/api/set-mg", s.post("set-mg", s.setMG))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) handleConfig(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	doc, err := s.svc.Current()
	if err != nil {
		s.writeError(rw, "config", err)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = statefile.Encode(rw, doc)
}

func (s *Server) handleRoster(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	doc, err := s.svc.Current()
	if err != nil {
		s.writeError(rw, "roster", err)
		return
	}
	resp := &protocol.RosterResp{Revision: doc.Revision, Roster: hive.RosterView(doc.State)}
	resp.OK = true
	writeJSON(rw, http.StatusOK, resp)
}

type opFunc func(body []byte) (response, hive.Document, error)

func (s *Server) post(op string, fn opFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			s.writeError(rw, op, &protocol.RequestError{Op: op, Err: err})
			return
		}
		resp, doc, err := fn(body)
		if err != nil {
			s.writeError(rw, op, err)
			return
		}
		env := resp.Base()
		env.OK = true
		if env.Config, err = statefile.Marshal(doc); err != nil {
			s.writeError(rw, op, err)
			return
		}
		writeJSON(rw, http.StatusOK, resp)
	}
}

// writeError keeps grid rejections at 200 with ok=false, matching what the
// browser client checks. Malformed bodies are 400; anything else is 500.
func (s *Server) writeError(rw http.ResponseWriter, op string, err error) {
	env := protocol.Envelope{Error: err.Error()}
	status := http.StatusOK
	var re *protocol.RequestError
	var ge *grid.Error
	switch {
	case errors.As(err, &re):
		env.Code = re.Code()
		status = http.StatusBadRequest
	case errors.As(err, &ge) && protocol.IsKnownCode(ge.Code):
		env.Code = ge.Code
	default:
		env.Code = protocol.ErrInternal
		status = http.StatusInternalServerError
		s.log.Printf("%s: %v", op, err)
	}
	writeJSON(rw, status, env)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func (s *Server) assign(body []byte) (response, hive.Document, error) {
	var req protocol.AssignReq
	if err := protocol.DecodeRequest("assign", body, &req); err != nil {
		return nil, hive.Document{}, err
	}
	cell := grid.Cell{Col: req.Col, Row: req.Row}
	res, doc, err := s.svc.Assign(req.Name, cell)
	if err != nil {
		return nil, doc, err
	}
	resp := &protocol.AssignResp{Name: res.Name, Cell: res.Cell.String(), Displaced: res.Displaced, Created: res.Created}
	if res.Previous != nil {
		resp.Previous = res.Previous.String()
	}
	return resp, doc, nil
}

func (s *Server) move(body []byte) (response, hive.Document, error) {
	var req protocol.MoveReq
	if err := protocol.DecodeRequest("move", body, &req); err != nil {
		return nil, hive.Document{}, err
	}
	from, err := grid.ParseCell(req.From)
	if err != nil {
		return nil, hive.Document{}, err
	}
	to, err := grid.ParseCell(req.To)
	if err != nil {
		return nil, hive.Document{}, err
	}
	res, doc, err := s.svc.Move(from, to)
	if err != nil {
		return nil, doc, err
	}
	return &protocol.MoveResp{Moved: res.Moved, Swapped: res.Swapped}, doc, nil
}

func (s *Server) swap(body []byte) (response, hive.Document, error) {
	var req protocol.SwapReq
	if err := protocol.DecodeRequest("swap", body, &req); err != nil {
		return nil, hive.Document{}, err
	}
	doc, err := s.svc.Swap(req.A, req.B)
	return &protocol.Envelope{}, doc, err
}

func (s *Server) unassign(body []byte) (response, hive.Document, error) {
	var req protocol.NameReq
	if err := protocol.DecodeRequest("unassign", body, &req); err != nil {
		return nil, hive.Document{}, err
	}
	freed, doc, err := s.svc.Unassign(req.Name)
	return &protocol.RemoveResp{Changed: freed}, doc, err
}

func (s *Server) remove(body []byte) (response, hive.Document, error) {
	var req protocol.NameReq
	if err := protocol.DecodeRequest("delete", body, &req); err != nil {
		return nil, hive.Document{}, err
	}
	removed, doc, err := s.svc.Delete(req.Name)
	return &protocol.RemoveResp{Changed: removed}, doc, err
}

func (s *Server) edit(body []byte) (response, hive.Document, error) {
	var req protocol.EditReq
	if err := protocol.DecodeRequest("edit", body, &req); err != nil {
		return nil, hive.Document{}, err
	}
	hq, ok := grid.ParseHQ(string(req.HQ))
	if !ok {
		return nil, hive.Document{}, grid.Invalid(protocol.ErrBadRequest, "hq %q must be a non-negative integer", string(req.HQ))
	}
	res, doc, err := s.svc.Edit(grid.EditRequest{
		OldName: req.OldName,
		Name:    req.Name,
		Rank:    grid.ParseRank(req.Rank),
		HQ:      hq,
		Power:   req.Power,
		Notes:   req.Notes,
	})
	if err != nil {
		return nil, doc, err
	}
	resp := &protocol.EditResp{Name: res.Name, Renamed: res.Renamed, Collided: res.Collided}
	if res.Released != nil {
		resp.Released = res.Released.String()
	}
	return resp, doc, nil
}

func (s *Server) clear(body []byte) (response, hive.Document, error) {
	var req protocol.ClearReq
	if err := protocol.DecodeRequest("clear", body, &req); err != nil {
		return nil, hive.Document{}, err
	}
	mode, err := grid.ParseClearMode(req.Mode)
	if err != nil {
		return nil, hive.Document{}, err
	}
	doc, err := s.svc.Clear(mode)
	return &protocol.Envelope{}, doc, err
}

func (s *Server) auto(body []byte) (response, hive.Document, error) {
	var req protocol.AutoReq
	if err := protocol.DecodeRequest("auto", body, &req); err != nil {
		return nil, hive.Document{}, err
	}
	rep, doc, err := s.svc.AutoAssign(grid.ParseSortFields(req.SortBy))
	if err != nil {
		return nil, doc, err
	}
	resp := &protocol.AutoResp{
		Sort:     grid.FormatSortFields(rep.Sort),
		Placed:   make([]protocol.Placement, 0, len(rep.Placed)),
		Leftover: append([]string{}, rep.Leftover...),
	}
	for _, p := range rep.Placed {
		resp.Placed = append(resp.Placed, protocol.Placement{Name: p.Name, Cell: p.Cell.String(), Ring: p.Ring})
	}
	return resp, doc, nil
}

func (s *Server) uploadCSV(body []byte) (response, hive.Document, error) {
	var req protocol.UploadCSVReq
	if err := protocol.DecodeRequest("upload-csv", body, &req); err != nil {
		return nil, hive.Document{}, err
	}
	records, stats, err := importer.ReadRecords(strings.NewReader(req.CSV))
	if err != nil {
		return nil, hive.Document{}, grid.Invalid(protocol.ErrBadRequest, "%v", err)
	}
	policy := grid.OverwriteDominance
	if req.Policy != "" {
		policy = grid.OverwritePolicy(req.Policy)
	}
	rep, doc, err := s.svc.Import(records, grid.MergeOptions{Policy: policy})
	if err != nil {
		return nil, doc, err
	}
	if stats.BadHQ > 0 {
		s.log.Printf("upload-csv: %d rows with unreadable HQ imported without a level", stats.BadHQ)
	}
	return &protocol.UploadCSVResp{
		Added:     len(rep.Added),
		Updated:   len(rep.Updated),
		Skipped:   len(rep.Skipped),
		BlankName: stats.BlankName,
		BadHQ:     stats.BadHQ,
		Names:     append(append([]string{}, rep.Added...), rep.Updated...),
	}, doc, nil
}

func (s *Server) setName(body []byte) (response, hive.Document, error) {
	var req protocol.SetNameReq
	if err := protocol.DecodeRequest("set-name", body, &req); err != nil {
		return nil, hive.Document{}, err
	}
	doc, err := s.svc.SetAlliance(req.AllianceName)
	return &protocol.Envelope{}, doc, err
}

func (s *Server) setMG(body []byte) (response, hive.Document, error) {
	var req protocol.SetMGReq
	if err := protocol.DecodeRequest("set-mg", body, &req); err != nil {
		return nil, hive.Document{}, err
	}
	doc, err := s.svc.SetAnchorWorld(req.X, req.Y)
	return &protocol.Envelope{}, doc, err
}

func (s *Server) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	st := s.svc.Stats()
	fmt.Fprintf(rw, "# HELP hivegrid_updates_total Committed grid mutations.\n")
	fmt.Fprintf(rw, "# TYPE hivegrid_updates_total counter\n")
	fmt.Fprintf(rw, "hivegrid_updates_total %d\n", st.Updates)

	fmt.Fprintf(rw, "# HELP hivegrid_rejected_total Mutations rejected by validation.\n")
	fmt.Fprintf(rw, "# TYPE hivegrid_rejected_total counter\n")
	fmt.Fprintf(rw, "hivegrid_rejected_total %d\n", st.Rejected)

	fmt.Fprintf(rw, "# HELP hivegrid_save_errors_total Failed state file saves.\n")
	fmt.Fprintf(rw, "# TYPE hivegrid_save_errors_total counter\n")
	fmt.Fprintf(rw, "hivegrid_save_errors_total %d\n", st.SaveErrors)

	fmt.Fprintf(rw, "# HELP hivegrid_export_errors_total Failed derived exports.\n")
	fmt.Fprintf(rw, "# TYPE hivegrid_export_errors_total counter\n")
	fmt.Fprintf(rw, "hivegrid_export_errors_total %d\n", st.ExportErrors)

	if doc, err := s.svc.Current(); err == nil {
		fmt.Fprintf(rw, "# HELP hivegrid_revision Current state revision.\n")
		fmt.Fprintf(rw, "# TYPE hivegrid_revision gauge\n")
		fmt.Fprintf(rw, "hivegrid_revision %d\n", doc.Revision)

		fmt.Fprintf(rw, "# HELP hivegrid_members Roster size.\n")
		fmt.Fprintf(rw, "# TYPE hivegrid_members gauge\n")
		fmt.Fprintf(rw, "hivegrid_members %d\n", len(doc.State.Members))

		fmt.Fprintf(rw, "# HELP hivegrid_assigned Occupied cells.\n")
		fmt.Fprintf(rw, "# TYPE hivegrid_assigned gauge\n")
		fmt.Fprintf(rw, "hivegrid_assigned %d\n", len(doc.State.Assignments))
	}

	for _, w := range s.metrics {
		w(rw)
	}
}
