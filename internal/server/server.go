// Package server exposes the range filter and chart views over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"incident-crossfilter-go/internal/broadcaster"
	"incident-crossfilter-go/internal/chart"
	"incident-crossfilter-go/internal/dataset"
	"incident-crossfilter-go/internal/gesture"
	"incident-crossfilter-go/internal/logger"
	"incident-crossfilter-go/internal/render"
	"incident-crossfilter-go/internal/types"
)

type Server struct {
	router   *chi.Mux
	bc       *broadcaster.Broadcaster
	charts   *chart.Set
	snapshot *render.Snapshot
	brush    *gesture.Brush
	summary  dataset.Summary
	log      *logger.Logger
}

// Deps are the collaborators the server reads and drives.
type Deps struct {
	Broadcaster *broadcaster.Broadcaster
	Charts      *chart.Set
	Snapshot    *render.Snapshot
	Brush       *gesture.Brush
	Summary     dataset.Summary
	Logger      *logger.Logger
}

func New(d Deps) (*Server, error) {
	if d.Broadcaster == nil || d.Charts == nil || d.Snapshot == nil {
		return nil, goerr.New("server needs a broadcaster, charts and a snapshot")
	}
	if d.Logger == nil {
		d.Logger = logger.New()
	}
	s := &Server{
		router:   chi.NewRouter(),
		bc:       d.Broadcaster,
		charts:   d.Charts,
		snapshot: d.Snapshot,
		brush:    d.Brush,
		summary:  d.Summary,
		log:      d.Logger,
	}

	s.router.Use(s.requestLogger)
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	s.router.Get("/summary", s.handleSummary)
	s.router.Get("/range", s.handleGetRange)
	s.router.Put("/range", s.handleSetRange)
	s.router.Delete("/range", s.handleClearRange)
	s.router.Post("/brush", s.handleBrush)
	s.router.Delete("/brush", s.handleClearRange)
	s.router.Get("/charts", s.handleCharts)
	s.router.Get("/charts/{name}", s.handleChart)
	s.router.Get("/export.xlsx", s.handleExport)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithRequest(r).WithField("duration_ms", time.Since(start).Milliseconds()).Info("request handled")
	})
}

type rangeBody struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type rangeResponse struct {
	Bounded bool   `json:"bounded"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

func toResponse(r types.DateRange) rangeResponse {
	if !r.Bounded {
		return rangeResponse{}
	}
	return rangeResponse{
		Bounded: true,
		Start:   r.Start.Format(time.DateOnly),
		End:     r.End.Format(time.DateOnly),
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.summary)
}

func (s *Server) handleGetRange(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toResponse(s.bc.Range()))
}

func (s *Server) handleSetRange(w http.ResponseWriter, r *http.Request) {
	var body rangeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, r, http.StatusBadRequest, goerr.Wrap(err, "decode range"))
		return
	}
	start, end := dataset.ParseDate(body.Start), dataset.ParseDate(body.End)
	if start.IsZero() || end.IsZero() {
		s.fail(w, r, http.StatusBadRequest, goerr.New("start and end must be dates",
			goerr.V("start", body.Start), goerr.V("end", body.End)))
		return
	}
	got := s.bc.SetRange(types.NewRange(start, end))
	writeJSON(w, http.StatusOK, toResponse(got))
}

func (s *Server) handleClearRange(w http.ResponseWriter, r *http.Request) {
	s.bc.Clear()
	writeJSON(w, http.StatusOK, toResponse(s.bc.Range()))
}

type brushBody struct {
	X0    float64 `json:"x0"`
	X1    float64 `json:"x1"`
	Phase string  `json:"phase"`
}

type brushResponse struct {
	Range     rangeResponse `json:"range"`
	Published bool          `json:"published"`
}

func (s *Server) handleBrush(w http.ResponseWriter, r *http.Request) {
	if s.brush == nil {
		s.fail(w, r, http.StatusConflict, goerr.New("no brush: dataset has no dated records"))
		return
	}
	var body brushBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, r, http.StatusBadRequest, goerr.Wrap(err, "decode brush"))
		return
	}
	switch body.Phase {
	case "move":
		rng, published := s.brush.Move(body.X0, body.X1)
		writeJSON(w, http.StatusOK, brushResponse{Range: toResponse(rng), Published: published})
	case "end", "":
		rng := s.brush.End(body.X0, body.X1)
		writeJSON(w, http.StatusOK, brushResponse{Range: toResponse(rng), Published: true})
	default:
		s.fail(w, r, http.StatusBadRequest, goerr.New("unknown brush phase", goerr.V("phase", body.Phase)))
	}
}

type chartInfo struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	out := []chartInfo{}
	for _, name := range s.charts.Names() {
		c, _ := s.charts.Get(name)
		out = append(out, chartInfo{Name: name, State: c.State().String()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := s.snapshot.Latest(name)
	if !ok {
		s.fail(w, r, http.StatusNotFound, goerr.New("chart not found", goerr.V("chart", name)))
		return
	}
	if r.URL.Query().Get("detail") != "true" {
		v.Subset = nil
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="charts.xlsx"`)
	if err := render.WriteWorkbook(w, s.snapshot.All()); err != nil {
		s.log.WithRequest(r).WithField("error", err.Error()).Error("export failed")
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.log.WithRequest(r).WithField("error", err.Error()).Warn("request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
