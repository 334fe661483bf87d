package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"time"

	"geoactor-sim/internal/logging"
	"geoactor-sim/internal/sim"
	"geoactor-sim/internal/telemetry"
)

// Fleet is the view of the simulation the admin surface needs.
type Fleet interface {
	Health() sim.Health
	Actors() []telemetry.Snapshot
	Spawn(n int) error
}

type Server struct {
	Fleet   Fleet
	Metrics http.Handler
	Stream  http.Handler
	tpl     *template.Template
}

//go:embed templates/index.html
var content embed.FS

const maxSpawn = 1000

// NewServer builds the admin server. metrics and stream may be nil, in which
// case /metrics and /ws are not served.
func NewServer(fleet Fleet, metrics, stream http.Handler) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{Fleet: fleet, Metrics: metrics, Stream: stream, tpl: tpl}
}

// Handler returns the admin routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /actors", s.handleActors)
	mux.HandleFunc("GET /fleet-health", s.handleHealth)
	mux.HandleFunc("POST /spawn", s.handleSpawn)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics)
	}
	if s.Stream != nil {
		mux.Handle("GET /ws", s.Stream)
	}
	return mux
}

// Start serves until ctx is done, then shuts down gracefully. ready, when not
// nil, is called once the listener is bound.
func (s *Server) Start(ctx context.Context, addr string, ready func()) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logging.FromContext(ctx).Info("admin server listening", "addr", ln.Addr().String())
	if ready != nil {
		ready()
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Health sim.Health
		Actors []telemetry.Snapshot
	}{
		Health: s.Fleet.Health(),
		Actors: s.Fleet.Actors(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		logging.FromContext(r.Context()).Error("render index", "err", err)
	}
}

func (s *Server) handleActors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Fleet.Actors())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Fleet.Health())
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSpawn {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "count must be an integer in 1..1000"})
			return
		}
		count = n
	}
	if err := s.Fleet.Spawn(count); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sim.ErrFleetNotRunning) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
