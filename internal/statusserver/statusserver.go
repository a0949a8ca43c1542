// Package statusserver exposes a tiny, localhost-only HTTP surface for
// operator introspection: GET /healthz (process liveness) and GET /status
// (current supervisor generation, logged-in broadcaster, correlation table
// size, and a short tail of each actor's recent log lines). It is grounded
// on internal/handlers/status.go's StatusHandler shape, routed the same way
// with github.com/go-chi/chi/v5, but carries no database dependency: this
// package's state is a handful of in-memory counters, not a persisted
// maintenance flag.
package statusserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"streamcave/internal/logging"
)

// actorNames are the tags logging.Tail is queried with for GET /status.
var actorNames = []string{"websocket", "scheduler", "correlator", "spawner", "diagnoser"}

// Recorder accumulates the small set of counters the status endpoint
// reports. The Supervisor and Correlator update it as they run; nil-safe,
// so callers that don't care about introspection can pass a nil *Recorder.
type Recorder struct {
	generations int64
	tableSize   int64

	mu    sync.RWMutex
	login string
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// IncGeneration records that a new actor-group generation has launched.
func (r *Recorder) IncGeneration() {
	if r == nil {
		return
	}
	atomic.AddInt64(&r.generations, 1)
}

// SetLogin records the currently active token's broadcaster login.
func (r *Recorder) SetLogin(login string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.login = login
	r.mu.Unlock()
}

// SetTableSize records the Correlator's current in-memory table size.
func (r *Recorder) SetTableSize(size int) {
	if r == nil {
		return
	}
	atomic.StoreInt64(&r.tableSize, int64(size))
}

func (r *Recorder) snapshot() (generations int64, login string, tableSize int64) {
	if r == nil {
		return 0, "", 0
	}
	r.mu.RLock()
	login = r.login
	r.mu.RUnlock()
	return atomic.LoadInt64(&r.generations), login, atomic.LoadInt64(&r.tableSize)
}

// Server is the introspection HTTP surface. It must only ever be bound to
// a loopback address; the caller is responsible for passing one to
// HTTPServer.
type Server struct {
	rec *Recorder
}

// NewServer constructs a status HTTP server reporting from rec.
func NewServer(rec *Recorder) *Server {
	return &Server{rec: rec}
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusResponse struct {
	Generations int64               `json:"generations"`
	Login       string              `json:"login"`
	TableSize   int64               `json:"table_size"`
	RecentLogs  map[string][]string `json:"recent_logs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	generations, login, tableSize := s.rec.snapshot()

	recent := make(map[string][]string, len(actorNames))
	for _, name := range actorNames {
		recent[name] = logging.Tail(name)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		Generations: generations,
		Login:       login,
		TableSize:   tableSize,
		RecentLogs:  recent,
	})
}

// HTTPServer builds the *http.Server bound to addr (expected to be a
// loopback address, e.g. "127.0.0.1:9091"). Callers start it with
// ListenAndServe in their own goroutine and stop it with Shutdown,
// mirroring cmd/api/main.go's srv.ListenAndServe/srv.Shutdown split.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{Addr: addr, Handler: s.router()}
}
