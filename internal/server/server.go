package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/SmitUplenchwar2687/Tempo/internal/journal"
	"github.com/SmitUplenchwar2687/Tempo/pkg/breaker"
	"github.com/SmitUplenchwar2687/Tempo/pkg/clock"
)

// Server is the Tempo HTTP server exposing breaker decisions and state.
type Server struct {
	httpServer *http.Server
	breaker    *breaker.Breaker
	clock      clock.Clock
	journal    *journal.Journal
	hub        *Hub
	mux        *http.ServeMux
}

// New creates a new Tempo server. jrnl may be nil to disable the
// event feed.
func New(addr string, br *breaker.Breaker, clk clock.Clock, jrnl *journal.Journal) *Server {
	s := &Server{
		breaker: br,
		clock:   clk,
		journal: jrnl,
		hub:     NewHub(),
		mux:     http.NewServeMux(),
	}
	s.routes()
	if jrnl != nil {
		jrnl.AddSink(s.hub.Broadcast)
	}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/check/", s.handleCheck)
	s.mux.HandleFunc("/api/report/", s.handleReport)
	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/clock", s.handleClock)
	s.mux.HandleFunc("/api/trips/", s.handleTrips)
	s.mux.HandleFunc("/ws", s.hub.HandleWebSocket)
	s.mux.HandleFunc("/dashboard", s.handleDashboard)
}

// handleDashboard serves the embedded live dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, DashboardHTML)
}

// handleRoot serves a welcome message.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "tempo",
		"status":  "running",
		"time":    s.clock.Now().Format(time.RFC3339),
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleCheck asks the breaker whether a call to the key may proceed.
// Path: /api/check/{key}
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path[len("/api/check/"):]
	if key == "" {
		http.Error(w, `{"error":"key is required"}`, http.StatusBadRequest)
		return
	}

	decision, err := s.breaker.Allow(r.Context(), key)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Breaker-State", decision.StateName)
	if !decision.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())+1))
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(decision)
}

// handleReport records a call outcome for the key. A "fail" query
// parameter marks the call as a failure.
// Path: POST /api/report/{key}?fail=true
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	key := r.URL.Path[len("/api/report/"):]
	if key == "" {
		http.Error(w, `{"error":"key is required"}`, http.StatusBadRequest)
		return
	}

	failure := r.URL.Query().Get("fail") == "true"
	if err := s.breaker.Report(r.Context(), key, failure); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "recorded"})
}

// handleState returns the breaker state for every key seen so far.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"time": s.clock.Now().Format(time.RFC3339),
		"keys": s.breaker.Snapshot(),
	})
}

// handleClock reports the server's clock: the current time and, when
// scheduled work is pending, the delay until the next action is due.
func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"time": s.clock.Now().Format(time.RFC3339),
	}
	if d, ok := s.clock.TimeUntilNextActionDue(); ok {
		body["next_action_due_in"] = d.String()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// handleTrips returns the shared trip count for a key, merged across
// replicas. Path: /api/trips/{key}
func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path[len("/api/trips/"):]
	if key == "" {
		http.Error(w, `{"error":"key is required"}`, http.StatusBadRequest)
		return
	}

	trips, err := s.breaker.Trips(r.Context(), key)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"key": key, "trips": trips})
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	log.Printf("tempo server listening on %s", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	log.Printf("tempo server listening on %s", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
