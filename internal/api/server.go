// Package api provides the HTTP API for observing the colony.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/emergence/internal/engine"
	"github.com/talgya/emergence/internal/persistence"
	"github.com/talgya/emergence/internal/units"
)

const (
	maxStreamConns    = 4
	minStreamInterval = 100 * time.Millisecond
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional run journal.
	RunID    string
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	Limiter  *RateLimiter

	streamConns atomic.Int32
	upgrader    websocket.Upgrader
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	if s.Limiter == nil {
		s.Limiter = NewRateLimiter(60, time.Minute)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/units", s.handleUnits)
	mux.HandleFunc("GET /api/v1/unit/{id}", s.handleUnit)
	mux.HandleFunc("GET /api/v1/unit/{id}/history", s.handleUnitHistory)
	mux.HandleFunc("GET /api/v1/structures", s.handleStructures)
	mux.HandleFunc("GET /api/v1/signals", s.handleSignals)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints.
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/goal", s.adminOnly(s.handleGoal))

	return corsMiddleware(mux)
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	limited := RateLimitMiddleware(s.Limiter, next)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next(w, r)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no EMERGENCE_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		limited(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":   "emergence",
		"status": s.Sim.Status(),
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	if s.RunID != "" {
		status["run_id"] = s.RunID
	}
	writeJSON(w, status)
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	displays := s.Sim.UnitDisplays()

	// Optional goal filter, e.g. ?goal=work or ?goal=pickup acacia_leaf.
	if goal := r.URL.Query().Get("goal"); goal != "" {
		filtered := make([]units.Display, 0, len(displays))
		for _, d := range displays {
			if strings.HasPrefix(d.Goal, goal) {
				filtered = append(filtered, d)
			}
		}
		displays = filtered
	}
	writeJSON(w, displays)
}

func parseUnitID(w http.ResponseWriter, r *http.Request) (units.ID, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid unit id", http.StatusBadRequest)
		return 0, false
	}
	return units.ID(id), true
}

func (s *Server) handleUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUnitID(w, r)
	if !ok {
		return
	}
	d, err := s.Sim.UnitDisplay(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, d)
}

func (s *Server) handleUnitHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUnitID(w, r)
	if !ok {
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	history, err := s.DB.UnitHistory(s.RunID, id)
	if err != nil {
		slog.Error("unit history query failed", "unit", id, "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []units.Display{}
	}
	writeJSON(w, history)
}

func (s *Server) handleStructures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.StructureViews())
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	views := s.Sim.SignalViews()
	if views == nil {
		views = []engine.SignalView{}
	}
	writeJSON(w, views)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.RecentEvents(limit)

	// Optional category filter.
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := make([]engine.Event, 0, len(events))
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	writeJSON(w, events)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	runs, err := s.DB.Runs()
	if err != nil {
		slog.Error("runs query failed", "error", err)
		http.Error(w, "runs unavailable", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		if err := s.Eng.SetSpeed(req.Speed); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Info("speed changed", "speed", req.Speed)
	} else if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

// handleGoal replaces a unit's goal, as an external priority system would.
func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Unit   uint64 `json:"unit"`
		Goal   string `json:"goal"`
		Target string `json:"target,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	goal, err := units.ParseGoal(req.Goal, req.Target, s.Sim.Manifest)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := units.ID(req.Unit)
	if err := s.Sim.SetGoal(id, goal); err != nil {
		if errors.Is(err, engine.ErrUnknownUnit) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("goal overridden", "unit", id, "goal", goal.String())

	d, _ := s.Sim.UnitDisplay(id)
	writeJSON(w, d)
}

// StreamFrame is one websocket message of the unit stream.
type StreamFrame struct {
	Tick  uint64          `json:"tick"`
	Units []units.Display `json:"units"`
}

// handleStream upgrades to a websocket and pushes every unit's display
// state each interval (?every=<ms>, at least 100).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	interval := 500 * time.Millisecond
	if v := r.URL.Query().Get("every"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid interval", http.StatusBadRequest)
			return
		}
		interval = max(time.Duration(ms)*time.Millisecond, minStreamInterval)
	}

	if s.streamConns.Add(1) > maxStreamConns {
		s.streamConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	slog.Info("stream client connected", "remote", r.RemoteAddr)

	// Reader: we expect nothing from the client but need control frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		frame := StreamFrame{Tick: s.Sim.CurrentTick(), Units: s.Sim.UnitDisplays()}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(frame); err != nil {
			slog.Debug("stream write failed", "error", err)
			return
		}

		select {
		case <-ticker.C:
		case <-closed:
			slog.Info("stream client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
