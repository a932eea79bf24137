// Package api exposes the host-facing control surface (spec.md §6.2) over
// HTTP and a WebSocket event stream, on top of a single service.Session:
// one zplc-core process runs exactly one execution core, so unlike the
// multi-tenant session model this package's structure is descended from,
// there is exactly one core per server, addressed directly rather than
// through a session-ID path segment.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zplc/zplc-core/service"
)

// Server represents the HTTP + WebSocket control-surface API server.
type Server struct {
	core        *service.Session
	broadcaster *Broadcaster
	debugOut    *EventWriter
	mux         *http.ServeMux
	server      *http.Server
	addr        string
	enableCORS  bool
}

// NewServer creates an API server bound to core, listening on addr.
func NewServer(core *service.Session, addr string, enableCORS bool) *Server {
	b := NewBroadcaster()
	s := &Server{
		core:        core,
		broadcaster: b,
		debugOut:    NewEventWriter(b, "core", "debug"),
		mux:         http.NewServeMux(),
		addr:        addr,
		enableCORS:  enableCORS,
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler with CORS middleware applied.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/ws", s.handleWebSocket)
	s.mux.HandleFunc("/api/v1/version", s.handleVersion)

	s.mux.HandleFunc("/api/v1/load", s.handleLoad)
	s.mux.HandleFunc("/api/v1/load_raw", s.handleLoadRaw)
	s.mux.HandleFunc("/api/v1/reset", s.handleReset)

	s.mux.HandleFunc("/api/v1/step", s.handleStep)
	s.mux.HandleFunc("/api/v1/run", s.handleRun)
	s.mux.HandleFunc("/api/v1/run_cycle", s.handleRunCycle)
	s.mux.HandleFunc("/api/v1/pause", s.handlePause)
	s.mux.HandleFunc("/api/v1/resume", s.handleResume)

	s.mux.HandleFunc("/api/v1/scheduler/start", s.handleSchedulerStart)
	s.mux.HandleFunc("/api/v1/scheduler/stop", s.handleSchedulerStop)

	s.mux.HandleFunc("/api/v1/state", s.handleGetState)
	s.mux.HandleFunc("/api/v1/sp", s.handleGetSP)
	s.mux.HandleFunc("/api/v1/stack", s.handleGetStack)
	s.mux.HandleFunc("/api/v1/error", s.handleGetError)
	s.mux.HandleFunc("/api/v1/halted", s.handleIsHalted)
	s.mux.HandleFunc("/api/v1/opi", s.handleGetOPI)
	s.mux.HandleFunc("/api/v1/task", s.handleGetTask)
	s.mux.HandleFunc("/api/v1/sched_stats", s.handleGetSchedStats)
	s.mux.HandleFunc("/api/v1/memory", s.handleMemoryDump)

	s.mux.HandleFunc("/api/v1/ipi", s.handleSetIPI)
	s.mux.HandleFunc("/api/v1/ipi16", s.handleSetIPI16)

	s.mux.HandleFunc("/api/v1/breakpoint", s.handleBreakpoint)
	s.mux.HandleFunc("/api/v1/breakpoint/", s.handleBreakpointByID)
	s.mux.HandleFunc("/api/v1/watch", s.handleWatch)
	s.mux.HandleFunc("/api/v1/watch/", s.handleWatchByID)
	s.mux.HandleFunc("/api/v1/debug/command", s.handleDebugCommand)
}

// Start starts the HTTP server and blocks until it stops or errors.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Printf("api server starting on http://%s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and disconnects every
// WebSocket client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.broadcaster.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.enableCORS {
			origin := r.Header.Get("Origin")
			if isAllowedOrigin(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAllowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	if strings.HasPrefix(origin, "http://localhost") ||
		strings.HasPrefix(origin, "https://localhost") ||
		strings.HasPrefix(origin, "http://127.0.0.1") ||
		strings.HasPrefix(origin, "https://127.0.0.1") {
		return true
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.core.VersionString()})
}

// idFromPath extracts the trailing path segment after prefix and parses it
// as an int, for the /breakpoint/{id} and /watch/{id} routes.
func idFromPath(path, prefix string) (int, error) {
	rest := strings.TrimPrefix(path, prefix)
	return strconv.Atoi(rest)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("api: error encoding JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

func readJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1024*1024))
	return decoder.Decode(v)
}

func writeServiceErr(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, fmt.Sprintf("%v", err))
}
