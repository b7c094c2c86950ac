// Package api provides the local HTTP control plane for the routing service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inputrouter/internal/config"
	"inputrouter/internal/engine"
)

// Server exposes mapping and session management over HTTP
type Server struct {
	configMgr *config.Manager
	engine    *engine.Engine
	token     string
	hub       *Hub
	httpSrv   *http.Server
}

// NewServer creates a new API server
func NewServer(configMgr *config.Manager, eng *engine.Engine) *Server {
	s := &Server{
		configMgr: configMgr,
		engine:    eng,
	}
	s.hub = newHub(s)
	return s
}

// routes builds the request mux. Split out so tests can drive handlers
// without a listener.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/mappings", s.handleMappings)
	mux.HandleFunc("/api/mappings/", s.handleMappingDelete)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/launch", s.handleLaunch)
	mux.HandleFunc("/api/attach", s.handleAttach)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/windows", s.handleWindows)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/ws", s.hub.handleWebSocket)
	return mux
}

// Start starts the API server on the specified port. The listener binds
// loopback only; this API manages the local machine.
func (s *Server) Start(port int) error {
	cfg := s.configMgr.Get()
	s.token = cfg.API.Token

	go s.hub.run()
	go s.hub.statusLoop()
	s.engine.SetOutcomeListener(s.hub.BroadcastOutcome)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("API: Starting server on %s", addr)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("API: Failed to listen on %s: %v", addr, err)
		log.Printf("API: Service continues without remote management.")
		return err
	}

	s.httpSrv = &http.Server{
		Handler: s.authMiddleware(s.recoverMiddleware(s.routes())),
	}

	// This is blocking
	if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("API: Server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown stops the API server and detaches the routing feed.
func (s *Server) Shutdown() {
	s.engine.SetOutcomeListener(nil)
	s.hub.stop()
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(ctx)
	}
}

// recoverMiddleware prevents handler panics from crashing the service
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: Recovered from panic: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the API token if one is configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes v with the JSON content type
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrMappingNotFound),
		errors.Is(err, engine.ErrNoSession),
		errors.Is(err, engine.ErrWindowNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrEmptyMapping),
		errors.Is(err, engine.ErrEmptyUserID),
		errors.Is(err, engine.ErrUnknownEditor):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.engine.Status())
}

type mappingRequest struct {
	DeviceID string `json:"device_id"`
	UserID   string `json:"user_id"`
}

// handleMappings handles GET (list) and POST (add) for device mappings
func (s *Server) handleMappings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		writeJSON(w, s.engine.Mappings())

	case "POST":
		var req mappingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid mapping data", http.StatusBadRequest)
			return
		}
		if err := s.engine.AddMapping(req.DeviceID, req.UserID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{
			"status":    "ok",
			"device_id": req.DeviceID,
			"user_id":   req.UserID,
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMappingDelete handles DELETE /api/mappings/{device_id}
func (s *Server) handleMappingDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != "DELETE" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deviceID := strings.TrimPrefix(r.URL.Path, "/api/mappings/")
	if deviceID == "" {
		http.Error(w, "Missing device id", http.StatusBadRequest)
		return
	}

	if err := s.engine.RemoveMapping(deviceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleSessions handles GET /api/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.engine.Sessions())
}

type launchRequest struct {
	UserID     string `json:"user_id"`
	ProjectDir string `json:"project_dir,omitempty"`
	Editor     string `json:"editor,omitempty"`
}

// handleLaunch handles POST /api/launch
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req launchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid launch data", http.StatusBadRequest)
		return
	}

	log.Printf("API: Launch request for '%s' from %s", req.UserID, r.RemoteAddr)
	st, err := s.engine.Launch(req.UserID, req.ProjectDir, req.Editor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, st)
}

type attachRequest struct {
	UserID string `json:"user_id"`
	Window uint64 `json:"hwnd"`
}

// handleAttach handles POST /api/attach
func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid attach data", http.StatusBadRequest)
		return
	}

	st, err := s.engine.Attach(req.UserID, req.Window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, st)
}

type stopRequest struct {
	UserID string `json:"user_id"`
}

// handleStop handles POST /api/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid stop data", http.StatusBadRequest)
		return
	}

	if err := s.engine.TerminateSession(req.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleWindows handles GET /api/windows with optional pid= or title=
// lookup parameters
func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if pidStr := r.URL.Query().Get("pid"); pidStr != "" {
		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			http.Error(w, "Invalid pid parameter", http.StatusBadRequest)
			return
		}
		h, found := s.engine.ResolveWindowForPid(pid)
		writeJSON(w, map[string]interface{}{"hwnd": h, "found": found})
		return
	}

	if title := r.URL.Query().Get("title"); title != "" {
		h, found := s.engine.ResolveWindowByTitle(title)
		writeJSON(w, map[string]interface{}{"hwnd": h, "found": found})
		return
	}

	wins, err := s.engine.CandidateWindows()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, wins)
}

// handleConfig handles GET (read) and POST (replace) for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		writeJSON(w, s.configMgr.Get())

	case "POST":
		var newCfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
			http.Error(w, "Invalid configuration data", http.StatusBadRequest)
			return
		}

		log.Printf("API: Receiving configuration update from %s", r.RemoteAddr)

		// Update in-memory config and save to disk
		s.configMgr.Set(&newCfg)
		if err := s.configMgr.Save(); err != nil {
			log.Printf("API: Failed to save received config: %v", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
