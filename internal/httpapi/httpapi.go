// Package httpapi is the optional read-only status surface gated by
// Config.Monitor.Enabled: workflow-run stats and semantic-index stats over
// HTTP, for an operator dashboard or a health check probe. It never
// mutates any store.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/semantic"
	"github.com/wballard/swissarmyhammer/internal/workflow"
)

// Server is the chi-backed HTTP status server.
type Server struct {
	cfg      *config.Config
	runStore *workflow.RunStore
	wfStore  *workflow.Store
	indexer  *semantic.Indexer
	router   chi.Router
}

// NewServer builds a Server. indexer may be nil if the semantic index is
// not configured; its stats endpoint then reports unavailable rather than
// failing the whole server.
func NewServer(cfg *config.Config, runStore *workflow.RunStore, wfStore *workflow.Store, indexer *semantic.Indexer) *Server {
	s := &Server{cfg: cfg, runStore: runStore, wfStore: wfStore, indexer: indexer}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/status", func(r chi.Router) {
		r.Get("/workflows", s.handleWorkflowStats)
		r.Get("/runs", s.handleRunStats)
		r.Get("/index", s.handleIndexStats)
	})

	s.router = r
}

// Handler returns the HTTP handler for use with http.Serve.
func (s *Server) Handler() http.Handler { return s.router }

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type workflowStatsResponse struct {
	Count     int      `json:"count"`
	Names     []string `json:"names"`
}

func (s *Server) handleWorkflowStats(w http.ResponseWriter, r *http.Request) {
	workflows := s.wfStore.List()
	names := make([]string, 0, len(workflows))
	for _, wf := range workflows {
		names = append(names, wf.Name)
	}
	writeJSON(w, http.StatusOK, workflowStatsResponse{Count: len(workflows), Names: names})
}

type runStatsResponse struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
}

func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	ids, err := s.runStore.ListRuns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byStatus := map[string]int{}
	for _, id := range ids {
		run, err := s.runStore.GetRun(id)
		if err != nil {
			continue
		}
		byStatus[string(run.Status)]++
	}
	writeJSON(w, http.StatusOK, runStatsResponse{Total: len(ids), ByStatus: byStatus})
}

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		writeError(w, http.StatusServiceUnavailable, "semantic index not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.indexer.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
