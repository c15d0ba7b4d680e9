// Package api is the HTTP façade: bearer-token auth on mutating routes,
// strict JSON validation that rejects unknown fields, and the handlers
// listed in spec §6. Routed with net/http.ServeMux, matching the teacher's
// plain-stdlib-mux habit (see the deleted cmd/plex-tuner/main.go, which
// wired its own handlers the same way) rather than a third-party router —
// the route set here is small and flat enough that a router adds nothing.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opendata-ops/hydracrawl/internal/config"
	"github.com/opendata-ops/hydracrawl/internal/crawl"
	"github.com/opendata-ops/hydracrawl/internal/logging"
	"github.com/opendata-ops/hydracrawl/internal/model"
)

// ResourceStore is the subset of store.Store the API depends on.
type ResourceStore interface {
	GetResource(ctx context.Context, id uuid.UUID) (*model.Resource, error)
	GetResourceByURL(ctx context.Context, url string) (*model.Resource, error)
	LatestCheck(ctx context.Context, id uuid.UUID) (*model.Check, error)
	AllChecks(ctx context.Context, id uuid.UUID) ([]*model.Check, error)
	InsertFromUpstream(ctx context.Context, datasetID, url, domain string) (uuid.UUID, error)
	UpdateURL(ctx context.Context, id uuid.UUID, newURL, newDomain string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	CrawlerStatus(ctx context.Context) (total, pending, fresh int, err error)
	CountByStatusBucket(ctx context.Context) (ok, timeout, errored int, err error)
	StatusCodeCounts(ctx context.Context) (map[int]int, error)
}

// Server holds the dependencies shared by every handler.
type Server struct {
	store        ResourceStore
	crawler      *crawl.Orchestrator
	cfg          *config.Config
	log          *logging.Logger
	mux          *http.ServeMux
	checkURLBase string // absolute base for latest_check_url, e.g. "https://host/api/checks/latest/"
}

func New(store ResourceStore, orchestrator *crawl.Orchestrator, cfg *config.Config) *Server {
	s := &Server{
		store:        store,
		crawler:      orchestrator,
		cfg:          cfg,
		log:          logging.For("api"),
		mux:          http.NewServeMux(),
		checkURLBase: strings.TrimSuffix(cfg.PublicBaseURL, "/") + "/api/checks/latest/",
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/checks/latest/", s.handleChecksLatest)
	s.mux.HandleFunc("GET /api/checks/all/", s.handleChecksAll)
	s.mux.HandleFunc("POST /api/checks/", s.requireAuth(s.handleChecksCreate))

	s.mux.HandleFunc("GET /api/resources/{id}/status/", s.handleResourceStatus)
	s.mux.HandleFunc("GET /api/resources/{id}", s.handleResourceGet)
	s.mux.HandleFunc("POST /api/resources/", s.requireAuth(s.handleResourceCreate))
	s.mux.HandleFunc("PUT /api/resources/{id}", s.requireAuth(s.handleResourceUpdate))
	s.mux.HandleFunc("DELETE /api/resources/{id}", s.requireAuth(s.handleResourceDelete))

	s.mux.HandleFunc("GET /api/status/crawler", s.handleCrawlerStatus)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}
