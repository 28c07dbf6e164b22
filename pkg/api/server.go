package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Nu11ified/sync-server/pkg/gdrive"
	"github.com/Nu11ified/sync-server/pkg/httputil"
	"github.com/Nu11ified/sync-server/pkg/observability"
	"github.com/Nu11ified/sync-server/pkg/reconcile"
	"github.com/Nu11ified/sync-server/pkg/teamspeak"
)

// ChatCatalog lists the role catalog of a community. Satisfied by the
// Discord adapter.
type ChatCatalog interface {
	ListRoles(ctx context.Context, communityID string) ([]reconcile.Role, bool, error)
	Simulated() bool
}

// StorageCatalog lists the storage item catalog. Satisfied by the Drive
// adapter.
type StorageCatalog interface {
	ListItems(ctx context.Context) ([]gdrive.Item, bool, error)
	Simulated() bool
}

// VoiceCatalog lists the voice server-group catalog. Satisfied by the
// TeamSpeak adapter.
type VoiceCatalog interface {
	ListGroups(ctx context.Context) ([]teamspeak.Group, bool, error)
	Simulated() bool
}

// Runner triggers a reconciliation run. Satisfied by the orchestrator.
type Runner interface {
	Run(ctx context.Context, communityID, chatUserID string) (*reconcile.Result, error)
}

// Server represents the sync API server
type Server struct {
	router  *mux.Router
	runner  Runner
	chat    ChatCatalog
	storage StorageCatalog
	voice   VoiceCatalog
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates a new API server
func NewServer(runner Runner, chat ChatCatalog, storage StorageCatalog, voice VoiceCatalog, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		runner:  runner,
		chat:    chat,
		storage: storage,
		voice:   voice,
		logger:  logger,
		metrics: metrics,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger, s.metrics))
	s.router.Use(httputil.RecoveryMiddleware(s.logger))

	// Sync routes
	s.router.HandleFunc("/api/v1/sync", s.triggerSync).Methods("POST")

	// Catalog routes
	s.router.HandleFunc("/api/v1/roles", s.listRoles).Methods("GET")
	s.router.HandleFunc("/api/v1/groups", s.listGroups).Methods("GET")
	s.router.HandleFunc("/api/v1/items", s.listItems).Methods("GET")

	// Operational routes
	s.router.HandleFunc("/health", s.healthCheck).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
