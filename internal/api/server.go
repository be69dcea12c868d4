package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dockforge/dockforge/internal/auth"
	"github.com/dockforge/dockforge/internal/bundle"
	"github.com/dockforge/dockforge/internal/classify"
	"github.com/dockforge/dockforge/internal/config"
	"github.com/dockforge/dockforge/internal/fetch"
	"github.com/dockforge/dockforge/internal/metrics"
	"github.com/dockforge/dockforge/internal/store"
	"github.com/dockforge/dockforge/internal/workspace"
)

// Server holds the API server dependencies.
type Server struct {
	echo       *echo.Echo
	cfg        *config.Config
	manager    *workspace.Manager
	classifier *classify.Classifier
	assembler  *bundle.Assembler
	fetcher    *fetch.Client
	store      *store.Store
}

// NewServer creates a new API server with all routes configured. The
// store may be nil; staging and builds then run filesystem-only.
func NewServer(cfg *config.Config, mgr *workspace.Manager, st *store.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:       e,
		cfg:        cfg,
		manager:    mgr,
		classifier: classify.New(st),
		assembler:  bundle.New(mgr, st),
		fetcher:    fetch.NewClient(cfg.FetchBaseURL),
		store:      st,
	}

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmtMB(cfg.MaxUploadMB)))

	// Unauthenticated probes
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", metrics.Handler())

	// API routes (with auth)
	api := e.Group("")
	api.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// Workspace lifecycle
	api.POST("/workspaces", s.createWorkspace)
	api.GET("/workspaces", s.listWorkspaces)

	// Staging
	api.POST("/workspaces/:id/uploads", s.upload)
	api.POST("/workspaces/:id/fetch", s.fetchStructure)
	api.GET("/workspaces/:id/files", s.serveFile)

	// Receptor cleanup
	api.GET("/workspaces/:id/residues", s.listResidues)
	api.POST("/workspaces/:id/clean", s.cleanReceptor)

	// Docking-box centers
	api.POST("/workspaces/:id/centers", s.saveCenter)
	api.GET("/workspaces/:id/centers", s.listCenters)

	// Bundle
	api.POST("/workspaces/:id/build", s.build)
	api.GET("/workspaces/:id/bundle", s.downloadBundle)

	return s
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	return s.echo.Close()
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func fmtMB(mb int) string {
	if mb <= 0 {
		mb = 256
	}
	return strconv.Itoa(mb) + "M"
}
