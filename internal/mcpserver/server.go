package mcpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/metrics"
	"github.com/codekiln/langstar/internal/model"
)

// Deployments is the deployment lifecycle the tools drive.
type Deployments interface {
	List(ctx context.Context, opts controlplane.ListOptions) (*controlplane.DeploymentList, error)
	Resolve(ctx context.Context, ref string) (*model.Deployment, error)
	Revisions(ctx context.Context, deploymentID string) ([]model.Revision, error)
	ResolveURL(ctx context.Context, d *model.Deployment) (string, error)
	Create(ctx context.Context, req *model.DeploymentCreateRequest, wait bool) (*model.Deployment, error)
	Update(ctx context.Context, id string, patch *model.DeploymentUpdateRequest, wait bool) (*model.Deployment, error)
	Wait(ctx context.Context, d *model.Deployment, revisionID string) (*model.Deployment, error)
	DeleteRef(ctx context.Context, ref string) (string, error)
}

// Integrations picks the GitHub integration for a new deployment.
type Integrations interface {
	ResolveIntegration(ctx context.Context, flag, repoURL string) (string, error)
}

// Server exposes the deployment tools over streamable HTTP MCP.
type Server struct {
	router chi.Router
	tools  []server.ServerTool
	logger zerolog.Logger
}

// New builds the router. /mcp serves the tools, /metrics the collectors in g
// (skipped when g is nil) and /healthz a liveness check.
func New(deployments Deployments, integrations Integrations, g prometheus.Gatherer, version string, logger zerolog.Logger) *Server {
	ts := &toolset{
		deployments:  deployments,
		integrations: integrations,
		logger:       logger.With().Str("component", "mcp-tools").Logger(),
	}
	tools := ts.tools()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	if g != nil {
		router.Handle("/metrics", metrics.Handler(g))
	}

	mcpSrv := server.NewMCPServer(
		"langstar",
		version,
		server.WithInstructions("Manage LangGraph deployments: list, inspect, create, update, delete, wait for revisions and resolve endpoint URLs."),
	)
	mcpSrv.AddTools(tools...)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv, server.WithEndpointPath("/")))
	logger.Info().Int("tools", len(tools)).Msg("mounted MCP endpoint at /mcp")

	return &Server{
		router: router,
		tools:  tools,
		logger: logger,
	}
}

// Tools returns the registered tools.
func (s *Server) Tools() []server.ServerTool {
	return s.tools
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
