// Package app wires the control plane client, deployment manager and
// integration discovery from a loaded configuration.
package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/codekiln/langstar/internal/config"
	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/deployment"
	"github.com/codekiln/langstar/internal/integration"
)

// Version is stamped at build time with -ldflags "-X .../internal/app.Version=...".
var Version = "dev"

// Options tune the wiring for a particular entry point.
type Options struct {
	// Observer receives polling events, typically metrics.PollMetrics.
	Observer deployment.Observer
	// Poll overrides the configured interval and timeout when non-zero.
	Poll deployment.PollOptions
	// Transport replaces the HTTP transport, mostly in tests.
	Transport controlplane.Transport
}

type App struct {
	Config  *config.Config
	Client  *controlplane.Client
	Manager *deployment.Manager
	Finder  *integration.Finder
	Logger  zerolog.Logger
}

func New(cfg *config.Config, logger zerolog.Logger, opts Options) *App {
	tr := opts.Transport
	if tr == nil {
		tr = controlplane.NewHTTPTransport(cfg.BaseURL(), cfg,
			controlplane.WithTimeout(cfg.HTTPTimeout),
			controlplane.WithUserAgent("langstar/"+Version),
		)
	}
	client := controlplane.NewClient(tr)

	pollerOpts := []deployment.PollerOption{deployment.WithDefaults(cfg.PollInterval, cfg.PollTimeout)}
	if opts.Observer != nil {
		pollerOpts = append(pollerOpts, deployment.WithObserver(opts.Observer))
	}
	poller := deployment.NewPoller(client, logger, pollerOpts...)
	urls := deployment.NewURLResolver(client, cfg.PlatformDomain, cfg.RegionDomain, deployment.WithRetryLogger(logger))

	return &App{
		Config:  cfg,
		Client:  client,
		Manager: deployment.NewManager(client, poller, urls, logger, deployment.WithPollOptions(opts.Poll)),
		Finder:  integration.NewFinder(client, logger),
		Logger:  logger,
	}
}

// ResolveIntegration picks the GitHub integration for a new deployment:
// flag, then configuration, then discovery.
func (a *App) ResolveIntegration(ctx context.Context, flag, repoURL string) (string, error) {
	id, src, err := a.Finder.Resolve(ctx, integration.Request{
		Flag:       flag,
		Configured: a.Config.GitHubIntegrationID,
		RepoURL:    repoURL,
	})
	if err != nil {
		return "", err
	}
	a.Logger.Debug().Str("integration_id", id).Str("source", string(src)).Msg("resolved GitHub integration")
	return id, nil
}
