// Package integration locates the GitHub integration a deployment should be
// built through.
package integration

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/model"
)

// ErrNotFound is returned when no integration could be determined.
var ErrNotFound = errors.New("no GitHub integration found: pass --integration-id or set LANGGRAPH_GITHUB_INTEGRATION_ID")

// API is the part of the control plane needed for discovery.
type API interface {
	ListGitHubIntegrations(ctx context.Context) ([]controlplane.GitHubIntegration, error)
	ListGitHubRepositories(ctx context.Context, integrationID string) ([]controlplane.GitHubRepository, error)
	ListAllDeployments(ctx context.Context, opts controlplane.ListOptions) ([]model.Deployment, error)
}

// Source tells where a resolved integration id came from.
type Source string

const (
	SourceFlag        Source = "flag"
	SourceConfig      Source = "config"
	SourceRepository  Source = "repository"
	SourceDeployments Source = "existing-deployment"
)

type Finder struct {
	api         API
	logger      zerolog.Logger
	concurrency int
}

func NewFinder(api API, logger zerolog.Logger) *Finder {
	return &Finder{
		api:         api,
		logger:      logger.With().Str("component", "integration-finder").Logger(),
		concurrency: 4,
	}
}

// Request carries the candidate inputs in precedence order.
type Request struct {
	Flag       string
	Configured string
	RepoURL    string
}

// Resolve picks the integration id: explicit flag, then configuration, then
// the integration that can see the repository, then the integration used by
// an existing GitHub deployment.
func (f *Finder) Resolve(ctx context.Context, req Request) (string, Source, error) {
	if req.Flag != "" {
		return req.Flag, SourceFlag, nil
	}
	if req.Configured != "" {
		return req.Configured, SourceConfig, nil
	}

	if req.RepoURL != "" {
		owner, repo, err := ParseRepoURL(req.RepoURL)
		if err != nil {
			return "", "", err
		}
		id, err := f.FindForRepo(ctx, owner, repo)
		switch {
		case err == nil:
			return id, SourceRepository, nil
		case !errors.Is(err, ErrNotFound):
			return "", "", err
		}
	}

	id, err := f.FromDeployments(ctx)
	if err != nil {
		return "", "", err
	}
	return id, SourceDeployments, nil
}

// FindForRepo returns the first integration, in listing order, whose
// repositories include owner/repo. Integrations whose repositories cannot be
// listed are skipped.
func (f *Finder) FindForRepo(ctx context.Context, owner, repo string) (string, error) {
	integrations, err := f.api.ListGitHubIntegrations(ctx)
	if err != nil {
		return "", fmt.Errorf("list GitHub integrations: %w", err)
	}

	found := make([]bool, len(integrations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, in := range integrations {
		g.Go(func() error {
			repos, err := f.api.ListGitHubRepositories(gctx, in.ID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				f.logger.Warn().Err(err).Str("integration_id", in.ID).Msg("skipping integration")
				return nil
			}
			for _, r := range repos {
				if strings.EqualFold(r.Owner, owner) && strings.EqualFold(r.Name, repo) {
					found[i] = true
					return nil
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	for i, ok := range found {
		if ok {
			return integrations[i].ID, nil
		}
	}
	return "", ErrNotFound
}

// FromDeployments returns the integration id of the first GitHub deployment
// that has one.
func (f *Finder) FromDeployments(ctx context.Context) (string, error) {
	all, err := f.api.ListAllDeployments(ctx, controlplane.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("list deployments: %w", err)
	}
	for i := range all {
		d := &all[i]
		if d.Source != model.SourceGitHub {
			continue
		}
		if id := d.IntegrationID(); id != "" {
			f.logger.Debug().Str("integration_id", id).Str("deployment", d.Name).Msg("using integration of existing deployment")
			return id, nil
		}
	}
	return "", ErrNotFound
}

// ParseRepoURL extracts owner and repository from an https or ssh GitHub URL.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	s := strings.TrimSpace(raw)
	var path string
	if rest, ok := strings.CutPrefix(s, "git@github.com:"); ok {
		path = rest
	} else {
		u, perr := url.Parse(s)
		if perr != nil || u.Host == "" {
			return "", "", fmt.Errorf("invalid repository URL %q", raw)
		}
		path = u.Path
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository URL %q must look like https://github.com/<owner>/<repo>", raw)
	}
	return parts[0], parts[1], nil
}
