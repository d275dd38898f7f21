package deployment

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codekiln/langstar/internal/config"
	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/controlplane/controlplanetest"
	"github.com/codekiln/langstar/internal/model"
)

const (
	testPlatformDomain = "langgraph.app"
	testRegionDomain   = "us.langgraph.app"
)

func newTestClient(t *testing.T) (*controlplane.Client, *controlplanetest.Server) {
	t.Helper()
	srv := controlplanetest.NewServer(t)
	tr := controlplane.NewHTTPTransport(srv.URL, config.StaticProvider{APIKey: "lsv2-test", WorkspaceID: "ws-test"})
	return controlplane.NewClient(tr), srv
}

func newTestPoller(api RevisionSource, opts ...PollerOption) *Poller {
	base := []PollerOption{
		WithDefaults(time.Millisecond, 2*time.Second),
		WithTransientRetries(2, time.Millisecond),
	}
	return NewPoller(api, zerolog.Nop(), append(base, opts...)...)
}

func newTestManager(t *testing.T) (*Manager, *controlplanetest.Server) {
	t.Helper()
	client, srv := newTestClient(t)
	m := NewManager(client, newTestPoller(client), NewURLResolver(client, testPlatformDomain, testRegionDomain, WithRetries(2, time.Millisecond)), zerolog.Nop())
	return m, srv
}

func githubCreateRequest(name string) *model.DeploymentCreateRequest {
	integration := "int-1"
	return &model.DeploymentCreateRequest{
		Name:   name,
		Source: model.SourceGitHub,
		SourceConfig: model.SourceConfig{
			IntegrationID:  &integration,
			RepoURL:        "https://github.com/acme/agent",
			DeploymentType: model.DeploymentTypeDevFree,
		},
		SourceRevisionConfig: model.SourceRevisionConfig{
			RepoRef:             "main",
			LangGraphConfigPath: "langgraph.json",
		},
	}
}

func dockerCreateRequest(name string) *model.DeploymentCreateRequest {
	return &model.DeploymentCreateRequest{
		Name:                 name,
		Source:               model.SourceExternalDocker,
		SourceConfig:         model.SourceConfig{ImagePath: "docker.io/acme/agent:1"},
		SourceRevisionConfig: model.SourceRevisionConfig{ImageURI: "docker.io/acme/agent:1"},
	}
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
