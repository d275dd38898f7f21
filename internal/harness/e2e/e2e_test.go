package e2e

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codekiln/langstar/internal/config"
	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/deployment"
	"github.com/codekiln/langstar/internal/harness"
	"github.com/codekiln/langstar/internal/integration"
	"github.com/codekiln/langstar/internal/model"
)

var (
	cfg     *config.Config
	manager *deployment.Manager
	suite   *harness.Context
	finder  *integration.Finder
	logger  zerolog.Logger
)

// TestMain runs against the live control plane only when LANGSTAR_E2E is
// set. Credentials come from the usual config file and environment.
// LANGSTAR_E2E_REPO_URL selects the repository deployed by the suite.
func TestMain(m *testing.M) {
	if os.Getenv("LANGSTAR_E2E") == "" {
		fmt.Println("Skipping e2e tests (set LANGSTAR_E2E=1 to run)")
		os.Exit(0)
	}

	var err error
	cfg, err = config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	client := controlplane.NewClient(controlplane.NewHTTPTransport(cfg.BaseURL(), cfg, controlplane.WithTimeout(cfg.HTTPTimeout)))
	poller := deployment.NewPoller(client, logger, deployment.WithDefaults(cfg.PollInterval, cfg.PollTimeout))
	manager = deployment.NewManager(client, poller, deployment.NewURLResolver(client, cfg.PlatformDomain, cfg.RegionDomain), logger)
	finder = integration.NewFinder(client, logger)
	suite = harness.New(manager, deployment.NewCache(client), logger, harness.Options{
		KeepAlive: os.Getenv("LANGSTAR_E2E_KEEP") != "",
	})

	code := m.Run()

	if err := suite.Cleanup(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "cleanup: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}

func repoURL() string {
	if u := os.Getenv("LANGSTAR_E2E_REPO_URL"); u != "" {
		return u
	}
	return "https://github.com/langchain-ai/langgraph-example"
}

func githubRequest(t *testing.T) func(name string) *model.DeploymentCreateRequest {
	t.Helper()
	id, src, err := finder.Resolve(context.Background(), integration.Request{
		Configured: cfg.GitHubIntegrationID,
		RepoURL:    repoURL(),
	})
	require.NoError(t, err)
	t.Logf("using integration %s (from %s)", id, src)

	buildOnPush := false
	return func(name string) *model.DeploymentCreateRequest {
		return &model.DeploymentCreateRequest{
			Name:   name,
			Source: model.SourceGitHub,
			SourceConfig: model.SourceConfig{
				IntegrationID:  &id,
				RepoURL:        repoURL(),
				DeploymentType: model.DeploymentTypeDevFree,
				BuildOnPush:    &buildOnPush,
			},
			SourceRevisionConfig: model.SourceRevisionConfig{
				RepoRef:             "main",
				LangGraphConfigPath: "langgraph.json",
			},
			Secrets: []model.Secret{},
		}
	}
}

func TestSharedDeploymentIsReachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.PollTimeout+time.Minute)
	defer cancel()

	d, err := suite.EnsureDeployment(ctx, githubRequest(t))
	require.NoError(t, err)
	require.NotEmpty(t, d.URL)

	resolved, err := manager.Resolve(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Name, resolved.Name)

	byName, err := manager.Resolve(ctx, d.Name)
	require.NoError(t, err)
	assert.Equal(t, d.ID, byName.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL+"/ok", nil)
	require.NoError(t, err)
	creds, err := cfg.Credentials(ctx)
	require.NoError(t, err)
	req.Header.Set("X-Api-Key", creds.APIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeleteMissingDeploymentIsIdempotent(t *testing.T) {
	err := manager.Delete(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.NoError(t, err)
}
