package deployment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codekiln/langstar/internal/model"
)

func TestBuildCreateRequest_GitHubDefaults(t *testing.T) {
	req, err := BuildCreateRequest(CreateParams{
		Name:          "acme",
		Source:        model.SourceGitHub,
		RepoURL:       "https://github.com/acme/agent",
		IntegrationID: "int-1",
		Env:           []string{"OPENAI_API_KEY=sk-a=b"},
	})
	require.NoError(t, err)

	require.NotNil(t, req.SourceConfig.IntegrationID)
	assert.Equal(t, "int-1", *req.SourceConfig.IntegrationID)
	assert.Equal(t, model.DeploymentTypeDevFree, req.SourceConfig.DeploymentType)
	require.NotNil(t, req.SourceConfig.BuildOnPush)
	assert.False(t, *req.SourceConfig.BuildOnPush)
	assert.Equal(t, DefaultRepoRef, req.SourceRevisionConfig.RepoRef)
	assert.Equal(t, DefaultConfigPath, req.SourceRevisionConfig.LangGraphConfigPath)
	assert.Equal(t, []model.Secret{{Name: "OPENAI_API_KEY", Value: "sk-a=b"}}, req.Secrets)
	assert.NoError(t, ValidateCreate(req))
}

func TestBuildCreateRequest_ExternalDocker(t *testing.T) {
	req, err := BuildCreateRequest(CreateParams{
		Name:     "svc",
		Source:   model.SourceExternalDocker,
		ImageURI: "docker.io/acme/agent:2",
	})
	require.NoError(t, err)

	assert.Nil(t, req.SourceConfig.IntegrationID)
	assert.Equal(t, "docker.io/acme/agent:2", req.SourceConfig.ImagePath)
	assert.Equal(t, "docker.io/acme/agent:2", req.SourceRevisionConfig.ImageURI)
	assert.NotNil(t, req.Secrets)
	assert.NoError(t, ValidateCreate(req))
}

func TestBuildUpdateRequest(t *testing.T) {
	d := &model.Deployment{SourceRevisionConfig: &model.SourceRevisionConfig{RepoRef: "main", LangGraphConfigPath: "graphs/langgraph.json"}}

	req, err := BuildUpdateRequest(d, UpdateParams{Branch: "release"})
	require.NoError(t, err)
	require.NotNil(t, req.SourceRevisionConfig)
	assert.Equal(t, "release", req.SourceRevisionConfig.RepoRef)
	assert.Equal(t, "graphs/langgraph.json", req.SourceRevisionConfig.LangGraphConfigPath)
	assert.Nil(t, req.Secrets)
	assert.True(t, req.CreatesRevision())

	req, err = BuildUpdateRequest(d, UpdateParams{})
	require.NoError(t, err)
	assert.True(t, req.IsEmpty())

	req, err = BuildUpdateRequest(d, UpdateParams{Env: []string{}})
	require.NoError(t, err)
	assert.NotNil(t, req.Secrets)
	assert.True(t, req.CreatesRevision())
}

func TestParseEnv(t *testing.T) {
	secrets, err := ParseEnv([]string{"A=1", "B=", " C =x"})
	require.NoError(t, err)
	assert.Equal(t, []model.Secret{{Name: "A", Value: "1"}, {Name: "B", Value: ""}, {Name: "C", Value: "x"}}, secrets)

	_, err = ParseEnv([]string{"NOVALUE"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "env", verr.Field)

	_, err = ParseEnv([]string{"=x"})
	assert.Error(t, err)
}
