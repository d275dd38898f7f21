package controlplane_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codekiln/langstar/internal/config"
	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/controlplane/controlplanetest"
	"github.com/codekiln/langstar/internal/model"
)

var testCreds = config.StaticProvider{APIKey: "lsv2-test", WorkspaceID: "ws-1", OrganizationID: "org-1"}

func newClient(t *testing.T) (*controlplane.Client, *controlplanetest.Server) {
	srv := controlplanetest.NewServer(t)
	return controlplane.NewClient(controlplane.NewHTTPTransport(srv.URL, testCreds)), srv
}

func TestHTTPTransport_Headers(t *testing.T) {
	client, srv := newClient(t)

	_, err := client.ListDeployments(context.Background(), controlplane.ListOptions{})
	require.NoError(t, err)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	h := reqs[0].Header
	assert.Equal(t, "lsv2-test", h.Get("X-Api-Key"))
	assert.Equal(t, "ws-1", h.Get("X-Tenant-Id"))
	assert.Equal(t, "org-1", h.Get("X-Organization-Id"))
	assert.Equal(t, "application/json", h.Get("Accept"))
	_, err = uuid.Parse(h.Get("X-Request-Id"))
	assert.NoError(t, err)
}

func TestHTTPTransport_OmitsEmptyScopeHeaders(t *testing.T) {
	srv := controlplanetest.NewServer(t)
	client := controlplane.NewClient(controlplane.NewHTTPTransport(srv.URL, config.StaticProvider{APIKey: "k"}))

	_, err := client.ListDeployments(context.Background(), controlplane.ListOptions{})
	require.NoError(t, err)

	h := srv.Requests()[0].Header
	assert.Empty(t, h.Values("X-Tenant-Id"))
	assert.Empty(t, h.Values("X-Organization-Id"))
}

func TestHTTPTransport_PerCallTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	tr := controlplane.NewHTTPTransport(slow.URL, testCreds)
	_, err := tr.Do(context.Background(), controlplane.Request{
		Method:  http.MethodGet,
		Path:    "/v2/deployments",
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)

	var transportErr *controlplane.TransportError
	assert.True(t, errors.As(err, &transportErr))
	assert.True(t, controlplane.IsTransient(err))
}

func TestHTTPTransport_CredentialError(t *testing.T) {
	tr := controlplane.NewHTTPTransport("http://127.0.0.1:1", config.Default())
	_, err := tr.Do(context.Background(), controlplane.Request{Method: http.MethodGet, Path: "/"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve credentials")
	assert.False(t, controlplane.IsTransient(err))
}

func TestClient_CreateGetDelete(t *testing.T) {
	client, srv := newClient(t)
	ctx := context.Background()

	created, err := client.CreateDeployment(ctx, &model.DeploymentCreateRequest{
		Name:                 "acme",
		Source:               model.SourceExternalDocker,
		SourceConfig:         model.SourceConfig{ImagePath: "docker.io/acme/agent:1"},
		SourceRevisionConfig: model.SourceRevisionConfig{ImageURI: "docker.io/acme/agent:1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.LatestRevisionID)
	assert.Equal(t, 1, srv.Revisions(created.ID))

	got, err := client.GetDeployment(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)

	require.NoError(t, client.DeleteDeployment(ctx, created.ID))

	err = client.DeleteDeployment(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, controlplane.IsNotFound(err))
}

func TestClient_APIErrorMessage(t *testing.T) {
	client, srv := newClient(t)
	srv.Seed(model.Deployment{Name: "acme"})

	_, err := client.CreateDeployment(context.Background(), &model.DeploymentCreateRequest{Name: "acme", Source: model.SourceGitHub})
	require.Error(t, err)

	var apiErr *controlplane.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "already exists")
	assert.False(t, controlplane.IsTransient(err))
}

func TestClient_ListAllDeploymentsPaginates(t *testing.T) {
	client, srv := newClient(t)
	for i := 0; i < 230; i++ {
		srv.Seed(model.Deployment{Name: fmt.Sprintf("dep-%03d", i), Status: model.DeploymentReady})
	}

	all, err := client.ListAllDeployments(context.Background(), controlplane.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 230)
	assert.Equal(t, "dep-000", all[0].Name)
	assert.Equal(t, "dep-229", all[229].Name)

	var pages int
	for _, r := range srv.Requests() {
		if r.Path == "/v2/deployments" {
			pages++
		}
	}
	assert.Equal(t, 3, pages)
}

func TestClient_ListAllDeploymentsStopsOnRepeatedPage(t *testing.T) {
	page := make([]model.Deployment, controlplane.MaxPageSize)
	for i := range page {
		page[i] = model.Deployment{ID: uuid.NewString(), Name: fmt.Sprintf("dep-%03d", i)}
	}
	var calls atomic.Int32
	stuck := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(controlplane.DeploymentList{Resources: page})
	}))
	t.Cleanup(stuck.Close)

	client := controlplane.NewClient(controlplane.NewHTTPTransport(stuck.URL, testCreds))
	all, err := client.ListAllDeployments(context.Background(), controlplane.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, controlplane.MaxPageSize)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ListFilters(t *testing.T) {
	client, srv := newClient(t)
	srv.Seed(model.Deployment{Name: "alpha", Status: model.DeploymentReady})
	srv.Seed(model.Deployment{Name: "alpha-2", Status: model.DeploymentAwaitingDatabase})
	srv.Seed(model.Deployment{Name: "beta", Status: model.DeploymentReady})

	page, err := client.ListDeployments(context.Background(), controlplane.ListOptions{
		NameContains: "alpha",
		Status:       model.DeploymentReady,
	})
	require.NoError(t, err)
	require.Len(t, page.Resources, 1)
	assert.Equal(t, "alpha", page.Resources[0].Name)
}

func TestClient_ListRevisionsNewestFirst(t *testing.T) {
	client, srv := newClient(t)
	d := srv.Seed(model.Deployment{Name: "acme"})
	first := srv.SeedRevision(d.ID, model.Revision{}, model.RevisionDeployed)
	second := srv.SeedRevision(d.ID, model.Revision{}, model.RevisionBuilding)

	revs, err := client.ListRevisions(context.Background(), d.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, second.ID, revs[0].ID)
	assert.Equal(t, first.ID, revs[1].ID)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"500", &controlplane.APIError{StatusCode: 500}, true},
		{"503 wrapped", fmt.Errorf("get: %w", &controlplane.APIError{StatusCode: 503}), true},
		{"429", &controlplane.APIError{StatusCode: 429}, true},
		{"404", &controlplane.APIError{StatusCode: 404}, false},
		{"transport", &controlplane.TransportError{Err: errors.New("connection reset")}, true},
		{"cancelled", &controlplane.TransportError{Err: context.Canceled}, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, controlplane.IsTransient(tt.err))
		})
	}
}
