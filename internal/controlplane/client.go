package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/codekiln/langstar/internal/model"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPages bounds ListAllDeployments.
	MaxPages = 1000
)

// Client is a typed wrapper over the control plane's deployment endpoints.
type Client struct {
	transport Transport
}

func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

// ListOptions filters GET /v2/deployments.
type ListOptions struct {
	Limit        int
	Offset       int
	NameContains string
	Status       model.DeploymentStatus
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	limit := o.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	q.Set("limit", strconv.Itoa(limit))
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	if o.NameContains != "" {
		q.Set("name_contains", o.NameContains)
	}
	if o.Status != "" {
		q.Set("status", string(o.Status))
	}
	return q
}

// DeploymentList is one page of deployments.
type DeploymentList struct {
	Resources []model.Deployment `json:"resources"`
	Offset    int                `json:"offset"`
}

// RevisionList holds a deployment's revisions, newest first.
type RevisionList struct {
	Resources []model.Revision `json:"resources"`
}

// GitHubIntegration is an installed GitHub app integration.
type GitHubIntegration struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GitHubRepository is a repository visible through an integration.
type GitHubRepository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (c *Client) ListDeployments(ctx context.Context, opts ListOptions) (*DeploymentList, error) {
	var page DeploymentList
	if err := c.call(ctx, Request{Method: http.MethodGet, Path: "/v2/deployments", Query: opts.query()}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListAllDeployments walks every page of the listing starting at opts.Offset.
// It stops on a short page, on a page that adds no unseen deployment, or
// after MaxPages pages.
func (c *Client) ListAllDeployments(ctx context.Context, opts ListOptions) ([]model.Deployment, error) {
	opts.Limit = MaxPageSize

	var all []model.Deployment
	seen := make(map[string]struct{})
	for range MaxPages {
		page, err := c.ListDeployments(ctx, opts)
		if err != nil {
			return nil, err
		}
		added := 0
		for _, d := range page.Resources {
			if _, ok := seen[d.ID]; ok {
				continue
			}
			seen[d.ID] = struct{}{}
			all = append(all, d)
			added++
		}
		if len(page.Resources) < opts.Limit || added == 0 {
			return all, nil
		}
		opts.Offset += len(page.Resources)
	}
	return all, nil
}

func (c *Client) GetDeployment(ctx context.Context, id string) (*model.Deployment, error) {
	var d model.Deployment
	if err := c.call(ctx, Request{Method: http.MethodGet, Path: deploymentPath(id)}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) CreateDeployment(ctx context.Context, req *model.DeploymentCreateRequest) (*model.Deployment, error) {
	var d model.Deployment
	if err := c.call(ctx, Request{Method: http.MethodPost, Path: "/v2/deployments", Body: req}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) PatchDeployment(ctx context.Context, id string, req *model.DeploymentUpdateRequest) (*model.Deployment, error) {
	var d model.Deployment
	if err := c.call(ctx, Request{Method: http.MethodPatch, Path: deploymentPath(id), Body: req}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) DeleteDeployment(ctx context.Context, id string) error {
	return c.call(ctx, Request{Method: http.MethodDelete, Path: deploymentPath(id)}, nil)
}

// ListRevisions returns the deployment's revisions sorted newest first.
func (c *Client) ListRevisions(ctx context.Context, deploymentID string) ([]model.Revision, error) {
	var list RevisionList
	if err := c.call(ctx, Request{Method: http.MethodGet, Path: deploymentPath(deploymentID) + "/revisions"}, &list); err != nil {
		return nil, err
	}
	slices.SortStableFunc(list.Resources, func(a, b model.Revision) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return list.Resources, nil
}

func (c *Client) GetRevision(ctx context.Context, deploymentID, revisionID string) (*model.Revision, error) {
	var r model.Revision
	path := fmt.Sprintf("%s/revisions/%s", deploymentPath(deploymentID), url.PathEscape(revisionID))
	if err := c.call(ctx, Request{Method: http.MethodGet, Path: path}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListGitHubIntegrations(ctx context.Context) ([]GitHubIntegration, error) {
	var out []GitHubIntegration
	if err := c.call(ctx, Request{Method: http.MethodGet, Path: "/v1/integrations/github/install"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListGitHubRepositories(ctx context.Context, integrationID string) ([]GitHubRepository, error) {
	var out []GitHubRepository
	path := fmt.Sprintf("/v1/integrations/github/%s/repos", url.PathEscape(integrationID))
	if err := c.call(ctx, Request{Method: http.MethodGet, Path: path}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, req Request, out any) error {
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Message:    extractError(resp.Body),
		}
	}

	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("parse response from %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

func deploymentPath(id string) string {
	return "/v2/deployments/" + url.PathEscape(id)
}
