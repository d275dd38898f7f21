package deployment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/model"
)

// Manager orchestrates create, update and delete against the control plane.
type Manager struct {
	api      API
	resolver *Resolver
	poller   *Poller
	urls     *URLResolver
	pollOpts PollOptions
	retry    retrier
	logger   zerolog.Logger
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithPollOptions sets the interval and timeout of waits started by the manager.
func WithPollOptions(opts PollOptions) ManagerOption {
	return func(m *Manager) {
		m.pollOpts = opts
	}
}

// NewManager builds a Manager. Reads outside a wait are retried with the
// poller's transient retry budget.
func NewManager(api API, poller *Poller, urls *URLResolver, logger zerolog.Logger, opts ...ManagerOption) *Manager {
	logger = logger.With().Str("component", "deployment-manager").Logger()
	retryOpts := []RetryOption{WithRetries(poller.retries, poller.retryDelay), WithRetryLogger(logger)}
	m := &Manager{
		api:      api,
		resolver: NewResolver(api, retryOpts...),
		poller:   poller,
		urls:     urls,
		retry:    newRetrier(retryOpts...),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve returns the deployment identified by ref (id or name).
func (m *Manager) Resolve(ctx context.Context, ref string) (*model.Deployment, error) {
	return m.resolver.Resolve(ctx, ref)
}

// List returns one page of deployments.
func (m *Manager) List(ctx context.Context, opts controlplane.ListOptions) (*controlplane.DeploymentList, error) {
	return retry(ctx, m.retry, callBounds{}, "list deployments", func(ctx context.Context) (*controlplane.DeploymentList, error) {
		return m.api.ListDeployments(ctx, opts)
	})
}

// Revisions returns the revisions of a deployment, newest first.
func (m *Manager) Revisions(ctx context.Context, deploymentID string) ([]model.Revision, error) {
	revs, err := retry(ctx, m.retry, callBounds{}, "list revisions", func(ctx context.Context) ([]model.Revision, error) {
		return m.api.ListRevisions(ctx, deploymentID)
	})
	if controlplane.IsNotFound(err) {
		return nil, &NotFoundError{Kind: "deployment", Ref: deploymentID}
	}
	return revs, err
}

// ResolveURL returns the base URL of a deployment.
func (m *Manager) ResolveURL(ctx context.Context, d *model.Deployment) (string, error) {
	return m.urls.Resolve(ctx, d)
}

// Create submits req. With wait it blocks until the first revision is
// deployed and attaches the resolved URL. When waiting fails the created
// record is still returned alongside the error so its id is never lost.
func (m *Manager) Create(ctx context.Context, req *model.DeploymentCreateRequest, wait bool) (*model.Deployment, error) {
	if err := ValidateCreate(req); err != nil {
		return nil, err
	}

	d, err := m.api.CreateDeployment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create deployment %q: %w", req.Name, err)
	}

	log := m.logger.With().Str("deployment_id", d.ID).Str("name", d.Name).Logger()
	log.Info().Str("source", string(d.Source)).Msg("deployment created")

	revisionID, err := m.latestRevisionID(ctx, d)
	if err != nil {
		return d, err
	}
	d.LatestRevisionID = revisionID

	if !wait {
		return d, nil
	}
	return m.awaitReady(ctx, d, revisionID)
}

// Update applies patch to deployment id. Only patches carrying
// source_revision_config or secrets create a revision, and only those are
// waited for.
func (m *Manager) Update(ctx context.Context, id string, patch *model.DeploymentUpdateRequest, wait bool) (*model.Deployment, error) {
	if err := ValidateUpdate(patch); err != nil {
		return nil, err
	}

	d, err := m.api.PatchDeployment(ctx, id, patch)
	if err != nil {
		if controlplane.IsNotFound(err) {
			return nil, &NotFoundError{Kind: "deployment", Ref: id}
		}
		return nil, fmt.Errorf("update deployment %s: %w", id, err)
	}

	log := m.logger.With().Str("deployment_id", d.ID).Logger()
	if !patch.CreatesRevision() {
		log.Info().Msg("deployment updated without a new revision")
		return d, nil
	}

	revisionID, err := m.latestRevisionID(ctx, d)
	if err != nil {
		return d, err
	}
	d.LatestRevisionID = revisionID
	log.Info().Str("revision_id", revisionID).Msg("deployment updated, new revision requested")

	if !wait {
		return d, nil
	}
	return m.awaitReady(ctx, d, revisionID)
}

// Wait re-attaches to a revision of an existing deployment, the latest one
// when revisionID is empty.
func (m *Manager) Wait(ctx context.Context, d *model.Deployment, revisionID string) (*model.Deployment, error) {
	if revisionID == "" {
		id, err := m.latestRevisionID(ctx, d)
		if err != nil {
			return d, err
		}
		revisionID = id
	}
	return m.awaitReady(ctx, d, revisionID)
}

// Delete removes deployment id. Deleting a deployment that no longer exists
// succeeds with a warning.
func (m *Manager) Delete(ctx context.Context, id string) error {
	err := m.api.DeleteDeployment(ctx, id)
	switch {
	case err == nil:
		m.logger.Info().Str("deployment_id", id).Msg("deployment deleted")
		return nil
	case controlplane.IsNotFound(err):
		m.logger.Warn().Str("deployment_id", id).Msg("deployment already absent, nothing to delete")
		return nil
	default:
		return fmt.Errorf("delete deployment %s: %w", id, err)
	}
}

// DeleteRef deletes the deployment named by ref and returns its id. A
// UUID-shaped ref is deleted directly so that already removed deployments
// still succeed; a name is resolved first.
func (m *Manager) DeleteRef(ctx context.Context, ref string) (string, error) {
	id := ref
	if _, err := uuid.Parse(ref); err != nil {
		d, err := m.resolver.Resolve(ctx, ref)
		if err != nil {
			return "", err
		}
		id = d.ID
	}
	return id, m.Delete(ctx, id)
}

func (m *Manager) awaitReady(ctx context.Context, d *model.Deployment, revisionID string) (*model.Deployment, error) {
	ready, err := m.poller.Poll(ctx, d.ID, revisionID, m.pollOpts)
	if err != nil {
		return d, err
	}

	url, err := m.urls.Resolve(ctx, ready)
	if err != nil {
		var urlErr *URLResolutionError
		if errors.As(err, &urlErr) {
			m.logger.Warn().Err(err).Str("deployment_id", ready.ID).Msg("deployment is ready but its URL could not be resolved")
		}
		return ready, err
	}
	ready.URL = url
	return ready, nil
}

// latestRevisionID prefers the id on the record and falls back to the
// newest listed revision.
func (m *Manager) latestRevisionID(ctx context.Context, d *model.Deployment) (string, error) {
	if d.LatestRevisionID != "" {
		return d.LatestRevisionID, nil
	}
	revs, err := retry(ctx, m.retry, callBounds{}, "list revisions of "+d.ID, func(ctx context.Context) ([]model.Revision, error) {
		return m.api.ListRevisions(ctx, d.ID)
	})
	if err != nil {
		return "", err
	}
	if len(revs) == 0 {
		return "", &UnexpectedStateError{DeploymentID: d.ID, Reason: "deployment has no revisions"}
	}
	return revs[0].ID, nil
}
