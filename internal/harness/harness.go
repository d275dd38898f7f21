// Package harness keeps expensive deployments alive across integration test
// runs. A Context is created by the test setup, handed to tests explicitly
// and cleaned up by an explicit Cleanup call.
package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/codekiln/langstar/internal/deployment"
	"github.com/codekiln/langstar/internal/model"
)

// DefaultPrefix names the deployments shared by integration test runs.
const DefaultPrefix = "langstar-integration-test"

// Lifecycle is the part of deployment.Manager the harness uses.
type Lifecycle interface {
	Create(ctx context.Context, req *model.DeploymentCreateRequest, wait bool) (*model.Deployment, error)
	Delete(ctx context.Context, id string) error
	ResolveURL(ctx context.Context, d *model.Deployment) (string, error)
}

// Reuser finds deployments left over from earlier runs.
type Reuser interface {
	FindReusable(ctx context.Context, prefix string, status model.DeploymentStatus) (*model.Deployment, error)
}

var (
	_ Lifecycle = (*deployment.Manager)(nil)
	_ Reuser    = (*deployment.Cache)(nil)
)

type Options struct {
	// Prefix is prepended to the names of deployments the harness creates
	// and used to find reusable ones. Defaults to DefaultPrefix.
	Prefix string
	// KeepAlive leaves created deployments in place on Cleanup so the next
	// run can reuse them.
	KeepAlive bool
}

type Context struct {
	lifecycle Lifecycle
	reuser    Reuser
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	cached  *model.Deployment
	created []string
}

func New(lifecycle Lifecycle, reuser Reuser, logger zerolog.Logger, opts Options) *Context {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	return &Context{
		lifecycle: lifecycle,
		reuser:    reuser,
		opts:      opts,
		logger:    logger.With().Str("component", "test-harness").Logger(),
		now:       time.Now,
	}
}

// Cached returns the deployment handed out by EnsureDeployment, if any.
func (h *Context) Cached() *model.Deployment {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cached
}

// EnsureDeployment returns a READY deployment: the one already cached, else
// the newest reusable one, else a new one built by build and waited for.
func (h *Context) EnsureDeployment(ctx context.Context, build func(name string) *model.DeploymentCreateRequest) (*model.Deployment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cached != nil {
		return h.cached, nil
	}

	d, err := h.reuser.FindReusable(ctx, h.opts.Prefix, model.DeploymentReady)
	if err != nil {
		return nil, fmt.Errorf("find reusable deployment: %w", err)
	}
	if d != nil {
		h.logger.Info().Str("deployment_id", d.ID).Str("name", d.Name).Msg("reusing deployment")
		if url, err := h.lifecycle.ResolveURL(ctx, d); err != nil {
			h.logger.Warn().Err(err).Str("deployment_id", d.ID).Msg("reused deployment has no resolvable URL")
		} else {
			d.URL = url
		}
		h.cached = d
		return d, nil
	}

	name := fmt.Sprintf("%s-%d", h.opts.Prefix, h.now().Unix())
	h.logger.Info().Str("name", name).Msg("no reusable deployment, creating one")

	d, err = h.lifecycle.Create(ctx, build(name), true)
	if d != nil && d.ID != "" {
		h.created = append(h.created, d.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("create deployment %s: %w", name, err)
	}
	h.cached = d
	return d, nil
}

// Track registers an extra deployment for deletion on Cleanup.
func (h *Context) Track(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, id)
}

// Cleanup deletes the deployments this Context created, unless KeepAlive is
// set. Reused deployments are never deleted. Every deletion is attempted and
// all failures are returned together.
func (h *Context) Cleanup(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.KeepAlive {
		h.logger.Info().Strs("deployment_ids", h.created).Msg("keeping deployments for reuse")
		return nil
	}

	var errs error
	var remaining []string
	for _, id := range h.created {
		if err := h.lifecycle.Delete(ctx, id); err != nil {
			errs = multierr.Append(errs, err)
			remaining = append(remaining, id)
			continue
		}
		if h.cached != nil && h.cached.ID == id {
			h.cached = nil
		}
	}
	h.created = remaining
	return errs
}
