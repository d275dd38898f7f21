package deployment

import (
	"context"
	"strings"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/model"
)

// Cache finds existing deployments that can stand in for a fresh one. It is
// meant for test harnesses, not for production create or delete paths.
type Cache struct {
	api   Lister
	retry retrier
}

func NewCache(api Lister, opts ...RetryOption) *Cache {
	return &Cache{api: api, retry: newRetrier(opts...)}
}

// FindReusable returns the most recently created deployment whose name
// starts with prefix and whose status equals status, or nil when none does.
func (c *Cache) FindReusable(ctx context.Context, prefix string, status model.DeploymentStatus) (*model.Deployment, error) {
	opts := controlplane.ListOptions{NameContains: prefix, Status: status}
	all, err := retry(ctx, c.retry, callBounds{}, "list deployments", func(ctx context.Context) ([]model.Deployment, error) {
		return c.api.ListAllDeployments(ctx, opts)
	})
	if err != nil {
		return nil, err
	}

	var best *model.Deployment
	for i := range all {
		d := &all[i]
		if !strings.HasPrefix(d.Name, prefix) || d.Status != status {
			continue
		}
		if best == nil || d.CreatedAt.After(best.CreatedAt) {
			best = d
		}
	}
	return best, nil
}
