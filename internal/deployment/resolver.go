package deployment

import (
	"context"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/model"
)

// Resolver maps a user-supplied id or name to a single deployment.
type Resolver struct {
	api   Lister
	retry retrier
}

func NewResolver(api Lister, opts ...RetryOption) *Resolver {
	return &Resolver{api: api, retry: newRetrier(opts...)}
}

// Resolve looks ref up as an exact id first and then as an exact name.
// Matching is case-sensitive.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*model.Deployment, error) {
	if ref == "" {
		return nil, &ValidationError{Field: "deployment", Message: "reference must not be empty"}
	}

	all, err := retry(ctx, r.retry, callBounds{}, "list deployments", func(ctx context.Context) ([]model.Deployment, error) {
		return r.api.ListAllDeployments(ctx, controlplane.ListOptions{})
	})
	if err != nil {
		return nil, err
	}

	for i := range all {
		if all[i].ID == ref {
			return &all[i], nil
		}
	}

	var matches []model.Deployment
	for _, d := range all {
		if d.Name == ref {
			matches = append(matches, d)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &NotFoundError{Kind: "deployment", Ref: ref}
	case 1:
		return &matches[0], nil
	default:
		return nil, &AmbiguousReferenceError{Ref: ref, Candidates: matches}
	}
}
