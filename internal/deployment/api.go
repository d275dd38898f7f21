package deployment

import (
	"context"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/model"
)

// Lister lists deployments across all pages.
type Lister interface {
	ListAllDeployments(ctx context.Context, opts controlplane.ListOptions) ([]model.Deployment, error)
}

// RevisionSource reads deployments and their revisions.
type RevisionSource interface {
	GetDeployment(ctx context.Context, id string) (*model.Deployment, error)
	GetRevision(ctx context.Context, deploymentID, revisionID string) (*model.Revision, error)
	ListRevisions(ctx context.Context, deploymentID string) ([]model.Revision, error)
}

// API is the part of the control plane the lifecycle manager drives.
// *controlplane.Client implements it.
type API interface {
	Lister
	RevisionSource
	ListDeployments(ctx context.Context, opts controlplane.ListOptions) (*controlplane.DeploymentList, error)
	CreateDeployment(ctx context.Context, req *model.DeploymentCreateRequest) (*model.Deployment, error)
	PatchDeployment(ctx context.Context, id string, req *model.DeploymentUpdateRequest) (*model.Deployment, error)
	DeleteDeployment(ctx context.Context, id string) error
}

var _ API = (*controlplane.Client)(nil)
