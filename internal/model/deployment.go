package model

import "time"

// DeploymentSource identifies where a deployment's image comes from.
type DeploymentSource string

const (
	SourceGitHub         DeploymentSource = "github"
	SourceExternalDocker DeploymentSource = "external_docker"
)

// DeploymentType is the sizing tier of a GitHub-sourced deployment.
type DeploymentType string

const (
	DeploymentTypeDevFree DeploymentType = "dev_free"
	DeploymentTypeDev     DeploymentType = "dev"
	DeploymentTypeProd    DeploymentType = "prod"
)

// Deployment is an immutable snapshot of a deployment owned by the control plane.
type Deployment struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	Source               DeploymentSource      `json:"source"`
	SourceConfig         *SourceConfig         `json:"source_config,omitempty"`
	SourceRevisionConfig *SourceRevisionConfig `json:"source_revision_config,omitempty"`
	Status               DeploymentStatus      `json:"status"`
	LatestRevisionID     string                `json:"latest_revision_id,omitempty"`
	ActiveRevisionID     string                `json:"active_revision_id,omitempty"`
	ImageVersion         string                `json:"image_version,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`

	// URL is filled in by the client once the endpoint has been resolved. It is
	// never sent by the control plane.
	URL string `json:"url,omitempty"`
}

// SourceConfig holds source-specific settings. GitHub deployments use the
// repository fields, external docker deployments use ImagePath.
type SourceConfig struct {
	IntegrationID  *string        `json:"integration_id"`
	RepoURL        string         `json:"repo_url,omitempty"`
	DeploymentType DeploymentType `json:"deployment_type,omitempty"`
	BuildOnPush    *bool          `json:"build_on_push,omitempty"`
	CustomURL      *string        `json:"custom_url,omitempty"`
	ImagePath      string         `json:"image_path,omitempty"`
}

// SourceRevisionConfig is the per-revision part of the source: what to build.
type SourceRevisionConfig struct {
	RepoRef             string `json:"repo_ref,omitempty"`
	LangGraphConfigPath string `json:"langgraph_config_path,omitempty"`
	ImageURI            string `json:"image_uri,omitempty"`
}

// Secret is an environment variable injected into the deployment.
type Secret struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value"`
}

// CustomURL returns the platform-supplied URL, or "" when the control plane
// has not assigned one.
func (d *Deployment) CustomURL() string {
	if d.SourceConfig == nil || d.SourceConfig.CustomURL == nil {
		return ""
	}
	return *d.SourceConfig.CustomURL
}

// IntegrationID returns the GitHub integration the deployment was created with.
func (d *Deployment) IntegrationID() string {
	if d.SourceConfig == nil || d.SourceConfig.IntegrationID == nil {
		return ""
	}
	return *d.SourceConfig.IntegrationID
}
