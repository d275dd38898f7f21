package model

import (
	"encoding/json"
	"time"
)

// Revision is a single build/deploy attempt of a deployment.
type Revision struct {
	ID                   string                `json:"id"`
	DeploymentID         string                `json:"deployment_id,omitempty"`
	Status               RevisionStatus        `json:"status"`
	StatusMessage        string                `json:"status_message,omitempty"`
	SourceRevisionConfig *SourceRevisionConfig `json:"source_revision_config,omitempty"`
	Resource             json.RawMessage       `json:"resource,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// ResourceName returns the name of the platform resource backing the
// revision, or "" when the control plane did not report one. Both the flat
// {"name": ...} and the {"id": {"name": ...}} shapes are accepted.
func (r *Revision) ResourceName() string {
	if len(r.Resource) == 0 {
		return ""
	}
	var flat struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(r.Resource, &flat); err == nil && flat.Name != "" {
		return flat.Name
	}
	var nested struct {
		ID struct {
			Name string `json:"name"`
		} `json:"id"`
	}
	if err := json.Unmarshal(r.Resource, &nested); err == nil {
		return nested.ID.Name
	}
	return ""
}
