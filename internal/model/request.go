package model

import "encoding/json"

// DeploymentCreateRequest is the body of POST /v2/deployments.
type DeploymentCreateRequest struct {
	Name                 string               `json:"name" validate:"required,deployment_name"`
	Source               DeploymentSource     `json:"source" validate:"required,oneof=github external_docker"`
	SourceConfig         SourceConfig         `json:"source_config"`
	SourceRevisionConfig SourceRevisionConfig `json:"source_revision_config"`
	Secrets              []Secret             `json:"secrets" validate:"dive"`
}

// DeploymentUpdateRequest is the body of PATCH /v2/deployments/{id}. Nil
// fields are left untouched by the control plane.
type DeploymentUpdateRequest struct {
	SourceConfig         *SourceConfig         `json:"source_config,omitempty"`
	SourceRevisionConfig *SourceRevisionConfig `json:"source_revision_config,omitempty"`
	Secrets              []Secret              `json:"secrets,omitempty" validate:"omitempty,dive"`
}

// MarshalJSON keeps an explicitly empty secret set on the wire as
// "secrets": [] so that it replaces the current set and spawns a revision.
// Nil secrets are omitted.
func (r DeploymentUpdateRequest) MarshalJSON() ([]byte, error) {
	type plain DeploymentUpdateRequest
	out := struct {
		plain
		Secrets *[]Secret `json:"secrets,omitempty"`
	}{plain: plain(r)}
	if r.Secrets != nil {
		out.Secrets = &r.Secrets
	}
	return json.Marshal(out)
}

// CreatesRevision reports whether applying the patch spawns a new revision.
func (r *DeploymentUpdateRequest) CreatesRevision() bool {
	return r.SourceRevisionConfig != nil || r.Secrets != nil
}

// IsEmpty reports whether the patch changes nothing.
func (r *DeploymentUpdateRequest) IsEmpty() bool {
	return r.SourceConfig == nil && !r.CreatesRevision()
}
