package deployment

import (
	"fmt"
	"strings"

	"github.com/codekiln/langstar/internal/model"
)

const (
	DefaultRepoRef    = "main"
	DefaultConfigPath = "langgraph.json"
)

// CreateParams are the user-facing inputs of a create.
type CreateParams struct {
	Name           string
	Source         model.DeploymentSource
	RepoURL        string
	IntegrationID  string
	Branch         string
	ConfigPath     string
	DeploymentType model.DeploymentType
	ImageURI       string
	Env            []string
}

// BuildCreateRequest fills in defaults and shapes the source config for the
// chosen source. The result still has to pass ValidateCreate.
func BuildCreateRequest(p CreateParams) (*model.DeploymentCreateRequest, error) {
	secrets, err := ParseEnv(p.Env)
	if err != nil {
		return nil, err
	}
	if secrets == nil {
		secrets = []model.Secret{}
	}

	req := &model.DeploymentCreateRequest{
		Name:    p.Name,
		Source:  p.Source,
		Secrets: secrets,
	}

	switch p.Source {
	case model.SourceExternalDocker:
		req.SourceConfig = model.SourceConfig{ImagePath: p.ImageURI}
		req.SourceRevisionConfig = model.SourceRevisionConfig{ImageURI: p.ImageURI}
	default:
		buildOnPush := false
		var integrationID *string
		if p.IntegrationID != "" {
			integrationID = &p.IntegrationID
		}
		deploymentType := p.DeploymentType
		if deploymentType == "" {
			deploymentType = model.DeploymentTypeDevFree
		}
		req.SourceConfig = model.SourceConfig{
			IntegrationID:  integrationID,
			RepoURL:        p.RepoURL,
			DeploymentType: deploymentType,
			BuildOnPush:    &buildOnPush,
		}
		req.SourceRevisionConfig = model.SourceRevisionConfig{
			RepoRef:             orDefault(p.Branch, DefaultRepoRef),
			LangGraphConfigPath: orDefault(p.ConfigPath, DefaultConfigPath),
		}
	}
	return req, nil
}

// UpdateParams are the user-facing inputs of an update. Empty fields are
// left unchanged; a nil Env leaves secrets unchanged.
type UpdateParams struct {
	Branch     string
	ConfigPath string
	ImageURI   string
	Env        []string
}

// BuildUpdateRequest overlays p on the current revision config of d so that
// unspecified revision fields keep their values.
func BuildUpdateRequest(d *model.Deployment, p UpdateParams) (*model.DeploymentUpdateRequest, error) {
	req := &model.DeploymentUpdateRequest{}

	if p.Branch != "" || p.ConfigPath != "" || p.ImageURI != "" {
		var src model.SourceRevisionConfig
		if d.SourceRevisionConfig != nil {
			src = *d.SourceRevisionConfig
		}
		if p.Branch != "" {
			src.RepoRef = p.Branch
		}
		if p.ConfigPath != "" {
			src.LangGraphConfigPath = p.ConfigPath
		}
		if p.ImageURI != "" {
			src.ImageURI = p.ImageURI
		}
		req.SourceRevisionConfig = &src
	}

	if p.Env != nil {
		secrets, err := ParseEnv(p.Env)
		if err != nil {
			return nil, err
		}
		if secrets == nil {
			secrets = []model.Secret{}
		}
		req.Secrets = secrets
	}
	return req, nil
}

// ParseEnv turns KEY=VALUE pairs into secrets. The value may contain '='.
func ParseEnv(pairs []string) ([]model.Secret, error) {
	var secrets []model.Secret
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &ValidationError{Field: "env", Message: fmt.Sprintf("%q must have the form KEY=VALUE", pair)}
		}
		secrets = append(secrets, model.Secret{Name: name, Value: value})
	}
	return secrets, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
