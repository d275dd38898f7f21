package deployment

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/codekiln/langstar/internal/model"
)

var validate = validator.New()

var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}$`)

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("deployment_name", func(fl validator.FieldLevel) bool {
		return nameRegex.MatchString(fl.Field().String())
	})
}

// ValidateCreate checks a create request before it is sent.
func ValidateCreate(req *model.DeploymentCreateRequest) error {
	if err := structError(validate.Struct(req)); err != nil {
		return err
	}

	switch req.Source {
	case model.SourceGitHub:
		if req.SourceConfig.RepoURL == "" {
			return &ValidationError{Field: "source_config.repo_url", Message: "is required for github deployments"}
		}
		if req.SourceConfig.IntegrationID == nil || *req.SourceConfig.IntegrationID == "" {
			return &ValidationError{Field: "source_config.integration_id", Message: "is required for github deployments"}
		}
		switch req.SourceConfig.DeploymentType {
		case model.DeploymentTypeDevFree, model.DeploymentTypeDev, model.DeploymentTypeProd:
		default:
			return &ValidationError{
				Field:   "source_config.deployment_type",
				Message: fmt.Sprintf("must be one of dev_free, dev, prod (got %q)", req.SourceConfig.DeploymentType),
			}
		}
		if req.SourceRevisionConfig.RepoRef == "" {
			return &ValidationError{Field: "source_revision_config.repo_ref", Message: "is required for github deployments"}
		}
	case model.SourceExternalDocker:
		if req.SourceRevisionConfig.ImageURI == "" {
			return &ValidationError{Field: "source_revision_config.image_uri", Message: "is required for external_docker deployments"}
		}
	}
	return nil
}

// ValidateUpdate checks a patch before it is sent.
func ValidateUpdate(req *model.DeploymentUpdateRequest) error {
	if req.IsEmpty() {
		return &ValidationError{Field: "patch", Message: "must change source_config, source_revision_config or secrets"}
	}
	return structError(validate.Struct(req))
}

func structError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate request: %w", err)
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "deployment_name":
		msg = fmt.Sprintf("%q must start with a lowercase letter and contain only lowercase letters, digits and hyphens (max 63)", fe.Value())
	case "oneof":
		msg = fmt.Sprintf("must be one of %s", fe.Param())
	default:
		msg = fmt.Sprintf("failed %q validation", fe.Tag())
	}
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	return &ValidationError{Field: field, Message: msg}
}
