package deployment

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/codekiln/langstar/internal/model"
)

// URLResolver derives the externally reachable base URL of a deployment.
type URLResolver struct {
	api            RevisionSource
	platformDomain string
	regionDomain   string
	retry          retrier
}

func NewURLResolver(api RevisionSource, platformDomain, regionDomain string, opts ...RetryOption) *URLResolver {
	return &URLResolver{
		api:            api,
		platformDomain: strings.Trim(platformDomain, "."),
		regionDomain:   strings.Trim(regionDomain, "."),
		retry:          newRetrier(opts...),
	}
}

// Resolve returns custom_url when the platform supplied one. External docker
// deployments are addressed by name under the platform domain. GitHub
// deployments are addressed by the hostname embedded in the latest
// revision's resource name; that naming is a platform convention, not a
// contract, so any deviation is an error rather than a guess.
func (u *URLResolver) Resolve(ctx context.Context, d *model.Deployment) (string, error) {
	if custom := d.CustomURL(); custom != "" {
		return custom, nil
	}

	if d.Source == model.SourceExternalDocker {
		if u.platformDomain == "" {
			return "", &URLResolutionError{DeploymentID: d.ID, Reason: "platform domain is not configured"}
		}
		if d.Name == "" {
			return "", &URLResolutionError{DeploymentID: d.ID, Reason: "deployment has no name"}
		}
		return fmt.Sprintf("https://%s.%s", d.Name, u.platformDomain), nil
	}

	if u.regionDomain == "" {
		return "", &URLResolutionError{DeploymentID: d.ID, Reason: "region domain is not configured"}
	}

	rev, err := u.latestRevision(ctx, d)
	if err != nil {
		return "", err
	}

	resourceName := rev.ResourceName()
	if resourceName == "" {
		return "", &URLResolutionError{
			DeploymentID: d.ID,
			Reason:       fmt.Sprintf("revision %s has no resource name", rev.ID),
		}
	}

	hostname, err := hostnameFromResourceName(resourceName)
	if err != nil {
		return "", &URLResolutionError{DeploymentID: d.ID, Reason: err.Error()}
	}
	return fmt.Sprintf("https://%s.%s", hostname, u.regionDomain), nil
}

func (u *URLResolver) latestRevision(ctx context.Context, d *model.Deployment) (*model.Revision, error) {
	if d.LatestRevisionID != "" {
		return retry(ctx, u.retry, callBounds{}, "get latest revision of "+d.ID, func(ctx context.Context) (*model.Revision, error) {
			return u.api.GetRevision(ctx, d.ID, d.LatestRevisionID)
		})
	}

	revs, err := retry(ctx, u.retry, callBounds{}, "list revisions of "+d.ID, func(ctx context.Context) ([]model.Revision, error) {
		return u.api.ListRevisions(ctx, d.ID)
	})
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, &URLResolutionError{DeploymentID: d.ID, Reason: "deployment has no revisions"}
	}
	return &revs[0], nil
}

var hostnameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// hostnameFromResourceName strips the trailing suffix segment from a
// resource name of the form {deployment-name}-{build-hash}-{suffix}.
func hostnameFromResourceName(name string) (string, error) {
	segments := strings.Split(name, "-")
	if len(segments) < 3 {
		return "", fmt.Errorf("resource name %q does not have the form {name}-{hash}-{suffix}", name)
	}
	for _, s := range segments {
		if s == "" {
			return "", fmt.Errorf("resource name %q has an empty segment", name)
		}
	}

	hostname := strings.Join(segments[:len(segments)-1], "-")
	if !hostnameRegex.MatchString(hostname) {
		return "", fmt.Errorf("resource name %q does not yield a valid hostname", name)
	}
	return hostname, nil
}
