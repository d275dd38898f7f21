package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/deployment"
	"github.com/codekiln/langstar/internal/integration"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitError},
		{"usage", &usageError{err: errors.New("bad flag")}, ExitUsage},
		{"validation", &deployment.ValidationError{Field: "name"}, ExitUsage},
		{"config", &configError{err: errors.New("bad yaml")}, ExitConfig},
		{"not found", fmt.Errorf("get: %w", &deployment.NotFoundError{Ref: "x"}), ExitNotFound},
		{"no integration", integration.ErrNotFound, ExitNotFound},
		{"ambiguous", &deployment.AmbiguousReferenceError{Ref: "x"}, ExitAmbiguous},
		{"remote failure", &deployment.RemoteFailureError{}, ExitRemoteFailure},
		{"timeout", &deployment.TimeoutError{}, ExitTimeout},
		{"url", &deployment.URLResolutionError{}, ExitURLResolution},
		{"network", &deployment.TransientNetworkError{Err: errors.New("reset")}, ExitNetwork},
		{"server error", &controlplane.APIError{StatusCode: 503}, ExitNetwork},
		{"unexpected", &deployment.UnexpectedStateError{}, ExitUnexpectedState},
		{"unauthorized", &controlplane.APIError{StatusCode: 401}, ExitAuth},
		{"cancelled", &deployment.CancelledError{Err: context.Canceled}, ExitCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
