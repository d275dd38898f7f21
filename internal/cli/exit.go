package cli

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/deployment"
	"github.com/codekiln/langstar/internal/integration"
)

// Exit codes, one per error kind.
const (
	ExitOK              = 0
	ExitError           = 1
	ExitUsage           = 2
	ExitNotFound        = 3
	ExitAmbiguous       = 4
	ExitRemoteFailure   = 5
	ExitTimeout         = 6
	ExitURLResolution   = 7
	ExitNetwork         = 8
	ExitUnexpectedState = 9
	ExitConfig          = 10
	ExitAuth            = 11
	ExitCancelled       = 130
)

// usageError is a malformed invocation: bad flags, arguments or values.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// configError is a configuration that could not be loaded.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		cancelled  *deployment.CancelledError
		validation *deployment.ValidationError
		notFound   *deployment.NotFoundError
		ambiguous  *deployment.AmbiguousReferenceError
		remote     *deployment.RemoteFailureError
		timeout    *deployment.TimeoutError
		urlErr     *deployment.URLResolutionError
		network    *deployment.TransientNetworkError
		unexpected *deployment.UnexpectedStateError
		usage      *usageError
		cfgErr     *configError
		apiErr     *controlplane.APIError
	)

	switch {
	case errors.As(err, &cancelled):
		return ExitCancelled
	case errors.As(err, &usage), errors.As(err, &validation):
		return ExitUsage
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &notFound), errors.Is(err, integration.ErrNotFound):
		return ExitNotFound
	case errors.As(err, &ambiguous):
		return ExitAmbiguous
	case errors.As(err, &remote):
		return ExitRemoteFailure
	case errors.As(err, &timeout):
		return ExitTimeout
	case errors.As(err, &urlErr):
		return ExitURLResolution
	case errors.As(err, &network), controlplane.IsTransient(err):
		return ExitNetwork
	case errors.As(err, &unexpected):
		return ExitUnexpectedState
	case errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden):
		return ExitAuth
	default:
		return ExitError
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	return asUsage(cobra.NoArgs(cmd, args))
}

func oneArg(cmd *cobra.Command, args []string) error {
	return asUsage(cobra.ExactArgs(1)(cmd, args))
}

func asUsage(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}
