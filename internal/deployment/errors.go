package deployment

import (
	"fmt"
	"strings"
	"time"

	"github.com/codekiln/langstar/internal/model"
)

// NotFoundError means a reference matched nothing.
type NotFoundError struct {
	Kind string // "deployment" or "revision"
	Ref  string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "deployment"
	}
	if kind == "revision" {
		return fmt.Sprintf("revision %q not found; run 'langstar graph revisions <deployment>' to see available revisions", e.Ref)
	}
	return fmt.Sprintf("%s %q not found; run 'langstar graph list' to see available deployments", kind, e.Ref)
}

// AmbiguousReferenceError means a name matched more than one deployment.
type AmbiguousReferenceError struct {
	Ref        string
	Candidates []model.Deployment
}

func (e *AmbiguousReferenceError) Error() string {
	ids := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		ids[i] = c.ID
	}
	return fmt.Sprintf("%q matches %d deployments (%s); use the deployment id instead",
		e.Ref, len(e.Candidates), strings.Join(ids, ", "))
}

// ValidationError is a malformed create or update request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Message)
}

// RemoteFailureError is a terminal failure reported by the platform.
type RemoteFailureError struct {
	DeploymentID string
	RevisionID   string
	Status       model.RevisionStatus
	Message      string
}

func (e *RemoteFailureError) Error() string {
	var stage string
	switch e.Status {
	case model.RevisionCreateFailed:
		stage = "creation failed"
	case model.RevisionBuildFailed:
		stage = "build failed"
	case model.RevisionDeployFailed:
		stage = "deploy failed"
	case model.RevisionSkipped:
		stage = "was skipped"
	case model.RevisionInterrupted:
		stage = "was interrupted"
	default:
		stage = "ended in an unknown state"
	}
	msg := fmt.Sprintf("revision %s of deployment %s %s (%s)", e.RevisionID, e.DeploymentID, stage, e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg + "; check the build logs in the platform UI"
}

// TimeoutError means the caller stopped waiting. The revision may still
// finish; DeploymentID is always set so the wait can be resumed.
type TimeoutError struct {
	DeploymentID string
	RevisionID   string
	LastStatus   model.RevisionStatus
	Elapsed      time.Duration
}

func (e *TimeoutError) Error() string {
	last := string(e.LastStatus)
	if last == "" {
		last = "no status observed"
	}
	return fmt.Sprintf("timed out after %s waiting for revision %s (last status: %s); resume with 'langstar graph wait %s --revision %s'",
		e.Elapsed.Round(time.Second), e.RevisionID, last, e.DeploymentID, e.RevisionID)
}

// CancelledError means the wait was cancelled. The remote resource is left as-is.
type CancelledError struct {
	DeploymentID string
	RevisionID   string
	LastStatus   model.RevisionStatus
	Err          error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("wait for revision %s of deployment %s cancelled (last status: %s); the deployment was left as-is",
		e.RevisionID, e.DeploymentID, e.LastStatus)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// URLResolutionError means no URL could be derived for a deployment.
type URLResolutionError struct {
	DeploymentID string
	Reason       string
}

func (e *URLResolutionError) Error() string {
	return fmt.Sprintf("cannot determine URL of deployment %s: %s; set custom_url or check the deployment in the platform UI",
		e.DeploymentID, e.Reason)
}

// TransientNetworkError is a network or 5xx failure that persisted through
// every retry. It says nothing about the state of the remote build.
type TransientNetworkError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v; the remote build state is unknown, retry later",
		e.Op, e.Attempts, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// UnexpectedStateError means the platform reported a status that violates
// the forward-only revision state machine.
type UnexpectedStateError struct {
	DeploymentID string
	RevisionID   string
	Previous     model.RevisionStatus
	Observed     model.RevisionStatus
	Reason       string
}

func (e *UnexpectedStateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unexpected state of deployment %s: %s", e.DeploymentID, e.Reason)
	}
	if e.Previous == "" {
		return fmt.Sprintf("revision %s of deployment %s reported unrecognised status %q",
			e.RevisionID, e.DeploymentID, e.Observed)
	}
	return fmt.Sprintf("revision %s of deployment %s went from %s back to %s",
		e.RevisionID, e.DeploymentID, e.Previous, e.Observed)
}
