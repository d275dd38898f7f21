package deployment

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/controlplane/controlplanetest"
	"github.com/codekiln/langstar/internal/model"
)

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ObserveStatus(status model.RevisionStatus) { m.Called(status) }
func (m *mockObserver) ObserveTransientError()                   { m.Called() }
func (m *mockObserver) ObserveWait(outcome string, elapsed time.Duration) {
	m.Called(outcome, elapsed)
}

// seedRevision creates a deployment whose single revision reports statuses
// on successive reads.
func seedRevision(srv *controlplanetest.Server, statuses ...model.RevisionStatus) (*model.Deployment, *model.Revision) {
	d := srv.Seed(model.Deployment{Name: "acme", Source: model.SourceGitHub, Status: model.DeploymentAwaitingDatabase})
	rev := srv.SeedRevision(d.ID, model.Revision{}, statuses...)
	return d, rev
}

func TestPoll_HappyPath(t *testing.T) {
	client, srv := newTestClient(t)
	d, rev := seedRevision(srv, controlplanetest.DefaultScript...)

	got, err := newTestPoller(client).Poll(context.Background(), d.ID, rev.ID, PollOptions{})
	require.NoError(t, err)

	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, model.DeploymentReady, got.Status)
	assert.Equal(t, rev.ID, got.ActiveRevisionID)
	// One read per status, none after DEPLOYED.
	assert.Equal(t, 7, srv.RevisionReads(d.ID, rev.ID))
}

func TestPoll_BuildFailedStopsImmediately(t *testing.T) {
	client, srv := newTestClient(t)
	d, rev := seedRevision(srv,
		model.RevisionCreating, model.RevisionQueued, model.RevisionBuildFailed, model.RevisionBuilding)

	_, err := newTestPoller(client).Poll(context.Background(), d.ID, rev.ID, PollOptions{})
	require.Error(t, err)

	var remote *RemoteFailureError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, model.RevisionBuildFailed, remote.Status)
	assert.Equal(t, d.ID, remote.DeploymentID)
	assert.Equal(t, 3, srv.RevisionReads(d.ID, rev.ID))
}

func TestPoll_DistinctTerminalStates(t *testing.T) {
	for _, status := range []model.RevisionStatus{
		model.RevisionCreateFailed, model.RevisionDeployFailed,
		model.RevisionSkipped, model.RevisionInterrupted, model.RevisionUnknown,
	} {
		t.Run(string(status), func(t *testing.T) {
			client, srv := newTestClient(t)
			d, rev := seedRevision(srv, status)

			_, err := newTestPoller(client).Poll(context.Background(), d.ID, rev.ID, PollOptions{})
			var remote *RemoteFailureError
			require.True(t, errors.As(err, &remote))
			assert.Equal(t, status, remote.Status)
			assert.Equal(t, 1, srv.RevisionReads(d.ID, rev.ID))
		})
	}
}

func TestPoll_Timeout(t *testing.T) {
	client, srv := newTestClient(t)
	d, rev := seedRevision(srv, model.RevisionQueued, model.RevisionBuilding)

	start := time.Now()
	_, err := newTestPoller(client).Poll(context.Background(), d.ID, rev.ID, PollOptions{
		Interval: 5 * time.Millisecond,
		Timeout:  50 * time.Millisecond,
	})
	require.Error(t, err)

	var timeout *TimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, model.RevisionBuilding, timeout.LastStatus)
	assert.Equal(t, d.ID, timeout.DeploymentID)
	assert.Equal(t, rev.ID, timeout.RevisionID)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Contains(t, err.Error(), "langstar graph wait "+d.ID)
}

func TestPoll_CancelWithinOneInterval(t *testing.T) {
	client, srv := newTestClient(t)
	d, rev := seedRevision(srv, model.RevisionBuilding)

	interval := 300 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	_, err := newTestPoller(client).Poll(ctx, d.ID, rev.ID, PollOptions{Interval: interval, Timeout: time.Minute})
	elapsed := time.Since(start)
	require.Error(t, err)

	var cancelled *CancelledError
	require.True(t, errors.As(err, &cancelled))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.RevisionBuilding, cancelled.LastStatus)
	assert.Less(t, elapsed, interval)

	// Nothing was done to the remote deployment.
	_, ok := srv.Deployment(d.ID)
	assert.True(t, ok)
}

func TestPoll_AlreadyCancelled(t *testing.T) {
	client, srv := newTestClient(t)
	d, rev := seedRevision(srv, model.RevisionBuilding)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPoller(client).Poll(ctx, d.ID, rev.ID, PollOptions{})
	var cancelled *CancelledError
	require.True(t, errors.As(err, &cancelled))
	assert.Equal(t, 0, srv.RevisionReads(d.ID, rev.ID))
}

func TestPoll_RecoversFromTransientErrors(t *testing.T) {
	client, srv := newTestClient(t)
	d, rev := seedRevision(srv, model.RevisionDeploying, model.RevisionDeployed)
	srv.FailRevisionReads(2, http.StatusServiceUnavailable)

	got, err := newTestPoller(client).Poll(context.Background(), d.ID, rev.ID, PollOptions{})
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
}

func TestPoll_TransientErrorsExhausted(t *testing.T) {
	client, srv := newTestClient(t)
	d, rev := seedRevision(srv, model.RevisionBuilding)
	srv.FailRevisionReads(10, http.StatusBadGateway)

	_, err := newTestPoller(client).Poll(context.Background(), d.ID, rev.ID, PollOptions{})
	require.Error(t, err)

	var transient *TransientNetworkError
	require.True(t, errors.As(err, &transient))
	assert.Equal(t, 3, transient.Attempts)

	var apiErr *controlplane.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)

	var remote *RemoteFailureError
	assert.False(t, errors.As(err, &remote))
}

func TestPoll_DroppedConnectionIsNotARemoteFailure(t *testing.T) {
	client, srv := newTestClient(t)
	d, rev := seedRevision(srv, model.RevisionBuilding)
	srv.FailRevisionReads(100, 0)

	_, err := newTestPoller(client).Poll(context.Background(), d.ID, rev.ID, PollOptions{})
	require.Error(t, err)

	var transient *TransientNetworkError
	assert.True(t, errors.As(err, &transient))
	var remote *RemoteFailureError
	assert.False(t, errors.As(err, &remote))
}

func TestPoll_OutOfOrderStatus(t *testing.T) {
	client, srv := newTestClient(t)
	d, rev := seedRevision(srv, model.RevisionBuilding, model.RevisionQueued)

	_, err := newTestPoller(client).Poll(context.Background(), d.ID, rev.ID, PollOptions{})
	require.Error(t, err)

	var unexpected *UnexpectedStateError
	require.True(t, errors.As(err, &unexpected))
	assert.Equal(t, model.RevisionBuilding, unexpected.Previous)
	assert.Equal(t, model.RevisionQueued, unexpected.Observed)
}

func TestPoll_UnrecognisedStatus(t *testing.T) {
	client, srv := newTestClient(t)
	d, rev := seedRevision(srv, model.RevisionQueued, "CANCELLED")

	_, err := newTestPoller(client).Poll(context.Background(), d.ID, rev.ID, PollOptions{})
	var unexpected *UnexpectedStateError
	require.True(t, errors.As(err, &unexpected))
	assert.Equal(t, model.RevisionStatus("CANCELLED"), unexpected.Observed)
	assert.Contains(t, err.Error(), "unrecognised")
}

func TestPoll_RevisionNotFound(t *testing.T) {
	client, srv := newTestClient(t)
	d, _ := seedRevision(srv, model.RevisionBuilding)

	_, err := newTestPoller(client).Poll(context.Background(), d.ID, "missing", PollOptions{})
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "revision", nf.Kind)
}

func TestPoll_Observer(t *testing.T) {
	client, srv := newTestClient(t)
	d, rev := seedRevision(srv, model.RevisionBuilding, model.RevisionDeployFailed)
	srv.FailRevisionReads(1, http.StatusInternalServerError)

	obs := new(mockObserver)
	obs.On("ObserveTransientError").Return().Once()
	obs.On("ObserveStatus", model.RevisionBuilding).Return().Once()
	obs.On("ObserveStatus", model.RevisionDeployFailed).Return().Once()
	obs.On("ObserveWait", OutcomeFailed, mock.AnythingOfType("time.Duration")).Return().Once()

	_, err := newTestPoller(client, WithObserver(obs)).Poll(context.Background(), d.ID, rev.ID, PollOptions{})
	require.Error(t, err)
	obs.AssertExpectations(t)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeDeployed, outcomeOf(nil))
	assert.Equal(t, OutcomeFailed, outcomeOf(&RemoteFailureError{}))
	assert.Equal(t, OutcomeTimeout, outcomeOf(&TimeoutError{}))
	assert.Equal(t, OutcomeCancelled, outcomeOf(&CancelledError{}))
	assert.Equal(t, OutcomeError, outcomeOf(&TransientNetworkError{}))
}
