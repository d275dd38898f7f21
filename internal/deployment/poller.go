package deployment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/codekiln/langstar/internal/controlplane"
	"github.com/codekiln/langstar/internal/model"
)

const (
	DefaultPollInterval     = 10 * time.Second
	DefaultPollTimeout      = 30 * time.Minute
	DefaultTransientRetries = 3
	DefaultRetryDelay       = 2 * time.Second
)

// Outcomes reported to an Observer when a wait ends.
const (
	OutcomeDeployed  = "deployed"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Observer receives poll events. internal/metrics provides a Prometheus
// implementation.
type Observer interface {
	ObserveStatus(status model.RevisionStatus)
	ObserveTransientError()
	ObserveWait(outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveStatus(model.RevisionStatus) {}
func (nopObserver) ObserveTransientError()             {}
func (nopObserver) ObserveWait(string, time.Duration)  {}

// PollOptions bounds a single wait. Zero values use the poller's defaults.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Poller drives one revision through the build/deploy state machine.
type Poller struct {
	api        RevisionSource
	logger     zerolog.Logger
	interval   time.Duration
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	observer   Observer
	retry      retrier
}

// PollerOption customises a Poller.
type PollerOption func(*Poller)

// WithDefaults sets the interval and timeout used when PollOptions leaves them zero.
func WithDefaults(interval, timeout time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithTransientRetries sets how many times a failed fetch is retried within
// one tick and how long to wait between attempts.
func WithTransientRetries(retries int, delay time.Duration) PollerOption {
	return func(p *Poller) {
		if retries >= 0 {
			p.retries = retries
		}
		if delay >= 0 {
			p.retryDelay = delay
		}
	}
}

func WithObserver(o Observer) PollerOption {
	return func(p *Poller) {
		if o != nil {
			p.observer = o
		}
	}
}

func NewPoller(api RevisionSource, logger zerolog.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		api:        api,
		logger:     logger.With().Str("component", "revision-poller").Logger(),
		interval:   DefaultPollInterval,
		timeout:    DefaultPollTimeout,
		retries:    DefaultTransientRetries,
		retryDelay: DefaultRetryDelay,
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.retry = retrier{retries: p.retries, delay: p.retryDelay, observer: p.observer, logger: p.logger}
	return p
}

// pollState is the bookkeeping of one Poll call.
type pollState struct {
	deploymentID string
	revisionID   string
	start        time.Time
	deadline     time.Time
	last         model.RevisionStatus
	lastRank     int
}

func (s *pollState) until() time.Time { return s.deadline }

func (s *pollState) timeout() error {
	return &TimeoutError{
		DeploymentID: s.deploymentID,
		RevisionID:   s.revisionID,
		LastStatus:   s.last,
		Elapsed:      time.Since(s.start),
	}
}

func (s *pollState) cancelled(err error) error {
	return &CancelledError{
		DeploymentID: s.deploymentID,
		RevisionID:   s.revisionID,
		LastStatus:   s.last,
		Err:          err,
	}
}

// Poll blocks until the revision is DEPLOYED and returns a fresh snapshot of
// the deployment. Every status check is a new fetch. Cancelling ctx stops the
// wait without touching the remote resource.
func (p *Poller) Poll(ctx context.Context, deploymentID, revisionID string, opts PollOptions) (_ *model.Deployment, err error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = p.interval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}

	st := &pollState{
		deploymentID: deploymentID,
		revisionID:   revisionID,
		start:        time.Now(),
		lastRank:     -1,
	}
	st.deadline = st.start.Add(timeout)

	log := p.logger.With().Str("deployment_id", deploymentID).Str("revision_id", revisionID).Logger()
	r := p.retry
	r.logger = log
	log.Info().Dur("interval", interval).Dur("timeout", timeout).Msg("waiting for revision")

	defer func() {
		p.observer.ObserveWait(outcomeOf(err), time.Since(st.start))
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil, st.cancelled(err)
		}

		rev, err := retry(ctx, r, st, "get revision", func(ctx context.Context) (*model.Revision, error) {
			return p.api.GetRevision(ctx, deploymentID, revisionID)
		})
		if err != nil {
			if controlplane.IsNotFound(err) {
				return nil, &NotFoundError{Kind: "revision", Ref: revisionID}
			}
			return nil, err
		}

		status := rev.Status
		p.observer.ObserveStatus(status)
		log.Debug().Str("status", string(status)).Msg("polled revision")

		switch {
		case status == model.RevisionDeployed:
			log.Info().Str("from", string(st.last)).Dur("elapsed", time.Since(st.start)).Msg("revision deployed")
			st.last = status
			d, err := retry(ctx, r, st, "get deployment", func(ctx context.Context) (*model.Deployment, error) {
				return p.api.GetDeployment(ctx, deploymentID)
			})
			if err != nil {
				return nil, err
			}
			return d, nil
		case status.IsFailure():
			log.Warn().Str("status", string(status)).Str("message", rev.StatusMessage).Msg("revision failed")
			return nil, &RemoteFailureError{
				DeploymentID: deploymentID,
				RevisionID:   revisionID,
				Status:       status,
				Message:      rev.StatusMessage,
			}
		}

		rank, ok := status.Rank()
		if !ok {
			return nil, &UnexpectedStateError{
				DeploymentID: deploymentID,
				RevisionID:   revisionID,
				Previous:     st.last,
				Observed:     status,
				Reason:       fmt.Sprintf("revision %s reported unrecognised status %q", revisionID, status),
			}
		}
		if rank < st.lastRank {
			return nil, &UnexpectedStateError{
				DeploymentID: deploymentID,
				RevisionID:   revisionID,
				Previous:     st.last,
				Observed:     status,
			}
		}
		if status != st.last {
			log.Info().Str("from", string(st.last)).Str("to", string(status)).Msg("revision status changed")
		}
		st.last, st.lastRank = status, rank

		if !time.Now().Before(st.deadline) {
			return nil, st.timeout()
		}
		if err := ctx.Err(); err != nil {
			return nil, st.cancelled(err)
		}
		if err := sleep(ctx, min(interval, time.Until(st.deadline))); err != nil {
			return nil, st.cancelled(err)
		}
	}
}

func outcomeOf(err error) string {
	var (
		remote    *RemoteFailureError
		timeout   *TimeoutError
		cancelled *CancelledError
	)
	switch {
	case err == nil:
		return OutcomeDeployed
	case errors.As(err, &remote):
		return OutcomeFailed
	case errors.As(err, &timeout):
		return OutcomeTimeout
	case errors.As(err, &cancelled):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}
