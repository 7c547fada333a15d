// Package longjob implements the submit, poll and fetch protocol shared by every
// asynchronous external service the pipeline talks to.
package longjob

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
)

type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// ParseState maps a service status string onto the protocol states.
// Only "succeeded" and "failed" (any case) are terminal; everything else is still running.
func ParseState(raw string) State {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "succeeded":
		return StateSucceeded
	case "failed":
		return StateFailed
	default:
		return StateRunning
	}
}

// Handle is the service-issued status reference returned by Submit.
type Handle string

// Status is one poll observation.
type Status struct {
	State State
	// Message is the service's failure detail, when it sent one.
	Message string
	// Body is the raw status payload, passed to Fetch so it can follow result links.
	Body json.RawMessage
}

// Service adapts one asynchronous API to the protocol.
// Poll must not change server-side state.
type Service[Req any, Res any] interface {
	Submit(ctx context.Context, req Req) (Handle, error)
	Poll(ctx context.Context, handle Handle) (Status, error)
	Fetch(ctx context.Context, handle Handle, status Status) (Res, error)
}

// Defaults are the generic fallback for services that set no cadence of
// their own. They match the slowest flow, batch transcription.
const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 30 * time.Minute
)

type Option func(*settings)

type settings struct {
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func WithInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock replaces wall-clock time and sleeping, for deterministic tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// Poller drives a Service from submission through Running to Succeeded or Failed,
// giving up with ErrExternalJobTimedOut after the configured timeout.
type Poller[Req any, Res any] struct {
	name    string
	service Service[Req, Res]
	cfg     settings
}

func New[Req any, Res any](name string, service Service[Req, Res], opts ...Option) *Poller[Req, Res] {
	cfg := settings{
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Poller[Req, Res]{name: name, service: service, cfg: cfg}
}

// Run submits req and waits for its result.
func (p *Poller[Req, Res]) Run(ctx context.Context, req Req) (Res, error) {
	var zero Res
	handle, err := p.service.Submit(ctx, req)
	if err != nil {
		return zero, utils.WrapIfNotNil(err, p.name)
	}
	logging.NewLogger(ctx).WithField("service", p.name).Debugf("submitted handle=%s", handle)
	return p.AwaitResult(ctx, handle)
}

// AwaitResult polls handle at a fixed interval until it reaches a terminal state
// or the timeout elapses. The result resource is fetched only on success.
func (p *Poller[Req, Res]) AwaitResult(ctx context.Context, handle Handle) (Res, error) {
	var zero Res
	log := logging.NewLogger(ctx).WithField("service", p.name)
	deadline := p.cfg.now().Add(p.cfg.timeout)

	for polls := 1; p.cfg.now().Before(deadline); polls++ {
		status, err := p.service.Poll(ctx, handle)
		if err != nil {
			return zero, utils.WrapIfNotNil(err, p.name)
		}

		switch status.State {
		case StateSucceeded:
			log.Infof("succeeded after %d polls", polls)
			result, err := p.service.Fetch(ctx, handle, status)
			if err != nil {
				return zero, utils.WrapIfNotNil(err, p.name)
			}
			return result, nil
		case StateFailed:
			log.Warnf("failed after %d polls: %s", polls, status.Message)
			return zero, &model.ExternalJobFailedError{Message: status.Message}
		}

		log.Debugf("poll %d state=%s", polls, status.State)
		if err := p.cfg.sleep(ctx, p.cfg.interval); err != nil {
			return zero, utils.WrapIfNotNil(err, p.name)
		}
	}

	log.Warnf("no terminal state within %s", p.cfg.timeout)
	return zero, model.ErrExternalJobTimedOut
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
