// Package client implements the post-checkout reconciliation poller: the
// unauthenticated loop a client runs after the payment redirect, waiting for
// the asynchronous webhook pipeline to provision its account.
package client

import (
	"context"
	"errors"
	"time"
)

// Status is the externally visible state of a reconciliation wait. The
// poller never surfaces raw internal errors for not-yet-provisioned states.
type Status string

const (
	StatusReconciling     Status = "reconciling"
	StatusSucceeded       Status = "succeeded"
	StatusStillProcessing Status = "still_processing"
)

// Default pacing: a grace delay before the first attempt gives the webhook
// pipeline a head start, then fixed-interval retries up to the cap.
const (
	DefaultInitialDelay = 3 * time.Second
	DefaultInterval     = 2 * time.Second
	DefaultMaxAttempts  = 10
)

// LoginResult is what one authentication probe yields.
type LoginResult struct {
	Token              string
	SubscriptionActive bool
}

// ErrNotReady signals that authentication is not yet possible: the identity
// does not exist yet or the credential has not landed. It is the retryable
// outcome; any other error aborts the wait.
var ErrNotReady = errors.New("account not ready")

// Authenticator performs one login attempt with the pre-payment credentials.
type Authenticator interface {
	Login(ctx context.Context, email, secret string) (*LoginResult, error)
}

// Options tunes the polling loop. Zero values take the defaults.
type Options struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

func (o Options) withDefaults() Options {
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	return o
}

// Outcome is the terminal result of a reconciliation wait.
type Outcome struct {
	Status   Status
	Token    string
	Attempts int
}

// Poller owns the reconciliation state for one checkout: the chosen email
// and secret, the attempt counter, and the pacing policy. It is not safe for
// concurrent use; each checkout gets its own Poller.
type Poller struct {
	auth    Authenticator
	email   string
	secret  string
	opts    Options
	attempt int

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a Poller for the given checkout credentials.
func New(auth Authenticator, email, secret string, opts Options) (*Poller, error) {
	if auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if email == "" || secret == "" {
		return nil, errors.New("email and secret are required")
	}
	return &Poller{
		auth:   auth,
		email:  email,
		secret: secret,
		opts:   opts.withDefaults(),
		sleep:  sleepCtx,
	}, nil
}

// Attempt reports how many login probes have run.
func (p *Poller) Attempt() int {
	return p.attempt
}

// Wait blocks until reconciliation completes, attempts are exhausted, or the
// context is canceled. Exhaustion is not an error: the webhook may simply be
// slow, so the caller gets StatusStillProcessing and can tell the human to
// try again shortly.
func (p *Poller) Wait(ctx context.Context) (Outcome, error) {
	if err := p.sleep(ctx, p.opts.InitialDelay); err != nil {
		return Outcome{Status: StatusReconciling, Attempts: p.attempt}, err
	}

	for p.attempt < p.opts.MaxAttempts {
		p.attempt++

		result, err := p.auth.Login(ctx, p.email, p.secret)
		switch {
		case err == nil && result != nil && result.SubscriptionActive:
			return Outcome{Status: StatusSucceeded, Token: result.Token, Attempts: p.attempt}, nil
		case err == nil, errors.Is(err, ErrNotReady):
			// Identity missing or subscription not active yet; keep waiting.
		default:
			return Outcome{Status: StatusReconciling, Attempts: p.attempt}, err
		}

		if p.attempt >= p.opts.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, p.opts.Interval); err != nil {
			return Outcome{Status: StatusReconciling, Attempts: p.attempt}, err
		}
	}

	return Outcome{Status: StatusStillProcessing, Attempts: p.attempt}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
