package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/koustreak/askdb/internal/errs"
)

// RetryConfig is the per-call policy applied by WithRetry.
type RetryConfig struct {
	Timeout time.Duration // per attempt; 0 means DefaultTimeout
	Retries int           // extra attempts after the first

	// InitialInterval is the first backoff delay. Tests shrink it.
	InitialInterval time.Duration
}

type retryClient struct {
	next Client
	cfg  RetryConfig
}

// WithRetry bounds every attempt by cfg.Timeout and retries failed calls
// with exponential backoff. Cancellation of the parent context is never
// retried. The final error is always ErrKindModelFailed.
func WithRetry(next Client, cfg RetryConfig) Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	return &retryClient{next: next, cfg: cfg}
}

func (r *retryClient) Complete(ctx context.Context, req Request) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.InitialInterval

	attempt := func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()

		out, err := r.next.Complete(callCtx, req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		if !retryable(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	out, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(r.cfg.Retries+1)),
	)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return "", errs.Wrap(errs.ErrKindTimeout, "model call cancelled", ctx.Err())
	}
	return "", errs.Wrap(errs.ErrKindModelFailed, "model call failed", err)
}
