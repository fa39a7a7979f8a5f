package backend

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// RetryConfig controls pacing, retries and tier fallback.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RequestsPerMinute paces calls. Zero disables pacing.
	RequestsPerMinute int
	// Fallback returns the tier to escalate to once retries are exhausted,
	// or "" when there is none.
	Fallback func(models.Tier) models.Tier
}

// Retrying wraps an invoker with pacing, exponential backoff for
// recoverable failures and a single escalation to the fallback tier.
type Retrying struct {
	inner   Invoker
	cfg     RetryConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewRetrying wraps inner.
func NewRetrying(inner Invoker, cfg RetryConfig, log *zap.Logger) *Retrying {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	r := &Retrying{inner: inner, cfg: cfg, log: log}
	if cfg.RequestsPerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return r
}

// Invoke performs the call. Non-recoverable failures return immediately;
// recoverable ones are retried, then retried once more on the fallback tier.
func (r *Retrying) Invoke(ctx context.Context, req Request) (Response, error) {
	resp, err := r.attempt(ctx, req)
	if err == nil || !failure.IsRecoverable(err) || r.cfg.Fallback == nil {
		return resp, err
	}

	fallback := r.cfg.Fallback(req.Tier)
	if fallback == "" || fallback == req.Tier {
		return resp, err
	}
	r.log.Warn("escalating to fallback tier",
		zap.String("task", req.Task),
		zap.Int("chunk", req.Chunk),
		zap.String("from", string(req.Tier)),
		zap.String("to", string(fallback)),
		zap.Error(err))

	req.Tier = fallback
	return r.attempt(ctx, req)
}

func (r *Retrying) attempt(ctx context.Context, req Request) (Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = r.cfg.MaxBackoff

	op := func() (Response, error) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return Response{}, backoff.Permanent(err)
			}
		}
		resp, err := r.inner.Invoke(ctx, req)
		if err == nil {
			return resp, nil
		}
		err = Classify(err)
		if !failure.IsRecoverable(err) {
			return Response{}, backoff.Permanent(err)
		}
		return Response{}, err
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.cfg.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.log.Info("retrying backend call",
				zap.String("task", req.Task),
				zap.Int("chunk", req.Chunk),
				zap.String("tier", string(req.Tier)),
				zap.String("kind", failure.KindOf(err).String()),
				zap.Duration("wait", wait))
		}),
	)
	// The last attempt returns its error as is, permanent or not.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return resp, err
}
