package ratelimit

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
)

// Adapter guards a transport with an AdaptivePolicy. Calls to a throttled
// bucket fail fast with LAUNCHER_RATE_LIMITED instead of reaching the network.
type Adapter struct {
	next   core.TransportAdapter
	policy *AdaptivePolicy
	logger core.Logger
}

func NewAdapter(next core.TransportAdapter, policy *AdaptivePolicy, logger core.Logger) *Adapter {
	if policy == nil {
		policy = NewAdaptivePolicy(NewMemoryStateStore())
	}
	return &Adapter{next: next, policy: policy, logger: logger}
}

func (a *Adapter) Kind() string {
	if a == nil || a.next == nil {
		return ""
	}
	return a.next.Kind()
}

func (a *Adapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.next == nil {
		return core.TransportResponse{}, core.NewError("ratelimit: adapter requires a transport", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	key := KeyForURL(req.URL)
	if err := a.policy.BeforeCall(ctx, key); err != nil {
		var throttled ThrottledError
		if errors.As(err, &throttled) {
			a.logThrottled(ctx, throttled)
			return core.TransportResponse{}, throttled.ToError()
		}
		return core.TransportResponse{}, err
	}

	res, err := a.next.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if afterErr := a.policy.AfterCall(ctx, key, res); afterErr != nil && a.logger != nil {
		a.logger.WithContext(ctx).Warn("rate limit state update failed", "host", key.Host, "bucket", key.Bucket, "error", afterErr)
	}
	return res, nil
}

func (a *Adapter) logThrottled(ctx context.Context, err ThrottledError) {
	if a.logger == nil {
		return
	}
	a.logger.WithContext(ctx).Warn("request throttled",
		"host", err.Host,
		"bucket", err.Bucket,
		core.MetadataRetryAfter, err.RetryAfter.Milliseconds(),
	)
}

var _ core.TransportAdapter = (*Adapter)(nil)
