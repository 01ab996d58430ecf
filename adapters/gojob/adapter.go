// Package gojob carries launcher session refresh jobs over go-job queues and
// applies a bounded retry policy to their deliveries.
package gojob

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/adapters/gologger"
	"github.com/goliatone/go-launcher/core"
	glog "github.com/goliatone/go-logger/glog"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const defaultNackReason = "session refresh failed"

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
// Requeues without an explicit delay back off from BaseDelay, doubling per
// attempt up to MaxDelay.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// DefaultRetryPolicy is the policy used for session refresh deliveries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		BaseDelay:       core.RefreshJobRetryDelay,
		MaxDelay:        15 * time.Minute,
		DeadLetterOnMax: true,
	}
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Reason == "" {
		out.Reason = defaultNackReason
	}
	if out.Delay < 0 {
		out.Delay = 0
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	if out.Requeue && out.Delay == 0 {
		out.Delay = p.backoff(attempt)
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if !out.Requeue {
		out.Delay = 0
	}
	return out
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// ToExecutionMessage maps a launcher job message to go-job.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	out := &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
	if accountID, ok := core.RefreshJobAccountID(msg); ok {
		defaults := core.NewRefreshJobMessage(accountID)
		if out.ScriptPath == "" {
			out.ScriptPath = defaults.ScriptPath
		}
		if out.IdempotencyKey == "" {
			out.IdempotencyKey = defaults.IdempotencyKey
		}
		if out.DedupPolicy == "" {
			out.DedupPolicy = job.DeduplicationPolicy(defaults.DedupPolicy)
		}
	}
	return out
}

// FromExecutionMessage maps a go-job message into the launcher contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// ToNackOptions maps launcher nack options to go-job.
func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

// EnqueuerAdapter publishes session refresh jobs. Other job ids and refresh
// jobs without an account are rejected before they reach the queue.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return core.NewError("gojob: execution message is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	if _, ok := core.RefreshJobAccountID(msg); !ok {
		return core.NewError("gojob: not a session refresh job", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
			"job_id": strings.TrimSpace(msg.JobID),
		})
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, nil
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// RefreshHook plugs launcher refresh logging into a go-job worker. Events of
// other jobs sharing the worker are dropped.
type RefreshHook struct {
	hook core.JobWorkerHook
}

func NewRefreshHook(hook core.JobWorkerHook) *RefreshHook {
	return &RefreshHook{hook: hook}
}

// NewRefreshLogHook logs refresh job events through the launcher.refresh_queue
// logger.
func NewRefreshLogHook(provider glog.LoggerProvider, logger glog.Logger) *RefreshHook {
	_, resolved := gologger.Resolve(gologger.ComponentRefreshQueue, provider, logger)
	return NewRefreshHook(core.RefreshJobHook{Logger: resolved})
}

func (h *RefreshHook) OnStart(ctx context.Context, event worker.Event) {
	if launcherEvent, ok := h.refreshEvent(event); ok {
		h.hook.OnStart(ctx, launcherEvent)
	}
}

func (h *RefreshHook) OnSuccess(ctx context.Context, event worker.Event) {
	if launcherEvent, ok := h.refreshEvent(event); ok {
		h.hook.OnSuccess(ctx, launcherEvent)
	}
}

func (h *RefreshHook) OnFailure(ctx context.Context, event worker.Event) {
	if launcherEvent, ok := h.refreshEvent(event); ok {
		h.hook.OnFailure(ctx, launcherEvent)
	}
}

func (h *RefreshHook) OnRetry(ctx context.Context, event worker.Event) {
	if launcherEvent, ok := h.refreshEvent(event); ok {
		h.hook.OnRetry(ctx, launcherEvent)
	}
}

func (h *RefreshHook) refreshEvent(event worker.Event) (core.JobWorkerEvent, bool) {
	if h == nil || h.hook == nil {
		return core.JobWorkerEvent{}, false
	}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	launcherMessage := FromExecutionMessage(message)
	if launcherMessage == nil || launcherMessage.JobID != core.JobIDSessionRefresh {
		return core.JobWorkerEvent{}, false
	}
	return core.JobWorkerEvent{
		Message:   launcherMessage,
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}, true
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	maps.Copy(out, in)
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ worker.Hook      = (*RefreshHook)(nil)
)
