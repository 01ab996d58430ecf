package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-launcher/adapters/gologger"
	"github.com/goliatone/go-launcher/core"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const defaultIdleDelay = time.Second

// DeliveryProcessor settles a single delivery. core.Service implements it
// through ProcessRefreshDelivery.
type DeliveryProcessor interface {
	ProcessRefreshDelivery(ctx context.Context, delivery core.JobDelivery) error
}

// RefreshWorker pulls refresh deliveries from a go-job queue and hands them to
// the launcher service. Attempts are counted per idempotency key so the retry
// policy can dead letter a refresh that keeps failing.
type RefreshWorker struct {
	dequeuer  core.JobDequeuer
	processor DeliveryProcessor
	hook      core.JobWorkerHook
	sleeper   core.Sleeper
	idleDelay time.Duration
	now       func() time.Time

	logger         glog.Logger
	jobLoggers     job.LoggerProvider
	loggerProvider glog.LoggerProvider
	fallbackLogger glog.Logger

	mu       sync.Mutex
	attempts map[string]int
}

type RefreshWorkerOption func(*RefreshWorker)

func WithWorkerHook(hook core.JobWorkerHook) RefreshWorkerOption {
	return func(w *RefreshWorker) { w.hook = hook }
}

func WithIdleDelay(delay time.Duration) RefreshWorkerOption {
	return func(w *RefreshWorker) { w.idleDelay = delay }
}

func WithWorkerSleeper(sleeper core.Sleeper) RefreshWorkerOption {
	return func(w *RefreshWorker) { w.sleeper = sleeper }
}

func WithWorkerClock(now func() time.Time) RefreshWorkerOption {
	return func(w *RefreshWorker) { w.now = now }
}

// WithWorkerLogger resolves the worker logger as launcher.refresh_worker from
// provider, falling back to logger.
func WithWorkerLogger(provider glog.LoggerProvider, logger glog.Logger) RefreshWorkerOption {
	return func(w *RefreshWorker) {
		w.loggerProvider = provider
		w.fallbackLogger = logger
	}
}

func NewRefreshWorker(dequeuer core.JobDequeuer, processor DeliveryProcessor, opts ...RefreshWorkerOption) *RefreshWorker {
	w := &RefreshWorker{
		dequeuer:  dequeuer,
		processor: processor,
		idleDelay: defaultIdleDelay,
		sleeper:   core.TimerSleeper{},
		now:       func() time.Time { return time.Now().UTC() },
		attempts:  map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	_, w.logger, w.jobLoggers, _ = gologger.ResolveForJob(gologger.ComponentRefreshWorker, w.loggerProvider, w.fallbackLogger)
	return w
}

// JobLoggerProvider exposes the worker logger to go-job components such as a
// queue worker hosting the same deliveries.
func (w *RefreshWorker) JobLoggerProvider() job.LoggerProvider {
	if w == nil {
		return nil
	}
	return w.jobLoggers
}

// Run processes deliveries until ctx is done. Processing errors are reported
// to the hook and do not stop the loop.
func (w *RefreshWorker) Run(ctx context.Context) error {
	for {
		processed, err := w.RunOnce(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil && !processed {
			return err
		}
		if processed {
			continue
		}
		if err := w.sleeper.Sleep(ctx, w.idleDelay); err != nil {
			return err
		}
	}
}

// RunOnce dequeues and processes at most one delivery. processed reports
// whether a delivery was taken from the queue.
func (w *RefreshWorker) RunOnce(ctx context.Context) (processed bool, err error) {
	if w == nil || w.dequeuer == nil || w.processor == nil {
		return false, fmt.Errorf("gojob: refresh worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.WithContext(ctx).Error("refresh dequeue failed", "error", err)
		}
		return false, err
	}
	if delivery == nil {
		return false, nil
	}

	msg := delivery.Message()
	key := attemptKey(msg)
	attempt := w.nextAttempt(key)
	tracked := &attemptDelivery{JobDelivery: delivery, attempt: attempt}

	event := core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: w.now()}
	w.onStart(ctx, event)

	err = w.processor.ProcessRefreshDelivery(ctx, tracked)
	event.Duration = w.now().Sub(event.StartedAt)
	event.Err = err

	accountID, _ := core.RefreshJobAccountID(msg)
	logger := w.logger.WithContext(ctx)
	switch {
	case tracked.requeued:
		event.Delay = tracked.delay
		logger.Warn("session refresh requeued", "account_id", accountID, "attempt", attempt, "delay", tracked.delay.String(), "error", errString(err))
		w.onRetry(ctx, event)
	case err != nil:
		w.forget(key)
		logger.Error("session refresh failed", "account_id", accountID, "attempt", attempt, "dead_letter", tracked.deadLettered, "error", err.Error())
		w.onFailure(ctx, event)
	default:
		w.forget(key)
		logger.Debug("session refresh processed", "account_id", accountID, "attempt", attempt, "duration_ms", event.Duration.Milliseconds())
		w.onSuccess(ctx, event)
	}
	return true, err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (w *RefreshWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *RefreshWorker) forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func (w *RefreshWorker) onStart(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *RefreshWorker) onSuccess(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *RefreshWorker) onFailure(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *RefreshWorker) onRetry(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

// attemptDelivery forwards the attempt number to deliveries that apply a
// retry policy and records how the delivery was settled.
type attemptDelivery struct {
	core.JobDelivery
	attempt      int
	requeued     bool
	deadLettered bool
	delay        time.Duration
}

func (d *attemptDelivery) Nack(ctx context.Context, opts core.JobNackOptions) error {
	if policyDelivery, ok := d.JobDelivery.(*DeliveryAdapter); ok && policyDelivery != nil {
		normalized := policyDelivery.policy.NormalizeAttempt(opts, d.attempt)
		d.requeued = normalized.Requeue
		d.deadLettered = normalized.DeadLetter
		d.delay = normalized.Delay
		return policyDelivery.NackForAttempt(ctx, opts, d.attempt)
	}
	d.requeued = opts.Requeue && !opts.DeadLetter
	d.deadLettered = opts.DeadLetter
	d.delay = opts.Delay
	return d.JobDelivery.Nack(ctx, opts)
}
