package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	JobIDSessionRefresh   = "launcher.session.refresh"
	JobParameterAccountID = "account_id"

	RefreshJobScriptPath  = "launcher.session.refresh"
	RefreshJobDedupPolicy = "drop"
	RefreshJobRetryDelay  = 30 * time.Second

	refreshJobIdempotencyNS = "refresh:"
)

// NewRefreshJobMessage builds the queue message that refreshes one account.
// Jobs for the same account share an idempotency key so duplicates are dropped.
func NewRefreshJobMessage(accountID string) *JobExecutionMessage {
	accountID = strings.TrimSpace(accountID)
	return &JobExecutionMessage{
		JobID:          JobIDSessionRefresh,
		ScriptPath:     RefreshJobScriptPath,
		Parameters:     map[string]any{JobParameterAccountID: accountID},
		IdempotencyKey: refreshJobIdempotencyNS + accountID,
		DedupPolicy:    RefreshJobDedupPolicy,
	}
}

// RefreshJobAccountID returns the account a refresh message targets. ok is
// false for other jobs and for messages without an account id.
func RefreshJobAccountID(msg *JobExecutionMessage) (accountID string, ok bool) {
	if msg == nil || strings.TrimSpace(msg.JobID) != JobIDSessionRefresh {
		return "", false
	}
	value, found := msg.Parameters[JobParameterAccountID]
	if !found || value == nil {
		return "", false
	}
	accountID = strings.TrimSpace(fmt.Sprint(value))
	return accountID, accountID != ""
}

// EnqueueSessionRefresh schedules a background refresh for an account.
func (s *Service) EnqueueSessionRefresh(ctx context.Context, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return s.mapError(fmt.Errorf("core: account id is required"))
	}
	if s.jobEnqueuer == nil {
		return s.dependencyError("job enqueuer")
	}
	if err := s.jobEnqueuer.Enqueue(ctx, NewRefreshJobMessage(accountID)); err != nil {
		return s.mapError(err)
	}
	s.logInfo(ctx, "session refresh enqueued", map[string]any{"account_id": accountID})
	return nil
}

// EnqueueExpiringRefreshes enqueues a refresh for every account whose session
// expires within window. It returns the number of jobs enqueued.
func (s *Service) EnqueueExpiringRefreshes(ctx context.Context, window time.Duration) (int, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}
	deadline := s.now().Add(window)
	enqueued := 0
	for _, account := range accounts {
		if !account.Identity.Refreshable() {
			continue
		}
		if !account.Session.ExpiresAt.IsZero() && account.Session.ExpiresAt.After(deadline) {
			continue
		}
		if err := s.EnqueueSessionRefresh(ctx, account.ID); err != nil {
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}

// ProcessRefreshDelivery runs a queued refresh and settles the delivery.
// Transient failures are requeued. An account that had to be removed is acked.
func (s *Service) ProcessRefreshDelivery(ctx context.Context, delivery JobDelivery) error {
	if delivery == nil {
		return s.mapError(fmt.Errorf("core: job delivery is required"))
	}
	msg := delivery.Message()
	if msg == nil || msg.JobID != JobIDSessionRefresh {
		reason := "unexpected job"
		if msg != nil {
			reason = "unexpected job " + msg.JobID
		}
		return delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: reason})
	}
	accountID, ok := RefreshJobAccountID(msg)
	if !ok {
		return delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: "account id is missing"})
	}

	_, err := s.RefreshSession(ctx, accountID)
	switch {
	case err == nil:
		return delivery.Ack(ctx)
	case isUnrecoverableRefreshError(err), IsTextCode(err, ErrorAccountNotFound):
		return delivery.Ack(ctx)
	default:
		if nackErr := delivery.Nack(ctx, JobNackOptions{
			Delay:   RefreshJobRetryDelay,
			Requeue: true,
			Reason:  err.Error(),
		}); nackErr != nil {
			return nackErr
		}
		return err
	}
}

// RefreshJobHook logs worker lifecycle events for refresh jobs.
type RefreshJobHook struct {
	Logger Logger
}

func (h RefreshJobHook) OnStart(ctx context.Context, event JobWorkerEvent) {
	h.log(ctx, "info", "refresh job started", event)
}

func (h RefreshJobHook) OnSuccess(ctx context.Context, event JobWorkerEvent) {
	h.log(ctx, "info", "refresh job succeeded", event)
}

func (h RefreshJobHook) OnFailure(ctx context.Context, event JobWorkerEvent) {
	h.log(ctx, "error", "refresh job failed", event)
}

func (h RefreshJobHook) OnRetry(ctx context.Context, event JobWorkerEvent) {
	h.log(ctx, "warn", "refresh job retrying", event)
}

func (h RefreshJobHook) log(ctx context.Context, level string, message string, event JobWorkerEvent) {
	if h.Logger == nil {
		return
	}
	args := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if event.Message != nil {
		args = append(args, "job_id", event.Message.JobID, "account_id", event.Message.Parameters[JobParameterAccountID])
	}
	if event.Delay > 0 {
		args = append(args, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	logger := h.Logger.WithContext(ctx)
	switch level {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

var _ JobWorkerHook = RefreshJobHook{}
