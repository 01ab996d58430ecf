package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-launcher/core"
)

type SessionService interface {
	AcquireServiceSession(ctx context.Context, req core.AcquireRequest) (core.Account, error)
	RefreshSession(ctx context.Context, accountID string) (core.Account, error)
	RemoveAccount(ctx context.Context, accountID string) error
}

// AuthorizationService completes the browser sign-in.
type AuthorizationService interface {
	CompleteAuthorization(ctx context.Context, callback core.AuthorizationCallback) (core.Account, error)
}

type ArtifactService interface {
	EnsureFetched(ctx context.Context, artifact core.Artifact) error
	FetchAll(ctx context.Context, artifacts []core.Artifact) error
	StageNatives(ctx context.Context, natives []core.Artifact) (string, error)
}

type LaunchService interface {
	PrepareLaunch(ctx context.Context, req core.PrepareLaunchRequest) (core.LaunchPlan, error)
}

type RefreshScheduler interface {
	EnqueueSessionRefresh(ctx context.Context, accountID string) error
	EnqueueExpiringRefreshes(ctx context.Context, window time.Duration) (int, error)
}

type AcquireSessionCommand struct {
	service SessionService
}

func NewAcquireSessionCommand(service SessionService) *AcquireSessionCommand {
	return &AcquireSessionCommand{service: service}
}

func (c *AcquireSessionCommand) Execute(ctx context.Context, msg AcquireSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	out, err := c.service.AcquireServiceSession(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteAuthorizationCommand struct {
	service AuthorizationService
}

func NewCompleteAuthorizationCommand(service AuthorizationService) *CompleteAuthorizationCommand {
	return &CompleteAuthorizationCommand{service: service}
}

func (c *CompleteAuthorizationCommand) Execute(ctx context.Context, msg CompleteAuthorizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authorization service is required")
	}
	out, err := c.service.CompleteAuthorization(ctx, msg.Callback)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshSessionCommand struct {
	service SessionService
}

func NewRefreshSessionCommand(service SessionService) *RefreshSessionCommand {
	return &RefreshSessionCommand{service: service}
}

func (c *RefreshSessionCommand) Execute(ctx context.Context, msg RefreshSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	out, err := c.service.RefreshSession(ctx, msg.AccountID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RemoveAccountCommand struct {
	service SessionService
}

func NewRemoveAccountCommand(service SessionService) *RemoveAccountCommand {
	return &RemoveAccountCommand{service: service}
}

func (c *RemoveAccountCommand) Execute(ctx context.Context, msg RemoveAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	return c.service.RemoveAccount(ctx, msg.AccountID)
}

type EnsureFetchedCommand struct {
	service ArtifactService
}

func NewEnsureFetchedCommand(service ArtifactService) *EnsureFetchedCommand {
	return &EnsureFetchedCommand{service: service}
}

func (c *EnsureFetchedCommand) Execute(ctx context.Context, msg EnsureFetchedMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: artifact service is required")
	}
	return c.service.EnsureFetched(ctx, msg.Artifact)
}

type FetchAllCommand struct {
	service ArtifactService
}

func NewFetchAllCommand(service ArtifactService) *FetchAllCommand {
	return &FetchAllCommand{service: service}
}

func (c *FetchAllCommand) Execute(ctx context.Context, msg FetchAllMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: artifact service is required")
	}
	return c.service.FetchAll(ctx, msg.Artifacts)
}

type StageNativesCommand struct {
	service ArtifactService
}

func NewStageNativesCommand(service ArtifactService) *StageNativesCommand {
	return &StageNativesCommand{service: service}
}

func (c *StageNativesCommand) Execute(ctx context.Context, msg StageNativesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: artifact service is required")
	}
	dir, err := c.service.StageNatives(ctx, msg.Natives)
	if err != nil {
		return err
	}
	storeResult(ctx, dir)
	return nil
}

type PrepareLaunchCommand struct {
	service LaunchService
}

func NewPrepareLaunchCommand(service LaunchService) *PrepareLaunchCommand {
	return &PrepareLaunchCommand{service: service}
}

func (c *PrepareLaunchCommand) Execute(ctx context.Context, msg PrepareLaunchMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: launch service is required")
	}
	plan, err := c.service.PrepareLaunch(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, plan)
	return nil
}

type EnqueueSessionRefreshCommand struct {
	scheduler RefreshScheduler
}

func NewEnqueueSessionRefreshCommand(scheduler RefreshScheduler) *EnqueueSessionRefreshCommand {
	return &EnqueueSessionRefreshCommand{scheduler: scheduler}
}

func (c *EnqueueSessionRefreshCommand) Execute(ctx context.Context, msg EnqueueSessionRefreshMessage) error {
	if c == nil || c.scheduler == nil {
		return commandDependencyError("command: refresh scheduler is required")
	}
	return c.scheduler.EnqueueSessionRefresh(ctx, msg.AccountID)
}

type EnqueueExpiringSessionsCommand struct {
	scheduler RefreshScheduler
}

func NewEnqueueExpiringSessionsCommand(scheduler RefreshScheduler) *EnqueueExpiringSessionsCommand {
	return &EnqueueExpiringSessionsCommand{scheduler: scheduler}
}

func (c *EnqueueExpiringSessionsCommand) Execute(ctx context.Context, msg EnqueueExpiringSessionsMessage) error {
	if c == nil || c.scheduler == nil {
		return commandDependencyError("command: refresh scheduler is required")
	}
	count, err := c.scheduler.EnqueueExpiringRefreshes(ctx, msg.Window)
	if err != nil {
		return err
	}
	storeResult(ctx, count)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
