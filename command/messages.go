package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-launcher/core"
)

const (
	TypeAcquireSession          = "launcher.command.session.acquire"
	TypeCompleteAuthorization   = "launcher.command.session.complete_authorization"
	TypeRefreshSession          = "launcher.command.session.refresh"
	TypeRemoveAccount           = "launcher.command.account.remove"
	TypeEnsureFetched           = "launcher.command.artifact.ensure"
	TypeFetchAll                = "launcher.command.artifact.fetch_all"
	TypeStageNatives            = "launcher.command.natives.stage"
	TypePrepareLaunch           = "launcher.command.launch.prepare"
	TypeEnqueueSessionRefresh   = "launcher.command.session.enqueue_refresh"
	TypeEnqueueExpiringSessions = "launcher.command.session.enqueue_expiring"
)

type AcquireSessionMessage struct {
	Request core.AcquireRequest
}

func (AcquireSessionMessage) Type() string { return TypeAcquireSession }

func (m AcquireSessionMessage) Validate() error {
	if !m.Request.Interactive {
		return commandValidationError("interactive", "interactive sign-in is required")
	}
	return nil
}

type CompleteAuthorizationMessage struct {
	Callback core.AuthorizationCallback
}

func (CompleteAuthorizationMessage) Type() string { return TypeCompleteAuthorization }

func (m CompleteAuthorizationMessage) Validate() error {
	if strings.TrimSpace(m.Callback.State) == "" {
		return commandValidationError("state", "authorization state is required")
	}
	if strings.TrimSpace(m.Callback.Code) == "" && strings.TrimSpace(m.Callback.Error) == "" {
		return commandValidationError("code", "authorization code or error is required")
	}
	return nil
}

type RefreshSessionMessage struct {
	AccountID string
}

func (RefreshSessionMessage) Type() string { return TypeRefreshSession }

func (m RefreshSessionMessage) Validate() error {
	return requireAccountID(m.AccountID)
}

type RemoveAccountMessage struct {
	AccountID string
}

func (RemoveAccountMessage) Type() string { return TypeRemoveAccount }

func (m RemoveAccountMessage) Validate() error {
	return requireAccountID(m.AccountID)
}

type EnsureFetchedMessage struct {
	Artifact core.Artifact
}

func (EnsureFetchedMessage) Type() string { return TypeEnsureFetched }

func (m EnsureFetchedMessage) Validate() error {
	return validateArtifact("artifact", m.Artifact)
}

type FetchAllMessage struct {
	Artifacts []core.Artifact
}

func (FetchAllMessage) Type() string { return TypeFetchAll }

func (m FetchAllMessage) Validate() error {
	for _, artifact := range m.Artifacts {
		if err := validateArtifact("artifacts", artifact); err != nil {
			return err
		}
	}
	return nil
}

type StageNativesMessage struct {
	Natives []core.Artifact
}

func (StageNativesMessage) Type() string { return TypeStageNatives }

func (m StageNativesMessage) Validate() error {
	for _, native := range m.Natives {
		if strings.TrimSpace(native.Path) == "" {
			return commandValidationError("natives", "native path is required")
		}
	}
	return nil
}

type PrepareLaunchMessage struct {
	Request core.PrepareLaunchRequest
}

func (PrepareLaunchMessage) Type() string { return TypePrepareLaunch }

func (m PrepareLaunchMessage) Validate() error {
	if strings.TrimSpace(m.Request.InstanceName) == "" {
		return commandValidationError("instance_name", "instance name is required")
	}
	return nil
}

type EnqueueSessionRefreshMessage struct {
	AccountID string
}

func (EnqueueSessionRefreshMessage) Type() string { return TypeEnqueueSessionRefresh }

func (m EnqueueSessionRefreshMessage) Validate() error {
	return requireAccountID(m.AccountID)
}

type EnqueueExpiringSessionsMessage struct {
	Window time.Duration
}

func (EnqueueExpiringSessionsMessage) Type() string { return TypeEnqueueExpiringSessions }

func (m EnqueueExpiringSessionsMessage) Validate() error {
	if m.Window < 0 {
		return commandValidationError("window", "window must be >= 0")
	}
	return nil
}

func requireAccountID(accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return commandValidationError("account_id", "account id is required")
	}
	return nil
}

func validateArtifact(field string, artifact core.Artifact) error {
	if strings.TrimSpace(artifact.Path) == "" {
		return commandValidationError(field, "artifact path is required")
	}
	if strings.TrimSpace(artifact.URL) == "" {
		return commandValidationError(field, "artifact url is required")
	}
	return nil
}
