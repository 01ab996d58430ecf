package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[AcquireSessionMessage]          = (*AcquireSessionCommand)(nil)
	_ gocmd.Commander[CompleteAuthorizationMessage]   = (*CompleteAuthorizationCommand)(nil)
	_ gocmd.Commander[RefreshSessionMessage]          = (*RefreshSessionCommand)(nil)
	_ gocmd.Commander[RemoveAccountMessage]           = (*RemoveAccountCommand)(nil)
	_ gocmd.Commander[EnsureFetchedMessage]           = (*EnsureFetchedCommand)(nil)
	_ gocmd.Commander[FetchAllMessage]                = (*FetchAllCommand)(nil)
	_ gocmd.Commander[StageNativesMessage]            = (*StageNativesCommand)(nil)
	_ gocmd.Commander[PrepareLaunchMessage]           = (*PrepareLaunchCommand)(nil)
	_ gocmd.Commander[EnqueueSessionRefreshMessage]   = (*EnqueueSessionRefreshCommand)(nil)
	_ gocmd.Commander[EnqueueExpiringSessionsMessage] = (*EnqueueExpiringSessionsCommand)(nil)
)
