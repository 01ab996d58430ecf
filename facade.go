package launcher

import (
	"fmt"

	launchercommand "github.com/goliatone/go-launcher/command"
	launcherquery "github.com/goliatone/go-launcher/query"
)

// CommandQueryService is the service surface the facade handlers delegate to.
// *Service satisfies it.
type CommandQueryService interface {
	launchercommand.SessionService
	launchercommand.AuthorizationService
	launchercommand.ArtifactService
	launchercommand.LaunchService
	launchercommand.RefreshScheduler
	launcherquery.AccountReader
	launcherquery.ManifestReader
	launcherquery.VersionLister
	launcherquery.NewsReader
}

type Commands struct {
	AcquireSession          *launchercommand.AcquireSessionCommand
	CompleteAuthorization   *launchercommand.CompleteAuthorizationCommand
	RefreshSession          *launchercommand.RefreshSessionCommand
	RemoveAccount           *launchercommand.RemoveAccountCommand
	EnsureFetched           *launchercommand.EnsureFetchedCommand
	FetchAll                *launchercommand.FetchAllCommand
	StageNatives            *launchercommand.StageNativesCommand
	PrepareLaunch           *launchercommand.PrepareLaunchCommand
	EnqueueSessionRefresh   *launchercommand.EnqueueSessionRefreshCommand
	EnqueueExpiringSessions *launchercommand.EnqueueExpiringSessionsCommand
}

type Queries struct {
	ListAccounts    *launcherquery.ListAccountsQuery
	Session         *launcherquery.SessionQuery
	ResolveManifest *launcherquery.ResolveManifestQuery
	ListVersions    *launcherquery.ListVersionsQuery
	News            *launcherquery.NewsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("launcher: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		AcquireSession:          launchercommand.NewAcquireSessionCommand(service),
		CompleteAuthorization:   launchercommand.NewCompleteAuthorizationCommand(service),
		RefreshSession:          launchercommand.NewRefreshSessionCommand(service),
		RemoveAccount:           launchercommand.NewRemoveAccountCommand(service),
		EnsureFetched:           launchercommand.NewEnsureFetchedCommand(service),
		FetchAll:                launchercommand.NewFetchAllCommand(service),
		StageNatives:            launchercommand.NewStageNativesCommand(service),
		PrepareLaunch:           launchercommand.NewPrepareLaunchCommand(service),
		EnqueueSessionRefresh:   launchercommand.NewEnqueueSessionRefreshCommand(service),
		EnqueueExpiringSessions: launchercommand.NewEnqueueExpiringSessionsCommand(service),
	}
	facade.queries = Queries{
		ListAccounts:    launcherquery.NewListAccountsQuery(service),
		Session:         launcherquery.NewSessionQuery(service),
		ResolveManifest: launcherquery.NewResolveManifestQuery(service),
		ListVersions:    launcherquery.NewListVersionsQuery(service),
		News:            launcherquery.NewNewsQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
