package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	launchercommand "github.com/goliatone/go-launcher/command"
	launcherquery "github.com/goliatone/go-launcher/query"
)

// LauncherService is the surface the launcher handlers dispatch into.
// core.Service satisfies it.
type LauncherService interface {
	launchercommand.SessionService
	launchercommand.ArtifactService
	launchercommand.LaunchService
	launchercommand.RefreshScheduler
	launcherquery.AccountReader
	launcherquery.ManifestReader
	launcherquery.VersionLister
}

// Subscriptions tracks dispatcher subscriptions so they can be released
// together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterLauncher registers and subscribes every launcher command and query.
// On failure the subscriptions made so far are released.
func RegisterLauncher(adapter *RegistryAdapter, service LauncherService, runnerOpts ...runner.Option) (Subscriptions, error) {
	if service == nil {
		return nil, fmt.Errorf("gocommand: launcher service is required")
	}

	var subs Subscriptions
	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, launchercommand.NewAcquireSessionCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, launchercommand.NewRefreshSessionCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, launchercommand.NewRemoveAccountCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, launchercommand.NewEnsureFetchedCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, launchercommand.NewFetchAllCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, launchercommand.NewStageNativesCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, launchercommand.NewPrepareLaunchCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, launchercommand.NewEnqueueSessionRefreshCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, launchercommand.NewEnqueueExpiringSessionsCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, launcherquery.NewListAccountsQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, launcherquery.NewSessionQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, launcherquery.NewResolveManifestQuery(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, launcherquery.NewListVersionsQuery(service), runnerOpts...)
		},
	}
	for _, step := range steps {
		sub, err := step()
		if err != nil {
			subs.Unsubscribe()
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
