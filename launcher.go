// Package launcher composes the Microsoft sign-in chain, the version manifest
// resolver and the artifact pipeline into a single service.
package launcher

import "github.com/goliatone/go-launcher/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type Account = core.Account
type ServiceSession = core.ServiceSession
type Profile = core.Profile
type AcquireRequest = core.AcquireRequest
type DeviceGrant = core.DeviceGrant
type AuthorizationStart = core.AuthorizationStart
type AuthorizationCallback = core.AuthorizationCallback
type Artifact = core.Artifact
type ResolvedManifest = core.ResolvedManifest
type VersionList = core.VersionList
type PrepareLaunchRequest = core.PrepareLaunchRequest
type LaunchPlan = core.LaunchPlan
type LauncherConfig = core.LauncherConfig
type InstanceConfig = core.InstanceConfig
type NewsPage = core.NewsPage

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorMapper             = core.WithErrorMapper
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithIdentityProvider        = core.WithIdentityProvider
	WithFederationProvider      = core.WithFederationProvider
	WithGameServiceProvider     = core.WithGameServiceProvider
	WithAccountStore            = core.WithAccountStore
	WithAccountLocker           = core.WithAccountLocker
	WithSessionCache            = core.WithSessionCache
	WithAuthorizationStateStore = core.WithAuthorizationStateStore
	WithManifestResolver        = core.WithManifestResolver
	WithLibraryFetcher          = core.WithLibraryFetcher
	WithAssetFetcher            = core.WithAssetFetcher
	WithNativeStager            = core.WithNativeStager
	WithConfigStore             = core.WithConfigStore
	WithInstanceStore           = core.WithInstanceStore
	WithJobEnqueuer             = core.WithJobEnqueuer
	WithNewsSource              = core.WithNewsSource
	WithClock                   = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds a service from explicit dependencies only. Use New for
// the default wiring.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
