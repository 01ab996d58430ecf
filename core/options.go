package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig      Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorMapper        ErrorMapper
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	identityProvider   IdentityProvider
	federationProvider FederationProvider
	gameProvider       GameServiceProvider
	accountStore       AccountStore
	accountLocker      AccountLocker
	sessionCache       *SessionCache
	authStateStore     AuthorizationStateStore
	manifestResolver   ManifestResolver
	libraryFetcher     ArtifactFetcher
	assetFetcher       ArtifactFetcher
	nativeStager       NativeStager
	configStore        ConfigStore
	instanceStore      InstanceStore
	jobEnqueuer        JobEnqueuer
	newsSource         NewsSource
	now                func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithIdentityProvider(provider IdentityProvider) Option {
	return func(b *serviceBuilder) {
		b.identityProvider = provider
	}
}

func WithFederationProvider(provider FederationProvider) Option {
	return func(b *serviceBuilder) {
		b.federationProvider = provider
	}
}

func WithGameServiceProvider(provider GameServiceProvider) Option {
	return func(b *serviceBuilder) {
		b.gameProvider = provider
	}
}

func WithAccountStore(store AccountStore) Option {
	return func(b *serviceBuilder) {
		b.accountStore = store
	}
}

func WithAccountLocker(locker AccountLocker) Option {
	return func(b *serviceBuilder) {
		b.accountLocker = locker
	}
}

func WithSessionCache(cache *SessionCache) Option {
	return func(b *serviceBuilder) {
		b.sessionCache = cache
	}
}

// WithAuthorizationStateStore replaces the in-memory store of pending browser
// sign-ins.
func WithAuthorizationStateStore(store AuthorizationStateStore) Option {
	return func(b *serviceBuilder) {
		b.authStateStore = store
	}
}

func WithManifestResolver(resolver ManifestResolver) Option {
	return func(b *serviceBuilder) {
		b.manifestResolver = resolver
	}
}

// WithLibraryFetcher sets the fetcher rooted at the libraries directory. It
// serves client jars, libraries and native archives.
func WithLibraryFetcher(fetcher ArtifactFetcher) Option {
	return func(b *serviceBuilder) {
		b.libraryFetcher = fetcher
	}
}

func WithAssetFetcher(fetcher ArtifactFetcher) Option {
	return func(b *serviceBuilder) {
		b.assetFetcher = fetcher
	}
}

func WithNativeStager(stager NativeStager) Option {
	return func(b *serviceBuilder) {
		b.nativeStager = stager
	}
}

func WithConfigStore(store ConfigStore) Option {
	return func(b *serviceBuilder) {
		b.configStore = store
	}
}

func WithInstanceStore(store InstanceStore) Option {
	return func(b *serviceBuilder) {
		b.instanceStore = store
	}
}

func WithNewsSource(source NewsSource) Option {
	return func(b *serviceBuilder) {
		b.newsSource = source
	}
}

func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.jobEnqueuer = enqueuer
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("launcher", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded file < runtime overrides.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = value
		}
	}

	setString(layer, "service_name", cfg.ServiceName)
	setString(layer, "data_dir", cfg.DataDir)
	setString(layer, "client_id", cfg.ClientID)
	setString(layer, "scope", cfg.Scope)

	endpoints := map[string]any{}
	setString(endpoints, "authorize", cfg.Endpoints.Authorize)
	setString(endpoints, "device_code", cfg.Endpoints.DeviceCode)
	setString(endpoints, "token", cfg.Endpoints.Token)
	setString(endpoints, "user_auth", cfg.Endpoints.UserAuth)
	setString(endpoints, "xsts", cfg.Endpoints.XSTS)
	setString(endpoints, "service_login", cfg.Endpoints.ServiceLogin)
	setString(endpoints, "profile", cfg.Endpoints.Profile)
	setString(endpoints, "version_manifest", cfg.Endpoints.VersionManifest)
	setString(endpoints, "resources", cfg.Endpoints.Resources)
	setString(endpoints, "news", cfg.Endpoints.News)
	if len(endpoints) > 0 {
		layer["endpoints"] = endpoints
	}

	httpLayer := map[string]any{}
	if includeZero || cfg.HTTP.Timeout > 0 {
		httpLayer["timeout"] = cfg.HTTP.Timeout
	}
	if includeZero || cfg.HTTP.MaxResponseBytes > 0 {
		httpLayer["max_response_bytes"] = cfg.HTTP.MaxResponseBytes
	}
	if len(httpLayer) > 0 {
		layer["http"] = httpLayer
	}

	deviceFlow := map[string]any{}
	if includeZero || cfg.DeviceFlow.DefaultInterval > 0 {
		deviceFlow["default_interval"] = cfg.DeviceFlow.DefaultInterval
	}
	if includeZero || cfg.DeviceFlow.DefaultExpiry > 0 {
		deviceFlow["default_expiry"] = cfg.DeviceFlow.DefaultExpiry
	}
	if len(deviceFlow) > 0 {
		layer["device_flow"] = deviceFlow
	}

	authorization := map[string]any{}
	setString(authorization, "redirect_uri", cfg.Authorization.RedirectURI)
	if includeZero || cfg.Authorization.StateTTL > 0 {
		authorization["state_ttl"] = cfg.Authorization.StateTTL
	}
	if len(authorization) > 0 {
		layer["authorization"] = authorization
	}

	fetchLayer := map[string]any{}
	if includeZero || cfg.Fetch.Concurrency > 0 {
		fetchLayer["concurrency"] = cfg.Fetch.Concurrency
	}
	if includeZero || cfg.Fetch.VerifyChecksums {
		fetchLayer["verify_checksums"] = cfg.Fetch.VerifyChecksums
	}
	if len(fetchLayer) > 0 {
		layer["fetch"] = fetchLayer
	}

	launch := map[string]any{}
	setString(launch, "launcher_name", cfg.Launch.LauncherName)
	setString(launch, "launcher_version", cfg.Launch.LauncherVersion)
	setString(launch, "user_type", cfg.Launch.UserType)
	if len(launch) > 0 {
		layer["launch"] = launch
	}

	if includeZero || len(cfg.Features) > 0 {
		features := make(map[string]any, len(cfg.Features))
		for key, value := range cfg.Features {
			features[key] = value
		}
		layer["features"] = features
	}
	return layer
}
