package launcher

import (
	"net/http"

	"github.com/goliatone/go-launcher/core"
	"github.com/goliatone/go-launcher/fetch"
	"github.com/goliatone/go-launcher/manifest"
	"github.com/goliatone/go-launcher/natives"
	"github.com/goliatone/go-launcher/providers/microsoft"
	"github.com/goliatone/go-launcher/providers/minecraft"
	"github.com/goliatone/go-launcher/providers/xbox"
	"github.com/goliatone/go-launcher/ratelimit"
	"github.com/goliatone/go-launcher/rules"
	filestore "github.com/goliatone/go-launcher/store/file"
	"github.com/goliatone/go-launcher/transport"
)

// New builds a service with the production wiring: the Microsoft, Xbox and
// Minecraft providers and the news client over a rate limited HTTP
// transport, a cached manifest resolver, fetchers for the libraries and asset
// roots, the natives stager and the file stores under the data dir. Options in opts replace any default dependency.
func New(cfg Config, opts ...Option) (*Service, error) {
	resolved, logger, err := core.ResolveConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	defaults, err := DefaultOptions(resolved, logger)
	if err != nil {
		return nil, err
	}
	return core.NewService(cfg, append(defaults, opts...)...)
}

// DefaultOptions returns the options New applies before the caller's own.
func DefaultOptions(cfg Config, logger core.Logger) ([]Option, error) {
	client := &http.Client{Timeout: cfg.HTTP.Timeout}
	api := ratelimit.NewAdapter(
		transport.NewRESTAdapter(client),
		ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore()),
		logger,
	)

	identity, err := microsoft.New(microsoft.Config{
		ClientID:        cfg.ClientID,
		Scope:           cfg.Scope,
		AuthorizeURL:    cfg.Endpoints.Authorize,
		DeviceCodeURL:   cfg.Endpoints.DeviceCode,
		TokenURL:        cfg.Endpoints.Token,
		DefaultInterval: cfg.DeviceFlow.DefaultInterval,
		DefaultExpiry:   cfg.DeviceFlow.DefaultExpiry,
		Transport:       api,
	})
	if err != nil {
		return nil, err
	}
	federation, err := xbox.New(xbox.Config{
		UserAuthURL:    cfg.Endpoints.UserAuth,
		XSTSURL:        cfg.Endpoints.XSTS,
		RequestTimeout: cfg.HTTP.Timeout,
		Transport:      api,
	})
	if err != nil {
		return nil, err
	}
	game, err := minecraft.New(minecraft.Config{
		LoginURL:       cfg.Endpoints.ServiceLogin,
		ProfileURL:     cfg.Endpoints.Profile,
		RequestTimeout: cfg.HTTP.Timeout,
		Transport:      api,
	})
	if err != nil {
		return nil, err
	}

	news, err := minecraft.NewNewsClient(minecraft.NewsConfig{
		URL:            cfg.Endpoints.News,
		UserAgent:      cfg.Launch.LauncherName + "/" + cfg.Launch.LauncherVersion,
		RequestTimeout: cfg.HTTP.Timeout,
		Transport:      api,
	})
	if err != nil {
		return nil, err
	}

	// Artifact transfers can outlast the API timeout.
	downloader := fetch.NewHTTPDownloader(nil)
	downloader.MaxBytes = cfg.HTTP.MaxResponseBytes

	resolver, err := manifest.NewResolverFromConfig(cfg, downloader, rules.CurrentPlatform(cfg.Features))
	if err != nil {
		return nil, err
	}
	cacheService, err := manifest.NewDefaultCacheService()
	if err != nil {
		return nil, err
	}
	cachedResolver, err := manifest.NewCachedResolver(resolver, cacheService)
	if err != nil {
		return nil, err
	}

	libraries, err := fetch.New(fetch.Config{
		Root:            cfg.LibrariesDir(),
		Downloader:      downloader,
		VerifyChecksums: cfg.Fetch.VerifyChecksums,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	assets, err := fetch.New(fetch.Config{
		Root:            cfg.AssetObjectsDir(),
		Downloader:      downloader,
		VerifyChecksums: cfg.Fetch.VerifyChecksums,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	stager, err := natives.New(natives.Config{
		LibraryRoot: cfg.LibrariesDir(),
		StagingDir:  cfg.NativesDir(),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	accounts, err := filestore.NewAccountStore(cfg.AccountsPath())
	if err != nil {
		return nil, err
	}
	configStore, err := filestore.NewConfigStore(cfg.LauncherConfigPath())
	if err != nil {
		return nil, err
	}
	instances, err := filestore.NewInstanceStore(cfg.InstancesDir())
	if err != nil {
		return nil, err
	}

	return []Option{
		core.WithIdentityProvider(identity),
		core.WithFederationProvider(federation),
		core.WithGameServiceProvider(game),
		core.WithNewsSource(news),
		core.WithManifestResolver(cachedResolver),
		core.WithLibraryFetcher(libraries),
		core.WithAssetFetcher(assets),
		core.WithNativeStager(stager),
		core.WithAccountStore(accounts),
		core.WithConfigStore(configStore),
		core.WithInstanceStore(instances),
	}, nil
}
