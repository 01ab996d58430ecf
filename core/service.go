package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service composes the credential chain and the artifact pipeline.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	identity        IdentityProvider
	federation      FederationProvider
	game            GameServiceProvider
	accounts        AccountStore
	accountLocker   AccountLocker
	sessions        *SessionCache
	authStates      AuthorizationStateStore
	manifests       ManifestResolver
	libraries       ArtifactFetcher
	assets          ArtifactFetcher
	natives         NativeStager
	configStore     ConfigStore
	instances       InstanceStore
	jobEnqueuer     JobEnqueuer
	news            NewsSource
	now             func() time.Time
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder, finalConfig, err := resolveBuilder(cfg, opts)
	if err != nil {
		return nil, err
	}
	provider, logger := builder.loggerProvider, builder.logger

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}
	if builder.accountLocker == nil {
		builder.accountLocker = NewMemoryAccountLocker()
	}
	if builder.sessionCache == nil {
		builder.sessionCache = NewSessionCache(builder.now)
	}
	if builder.authStateStore == nil {
		builder.authStateStore = NewMemoryAuthorizationStateStore(finalConfig.Authorization.StateTTL, builder.now)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		identity:        builder.identityProvider,
		federation:      builder.federationProvider,
		game:            builder.gameProvider,
		accounts:        builder.accountStore,
		accountLocker:   builder.accountLocker,
		sessions:        builder.sessionCache,
		authStates:      builder.authStateStore,
		manifests:       builder.manifestResolver,
		libraries:       builder.libraryFetcher,
		assets:          builder.assetFetcher,
		natives:         builder.nativeStager,
		configStore:     builder.configStore,
		instances:       builder.instanceStore,
		jobEnqueuer:     builder.jobEnqueuer,
		news:            builder.newsSource,
		now:             builder.now,
	}, nil
}

// ResolveConfig applies opts and returns the merged configuration and the
// logger a service built with the same arguments would use. Callers wiring
// default dependencies use it to derive paths and endpoints.
func ResolveConfig(cfg Config, opts ...Option) (Config, Logger, error) {
	builder, finalConfig, err := resolveBuilder(cfg, opts)
	if err != nil {
		return Config{}, nil, err
	}
	return finalConfig, builder.logger, nil
}

func resolveBuilder(cfg Config, opts []Option) (serviceBuilder, Config, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("launcher", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("launcher"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	builder.loggerProvider = provider
	builder.logger = logger

	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return builder, Config{}, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return builder, Config{}, mapBuildError(builder.errorMapper, err)
	}
	return builder, finalConfig, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

// AcquireServiceSession runs the interactive device flow followed by every
// federation hop. Only a fully successful chain writes an account.
func (s *Service) AcquireServiceSession(ctx context.Context, req AcquireRequest) (account Account, err error) {
	startedAt := s.now()
	fields := map[string]any{"interactive": req.Interactive}
	defer func() {
		if account.ID != "" {
			fields["account_id"] = account.ID
		}
		s.observeOperation(ctx, startedAt, "acquire_service_session", err, fields)
	}()

	if !req.Interactive {
		err = NewError("core: interactive sign-in is required", goerrors.CategoryAuth, ErrorAuthInteractionNeeded, nil)
		return Account{}, err
	}
	if err = s.requireCredentialChain(); err != nil {
		return Account{}, err
	}

	flow := NewDeviceFlow(startedAt)
	fields["flow_id"] = flow.ID

	grant, err := s.identity.BeginDeviceFlow(ctx)
	if err != nil {
		err = WithHop(err, HopDeviceGrant, ErrorAuthNetwork)
		s.finishDeviceFlow(ctx, flow, err)
		return Account{}, s.mapError(err)
	}
	if err = flow.Await(grant); err != nil {
		return Account{}, s.mapError(err)
	}
	s.logInfo(ctx, "device flow awaiting user authorization", map[string]any{
		"flow_id":          flow.ID,
		"state":            string(flow.State),
		"verification_uri": grant.VerificationURI,
		"user_code":        grant.UserCode,
		"expires_at":       grant.ExpiresAt,
	})
	if req.Prompt != nil {
		req.Prompt(grant)
	}

	identity, err := s.identity.PollForIdentityToken(ctx, grant)
	s.finishDeviceFlow(ctx, flow, err)
	if err != nil {
		err = WithHop(err, HopDevicePoll, ErrorAuthNetwork)
		return Account{}, s.mapError(err)
	}

	account, err = s.signIn(ctx, identity)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// signIn exchanges a fresh identity token for a game session and stores the
// resulting account.
func (s *Service) signIn(ctx context.Context, identity IdentityToken) (Account, error) {
	session, profile, err := s.exchange(ctx, identity)
	if err != nil {
		return Account{}, s.mapError(err)
	}

	account := Account{
		ID:          profile.ID,
		DisplayName: profile.Name,
		Identity:    identity,
		Session:     session,
		UpdatedAt:   s.now(),
	}
	replaced, err := s.accounts.Upsert(ctx, account)
	if err != nil {
		return Account{}, s.mapError(err)
	}
	if replaced {
		s.logInfo(ctx, "account re-authenticated, tokens replaced", map[string]any{
			"account_id":   account.ID,
			"display_name": account.DisplayName,
		})
	}
	s.sessions.Set(account.ID, account.Session)
	return account, nil
}

func (s *Service) finishDeviceFlow(ctx context.Context, flow *DeviceFlow, pollErr error) {
	state, err := flow.Finish(s.now(), pollErr)
	if err != nil {
		s.logWarn(ctx, "device flow transition rejected", map[string]any{
			"flow_id": flow.ID,
			"state":   string(flow.State),
			"error":   err.Error(),
		})
		return
	}
	s.logInfo(ctx, "device flow finished", map[string]any{
		"flow_id": flow.ID,
		"state":   string(state),
	})
}

// exchange runs the federation hops and the profile lookup for an identity token.
func (s *Service) exchange(ctx context.Context, identity IdentityToken) (ServiceSession, Profile, error) {
	userToken, err := s.federation.AuthenticateUser(ctx, identity.AccessToken)
	if err != nil {
		return ServiceSession{}, Profile{}, WithHop(err, HopUserToken, ErrorAuthNetwork)
	}
	xstsToken, err := s.federation.Authorize(ctx, userToken)
	if err != nil {
		return ServiceSession{}, Profile{}, WithHop(err, HopXSTSToken, ErrorAuthNetwork)
	}
	session, err := s.game.LoginWithXbox(ctx, xstsToken)
	if err != nil {
		return ServiceSession{}, Profile{}, WithHop(err, HopServiceLogin, ErrorAuthNetwork)
	}
	profile, err := s.game.FetchProfile(ctx, session)
	if err != nil {
		return ServiceSession{}, Profile{}, WithHop(err, HopProfile, ErrorAuthNetwork)
	}
	if strings.TrimSpace(profile.ID) == "" {
		return ServiceSession{}, Profile{}, NewError("core: profile id is empty", goerrors.CategoryExternal, ErrorAuthDecode, map[string]any{
			MetadataHop: HopProfile,
		})
	}
	session.SubjectID = profile.ID
	session.DisplayName = profile.Name
	return session, profile, nil
}

// RefreshSession renews the identity token of an account and re-runs the
// federation hops. An identity that can no longer be refreshed removes the
// account.
func (s *Service) RefreshSession(ctx context.Context, accountID string) (account Account, err error) {
	startedAt := s.now()
	accountID = strings.TrimSpace(accountID)
	fields := map[string]any{"account_id": accountID}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh_session", err, fields)
	}()

	if accountID == "" {
		err = s.mapError(fmt.Errorf("core: account id is required"))
		return Account{}, err
	}
	if err = s.requireCredentialChain(); err != nil {
		return Account{}, err
	}

	lock, err := s.accountLocker.Acquire(ctx, accountID, defaultAccountLockTTL)
	if err != nil {
		err = s.mapError(WithHop(err, HopRefresh, ErrorAccountConflict))
		return Account{}, err
	}
	defer func() {
		_ = lock.Unlock(ctx)
	}()

	current, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		err = s.mapError(err)
		return Account{}, err
	}

	identity, err := s.identity.Refresh(ctx, current.Identity)
	if err != nil {
		err = WithHop(err, HopRefresh, ErrorAuthNetwork)
		if isUnrecoverableRefreshError(err) {
			s.removeStaleAccount(ctx, accountID, err)
		}
		return Account{}, s.mapError(err)
	}

	session, profile, err := s.exchange(ctx, identity)
	if err != nil {
		return Account{}, s.mapError(err)
	}
	if profile.ID != accountID {
		err = NewError("core: refreshed profile does not match account", goerrors.CategoryConflict, ErrorAccountConflict, map[string]any{
			MetadataHop:  HopProfile,
			"account_id": accountID,
			"profile_id": profile.ID,
		})
		return Account{}, s.mapError(err)
	}

	account, err = s.accounts.Update(ctx, accountID, func(existing Account) (Account, error) {
		existing.DisplayName = profile.Name
		existing.Identity = identity
		existing.Session = session
		existing.UpdatedAt = s.now()
		return existing, nil
	})
	if err != nil {
		err = s.mapError(err)
		return Account{}, err
	}
	s.sessions.Set(account.ID, account.Session)
	return account, nil
}

func (s *Service) removeStaleAccount(ctx context.Context, accountID string, cause error) {
	s.sessions.Delete(accountID)
	fields := map[string]any{
		"account_id": accountID,
		"reason":     cause.Error(),
	}
	if err := s.accounts.Delete(ctx, accountID); err != nil && !IsTextCode(err, ErrorAccountNotFound) {
		fields["error"] = err.Error()
		s.logError(ctx, "stale account removal failed", fields)
		return
	}
	s.logWarn(ctx, "stale account removed", fields)
}

// Session returns a live session for the account, refreshing it when the
// stored one has expired.
func (s *Service) Session(ctx context.Context, accountID string) (ServiceSession, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ServiceSession{}, s.mapError(fmt.Errorf("core: account id is required"))
	}
	if session, ok := s.sessions.Get(accountID); ok {
		return session, nil
	}
	if s.accounts == nil {
		return ServiceSession{}, s.dependencyError("account store")
	}
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return ServiceSession{}, s.mapError(err)
	}
	if !account.Session.Expired(s.now()) {
		s.sessions.Set(accountID, account.Session)
		return account.Session, nil
	}
	refreshed, err := s.RefreshSession(ctx, accountID)
	if err != nil {
		return ServiceSession{}, err
	}
	return refreshed.Session, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	if s.accounts == nil {
		return nil, s.dependencyError("account store")
	}
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].DisplayName == accounts[j].DisplayName {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].DisplayName < accounts[j].DisplayName
	})
	return accounts, nil
}

func (s *Service) RemoveAccount(ctx context.Context, accountID string) (err error) {
	startedAt := s.now()
	accountID = strings.TrimSpace(accountID)
	fields := map[string]any{"account_id": accountID}
	defer func() {
		s.observeOperation(ctx, startedAt, "remove_account", err, fields)
	}()

	if accountID == "" {
		err = s.mapError(fmt.Errorf("core: account id is required"))
		return err
	}
	if s.accounts == nil {
		err = s.dependencyError("account store")
		return err
	}
	if err = s.accounts.Delete(ctx, accountID); err != nil {
		err = s.mapError(err)
		return err
	}
	s.sessions.Delete(accountID)
	return nil
}

func (s *Service) Resolve(ctx context.Context, versionID string, manifestURL string) (manifest ResolvedManifest, err error) {
	startedAt := s.now()
	fields := map[string]any{"version_id": versionID}
	defer func() {
		if err == nil {
			fields["libraries"] = len(manifest.Libraries)
			fields["natives"] = len(manifest.Natives)
		}
		s.observeOperation(ctx, startedAt, "resolve_manifest", err, fields)
	}()

	if s.manifests == nil {
		err = s.dependencyError("manifest resolver")
		return ResolvedManifest{}, err
	}
	manifest, err = s.manifests.Resolve(ctx, versionID, manifestURL)
	if err != nil {
		err = s.mapError(err)
		return ResolvedManifest{}, err
	}
	return manifest, nil
}

// VersionList returns the published versions when the manifest resolver can
// list them.
func (s *Service) VersionList(ctx context.Context) (list VersionList, err error) {
	startedAt := s.now()
	defer func() {
		s.observeOperation(ctx, startedAt, "version_list", err, map[string]any{"versions": len(list.Versions)})
	}()

	source, ok := s.manifests.(VersionSource)
	if !ok {
		err = s.dependencyError("version source")
		return VersionList{}, err
	}
	list, err = source.VersionList(ctx)
	if err != nil {
		err = s.mapError(err)
		return VersionList{}, err
	}
	return list, nil
}

func (s *Service) EnsureFetched(ctx context.Context, artifact Artifact) error {
	if s.libraries == nil {
		return s.dependencyError("library fetcher")
	}
	if err := s.libraries.EnsureFetched(ctx, artifact); err != nil {
		return s.mapError(err)
	}
	return nil
}

// FetchAll fetches into the libraries root with the configured concurrency.
// The error, when not nil, aggregates every failed artifact.
func (s *Service) FetchAll(ctx context.Context, artifacts []Artifact) (err error) {
	startedAt := s.now()
	fields := map[string]any{"artifacts": len(artifacts)}
	defer func() {
		s.observeOperation(ctx, startedAt, "fetch_all", err, fields)
	}()

	if s.libraries == nil {
		err = s.dependencyError("library fetcher")
		return err
	}
	return s.libraries.FetchAll(ctx, artifacts, s.config.FetchConcurrency())
}

func (s *Service) StageNatives(ctx context.Context, natives []Artifact) (dir string, err error) {
	startedAt := s.now()
	fields := map[string]any{"natives": len(natives)}
	defer func() {
		s.observeOperation(ctx, startedAt, "stage_natives", err, fields)
	}()

	if s.natives == nil {
		err = s.dependencyError("native stager")
		return "", err
	}
	dir, err = s.natives.StageNatives(ctx, natives)
	if err != nil {
		err = s.mapError(err)
		return "", err
	}
	return dir, nil
}

func (s *Service) requireCredentialChain() error {
	switch {
	case s.identity == nil:
		return s.dependencyError("identity provider")
	case s.federation == nil:
		return s.dependencyError("federation provider")
	case s.game == nil:
		return s.dependencyError("game service provider")
	case s.accounts == nil:
		return s.dependencyError("account store")
	}
	return nil
}

func (s *Service) dependencyError(name string) error {
	return NewError(fmt.Sprintf("core: %s is not configured", name), goerrors.CategoryInternal, ErrorInternal, nil)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
