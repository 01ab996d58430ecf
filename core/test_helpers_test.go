package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testNow}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any) {}
func (stubLogger) Warn(string, ...any) {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (l stubLogger) WithContext(context.Context) Logger { return l }

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

// fakeIdentity issues ABCD-EFGH and hands out T1 after the grant.
type fakeIdentity struct {
	mu         sync.Mutex
	grant      DeviceGrant
	beginErr   error
	pollErr    error
	token      IdentityToken
	refreshErr error
	refreshed  IdentityToken
	polls      int
	refreshes  int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		grant: DeviceGrant{
			DeviceCode:      "device-1",
			UserCode:        "ABCD-EFGH",
			VerificationURI: "https://microsoft.com/link",
			PollInterval:    5 * time.Second,
			ExpiresAt:       testNow.Add(15 * time.Minute),
		},
		token: IdentityToken{
			AccessToken:  "T1",
			RefreshToken: "R1",
			ExpiresAt:    testNow.Add(time.Hour),
		},
		refreshed: IdentityToken{
			AccessToken:  "T1b",
			RefreshToken: "R2",
			ExpiresAt:    testNow.Add(2 * time.Hour),
		},
	}
}

func (f *fakeIdentity) BeginDeviceFlow(context.Context) (DeviceGrant, error) {
	if f.beginErr != nil {
		return DeviceGrant{}, f.beginErr
	}
	return f.grant, nil
}

func (f *fakeIdentity) PollForIdentityToken(_ context.Context, grant DeviceGrant) (IdentityToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if grant.DeviceCode != f.grant.DeviceCode {
		return IdentityToken{}, fmt.Errorf("unexpected device code %q", grant.DeviceCode)
	}
	if f.pollErr != nil {
		return IdentityToken{}, f.pollErr
	}
	return f.token, nil
}

func (f *fakeIdentity) Refresh(_ context.Context, identity IdentityToken) (IdentityToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return IdentityToken{}, f.refreshErr
	}
	if identity.RefreshToken == "" {
		return IdentityToken{}, fmt.Errorf("refresh token is required")
	}
	return f.refreshed, nil
}

// fakeFederation checks the token handed from hop to hop.
type fakeFederation struct {
	userErr error
	xstsErr error
	inputs  []string
}

func (f *fakeFederation) AuthenticateUser(_ context.Context, identityAccessToken string) (FederatedToken, error) {
	f.inputs = append(f.inputs, identityAccessToken)
	if f.userErr != nil {
		return FederatedToken{}, f.userErr
	}
	return FederatedToken{Token: "XBL:" + identityAccessToken, SubjectHash: "H1"}, nil
}

func (f *fakeFederation) Authorize(_ context.Context, userToken FederatedToken) (FederatedToken, error) {
	f.inputs = append(f.inputs, userToken.Token)
	if f.xstsErr != nil {
		return FederatedToken{}, f.xstsErr
	}
	return FederatedToken{Token: "T2", SubjectHash: userToken.SubjectHash}, nil
}

type fakeGame struct {
	profile    Profile
	loginErr   error
	profileErr error
	identities []string
}

func newFakeGame() *fakeGame {
	return &fakeGame{profile: Profile{ID: "069a79f444e94726a5befca90e38aaf5", Name: "Notch"}}
}

func (f *fakeGame) LoginWithXbox(_ context.Context, federated FederatedToken) (ServiceSession, error) {
	f.identities = append(f.identities, "XBL3.0 x="+federated.SubjectHash+";"+federated.Token)
	if f.loginErr != nil {
		return ServiceSession{}, f.loginErr
	}
	return ServiceSession{
		AccessToken: "FINAL",
		TokenType:   "Bearer",
		ExpiresAt:   testNow.Add(24 * time.Hour),
	}, nil
}

func (f *fakeGame) FetchProfile(context.Context, ServiceSession) (Profile, error) {
	if f.profileErr != nil {
		return Profile{}, f.profileErr
	}
	return f.profile, nil
}

type memoryAccountStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	deleted  []string
}

func newMemoryAccountStore(accounts ...Account) *memoryAccountStore {
	store := &memoryAccountStore{accounts: map[string]Account{}}
	for _, account := range accounts {
		store.accounts[account.ID] = account
	}
	return store
}

func (s *memoryAccountStore) List(context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memoryAccountStore) Get(_ context.Context, id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, NewError("account not found", goerrors.CategoryNotFound, ErrorAccountNotFound, nil)
	}
	return account, nil
}

func (s *memoryAccountStore) Upsert(_ context.Context, account Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, replaced := s.accounts[account.ID]
	s.accounts[account.ID] = account
	return replaced, nil
}

func (s *memoryAccountStore) Update(_ context.Context, id string, fn func(Account) (Account, error)) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[id]
	if !ok {
		return Account{}, NewError("account not found", goerrors.CategoryNotFound, ErrorAccountNotFound, nil)
	}
	next, err := fn(current)
	if err != nil {
		return Account{}, err
	}
	s.accounts[id] = next
	return next, nil
}

func (s *memoryAccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return NewError("account not found", goerrors.CategoryNotFound, ErrorAccountNotFound, nil)
	}
	delete(s.accounts, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memoryAccountStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

type fakeManifests struct {
	manifest ResolvedManifest
	assets   []Artifact
	versions VersionList
	err      error
	resolved []string
}

func (f *fakeManifests) Resolve(_ context.Context, versionID string, _ string) (ResolvedManifest, error) {
	f.resolved = append(f.resolved, versionID)
	if f.err != nil {
		return ResolvedManifest{}, f.err
	}
	return f.manifest, nil
}

func (f *fakeManifests) AssetArtifacts(context.Context, AssetIndexRef) ([]Artifact, error) {
	return f.assets, nil
}

// listingManifests also lists versions.
type listingManifests struct {
	fakeManifests
}

func (f *listingManifests) VersionList(context.Context) (VersionList, error) {
	return f.versions, nil
}

type fakeFetcher struct {
	mu          sync.Mutex
	root        string
	fetched     []Artifact
	concurrency int
	err         error
}

func (f *fakeFetcher) Root() string { return f.root }

func (f *fakeFetcher) EnsureFetched(_ context.Context, artifact Artifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.fetched = append(f.fetched, artifact)
	return nil
}

func (f *fakeFetcher) FetchAll(_ context.Context, artifacts []Artifact, concurrency int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.concurrency = concurrency
	if f.err != nil {
		return f.err
	}
	f.fetched = append(f.fetched, artifacts...)
	return nil
}

type fakeStager struct {
	dir    string
	staged []Artifact
}

func (f *fakeStager) StageNatives(_ context.Context, natives []Artifact) (string, error) {
	f.staged = append(f.staged, natives...)
	return f.dir, nil
}

type fakeConfigStore struct {
	cfg    LauncherConfig
	writes []LauncherConfig
}

func (f *fakeConfigStore) Read(context.Context) (LauncherConfig, error) {
	return f.cfg, nil
}

func (f *fakeConfigStore) Write(_ context.Context, cfg LauncherConfig) error {
	f.cfg = cfg
	f.writes = append(f.writes, cfg)
	return nil
}

type fakeInstanceStore struct {
	root      string
	instances map[string]InstanceConfig
}

func (f *fakeInstanceStore) InstancePath(name string) (string, error) {
	return f.root + "/" + name, nil
}

func (f *fakeInstanceStore) ReadInstanceConfig(_ context.Context, name string) (InstanceConfig, error) {
	cfg, ok := f.instances[name]
	if !ok {
		return InstanceConfig{}, NewError("instance not found", goerrors.CategoryNotFound, ErrorInstanceNotFound, nil)
	}
	return cfg, nil
}

type recordingEnqueuer struct {
	messages []*JobExecutionMessage
	err      error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

type recordingDelivery struct {
	msg    *JobExecutionMessage
	acked  bool
	nacked bool
	nack   JobNackOptions
}

func (d *recordingDelivery) Message() *JobExecutionMessage { return d.msg }

func (d *recordingDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *recordingDelivery) Nack(_ context.Context, opts JobNackOptions) error {
	d.nacked = true
	d.nack = opts
	return nil
}

type chainFixture struct {
	identity   *fakeIdentity
	federation *fakeFederation
	game       *fakeGame
	accounts   *memoryAccountStore
	clock      *testClock
}

func newChainFixture(accounts ...Account) *chainFixture {
	return &chainFixture{
		identity:   newFakeIdentity(),
		federation: &fakeFederation{},
		game:       newFakeGame(),
		accounts:   newMemoryAccountStore(accounts...),
		clock:      newTestClock(),
	}
}

func (f *chainFixture) options(extra ...Option) []Option {
	opts := []Option{
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
		WithIdentityProvider(f.identity),
		WithFederationProvider(f.federation),
		WithGameServiceProvider(f.game),
		WithAccountStore(f.accounts),
		WithClock(f.clock.Now),
	}
	return append(opts, extra...)
}
