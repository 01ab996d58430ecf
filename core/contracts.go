package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// IdentityProvider runs the device authorization grant against the identity
// provider and refreshes identity tokens.
type IdentityProvider interface {
	BeginDeviceFlow(ctx context.Context) (DeviceGrant, error)
	PollForIdentityToken(ctx context.Context, grant DeviceGrant) (IdentityToken, error)
	Refresh(ctx context.Context, identity IdentityToken) (IdentityToken, error)
}

// AuthorizationCodeProvider is implemented by identity providers that also
// support the browser sign-in: an authorization code grant with PKCE and a
// loopback redirect.
type AuthorizationCodeProvider interface {
	AuthorizationURL(req AuthorizationRequest) (string, error)
	ExchangeAuthorizationCode(ctx context.Context, exchange AuthorizationExchange) (IdentityToken, error)
}

type FederationProvider interface {
	AuthenticateUser(ctx context.Context, identityAccessToken string) (FederatedToken, error)
	Authorize(ctx context.Context, userToken FederatedToken) (FederatedToken, error)
}

type GameServiceProvider interface {
	LoginWithXbox(ctx context.Context, federated FederatedToken) (ServiceSession, error)
	FetchProfile(ctx context.Context, session ServiceSession) (Profile, error)
}

// AccountStore persists accounts keyed by profile id. Update runs fn inside a
// single read-modify-write of the backing store.
type AccountStore interface {
	List(ctx context.Context) ([]Account, error)
	Get(ctx context.Context, id string) (Account, error)
	Upsert(ctx context.Context, account Account) (replaced bool, err error)
	Update(ctx context.Context, id string, fn func(Account) (Account, error)) (Account, error)
	Delete(ctx context.Context, id string) error
}

type ManifestResolver interface {
	Resolve(ctx context.Context, versionID string, manifestURL string) (ResolvedManifest, error)
	AssetArtifacts(ctx context.Context, ref AssetIndexRef) ([]Artifact, error)
}

// VersionSource is implemented by resolvers that can list published versions.
type VersionSource interface {
	VersionList(ctx context.Context) (VersionList, error)
}

// ArtifactFetcher materializes artifacts under Root.
type ArtifactFetcher interface {
	Root() string
	EnsureFetched(ctx context.Context, artifact Artifact) error
	FetchAll(ctx context.Context, artifacts []Artifact, concurrency int) error
}

type NativeStager interface {
	StageNatives(ctx context.Context, natives []Artifact) (string, error)
}

type Downloader interface {
	Download(ctx context.Context, url string, dest string) error
}

type ConfigStore interface {
	Read(ctx context.Context) (LauncherConfig, error)
	Write(ctx context.Context, cfg LauncherConfig) error
}

type InstanceStore interface {
	InstancePath(name string) (string, error)
	ReadInstanceConfig(ctx context.Context, name string) (InstanceConfig, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
