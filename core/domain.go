package core

import (
	"strings"
	"time"
)

type DeviceFlowStatus string

const (
	DeviceFlowStatusPending  DeviceFlowStatus = "pending"
	DeviceFlowStatusSlowDown DeviceFlowStatus = "slow_down"
	DeviceFlowStatusDenied   DeviceFlowStatus = "denied"
	DeviceFlowStatusExpired  DeviceFlowStatus = "expired"
	DeviceFlowStatusSuccess  DeviceFlowStatus = "success"
)

type DeviceFlowState string

const (
	DeviceFlowStateIdle                      DeviceFlowState = "idle"
	DeviceFlowStateAwaitingUserAuthorization DeviceFlowState = "awaiting_user_authorization"
	DeviceFlowStateAuthorized                DeviceFlowState = "authorized"
	DeviceFlowStateDenied                    DeviceFlowState = "denied"
	DeviceFlowStateExpired                   DeviceFlowState = "expired"
	DeviceFlowStateNetworkError              DeviceFlowState = "network_error"
	DeviceFlowStateCancelled                 DeviceFlowState = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s DeviceFlowState) Terminal() bool {
	switch s {
	case DeviceFlowStateAuthorized,
		DeviceFlowStateDenied,
		DeviceFlowStateExpired,
		DeviceFlowStateNetworkError,
		DeviceFlowStateCancelled:
		return true
	default:
		return false
	}
}

type DeviceGrant struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	Message         string
	PollInterval    time.Duration
	ExpiresAt       time.Time
}

// Expired reports whether the grant can no longer be redeemed at now.
func (g DeviceGrant) Expired(now time.Time) bool {
	if g.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(g.ExpiresAt)
}

// DeviceFlowOutcome is the decoded result of a single token endpoint poll.
type DeviceFlowOutcome struct {
	Status    DeviceFlowStatus
	ErrorCode string
	Message   string
	Token     IdentityToken
}

type IdentityToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (t IdentityToken) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

func (t IdentityToken) Refreshable() bool {
	return strings.TrimSpace(t.RefreshToken) != ""
}

// FederatedToken is an intermediate token issued by a federation hop. It only
// lives for the duration of a single chain run.
type FederatedToken struct {
	Token       string
	SubjectHash string
	NotAfter    time.Time
}

type ServiceSession struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	SubjectID   string    `json:"subject_id"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s ServiceSession) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// AuthorizationHeader renders the session as an HTTP Authorization value.
func (s ServiceSession) AuthorizationHeader() string {
	tokenType := strings.TrimSpace(s.TokenType)
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType + " " + strings.TrimSpace(s.AccessToken)
}

type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Account is the durable record kept per signed-in player, keyed by profile id.
type Account struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Identity    IdentityToken  `json:"identity"`
	Session     ServiceSession `json:"session"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

const AccountsFormatVersion = 1

type AccountsDocument struct {
	FormatVersion int                `json:"format_version"`
	Accounts      map[string]Account `json:"accounts"`
}

func NewAccountsDocument() AccountsDocument {
	return AccountsDocument{
		FormatVersion: AccountsFormatVersion,
		Accounts:      map[string]Account{},
	}
}

type RuleAction string

const (
	RuleActionAllow    RuleAction = "allow"
	RuleActionDisallow RuleAction = "disallow"
)

type OSPredicate struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Arch    string `json:"arch,omitempty"`
}

type Rule struct {
	Action   RuleAction      `json:"action"`
	OS       *OSPredicate    `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// Platform is the context rules are evaluated against.
type Platform struct {
	OSName    string
	OSArch    string
	OSVersion string
	Features  map[string]bool
}

// Artifact is a single file to materialize under a root directory. Path is
// relative and unique within a resolved manifest.
type Artifact struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
	// Exclude lists archive prefixes skipped when a native is staged.
	Exclude []string `json:"exclude,omitempty"`
}

type AssetIndexRef struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	SHA1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"total_size,omitempty"`
}

type AssetObject struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

type ResolvedManifest struct {
	VersionID        string        `json:"version_id"`
	Type             string        `json:"type,omitempty"`
	MainClass        string        `json:"main_class,omitempty"`
	Assets           string        `json:"assets,omitempty"`
	Client           Artifact      `json:"client"`
	Libraries        []Artifact    `json:"libraries"`
	Natives          []Artifact    `json:"natives"`
	AssetIndex       AssetIndexRef `json:"asset_index"`
	JVMArguments     []string      `json:"jvm_arguments"`
	GameArguments    []string      `json:"game_arguments"`
	JavaMajorVersion int           `json:"java_major_version,omitempty"`
}

type VersionSummary struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	Time        time.Time `json:"time"`
	ReleaseTime time.Time `json:"releaseTime"`
}

type VersionList struct {
	LatestRelease  string
	LatestSnapshot string
	Versions       []VersionSummary
}

type JavaConfig struct {
	Path   string `json:"path"`
	Memory string `json:"memory"`
}

// LauncherConfig is owned by the external config store.
type LauncherConfig struct {
	Locale               string     `json:"locale"`
	Java                 JavaConfig `json:"java"`
	LastLaunchedInstance string     `json:"last_launched_instance"`
}

// InstanceConfig is owned by the external instance store.
type InstanceConfig struct {
	GameVersion string `json:"minecraft_version"`
	VersionType string `json:"version_type"`
	MainClass   string `json:"main_class"`
}

type AcquireRequest struct {
	Interactive bool
	// Prompt receives the grant so the caller can show the user code and
	// verification URI. It is invoked once, before polling starts.
	Prompt func(DeviceGrant)
}

type PrepareLaunchRequest struct {
	InstanceName string
	AccountID    string
	ManifestURL  string
}

// LaunchPlan is everything the process launcher needs. Nothing is spawned.
type LaunchPlan struct {
	JavaPath      string
	WorkingDir    string
	MainClass     string
	Arguments     []string
	NativesDir    string
	Manifest      ResolvedManifest
	Session       ServiceSession
	FetchedAssets int
}
