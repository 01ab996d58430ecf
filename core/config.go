package core

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	DefaultClientID = "2000ea79-d993-4591-b9c4-e678f82ae1db"
	DefaultScope    = "XboxLive.signin offline_access"

	DefaultAuthorizeURL       = "https://login.microsoftonline.com/consumers/oauth2/v2.0/authorize"
	DefaultDeviceCodeURL      = "https://login.microsoftonline.com/consumers/oauth2/v2.0/devicecode"
	DefaultTokenURL           = "https://login.microsoftonline.com/consumers/oauth2/v2.0/token"
	DefaultUserAuthURL        = "https://user.auth.xboxlive.com/user/authenticate"
	DefaultXSTSURL            = "https://xsts.auth.xboxlive.com/xsts/authorize"
	DefaultServiceLoginURL    = "https://api.minecraftservices.com/authentication/login_with_xbox"
	DefaultProfileURL         = "https://api.minecraftservices.com/minecraft/profile"
	DefaultVersionManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"
	DefaultResourcesURL       = "https://resources.download.minecraft.net"
	DefaultNewsURL            = "https://www.minecraft.net/content/minecraft-net/_jcr_content.articles.grid"
	DefaultRedirectURI        = "http://127.0.0.1:3003"

	DefaultDevicePollInterval = 5 * time.Second
	DefaultDeviceGrantExpiry  = 15 * time.Minute
	DefaultAuthorizationTTL   = 10 * time.Minute
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultMaxResponseBytes   = int64(64 << 20)
	DefaultFetchConcurrency   = 8
)

type EndpointsConfig struct {
	Authorize       string `koanf:"authorize" mapstructure:"authorize"`
	DeviceCode      string `koanf:"device_code" mapstructure:"device_code"`
	Token           string `koanf:"token" mapstructure:"token"`
	UserAuth        string `koanf:"user_auth" mapstructure:"user_auth"`
	XSTS            string `koanf:"xsts" mapstructure:"xsts"`
	ServiceLogin    string `koanf:"service_login" mapstructure:"service_login"`
	Profile         string `koanf:"profile" mapstructure:"profile"`
	VersionManifest string `koanf:"version_manifest" mapstructure:"version_manifest"`
	Resources       string `koanf:"resources" mapstructure:"resources"`
	News            string `koanf:"news" mapstructure:"news"`
}

type HTTPConfig struct {
	Timeout          time.Duration `koanf:"timeout" mapstructure:"timeout"`
	MaxResponseBytes int64         `koanf:"max_response_bytes" mapstructure:"max_response_bytes"`
}

type DeviceFlowConfig struct {
	DefaultInterval time.Duration `koanf:"default_interval" mapstructure:"default_interval"`
	DefaultExpiry   time.Duration `koanf:"default_expiry" mapstructure:"default_expiry"`
}

// AuthorizationConfig drives the browser sign-in with a loopback redirect.
type AuthorizationConfig struct {
	RedirectURI string        `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	StateTTL    time.Duration `koanf:"state_ttl" mapstructure:"state_ttl"`
}

type FetchConfig struct {
	Concurrency     int  `koanf:"concurrency" mapstructure:"concurrency"`
	VerifyChecksums bool `koanf:"verify_checksums" mapstructure:"verify_checksums"`
}

type LaunchConfig struct {
	LauncherName    string `koanf:"launcher_name" mapstructure:"launcher_name"`
	LauncherVersion string `koanf:"launcher_version" mapstructure:"launcher_version"`
	UserType        string `koanf:"user_type" mapstructure:"user_type"`
}

type Config struct {
	ServiceName   string              `koanf:"service_name" mapstructure:"service_name"`
	DataDir       string              `koanf:"data_dir" mapstructure:"data_dir"`
	ClientID      string              `koanf:"client_id" mapstructure:"client_id"`
	Scope         string              `koanf:"scope" mapstructure:"scope"`
	Endpoints     EndpointsConfig     `koanf:"endpoints" mapstructure:"endpoints"`
	HTTP          HTTPConfig          `koanf:"http" mapstructure:"http"`
	DeviceFlow    DeviceFlowConfig    `koanf:"device_flow" mapstructure:"device_flow"`
	Authorization AuthorizationConfig `koanf:"authorization" mapstructure:"authorization"`
	Fetch         FetchConfig         `koanf:"fetch" mapstructure:"fetch"`
	Launch        LaunchConfig        `koanf:"launch" mapstructure:"launch"`
	Features      map[string]bool     `koanf:"features" mapstructure:"features"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "launcher",
		DataDir:     DefaultDataDir(),
		ClientID:    DefaultClientID,
		Scope:       DefaultScope,
		Endpoints: EndpointsConfig{
			Authorize:       DefaultAuthorizeURL,
			DeviceCode:      DefaultDeviceCodeURL,
			Token:           DefaultTokenURL,
			UserAuth:        DefaultUserAuthURL,
			XSTS:            DefaultXSTSURL,
			ServiceLogin:    DefaultServiceLoginURL,
			Profile:         DefaultProfileURL,
			VersionManifest: DefaultVersionManifestURL,
			Resources:       DefaultResourcesURL,
			News:            DefaultNewsURL,
		},
		HTTP: HTTPConfig{
			Timeout:          DefaultHTTPTimeout,
			MaxResponseBytes: DefaultMaxResponseBytes,
		},
		DeviceFlow: DeviceFlowConfig{
			DefaultInterval: DefaultDevicePollInterval,
			DefaultExpiry:   DefaultDeviceGrantExpiry,
		},
		Authorization: AuthorizationConfig{
			RedirectURI: DefaultRedirectURI,
			StateTTL:    DefaultAuthorizationTTL,
		},
		Fetch: FetchConfig{
			Concurrency: DefaultFetchConcurrency,
		},
		Launch: LaunchConfig{
			LauncherName:    "go-launcher",
			LauncherVersion: "0.1.0",
			UserType:        "msa",
		},
		Features: map[string]bool{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("core: data_dir is required")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("core: client_id is required")
	}
	endpoints := map[string]string{
		"authorize":        c.Endpoints.Authorize,
		"device_code":      c.Endpoints.DeviceCode,
		"token":            c.Endpoints.Token,
		"user_auth":        c.Endpoints.UserAuth,
		"xsts":             c.Endpoints.XSTS,
		"service_login":    c.Endpoints.ServiceLogin,
		"profile":          c.Endpoints.Profile,
		"version_manifest": c.Endpoints.VersionManifest,
		"resources":        c.Endpoints.Resources,
		"news":             c.Endpoints.News,
	}
	for name, raw := range endpoints {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: endpoints.%s is invalid", name)
		}
	}
	if redirect := strings.TrimSpace(c.Authorization.RedirectURI); redirect != "" {
		parsed, err := url.Parse(redirect)
		if err != nil || parsed.Scheme != "http" || parsed.Host == "" {
			return fmt.Errorf("core: authorization.redirect_uri must be an http loopback url")
		}
	}
	if c.Authorization.StateTTL < 0 {
		return fmt.Errorf("core: authorization.state_ttl is invalid")
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("core: http.timeout is invalid")
	}
	if c.HTTP.MaxResponseBytes < 0 {
		return fmt.Errorf("core: http.max_response_bytes is invalid")
	}
	if c.Fetch.Concurrency < 0 {
		return fmt.Errorf("core: fetch.concurrency is invalid")
	}
	return nil
}

func (c Config) AccountsPath() string       { return filepath.Join(c.DataDir, "accounts.json") }
func (c Config) LauncherConfigPath() string { return filepath.Join(c.DataDir, "config.json") }
func (c Config) MetaDir() string            { return filepath.Join(c.DataDir, "meta", "net.minecraft") }
func (c Config) LibrariesDir() string       { return filepath.Join(c.DataDir, "libraries") }
func (c Config) AssetsDir() string          { return filepath.Join(c.DataDir, "assets") }
func (c Config) AssetIndexesDir() string    { return filepath.Join(c.AssetsDir(), "indexes") }
func (c Config) AssetObjectsDir() string    { return filepath.Join(c.AssetsDir(), "objects") }
func (c Config) NativesDir() string         { return filepath.Join(c.DataDir, "natives") }
func (c Config) InstancesDir() string       { return filepath.Join(c.DataDir, "instances") }

// FetchConcurrency returns the configured fetch fan-out, never below one.
func (c Config) FetchConcurrency() int {
	if c.Fetch.Concurrency < 1 {
		return 1
	}
	return c.Fetch.Concurrency
}

// DefaultDataDir returns the platform data directory used when none is configured.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	switch runtime.GOOS {
	case "windows":
		if dir, err := os.UserConfigDir(); err == nil && dir != "" {
			return filepath.Join(dir, ".minecraft")
		}
		return filepath.Join(home, "AppData", "Roaming", ".minecraft")
	case "linux":
		if dir := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); dir != "" {
			return filepath.Join(dir, "minecraft")
		}
		return filepath.Join(home, ".local", "share", "minecraft")
	default:
		return filepath.Join(home, ".minecraft")
	}
}
