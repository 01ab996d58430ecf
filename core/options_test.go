package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestNewService_DefaultConfig(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "launcher" {
		t.Fatalf("expected default service_name=launcher, got %q", cfg.ServiceName)
	}
	if cfg.Endpoints.Token != DefaultTokenURL || cfg.HTTP.Timeout != DefaultHTTPTimeout {
		t.Fatalf("expected default endpoints and timeout, got %#v", cfg)
	}
	if cfg.Launch.UserType != "msa" || cfg.FetchConcurrency() != DefaultFetchConcurrency {
		t.Fatalf("unexpected launch defaults %#v", cfg.Launch)
	}
	if svc.Logger() == nil {
		t.Fatalf("expected default logger")
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	configProvider := &fixedConfigProvider{cfg: DefaultConfig()}
	resolved := DefaultConfig()
	resolved.ServiceName = "resolved"
	optionsResolver := &fixedOptionsResolver{cfg: resolved}

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(stubLoggerProvider{logger: customLogger}),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Logger() != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
}

func TestNewService_ErrorMapperAppliesToBuildErrors(t *testing.T) {
	sentinel := errors.New("sentinel")
	_, err := NewService(Config{},
		WithConfigProvider(NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
			"endpoints": map[string]any{"token": "not a url"},
		}})),
		WithErrorMapper(func(error) *goerrors.Error {
			return goerrors.Wrap(sentinel, goerrors.CategoryValidation, "mapped")
		}),
	)
	if err == nil {
		t.Fatalf("expected invalid endpoint to fail the build")
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected mapped build error, got %v", err)
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"fetch":        map[string]any{"concurrency": 4},
		"features":     map[string]any{"is_demo_user": true},
	}})

	svc, err := NewService(Config{ServiceName: "from-runtime"}, WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.Fetch.Concurrency != 4 {
		t.Fatalf("expected config layer concurrency, got %d", cfg.Fetch.Concurrency)
	}
	if !cfg.Features["is_demo_user"] {
		t.Fatalf("expected config layer features, got %#v", cfg.Features)
	}
	if cfg.Endpoints.Profile != DefaultProfileURL {
		t.Fatalf("expected defaults to fill unset values, got %q", cfg.Endpoints.Profile)
	}
}

func TestResolveConfig_MatchesService(t *testing.T) {
	dataDir := t.TempDir()
	cfg, logger, err := ResolveConfig(Config{DataDir: dataDir})
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected resolved logger")
	}
	if cfg.DataDir != dataDir || cfg.AccountsPath() != filepath.Join(dataDir, "accounts.json") {
		t.Fatalf("unexpected resolved paths %#v", cfg)
	}
}

func TestFileConfigLoader_ReadsYAMLDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launcher.yaml")
	content := "service_name: from-file\nhttp:\n  timeout: 5s\ndevice_flow:\n  default_interval: 2s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	raw, err := NewFileConfigLoader(path).LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	httpLayer, ok := raw["http"].(map[string]any)
	if !ok || httpLayer["timeout"] != 5*time.Second {
		t.Fatalf("expected parsed timeout, got %#v", raw["http"])
	}

	svc, err := NewService(Config{}, WithConfigProvider(NewCfgxConfigProvider(NewFileConfigLoader(path))))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Config().ServiceName != "from-file" || svc.Config().DeviceFlow.DefaultInterval != 2*time.Second {
		t.Fatalf("expected file values, got %#v", svc.Config())
	}
}

func TestFileConfigLoader_MissingFileAndBadDuration(t *testing.T) {
	raw, err := NewFileConfigLoader(filepath.Join(t.TempDir(), "absent.yaml")).LoadRaw(context.Background())
	if err != nil || len(raw) != 0 {
		t.Fatalf("expected empty map for missing file, got %#v %v", raw, err)
	}

	path := filepath.Join(t.TempDir(), "launcher.json")
	if err := os.WriteFile(path, []byte(`{"http":{"timeout":"soon"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := NewFileConfigLoader(path).LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected invalid duration to fail")
	}
}

func TestConfig_ValidateAndPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
	if cfg.NativesDir() != filepath.Join("/data", "natives") || cfg.AssetObjectsDir() != filepath.Join("/data", "assets", "objects") {
		t.Fatalf("unexpected derived paths")
	}

	invalid := cfg
	invalid.Endpoints.XSTS = "xsts.example"
	if err := invalid.Validate(); err == nil {
		t.Fatalf("expected relative endpoint to be rejected")
	}
	invalid = cfg
	invalid.Fetch.Concurrency = -1
	if err := invalid.Validate(); err == nil {
		t.Fatalf("expected negative concurrency to be rejected")
	}
	invalid = cfg
	invalid.ClientID = ""
	if err := invalid.Validate(); err == nil {
		t.Fatalf("expected missing client id to be rejected")
	}

	cfg.Fetch.Concurrency = 0
	if cfg.FetchConcurrency() != 1 {
		t.Fatalf("expected concurrency floor of one, got %d", cfg.FetchConcurrency())
	}
}
