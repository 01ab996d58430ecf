package file

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
)

// ConfigStore reads and writes the launcher config.json. A missing file reads
// as the zero config.
type ConfigStore struct {
	path string
	mu   sync.Mutex
}

func NewConfigStore(path string) (*ConfigStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, core.NewError("file: config path is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	return &ConfigStore{path: filepath.Clean(path)}, nil
}

func (s *ConfigStore) Read(ctx context.Context) (core.LauncherConfig, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return core.LauncherConfig{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg core.LauncherConfig
	if _, err := readJSON(s.path, &cfg); err != nil {
		return core.LauncherConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) Write(ctx context.Context, cfg core.LauncherConfig) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path, cfg, 0o644)
}

var _ core.ConfigStore = (*ConfigStore)(nil)
