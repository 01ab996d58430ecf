package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var durationKeys = map[string]struct{}{
	"timeout":          {},
	"default_interval": {},
	"default_expiry":   {},
}

// FileConfigLoader reads a YAML or JSON config file into a raw map. A missing
// file yields an empty map so defaults apply.
type FileConfigLoader struct {
	Path string
}

func NewFileConfigLoader(path string) *FileConfigLoader {
	return &FileConfigLoader{Path: path}
}

func (l *FileConfigLoader) LoadRaw(_ context.Context) (map[string]any, error) {
	if l == nil || strings.TrimSpace(l.Path) == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("core: read config file: %w", err)
	}

	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(l.Path)) {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("core: decode config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("core: decode config file: %w", err)
		}
	}
	if err := normalizeDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func normalizeDurations(raw map[string]any) error {
	for key, value := range raw {
		switch typed := value.(type) {
		case map[string]any:
			if err := normalizeDurations(typed); err != nil {
				return err
			}
		case string:
			if _, ok := durationKeys[key]; !ok {
				continue
			}
			parsed, err := time.ParseDuration(strings.TrimSpace(typed))
			if err != nil {
				return fmt.Errorf("core: %s is invalid: %w", key, err)
			}
			raw[key] = parsed
		}
	}
	return nil
}

var _ RawConfigLoader = (*FileConfigLoader)(nil)
