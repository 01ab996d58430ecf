package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
)

const instanceConfigFile = "config.json"

// InstanceStore manages instance directories under instances/<name>, each
// carrying its own config.json.
type InstanceStore struct {
	root string
}

func NewInstanceStore(root string) (*InstanceStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, core.NewError("file: instances dir is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	return &InstanceStore{root: filepath.Clean(root)}, nil
}

// InstancePath returns the directory of the named instance. Names must be a
// single path element.
func (s *InstanceStore) InstancePath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\:`) {
		return "", core.NewError("file: invalid instance name", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
			"instance": name,
		})
	}
	return filepath.Join(s.root, name), nil
}

func (s *InstanceStore) ReadInstanceConfig(ctx context.Context, name string) (core.InstanceConfig, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return core.InstanceConfig{}, err
		}
	}
	dir, err := s.InstancePath(name)
	if err != nil {
		return core.InstanceConfig{}, err
	}
	var cfg core.InstanceConfig
	found, err := readJSON(filepath.Join(dir, instanceConfigFile), &cfg)
	if err != nil {
		return core.InstanceConfig{}, err
	}
	if !found {
		return core.InstanceConfig{}, instanceNotFound(name)
	}
	return cfg, nil
}

// CreateInstance writes a new instance config. It fails if the instance
// already exists.
func (s *InstanceStore) CreateInstance(ctx context.Context, name string, cfg core.InstanceConfig) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	dir, err := s.InstancePath(name)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(dir); statErr == nil {
		return core.NewError("file: instance already exists", goerrors.CategoryConflict, core.ErrorBadInput, map[string]any{
			"instance": name,
		})
	}
	return writeJSON(filepath.Join(dir, instanceConfigFile), cfg, 0o644)
}

// ListInstances returns the names of directories holding an instance config.
func (s *InstanceStore) ListInstances(ctx context.Context) ([]string, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, ioError(err, "file: list instances", s.root)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, statErr := os.Stat(filepath.Join(s.root, entry.Name(), instanceConfigFile)); statErr != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *InstanceStore) RemoveInstance(ctx context.Context, name string) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	dir, err := s.InstancePath(name)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(dir); errors.Is(statErr, fs.ErrNotExist) {
		return instanceNotFound(name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return ioError(err, "file: remove instance", dir)
	}
	return nil
}

func (s *InstanceStore) RenameInstance(ctx context.Context, from string, to string) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	src, err := s.InstancePath(from)
	if err != nil {
		return err
	}
	dst, err := s.InstancePath(to)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(src); errors.Is(statErr, fs.ErrNotExist) {
		return instanceNotFound(from)
	}
	if _, statErr := os.Stat(dst); statErr == nil {
		return core.NewError("file: instance already exists", goerrors.CategoryConflict, core.ErrorBadInput, map[string]any{
			"instance": to,
		})
	}
	if err := os.Rename(src, dst); err != nil {
		return ioError(err, "file: rename instance", src)
	}
	return nil
}

func instanceNotFound(name string) error {
	return core.NewError("file: instance not found", goerrors.CategoryNotFound, core.ErrorInstanceNotFound, map[string]any{
		"instance": name,
	})
}

var _ core.InstanceStore = (*InstanceStore)(nil)
