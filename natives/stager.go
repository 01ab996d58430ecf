// Package natives extracts platform native libraries into a staging dir.
package natives

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	"github.com/goliatone/go-launcher/fetch"
	"github.com/klauspost/compress/zip"
)

type Config struct {
	LibraryRoot string
	StagingDir  string
	// Excludes are archive prefixes skipped for every native, on top of the
	// exclude list each library declares.
	Excludes []string
	Logger   core.Logger
}

type Stager struct {
	libraryRoot string
	stagingDir  string
	excludes    []string
	logger      core.Logger
}

func New(cfg Config) (*Stager, error) {
	if strings.TrimSpace(cfg.LibraryRoot) == "" || strings.TrimSpace(cfg.StagingDir) == "" {
		return nil, core.NewError("natives: library root and staging dir are required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	return &Stager{
		libraryRoot: filepath.Clean(cfg.LibraryRoot),
		stagingDir:  filepath.Clean(cfg.StagingDir),
		excludes:    append([]string(nil), cfg.Excludes...),
		logger:      cfg.Logger,
	}, nil
}

// StageNatives clears the staging dir and extracts every native archive into
// it. Directory entries, prefixes in the artifact's Exclude list and entries
// that would land outside the staging dir are skipped. An artifact path that
// leaves the library root fails the whole staging.
func (s *Stager) StageNatives(ctx context.Context, natives []core.Artifact) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := os.RemoveAll(s.stagingDir); err != nil {
		return "", ioError(err, "natives: clear staging dir", s.stagingDir)
	}
	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return "", ioError(err, "natives: create staging dir", s.stagingDir)
	}
	for _, artifact := range natives {
		if err := ctx.Err(); err != nil {
			return "", core.WrapError(err, goerrors.CategoryOperation, core.ErrorFetchIO, "natives: staging cancelled", nil)
		}
		relative, err := fetch.CleanRelative(artifact.Path)
		if err != nil {
			return "", err
		}
		archivePath := filepath.Join(s.libraryRoot, relative)
		if err := s.extract(archivePath, artifact.Exclude); err != nil {
			return "", err
		}
	}
	return s.stagingDir, nil
}

func (s *Stager) extract(archivePath string, excludes []string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return core.WrapError(err, goerrors.CategoryInternal, core.ErrorFetchIO, "natives: open native archive", map[string]any{
			core.MetadataPath: archivePath,
		})
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() || strings.HasSuffix(entry.Name, "/") {
			continue
		}
		if excluded(entry.Name, s.excludes) || excluded(entry.Name, excludes) {
			continue
		}
		target, ok := SafeJoin(s.stagingDir, entry.Name)
		if !ok {
			s.logWarn("natives: skipping archive entry outside staging dir", "archive", archivePath, "entry", entry.Name)
			continue
		}
		if err := writeEntry(entry, target); err != nil {
			return err
		}
	}
	return nil
}

func excluded(name string, prefixes []string) bool {
	normalized := strings.ReplaceAll(name, `\`, "/")
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

// SafeJoin joins an archive entry name onto root. It reports false for
// absolute names, drive letters and names that climb out of root.
func SafeJoin(root string, name string) (string, bool) {
	normalized := strings.ReplaceAll(name, `\`, "/")
	if normalized == "" || strings.HasPrefix(normalized, "/") {
		return "", false
	}
	if len(normalized) >= 2 && normalized[1] == ':' {
		return "", false
	}
	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return "", false
		}
	}
	cleaned := filepath.Clean(filepath.FromSlash(normalized))
	if cleaned == "." || filepath.IsAbs(cleaned) || filepath.VolumeName(cleaned) != "" {
		return "", false
	}
	target := filepath.Join(root, cleaned)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}

func writeEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return ioError(err, "natives: create entry dir", filepath.Dir(target))
	}
	src, err := entry.Open()
	if err != nil {
		return ioError(err, "natives: open archive entry", entry.Name)
	}
	defer src.Close()

	mode := entry.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return ioError(err, "natives: create staged file", target)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return ioError(err, "natives: write staged file", target)
	}
	if err := dst.Close(); err != nil {
		return ioError(err, "natives: close staged file", target)
	}
	return nil
}

func (s *Stager) logWarn(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, args...)
}

func ioError(err error, message string, path string) error {
	return core.WrapError(err, goerrors.CategoryInternal, core.ErrorFetchIO, message, map[string]any{
		core.MetadataPath: path,
	})
}

var _ core.NativeStager = (*Stager)(nil)
