// Package fetch materializes artifacts on disk. Fetches are idempotent per
// destination path and run with bounded parallelism.
package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Root            string
	Downloader      core.Downloader
	VerifyChecksums bool
	Logger          core.Logger
}

type Fetcher struct {
	root       string
	downloader core.Downloader
	verify     bool
	logger     core.Logger
}

func New(cfg Config) (*Fetcher, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, core.NewError("fetch: root dir is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	if cfg.Downloader == nil {
		return nil, core.NewError("fetch: downloader is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	return &Fetcher{
		root:       filepath.Clean(root),
		downloader: cfg.Downloader,
		verify:     cfg.VerifyChecksums,
		logger:     cfg.Logger,
	}, nil
}

func (f *Fetcher) Root() string {
	return f.root
}

// Destination maps an artifact path onto the fetcher root. Paths that are
// absolute or climb out of the root are rejected.
func (f *Fetcher) Destination(artifactPath string) (string, error) {
	cleaned, err := CleanRelative(artifactPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, cleaned), nil
}

// EnsureFetched makes sure the artifact exists under the root. An existing
// file counts as success and is not transferred again.
func (f *Fetcher) EnsureFetched(ctx context.Context, artifact core.Artifact) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dest, err := f.Destination(artifact.Path)
	if err != nil {
		return err
	}
	if info, statErr := os.Stat(dest); statErr == nil && info.Mode().IsRegular() {
		if !f.verify || artifact.SHA1 == "" {
			return nil
		}
		if verifyErr := verifyFile(dest, artifact); verifyErr == nil {
			return nil
		}
		f.logWarn("fetch: existing artifact failed verification, fetching again", "path", artifact.Path)
		if err := os.Remove(dest); err != nil {
			return ioError(err, "fetch: remove stale artifact", dest)
		}
	}
	if err := ctx.Err(); err != nil {
		return core.WrapError(err, goerrors.CategoryOperation, core.ErrorFetchNetwork, "fetch: cancelled", map[string]any{
			core.MetadataPath: artifact.Path,
		})
	}
	if strings.TrimSpace(artifact.URL) == "" {
		return core.NewError("fetch: artifact url is required", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
			core.MetadataPath: artifact.Path,
		})
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return ioError(err, "fetch: create artifact dir", filepath.Dir(dest))
	}
	tmp := tempPath(dest)
	if err := f.downloader.Download(ctx, artifact.URL, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := verifyFile(tmp, artifact); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return ioError(err, "fetch: move artifact into place", dest)
	}
	return nil
}

// FetchAll fetches every artifact with at most concurrency transfers in
// flight. Artifacts sharing a path are fetched once. A failure never stops its
// siblings; all failures are returned together in a *FetchReport.
func (f *Fetcher) FetchAll(ctx context.Context, artifacts []core.Artifact, concurrency int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	unique := Dedupe(artifacts)

	var (
		mu     sync.Mutex
		report = &FetchReport{Attempted: len(unique)}
		group  errgroup.Group
	)
	group.SetLimit(concurrency)
	for _, artifact := range unique {
		group.Go(func() error {
			if err := f.EnsureFetched(ctx, artifact); err != nil {
				mu.Lock()
				report.Failures = append(report.Failures, FetchFailure{Path: artifact.Path, URL: artifact.URL, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	if len(report.Failures) == 0 {
		return nil
	}
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Path < report.Failures[j].Path })
	f.logWarn("fetch: artifacts failed", "failed", len(report.Failures), "attempted", report.Attempted)
	return report
}

// Dedupe drops artifacts whose path was already seen, keeping the first.
func Dedupe(artifacts []core.Artifact) []core.Artifact {
	seen := make(map[string]struct{}, len(artifacts))
	out := make([]core.Artifact, 0, len(artifacts))
	for _, artifact := range artifacts {
		key := filepath.ToSlash(filepath.Clean(strings.TrimSpace(artifact.Path)))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, artifact)
	}
	return out
}

// CleanRelative cleans a slash separated artifact path and rejects anything
// that would resolve outside the root.
func CleanRelative(artifactPath string) (string, error) {
	trimmed := strings.TrimSpace(artifactPath)
	invalid := func() error {
		return core.NewError("fetch: invalid artifact path", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
			core.MetadataPath: artifactPath,
		})
	}
	if trimmed == "" || strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, `\`) || filepath.IsAbs(trimmed) || filepath.VolumeName(trimmed) != "" {
		return "", invalid()
	}
	if len(trimmed) >= 2 && trimmed[1] == ':' {
		return "", invalid()
	}
	cleaned := filepath.Clean(filepath.FromSlash(strings.ReplaceAll(trimmed, `\`, "/")))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", invalid()
	}
	return cleaned, nil
}

func verifyFile(path string, artifact core.Artifact) error {
	if artifact.Size <= 0 && artifact.SHA1 == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return ioError(err, "fetch: open artifact for verification", path)
	}
	defer file.Close()

	hash := sha1.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return ioError(err, "fetch: read artifact for verification", path)
	}
	metadata := map[string]any{core.MetadataPath: artifact.Path, core.MetadataURL: artifact.URL}
	if artifact.Size > 0 && size != artifact.Size {
		metadata["expected_size"] = artifact.Size
		metadata["actual_size"] = size
		return core.NewError("fetch: artifact size mismatch", goerrors.CategoryExternal, core.ErrorFetchDecode, metadata)
	}
	if artifact.SHA1 != "" {
		sum := hex.EncodeToString(hash.Sum(nil))
		if !strings.EqualFold(sum, artifact.SHA1) {
			metadata["expected_sha1"] = strings.ToLower(artifact.SHA1)
			metadata["actual_sha1"] = sum
			return core.NewError("fetch: artifact checksum mismatch", goerrors.CategoryExternal, core.ErrorFetchDecode, metadata)
		}
	}
	return nil
}

func (f *Fetcher) logWarn(msg string, args ...any) {
	if f.logger == nil {
		return
	}
	f.logger.Warn(msg, args...)
}

// FetchFailure records one artifact that could not be materialized.
type FetchFailure struct {
	Path string
	URL  string
	Err  error
}

// FetchReport aggregates the failures of a FetchAll call.
type FetchReport struct {
	Attempted int
	Failures  []FetchFailure
}

func (r *FetchReport) Error() string {
	if r == nil || len(r.Failures) == 0 {
		return "fetch: no failures"
	}
	first := r.Failures[0]
	if len(r.Failures) == 1 {
		return fmt.Sprintf("fetch: %s: %v", first.Path, first.Err)
	}
	return fmt.Sprintf("fetch: %d of %d artifacts failed; first %s: %v", len(r.Failures), r.Attempted, first.Path, first.Err)
}

func (r *FetchReport) Unwrap() []error {
	if r == nil {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, failure := range r.Failures {
		errs = append(errs, failure.Err)
	}
	return errs
}

// Paths lists the failed artifact paths.
func (r *FetchReport) Paths() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Failures))
	for _, failure := range r.Failures {
		out = append(out, failure.Path)
	}
	return out
}

var _ core.ArtifactFetcher = (*Fetcher)(nil)
