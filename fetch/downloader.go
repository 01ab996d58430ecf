package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	"github.com/google/uuid"
)

const defaultDownloadTimeout = 10 * time.Minute

// HTTPDownloader streams a URL to a file. The destination only appears once
// the transfer completed.
type HTTPDownloader struct {
	Client    core.HTTPDoer
	UserAgent string
	// MaxBytes bounds a single transfer. Zero means unbounded.
	MaxBytes int64
}

func NewHTTPDownloader(client core.HTTPDoer) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: defaultDownloadTimeout}
	}
	return &HTTPDownloader{Client: client, UserAgent: "go-launcher"}
}

func (d *HTTPDownloader) Download(ctx context.Context, rawURL string, dest string) error {
	if d == nil || d.Client == nil {
		return core.NewError("fetch: downloader requires an http client", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rawURL = strings.TrimSpace(rawURL)
	metadata := map[string]any{core.MetadataURL: rawURL, core.MetadataPath: dest}
	if rawURL == "" {
		return core.NewError("fetch: download url is required", goerrors.CategoryBadInput, core.ErrorBadInput, metadata)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return core.WrapError(err, goerrors.CategoryBadInput, core.ErrorBadInput, "fetch: create download request", metadata)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	res, err := d.Client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.WrapError(ctxErr, goerrors.CategoryOperation, core.ErrorFetchNetwork, "fetch: download cancelled", metadata)
		}
		return core.WrapError(err, goerrors.CategoryExternal, core.ErrorFetchNetwork, "fetch: download request failed", metadata)
	}
	defer res.Body.Close()
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		metadata[core.MetadataStatusCode] = res.StatusCode
		return core.NewError(fmt.Sprintf("fetch: download failed with status %d", res.StatusCode), goerrors.CategoryExternal, core.ErrorFetchNetwork, metadata)
	}

	var body io.Reader = res.Body
	if d.MaxBytes > 0 {
		body = io.LimitReader(res.Body, d.MaxBytes+1)
	}
	written, err := writeAtomically(dest, body)
	if err != nil {
		return err
	}
	if d.MaxBytes > 0 && written > d.MaxBytes {
		_ = os.Remove(dest)
		return core.NewError(fmt.Sprintf("fetch: download exceeds limit of %d bytes", d.MaxBytes), goerrors.CategoryExternal, core.ErrorFetchNetwork, metadata)
	}
	return nil
}

// writeAtomically copies src into a uuid named temp file next to dest and
// renames it into place.
func writeAtomically(dest string, src io.Reader) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, ioError(err, "fetch: create destination dir", dir)
	}
	tmpPath := tempPath(dest)
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, ioError(err, "fetch: create temp file", tmpPath)
	}
	written, copyErr := io.Copy(file, src)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return written, core.WrapError(copyErr, goerrors.CategoryExternal, core.ErrorFetchNetwork, "fetch: stream download", map[string]any{
			core.MetadataPath: dest,
		})
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return written, ioError(closeErr, "fetch: close temp file", tmpPath)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return written, ioError(err, "fetch: move download into place", dest)
	}
	return written, nil
}

func tempPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+"."+uuid.NewString()+".part")
}

func ioError(err error, message string, path string) error {
	return core.WrapError(err, goerrors.CategoryInternal, core.ErrorFetchIO, message, map[string]any{
		core.MetadataPath: path,
	})
}

var _ core.Downloader = (*HTTPDownloader)(nil)
