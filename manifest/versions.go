package manifest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
)

// VersionListPath is where the global version list is cached.
func (r *Resolver) VersionListPath() string {
	return filepath.Join(filepath.Dir(r.cfg.MetaDir), "version_manifest.json")
}

// VersionList downloads the global version list. It is always re-fetched so
// new releases show up.
func (r *Resolver) VersionList(ctx context.Context) (core.VersionList, error) {
	listPath := r.VersionListPath()
	if err := r.cfg.Downloader.Download(ctx, r.cfg.VersionManifestURL, listPath); err != nil {
		return core.VersionList{}, err
	}
	data, err := os.ReadFile(listPath)
	if err != nil {
		return core.VersionList{}, core.WrapError(err, goerrors.CategoryInternal, core.ErrorFetchIO, "manifest: read version list", map[string]any{
			core.MetadataPath: listPath,
		})
	}
	var decoded versionManifest
	if err := json.Unmarshal(data, &decoded); err != nil {
		return core.VersionList{}, core.WrapError(err, goerrors.CategoryExternal, core.ErrorManifestDecode, "manifest: decode version list", map[string]any{
			core.MetadataURL: r.cfg.VersionManifestURL,
		})
	}
	list := core.VersionList{
		LatestRelease:  decoded.Latest.Release,
		LatestSnapshot: decoded.Latest.Snapshot,
		Versions:       decoded.Versions,
	}
	if list.Versions == nil {
		list.Versions = []core.VersionSummary{}
	}
	return list, nil
}

// FindVersion looks versionID up in the global version list.
func (r *Resolver) FindVersion(ctx context.Context, versionID string) (core.VersionSummary, error) {
	list, err := r.VersionList(ctx)
	if err != nil {
		return core.VersionSummary{}, err
	}
	return FindVersion(list, versionID)
}

func FindVersion(list core.VersionList, versionID string) (core.VersionSummary, error) {
	versionID = strings.TrimSpace(versionID)
	for _, summary := range list.Versions {
		if summary.ID == versionID {
			return summary, nil
		}
	}
	return core.VersionSummary{}, core.NewError("manifest: version not found", goerrors.CategoryNotFound, core.ErrorManifestNotFound, map[string]any{
		"version_id": versionID,
	})
}
