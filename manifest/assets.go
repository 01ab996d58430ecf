package manifest

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
)

// AssetIndexPath is where the asset index ref is cached.
func (r *Resolver) AssetIndexPath(ref core.AssetIndexRef) string {
	return filepath.Join(r.cfg.AssetIndexesDir, ref.ID+".json")
}

// AssetIndex loads the asset objects named by ref, downloading the index only
// when it is not cached. Objects are sorted by name.
func (r *Resolver) AssetIndex(ctx context.Context, ref core.AssetIndexRef) ([]core.AssetObject, error) {
	if err := validateVersionID(strings.TrimSpace(ref.ID)); err != nil {
		return nil, err
	}
	indexPath := r.AssetIndexPath(ref)
	if !fileExists(indexPath) {
		if strings.TrimSpace(ref.URL) == "" {
			return nil, core.NewError("manifest: asset index url is required", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
				"asset_index": ref.ID,
			})
		}
		if err := r.cfg.Downloader.Download(ctx, ref.URL, indexPath); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, core.WrapError(err, goerrors.CategoryInternal, core.ErrorFetchIO, "manifest: read asset index", map[string]any{
			core.MetadataPath: indexPath,
		})
	}
	var decoded assetIndexDocument
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, core.WrapError(err, goerrors.CategoryExternal, core.ErrorManifestDecode, "manifest: decode asset index", map[string]any{
			core.MetadataPath: indexPath,
		})
	}

	objects := make([]core.AssetObject, 0, len(decoded.Objects))
	for name, object := range decoded.Objects {
		hash := strings.ToLower(strings.TrimSpace(object.Hash))
		if !validHash(hash) {
			return nil, core.NewError("manifest: asset object has an invalid hash", goerrors.CategoryExternal, core.ErrorManifestDecode, map[string]any{
				"asset": name,
				"hash":  object.Hash,
			})
		}
		objects = append(objects, core.AssetObject{Name: name, Hash: hash, Size: object.Size})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// AssetArtifacts maps the asset index to content addressed artifacts
// relative to the asset objects dir. Objects sharing a hash collapse.
func (r *Resolver) AssetArtifacts(ctx context.Context, ref core.AssetIndexRef) ([]core.Artifact, error) {
	objects, err := r.AssetIndex(ctx, ref)
	if err != nil {
		return nil, err
	}
	return AssetArtifacts(r.cfg.ResourcesURL, objects), nil
}

func AssetArtifacts(resourcesURL string, objects []core.AssetObject) []core.Artifact {
	resourcesURL = strings.TrimRight(strings.TrimSpace(resourcesURL), "/")
	seen := map[string]struct{}{}
	artifacts := make([]core.Artifact, 0, len(objects))
	for _, object := range objects {
		if _, ok := seen[object.Hash]; ok {
			continue
		}
		seen[object.Hash] = struct{}{}
		relative := AssetObjectPath(object.Hash)
		artifacts = append(artifacts, core.Artifact{
			Path: relative,
			URL:  resourcesURL + "/" + relative,
			SHA1: object.Hash,
			Size: object.Size,
		})
	}
	return artifacts
}

// AssetObjectPath is <first two hash chars>/<hash>.
func AssetObjectPath(hash string) string {
	return path.Join(hash[:2], hash)
}

func validHash(hash string) bool {
	if len(hash) < 2 {
		return false
	}
	for _, r := range hash {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
