package manifest

import (
	"context"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const resolvedManifestCacheKeyPrefix = "go-launcher::manifest::v1"

// CachedResolver is a read-through cache in front of a ManifestResolver.
// Resolved manifests are version-immutable so entries are never invalidated
// by writes.
type CachedResolver struct {
	base  core.ManifestResolver
	cache repositorycache.CacheService
}

func NewCachedResolver(base core.ManifestResolver, cacheService repositorycache.CacheService) (*CachedResolver, error) {
	if base == nil {
		return nil, core.NewError("manifest: base resolver is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	if cacheService == nil {
		return nil, core.NewError("manifest: cache service is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	return &CachedResolver{base: base, cache: cacheService}, nil
}

// NewDefaultCacheService builds the in-memory cache service used by the
// default wiring.
func NewDefaultCacheService() (repositorycache.CacheService, error) {
	return repositorycache.NewCacheService(repositorycache.DefaultConfig())
}

func ResolvedManifestCacheKey(versionID string) string {
	return resolvedManifestCacheKeyPrefix + "::resolved::" + url.PathEscape(strings.TrimSpace(versionID))
}

func AssetArtifactsCacheKey(ref core.AssetIndexRef) string {
	return resolvedManifestCacheKeyPrefix + "::assets::" + url.PathEscape(strings.TrimSpace(ref.ID))
}

func (r *CachedResolver) Resolve(ctx context.Context, versionID string, manifestURL string) (core.ResolvedManifest, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.ResolvedManifest{}, core.NewError("manifest: cached resolver is not configured", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	resolved, err := repositorycache.GetOrFetch(ctx, r.cache, ResolvedManifestCacheKey(versionID), func(ctx context.Context) (core.ResolvedManifest, error) {
		return r.base.Resolve(ctx, versionID, manifestURL)
	})
	if err != nil {
		return core.ResolvedManifest{}, err
	}
	return cloneResolvedManifest(resolved), nil
}

func (r *CachedResolver) AssetArtifacts(ctx context.Context, ref core.AssetIndexRef) ([]core.Artifact, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return nil, core.NewError("manifest: cached resolver is not configured", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	artifacts, err := repositorycache.GetOrFetch(ctx, r.cache, AssetArtifactsCacheKey(ref), func(ctx context.Context) ([]core.Artifact, error) {
		return r.base.AssetArtifacts(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	return append([]core.Artifact(nil), artifacts...), nil
}

// VersionList bypasses the cache; the list changes as versions are published.
func (r *CachedResolver) VersionList(ctx context.Context) (core.VersionList, error) {
	if r == nil || r.base == nil {
		return core.VersionList{}, core.NewError("manifest: cached resolver is not configured", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	source, ok := r.base.(core.VersionSource)
	if !ok {
		return core.VersionList{}, core.NewError("manifest: base resolver cannot list versions", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	return source.VersionList(ctx)
}

func cloneResolvedManifest(in core.ResolvedManifest) core.ResolvedManifest {
	out := in
	out.Libraries = append([]core.Artifact{}, in.Libraries...)
	out.Natives = append([]core.Artifact{}, in.Natives...)
	for i := range out.Natives {
		out.Natives[i].Exclude = append([]string(nil), in.Natives[i].Exclude...)
	}
	out.JVMArguments = append([]string{}, in.JVMArguments...)
	out.GameArguments = append([]string{}, in.GameArguments...)
	return out
}

var (
	_ core.ManifestResolver = (*CachedResolver)(nil)
	_ core.VersionSource    = (*CachedResolver)(nil)
)
