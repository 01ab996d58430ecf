// Package manifest resolves version manifests into the platform-specific set
// of artifacts and launch arguments.
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
	"github.com/goliatone/go-launcher/rules"
)

const archPlaceholder = "${arch}"

type Config struct {
	// MetaDir holds cached version manifests as <id>.json. The global version
	// list is cached one level above it.
	MetaDir            string
	AssetIndexesDir    string
	VersionManifestURL string
	ResourcesURL       string
	Platform           core.Platform
	Downloader         core.Downloader
}

type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) (*Resolver, error) {
	if strings.TrimSpace(cfg.MetaDir) == "" {
		return nil, core.NewError("manifest: meta dir is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	if cfg.Downloader == nil {
		return nil, core.NewError("manifest: downloader is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	if strings.TrimSpace(cfg.VersionManifestURL) == "" {
		cfg.VersionManifestURL = core.DefaultVersionManifestURL
	}
	if strings.TrimSpace(cfg.ResourcesURL) == "" {
		cfg.ResourcesURL = core.DefaultResourcesURL
	}
	cfg.ResourcesURL = strings.TrimRight(strings.TrimSpace(cfg.ResourcesURL), "/")
	if strings.TrimSpace(cfg.AssetIndexesDir) == "" {
		cfg.AssetIndexesDir = filepath.Join(filepath.Dir(cfg.MetaDir), "assets", "indexes")
	}
	cfg.Platform.OSName = rules.NormalizeOSName(cfg.Platform.OSName)
	return &Resolver{cfg: cfg}, nil
}

func NewResolverFromConfig(cfg core.Config, downloader core.Downloader, platform core.Platform) (*Resolver, error) {
	return NewResolver(Config{
		MetaDir:            cfg.MetaDir(),
		AssetIndexesDir:    cfg.AssetIndexesDir(),
		VersionManifestURL: cfg.Endpoints.VersionManifest,
		ResourcesURL:       cfg.Endpoints.Resources,
		Platform:           platform,
		Downloader:         downloader,
	})
}

// ManifestPath is where the raw manifest for versionID is cached.
func (r *Resolver) ManifestPath(versionID string) string {
	return filepath.Join(r.cfg.MetaDir, versionID+".json")
}

// Resolve loads the manifest for versionID, downloading it only when the
// cached copy is absent, and resolves it for the configured platform. An
// empty manifestURL is looked up in the global version list.
func (r *Resolver) Resolve(ctx context.Context, versionID string, manifestURL string) (core.ResolvedManifest, error) {
	versionID = strings.TrimSpace(versionID)
	if err := validateVersionID(versionID); err != nil {
		return core.ResolvedManifest{}, err
	}
	manifestPath := r.ManifestPath(versionID)
	if !fileExists(manifestPath) {
		if strings.TrimSpace(manifestURL) == "" {
			summary, err := r.FindVersion(ctx, versionID)
			if err != nil {
				return core.ResolvedManifest{}, err
			}
			manifestURL = summary.URL
		}
		if err := r.cfg.Downloader.Download(ctx, manifestURL, manifestPath); err != nil {
			return core.ResolvedManifest{}, err
		}
	}

	meta, err := readVersionMeta(manifestPath)
	if err != nil {
		return core.ResolvedManifest{}, err
	}
	return ResolveMeta(meta, r.cfg.Platform)
}

// ResolveMeta applies platform rules to a decoded manifest.
func ResolveMeta(meta VersionMeta, platform core.Platform) (core.ResolvedManifest, error) {
	if err := validateMeta(meta); err != nil {
		return core.ResolvedManifest{}, err
	}
	platform.OSName = rules.NormalizeOSName(platform.OSName)

	resolved := core.ResolvedManifest{
		VersionID: meta.ID,
		Type:      meta.Type,
		MainClass: meta.MainClass,
		Assets:    meta.Assets,
		Client: core.Artifact{
			Path: ClientPath(meta.ID),
			URL:  meta.Downloads.Client.URL,
			SHA1: meta.Downloads.Client.SHA1,
			Size: meta.Downloads.Client.Size,
		},
		Libraries: []core.Artifact{},
		Natives:   []core.Artifact{},
		AssetIndex: core.AssetIndexRef{
			ID:        meta.AssetIndex.ID,
			URL:       meta.AssetIndex.URL,
			SHA1:      meta.AssetIndex.SHA1,
			Size:      meta.AssetIndex.Size,
			TotalSize: meta.AssetIndex.TotalSize,
		},
		JVMArguments:  []string{},
		GameArguments: []string{},
	}
	if resolved.Assets == "" {
		resolved.Assets = meta.AssetIndex.ID
	}
	if meta.JavaVersion != nil {
		resolved.JavaMajorVersion = meta.JavaVersion.MajorVersion
	}

	seen := map[string]struct{}{resolved.Client.Path: {}}
	add := func(target *[]core.Artifact, artifact core.Artifact) {
		if _, ok := seen[artifact.Path]; ok {
			return
		}
		seen[artifact.Path] = struct{}{}
		*target = append(*target, artifact)
	}

	for _, library := range meta.Libraries {
		if !rules.Evaluate(library.Rules, platform) {
			continue
		}
		if library.Downloads.Artifact != nil && strings.TrimSpace(library.Downloads.Artifact.Path) != "" {
			add(&resolved.Libraries, toArtifact(*library.Downloads.Artifact))
		}
		native, ok, err := nativeArtifact(library, platform)
		if err != nil {
			return core.ResolvedManifest{}, err
		}
		if ok {
			add(&resolved.Natives, native)
		}
	}

	if meta.Arguments != nil {
		resolved.GameArguments = expandArguments(meta.Arguments.Game, platform)
		resolved.JVMArguments = expandArguments(meta.Arguments.JVM, platform)
	} else if strings.TrimSpace(meta.MinecraftArguments) != "" {
		resolved.GameArguments = strings.Fields(meta.MinecraftArguments)
	}
	return resolved, nil
}

// ClientPath is the library-relative path of the client jar.
func ClientPath(versionID string) string {
	return path.Join("com", "mojang", "minecraft", versionID, "minecraft-"+versionID+"-client.jar")
}

func nativeArtifact(library Library, platform core.Platform) (core.Artifact, bool, error) {
	if len(library.Natives) == 0 {
		return core.Artifact{}, false, nil
	}
	classifier, ok := library.Natives[platform.OSName]
	if !ok {
		names := make([]string, 0, len(library.Natives))
		for name := range library.Natives {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if rules.NormalizeOSName(name) == platform.OSName {
				classifier, ok = library.Natives[name], true
				break
			}
		}
	}
	if !ok {
		return core.Artifact{}, false, nil
	}
	classifier = strings.ReplaceAll(classifier, archPlaceholder, rules.ArchBits(platform.OSArch))
	artifact, ok := library.Downloads.Classifiers[classifier]
	if !ok || strings.TrimSpace(artifact.Path) == "" {
		return core.Artifact{}, false, core.NewError(
			"manifest: library declares natives without a matching classifier",
			goerrors.CategoryExternal,
			core.ErrorManifestMissingNatives,
			map[string]any{
				"library":    library.Name,
				"classifier": classifier,
				"os":         platform.OSName,
			},
		)
	}
	native := toArtifact(artifact)
	if library.Extract != nil {
		native.Exclude = extractExcludes(library.Extract.Exclude)
	}
	return native, true, nil
}

func extractExcludes(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, strings.ReplaceAll(trimmed, `\`, "/"))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func expandArguments(args []Argument, platform core.Platform) []string {
	out := []string{}
	for _, arg := range args {
		if !rules.Evaluate(arg.Rules, platform) {
			continue
		}
		out = append(out, arg.Values...)
	}
	return out
}

func toArtifact(artifact LibraryArtifact) core.Artifact {
	return core.Artifact{
		Path: filepath.ToSlash(strings.TrimSpace(artifact.Path)),
		URL:  strings.TrimSpace(artifact.URL),
		SHA1: strings.ToLower(strings.TrimSpace(artifact.SHA1)),
		Size: artifact.Size,
	}
}

func readVersionMeta(manifestPath string) (VersionMeta, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return VersionMeta{}, core.WrapError(err, goerrors.CategoryInternal, core.ErrorFetchIO, "manifest: read cached manifest", map[string]any{
			core.MetadataPath: manifestPath,
		})
	}
	var meta VersionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return VersionMeta{}, core.WrapError(err, goerrors.CategoryExternal, core.ErrorManifestDecode, "manifest: decode version manifest", map[string]any{
			core.MetadataPath: manifestPath,
		})
	}
	return meta, nil
}

func validateMeta(meta VersionMeta) error {
	missing := []string{}
	if strings.TrimSpace(meta.ID) == "" {
		missing = append(missing, "id")
	}
	if meta.Downloads.Client == nil || strings.TrimSpace(meta.Downloads.Client.URL) == "" {
		missing = append(missing, "downloads.client")
	}
	if meta.AssetIndex == nil || strings.TrimSpace(meta.AssetIndex.ID) == "" {
		missing = append(missing, "assetIndex")
	}
	if len(missing) == 0 {
		return nil
	}
	return core.NewError("manifest: version manifest is missing required fields", goerrors.CategoryExternal, core.ErrorManifestDecode, map[string]any{
		"missing": missing,
	})
}

func validateVersionID(versionID string) error {
	if versionID == "" || strings.ContainsAny(versionID, `/\`) || versionID == "." || versionID == ".." {
		return core.NewError("manifest: invalid version id", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
			"version_id": versionID,
		})
	}
	return nil
}

func fileExists(name string) bool {
	info, err := os.Stat(name)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

var (
	_ core.ManifestResolver = (*Resolver)(nil)
	_ core.VersionSource    = (*Resolver)(nil)
)
