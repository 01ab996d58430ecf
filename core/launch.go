package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const defaultJavaPath = "java"

// PrepareLaunch materializes everything an instance needs and returns the
// fully substituted command line. No process is started.
func (s *Service) PrepareLaunch(ctx context.Context, req PrepareLaunchRequest) (plan LaunchPlan, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"instance":   req.InstanceName,
		"account_id": req.AccountID,
	}
	defer func() {
		if plan.Manifest.VersionID != "" {
			fields["version_id"] = plan.Manifest.VersionID
		}
		s.observeOperation(ctx, startedAt, "prepare_launch", err, fields)
	}()

	instanceName := strings.TrimSpace(req.InstanceName)
	if instanceName == "" {
		err = s.mapError(fmt.Errorf("core: instance name is required"))
		return LaunchPlan{}, err
	}
	switch {
	case s.instances == nil:
		err = s.dependencyError("instance store")
	case s.manifests == nil:
		err = s.dependencyError("manifest resolver")
	case s.libraries == nil:
		err = s.dependencyError("library fetcher")
	case s.natives == nil:
		err = s.dependencyError("native stager")
	}
	if err != nil {
		return LaunchPlan{}, err
	}

	instanceConfig, err := s.instances.ReadInstanceConfig(ctx, instanceName)
	if err != nil {
		err = s.mapError(err)
		return LaunchPlan{}, err
	}
	instancePath, err := s.instances.InstancePath(instanceName)
	if err != nil {
		err = s.mapError(err)
		return LaunchPlan{}, err
	}

	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		accountID, err = s.defaultAccountID(ctx)
		if err != nil {
			return LaunchPlan{}, err
		}
		fields["account_id"] = accountID
	}
	session, err := s.Session(ctx, accountID)
	if err != nil {
		return LaunchPlan{}, err
	}

	manifest, err := s.Resolve(ctx, instanceConfig.GameVersion, req.ManifestURL)
	if err != nil {
		return LaunchPlan{}, err
	}

	fetchedAssets := 0
	if s.assets != nil && strings.TrimSpace(manifest.AssetIndex.URL) != "" {
		assetArtifacts, assetErr := s.manifests.AssetArtifacts(ctx, manifest.AssetIndex)
		if assetErr != nil {
			err = s.mapError(assetErr)
			return LaunchPlan{}, err
		}
		if err = s.assets.FetchAll(ctx, assetArtifacts, s.config.FetchConcurrency()); err != nil {
			return LaunchPlan{}, err
		}
		fetchedAssets = len(assetArtifacts)
	}

	libraryArtifacts := make([]Artifact, 0, len(manifest.Libraries)+len(manifest.Natives)+1)
	libraryArtifacts = append(libraryArtifacts, manifest.Client)
	libraryArtifacts = append(libraryArtifacts, manifest.Libraries...)
	libraryArtifacts = append(libraryArtifacts, manifest.Natives...)
	if err = s.FetchAll(ctx, libraryArtifacts); err != nil {
		return LaunchPlan{}, err
	}

	nativesDir, err := s.StageNatives(ctx, manifest.Natives)
	if err != nil {
		return LaunchPlan{}, err
	}

	launcherConfig := DefaultLauncherConfig()
	if s.configStore != nil {
		launcherConfig, err = s.configStore.Read(ctx)
		if err != nil {
			err = s.mapError(err)
			return LaunchPlan{}, err
		}
	}

	vars := s.launchVariables(instanceConfig, instancePath, manifest, session, nativesDir)
	jvmArgs := manifest.JVMArguments
	if len(jvmArgs) == 0 {
		jvmArgs = []string{
			"-Djava.library.path=${natives_directory}",
			"-cp",
			"${classpath}",
		}
	}
	arguments := make([]string, 0, len(jvmArgs)+len(manifest.GameArguments)+2)
	if memory := strings.TrimSpace(launcherConfig.Java.Memory); memory != "" {
		arguments = append(arguments, "-Xmx"+memory)
	}
	arguments = append(arguments, ExpandArguments(jvmArgs, vars)...)

	mainClass := strings.TrimSpace(instanceConfig.MainClass)
	if mainClass == "" {
		mainClass = manifest.MainClass
	}
	arguments = append(arguments, mainClass)
	arguments = append(arguments, ExpandArguments(manifest.GameArguments, vars)...)

	javaPath := strings.TrimSpace(launcherConfig.Java.Path)
	if javaPath == "" {
		javaPath = defaultJavaPath
	}

	if s.configStore != nil {
		launcherConfig.LastLaunchedInstance = instanceName
		if err = s.configStore.Write(ctx, launcherConfig); err != nil {
			err = s.mapError(err)
			return LaunchPlan{}, err
		}
	}

	plan = LaunchPlan{
		JavaPath:      javaPath,
		WorkingDir:    instancePath,
		MainClass:     mainClass,
		Arguments:     arguments,
		NativesDir:    nativesDir,
		Manifest:      manifest,
		Session:       session,
		FetchedAssets: fetchedAssets,
	}
	return plan, nil
}

func (s *Service) defaultAccountID(ctx context.Context) (string, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", NewError("core: no account is signed in", goerrors.CategoryNotFound, ErrorAccountNotFound, nil)
	}
	return accounts[0].ID, nil
}

func (s *Service) launchVariables(
	instance InstanceConfig,
	instancePath string,
	manifest ResolvedManifest,
	session ServiceSession,
	nativesDir string,
) map[string]string {
	launch := s.config.Launch
	versionType := strings.TrimSpace(instance.VersionType)
	if versionType == "" {
		versionType = manifest.Type
	}
	return map[string]string{
		"auth_player_name":  session.DisplayName,
		"version_name":      manifest.VersionID,
		"game_directory":    instancePath,
		"assets_root":       s.config.AssetsDir(),
		"assets_index_name": manifest.AssetIndex.ID,
		"auth_uuid":         session.SubjectID,
		"auth_access_token": session.AccessToken,
		"clientid":          strings.TrimSpace(launch.LauncherName + " " + launch.LauncherVersion),
		"user_type":         launch.UserType,
		"version_type":      versionType,
		"natives_directory": nativesDir,
		"launcher_name":     launch.LauncherName,
		"launcher_version":  launch.LauncherVersion,
		"classpath":         s.classpath(manifest),
	}
}

// classpath lists libraries then the client jar, joined by the OS list separator.
func (s *Service) classpath(manifest ResolvedManifest) string {
	root := s.libraries.Root()
	entries := make([]string, 0, len(manifest.Libraries)+1)
	for _, library := range manifest.Libraries {
		entries = append(entries, filepath.Join(root, filepath.FromSlash(library.Path)))
	}
	entries = append(entries, filepath.Join(root, filepath.FromSlash(manifest.Client.Path)))
	return strings.Join(entries, string(os.PathListSeparator))
}

// ExpandArguments replaces every ${name} placeholder with vars[name]. Unknown
// placeholders are left untouched.
func ExpandArguments(args []string, vars map[string]string) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names)*2)
	for _, name := range names {
		pairs = append(pairs, "${"+name+"}", vars[name])
	}
	replacer := strings.NewReplacer(pairs...)

	out := make([]string, 0, len(args))
	for _, arg := range args {
		out = append(out, replacer.Replace(arg))
	}
	return out
}

func DefaultLauncherConfig() LauncherConfig {
	return LauncherConfig{
		Locale: "en",
		Java: JavaConfig{
			Path:   defaultJavaPath,
			Memory: "2G",
		},
	}
}
