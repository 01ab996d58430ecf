package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-launcher/core"
)

// VersionMeta is the per-version manifest document.
type VersionMeta struct {
	ID                 string           `json:"id"`
	Type               string           `json:"type"`
	MainClass          string           `json:"mainClass"`
	Assets             string           `json:"assets"`
	AssetIndex         *AssetIndex      `json:"assetIndex"`
	Downloads          VersionDownloads `json:"downloads"`
	Libraries          []Library        `json:"libraries"`
	Arguments          *Arguments       `json:"arguments,omitempty"`
	MinecraftArguments string           `json:"minecraftArguments,omitempty"`
	JavaVersion        *JavaVersion     `json:"javaVersion,omitempty"`
	ReleaseTime        string           `json:"releaseTime,omitempty"`
	Time               string           `json:"time,omitempty"`
}

type AssetIndex struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1"`
	Size      int64  `json:"size"`
	TotalSize int64  `json:"totalSize"`
	URL       string `json:"url"`
}

type Download struct {
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type VersionDownloads struct {
	Client         *Download `json:"client"`
	ClientMappings *Download `json:"client_mappings,omitempty"`
	Server         *Download `json:"server,omitempty"`
	ServerMappings *Download `json:"server_mappings,omitempty"`
}

type JavaVersion struct {
	Component    string `json:"component"`
	MajorVersion int    `json:"majorVersion"`
}

type Library struct {
	Name      string            `json:"name"`
	Downloads LibraryDownloads  `json:"downloads"`
	Natives   map[string]string `json:"natives,omitempty"`
	Rules     []core.Rule       `json:"rules,omitempty"`
	Extract   *ExtractRules     `json:"extract,omitempty"`
}

type LibraryDownloads struct {
	Artifact    *LibraryArtifact           `json:"artifact,omitempty"`
	Classifiers map[string]LibraryArtifact `json:"classifiers,omitempty"`
}

type LibraryArtifact struct {
	Path string `json:"path"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type ExtractRules struct {
	Exclude []string `json:"exclude"`
}

type Arguments struct {
	Game []Argument `json:"game"`
	JVM  []Argument `json:"jvm"`
}

// Argument is either a plain string or a conditional value guarded by rules.
type Argument struct {
	Values []string
	Rules  []core.Rule
}

func (a *Argument) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*a = Argument{Values: []string{value}}
		return nil
	}

	var conditional struct {
		Rules []core.Rule     `json:"rules"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &conditional); err != nil {
		return err
	}
	values, err := decodeArgumentValue(conditional.Value)
	if err != nil {
		return err
	}
	*a = Argument{Values: values, Rules: conditional.Rules}
	return nil
}

func (a Argument) MarshalJSON() ([]byte, error) {
	if len(a.Rules) == 0 && len(a.Values) == 1 {
		return json.Marshal(a.Values[0])
	}
	return json.Marshal(struct {
		Rules []core.Rule `json:"rules,omitempty"`
		Value []string    `json:"value"`
	}{Rules: a.Rules, Value: a.Values})
}

func decodeArgumentValue(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("argument value is required")
	}
	if raw[0] == '"' {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, err
		}
		return []string{value}, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// versionManifest is the global list of published versions.
type versionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []core.VersionSummary `json:"versions"`
}

type assetIndexDocument struct {
	Objects map[string]struct {
		Hash string `json:"hash"`
		Size int64  `json:"size"`
	} `json:"objects"`
}
