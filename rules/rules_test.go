package rules

import (
	"testing"

	"github.com/goliatone/go-launcher/core"
)

func TestEvaluate(t *testing.T) {
	linux := core.Platform{OSName: "linux", OSArch: "x86_64", OSVersion: "6.8"}
	osx := core.Platform{OSName: "osx", OSArch: "arm64", OSVersion: "23.1"}
	windows := core.Platform{OSName: "windows", OSArch: "x86", OSVersion: "10.0"}

	tests := []struct {
		name  string
		rules []core.Rule
		ctx   core.Platform
		want  bool
	}{
		{name: "empty rules allow", rules: nil, ctx: linux, want: true},
		{
			name:  "single disallow osx on osx",
			rules: []core.Rule{{Action: core.RuleActionDisallow, OS: &core.OSPredicate{Name: "osx"}}},
			ctx:   osx,
			want:  false,
		},
		{
			name:  "single disallow osx elsewhere",
			rules: []core.Rule{{Action: core.RuleActionDisallow, OS: &core.OSPredicate{Name: "osx"}}},
			ctx:   linux,
			want:  true,
		},
		{
			name:  "single allow osx elsewhere defaults to deny",
			rules: []core.Rule{{Action: core.RuleActionAllow, OS: &core.OSPredicate{Name: "osx"}}},
			ctx:   windows,
			want:  false,
		},
		{
			name: "allow all then disallow osx",
			rules: []core.Rule{
				{Action: core.RuleActionAllow},
				{Action: core.RuleActionDisallow, OS: &core.OSPredicate{Name: "osx"}},
			},
			ctx:  osx,
			want: false,
		},
		{
			name: "allow all then disallow osx on linux",
			rules: []core.Rule{
				{Action: core.RuleActionAllow},
				{Action: core.RuleActionDisallow, OS: &core.OSPredicate{Name: "osx"}},
			},
			ctx:  linux,
			want: true,
		},
		{
			name: "later rule wins on conflict",
			rules: []core.Rule{
				{Action: core.RuleActionDisallow, OS: &core.OSPredicate{Name: "linux"}},
				{Action: core.RuleActionAllow, OS: &core.OSPredicate{Name: "linux"}},
			},
			ctx:  linux,
			want: true,
		},
		{
			name:  "macos spelling normalizes",
			rules: []core.Rule{{Action: core.RuleActionAllow, OS: &core.OSPredicate{Name: "macos"}}},
			ctx:   core.Platform{OSName: "darwin"},
			want:  true,
		},
		{
			name:  "arch must match exactly",
			rules: []core.Rule{{Action: core.RuleActionAllow, OS: &core.OSPredicate{Arch: "x86"}}},
			ctx:   linux,
			want:  false,
		},
		{
			name:  "arch match",
			rules: []core.Rule{{Action: core.RuleActionAllow, OS: &core.OSPredicate{Arch: "x86"}}},
			ctx:   windows,
			want:  true,
		},
		{
			name:  "version pattern match",
			rules: []core.Rule{{Action: core.RuleActionDisallow, OS: &core.OSPredicate{Name: "windows", Version: `^10\.`}}},
			ctx:   windows,
			want:  false,
		},
		{
			name:  "invalid version pattern never matches",
			rules: []core.Rule{{Action: core.RuleActionAllow, OS: &core.OSPredicate{Version: `(`}}},
			ctx:   windows,
			want:  false,
		},
		{
			name:  "required feature present",
			rules: []core.Rule{{Action: core.RuleActionAllow, Features: map[string]bool{"is_demo_user": true}}},
			ctx:   core.Platform{OSName: "linux", Features: map[string]bool{"is_demo_user": true}},
			want:  true,
		},
		{
			name:  "required feature absent",
			rules: []core.Rule{{Action: core.RuleActionAllow, Features: map[string]bool{"has_custom_resolution": true}}},
			ctx:   linux,
			want:  false,
		},
		{
			name:  "absent feature does not trigger disallow",
			rules: []core.Rule{{Action: core.RuleActionDisallow, Features: map[string]bool{"is_demo_user": true}}},
			ctx:   linux,
			want:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.rules, tc.ctx)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if again := Evaluate(tc.rules, tc.ctx); again != got {
				t.Fatalf("expected deterministic result, got %v then %v", got, again)
			}
		})
	}
}

func TestNormalizeArch(t *testing.T) {
	cases := map[string]string{
		"386":   "x86",
		"amd64": "x86_64",
		"arm64": "arm64",
		"":      "",
	}
	for input, want := range cases {
		if got := NormalizeArch(input); got != want {
			t.Fatalf("NormalizeArch(%q): expected %q, got %q", input, want, got)
		}
	}
}

func TestArchBits(t *testing.T) {
	if got := ArchBits("386"); got != "32" {
		t.Fatalf("expected 32, got %q", got)
	}
	if got := ArchBits("amd64"); got != "64" {
		t.Fatalf("expected 64, got %q", got)
	}
}

func TestCurrentPlatformCopiesFeatures(t *testing.T) {
	features := map[string]bool{"is_demo_user": false}
	platform := CurrentPlatform(features)
	features["is_demo_user"] = true
	if platform.Features["is_demo_user"] {
		t.Fatalf("expected features to be copied")
	}
	if platform.OSName == "" || platform.OSArch == "" {
		t.Fatalf("expected os name and arch, got %#v", platform)
	}
}

func TestMajorMinor(t *testing.T) {
	cases := map[string]string{
		"6.8.0-45-generic": "6.8",
		"23.1.0":           "23.1",
		"10":               "10",
		"":                 "",
	}
	for input, want := range cases {
		if got := majorMinor(input); got != want {
			t.Fatalf("majorMinor(%q): expected %q, got %q", input, want, got)
		}
	}
}
