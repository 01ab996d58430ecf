// Package rules decides whether a manifest entry applies to a platform.
package rules

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/goliatone/go-launcher/core"
)

// Evaluate reports whether rules allow an entry on ctx. An empty rule set
// allows. Otherwise the baseline is the inverse of the first rule's action
// and every matching rule, in order, overrides the running result.
func Evaluate(rules []core.Rule, ctx core.Platform) bool {
	if len(rules) == 0 {
		return true
	}
	allowed := rules[0].Action != core.RuleActionAllow
	for _, rule := range rules {
		if Matches(rule, ctx) {
			allowed = rule.Action == core.RuleActionAllow
		}
	}
	return allowed
}

// Matches reports whether every predicate present on rule holds for ctx.
func Matches(rule core.Rule, ctx core.Platform) bool {
	if rule.OS != nil {
		if name := strings.TrimSpace(rule.OS.Name); name != "" {
			if NormalizeOSName(name) != NormalizeOSName(ctx.OSName) {
				return false
			}
		}
		if arch := strings.TrimSpace(rule.OS.Arch); arch != "" {
			if arch != strings.TrimSpace(ctx.OSArch) {
				return false
			}
		}
		if pattern := strings.TrimSpace(rule.OS.Version); pattern != "" {
			re, err := regexp.Compile(pattern)
			if err != nil || !re.MatchString(ctx.OSVersion) {
				return false
			}
		}
	}
	for feature, want := range rule.Features {
		got, ok := ctx.Features[feature]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// NormalizeOSName maps Go and manifest spellings onto manifest OS keys.
func NormalizeOSName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "macos", "darwin", "mac", "osx":
		return "osx"
	default:
		return name
	}
}

func NormalizeArch(arch string) string {
	arch = strings.ToLower(strings.TrimSpace(arch))
	switch arch {
	case "386":
		return "x86"
	case "amd64":
		return "x86_64"
	default:
		return arch
	}
}

// CurrentPlatform describes the running process. features is copied.
func CurrentPlatform(features map[string]bool) core.Platform {
	copied := make(map[string]bool, len(features))
	for key, value := range features {
		copied[key] = value
	}
	return core.Platform{
		OSName:    NormalizeOSName(runtime.GOOS),
		OSArch:    NormalizeArch(runtime.GOARCH),
		OSVersion: osVersion(),
		Features:  copied,
	}
}

// ArchBits returns the ${arch} substitution used by native classifier keys.
func ArchBits(arch string) string {
	switch NormalizeArch(arch) {
	case "x86", "arm":
		return "32"
	default:
		return "64"
	}
}
