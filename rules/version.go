package rules

import "strings"

// majorMinor trims a release string such as "6.8.0-45-generic" to "6.8".
func majorMinor(release string) string {
	release = strings.TrimSpace(release)
	end := strings.IndexFunc(release, func(r rune) bool {
		return r != '.' && (r < '0' || r > '9')
	})
	if end >= 0 {
		release = release[:end]
	}
	parts := strings.Split(release, ".")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Trim(strings.Join(parts, "."), ".")
}
