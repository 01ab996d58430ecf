package core

import "strings"

const RedactedValue = "[REDACTED]"

var sensitiveKeyFragments = []string{
	"token",
	"authorization",
	"device_code",
	"password",
	"secret",
	"refresh",
	"session",
}

// RedactSensitiveMap returns a copy of fields with token-bearing values
// replaced. Nested maps and slices are walked.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(fields)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	case IdentityToken, ServiceSession, *IdentityToken, *ServiceSession:
		return RedactedValue
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "account_id",
		"flow_id",
		"job_id",
		"idempotency_key",
		"version_id",
		"user_code",
		"verification_uri",
		"hop":
		return true
	default:
		return false
	}
}
