package providers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TokenPayload is the flattened body of an OAuth2 token endpoint response,
// success or error.
type TokenPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func (p TokenPayload) Failed() bool {
	return strings.TrimSpace(p.ErrorCode) != ""
}

// DescribeTokenError returns the most descriptive error text in payload.
func DescribeTokenError(payload TokenPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

// ParseTokenPayload decodes a JSON or urlencoded token response.
func ParseTokenPayload(body []byte, contentType string) (TokenPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (TokenPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return TokenPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return TokenPayload{}, err
	}
	return TokenPayload{
		AccessToken:      ReadAnyString(decoded["access_token"]),
		TokenType:        ReadAnyString(decoded["token_type"]),
		RefreshToken:     ReadAnyString(decoded["refresh_token"]),
		Scope:            ReadAnyString(decoded["scope"]),
		ExpiresIn:        ReadAnyInt64(decoded["expires_in"]),
		ErrorCode:        ReadAnyString(decoded["error"]),
		ErrorDescription: ReadAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (TokenPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return TokenPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return TokenPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return TokenPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

// ResolveExpiresAt returns now+expiresIn seconds, or now+fallback when the
// response carried no lifetime. A zero result means the lifetime is unknown.
func ResolveExpiresAt(now time.Time, expiresIn int64, fallback time.Duration) time.Time {
	ttl := fallback
	if expiresIn > 0 {
		ttl = time.Duration(expiresIn) * time.Second
	}
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// NormalizeTokenType defaults an empty token type to Bearer.
func NormalizeTokenType(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "bearer") {
		return "Bearer"
	}
	return trimmed
}

func ReadAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func ReadAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatParsed, floatErr := typed.Float64()
		if floatErr == nil {
			return int64(floatParsed)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}
