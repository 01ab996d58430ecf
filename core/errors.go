package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorAuthNetwork            = "AUTH_NETWORK"
	ErrorAuthDenied             = "AUTH_DENIED"
	ErrorAuthExpired            = "AUTH_EXPIRED"
	ErrorAuthMissingClaims      = "AUTH_MISSING_CLAIMS"
	ErrorAuthDecode             = "AUTH_DECODE"
	ErrorAuthCancelled          = "AUTH_CANCELLED"
	ErrorAuthInteractionNeeded  = "AUTH_INTERACTION_REQUIRED"
	ErrorAuthProfileNotFound    = "AUTH_PROFILE_NOT_FOUND"
	ErrorAuthStateInvalid       = "AUTH_STATE_INVALID"
	ErrorFetchNetwork           = "FETCH_NETWORK"
	ErrorFetchIO                = "FETCH_IO"
	ErrorFetchDecode            = "FETCH_DECODE"
	ErrorManifestNotFound       = "MANIFEST_NOT_FOUND"
	ErrorManifestDecode         = "MANIFEST_DECODE"
	ErrorManifestMissingNatives = "MANIFEST_MISSING_PLATFORM_ARTIFACT"
	ErrorAccountNotFound        = "ACCOUNT_NOT_FOUND"
	ErrorAccountConflict        = "ACCOUNT_CONFLICT"
	ErrorInstanceNotFound       = "INSTANCE_NOT_FOUND"
	ErrorRateLimited            = "LAUNCHER_RATE_LIMITED"
	ErrorBadInput               = "LAUNCHER_BAD_INPUT"
	ErrorInternal               = "LAUNCHER_INTERNAL_ERROR"
)

// Hop names identify which exchange of the credential chain failed.
const (
	HopDeviceGrant       = "device_grant"
	HopDevicePoll        = "device_poll"
	HopAuthorizationCode = "authorization_code"
	HopUserToken         = "user_token"
	HopXSTSToken         = "xsts_token"
	HopServiceLogin      = "service_login"
	HopProfile           = "profile"
	HopRefresh           = "refresh"
)

const (
	MetadataHop        = "hop"
	MetadataURL        = "url"
	MetadataPath       = "path"
	MetadataErrorCode  = "error_code"
	MetadataStatusCode = "status_code"
	MetadataRetryAfter = "retry_after_ms"
)

// NewError builds a categorized launcher error with the given text code.
func NewError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(httpStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// WrapError keeps err as the source of a new categorized launcher error.
func WrapError(err error, category goerrors.Category, textCode string, message string, metadata map[string]any) *goerrors.Error {
	if err == nil {
		return nil
	}
	wrapped := goerrors.Wrap(err, category, message).
		WithCode(httpStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		wrapped.WithMetadata(metadata)
	}
	return wrapped
}

// WithHop annotates err with the chain hop it came from, keeping an existing
// text code and assigning fallbackCode when none is present.
func WithHop(err error, hop string, fallbackCode string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if strings.TrimSpace(richErr.TextCode) == "" {
			richErr.TextCode = fallbackCode
		}
		if richErr.Metadata == nil {
			richErr.Metadata = map[string]any{}
		}
		if _, ok := richErr.Metadata[MetadataHop]; !ok {
			richErr.Metadata[MetadataHop] = hop
		}
		return richErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return WrapError(err, goerrors.CategoryOperation, ErrorAuthCancelled, "core: credential chain cancelled", map[string]any{
			MetadataHop: hop,
		})
	}
	return WrapError(err, goerrors.CategoryExternal, fallbackCode, fmt.Sprintf("core: %s failed", hop), map[string]any{
		MetadataHop: hop,
	})
}

// TextCode returns the text code carried by err, or the empty string.
func TextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return strings.TrimSpace(richErr.TextCode)
	}
	return ""
}

func IsTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	return TextCode(err) == strings.TrimSpace(code)
}

// MetadataValue reads a metadata key from the first rich error in the chain.
func MetadataValue(err error, key string) (any, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil, false
	}
	value, ok := richErr.Metadata[key]
	return value, ok
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(err.Error(), goerrors.CategoryOperation, ErrorAuthCancelled, nil)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "account") && strings.Contains(msg, "not found"):
		return NewError(err.Error(), goerrors.CategoryNotFound, ErrorAccountNotFound, nil)
	case strings.Contains(msg, "lock already held"):
		return NewError(err.Error(), goerrors.CategoryConflict, ErrorAccountConflict, nil)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return NewError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput, nil)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorAccountNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorAuthDenied
	case goerrors.CategoryConflict:
		return ErrorAccountConflict
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorAuthNetwork
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
