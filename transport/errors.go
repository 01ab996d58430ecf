package transport

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
)

const maxErrorBodySnippet = 512

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// transportTextCode maps a category onto the launcher taxonomy. Transport
// failures surface as network errors of the calling hop.
func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return core.ErrorAuthDenied
	case goerrors.CategoryRateLimit:
		return core.ErrorRateLimited
	case goerrors.CategoryExternal:
		return core.ErrorAuthNetwork
	default:
		return core.ErrorInternal
	}
}

// StatusError turns a non-2xx response into a rich error. It returns nil for
// successful responses.
func StatusError(res core.TransportResponse, textCode string, message string) error {
	if Success(res.StatusCode) {
		return nil
	}
	category := statusCategory(res.StatusCode)
	if strings.TrimSpace(textCode) == "" {
		textCode = transportTextCode(category)
	}
	if strings.TrimSpace(message) == "" {
		message = "transport: unexpected response status"
	}
	metadata := map[string]any{
		core.MetadataStatusCode: res.StatusCode,
	}
	if rawURL, ok := res.Metadata[core.MetadataURL]; ok {
		metadata[core.MetadataURL] = rawURL
	}
	if snippet := bodySnippet(res.Body); snippet != "" {
		metadata["body"] = snippet
	}
	return goerrors.New(fmt.Sprintf("%s: status %d", message, res.StatusCode), category).
		WithCode(res.StatusCode).
		WithTextCode(textCode).
		WithMetadata(metadata)
}

func Success(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func statusCategory(status int) goerrors.Category {
	switch {
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case status == http.StatusForbidden:
		return goerrors.CategoryAuthz
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case status >= 400 && status < 500:
		return goerrors.CategoryBadInput
	default:
		return goerrors.CategoryExternal
	}
}

func bodySnippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodySnippet {
		text = text[:maxErrorBodySnippet]
	}
	return text
}
