package transport

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
)

// FormRequest builds an urlencoded POST.
func FormRequest(endpoint string, form url.Values) core.TransportRequest {
	return core.TransportRequest{
		Method: http.MethodPost,
		URL:    endpoint,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
		},
		Body: []byte(form.Encode()),
	}
}

// JSONRequest builds a request with a JSON encoded payload.
func JSONRequest(method string, endpoint string, payload any) (core.TransportRequest, error) {
	req := core.TransportRequest{
		Method: method,
		URL:    endpoint,
		Headers: map[string]string{
			"Accept": "application/json",
		},
	}
	if payload == nil {
		return req, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return core.TransportRequest{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: encode json payload",
			http.StatusBadRequest,
			map[string]any{core.MetadataURL: endpoint},
		)
	}
	req.Headers["Content-Type"] = "application/json"
	req.Body = body
	return req, nil
}

// DecodeJSON decodes body into target. Decode failures carry textCode.
func DecodeJSON(body []byte, target any, textCode string) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return core.NewError("transport: response body is empty", goerrors.CategoryExternal, textCode, nil)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return core.WrapError(err, goerrors.CategoryExternal, textCode, "transport: decode json response", nil)
	}
	return nil
}
