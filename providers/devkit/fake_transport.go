package devkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-launcher/core"
)

type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// FakeTransportAdapter replays scripted responses. Routed URLs use their own
// script list; other requests use the default list. Once a list is exhausted
// its last entry repeats.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	kind     string
	scripts  []TransportScript
	routes   map[string][]TransportScript
	calls    map[string]int
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:    strings.TrimSpace(strings.ToLower(kind)),
		scripts: append([]TransportScript(nil), scripts...),
		routes:  map[string][]TransportScript{},
		calls:   map[string]int{},
	}
}

// Route scripts responses for requests sent to rawURL.
func (a *FakeTransportAdapter) Route(rawURL string, scripts ...TransportScript) *FakeTransportAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes[strings.TrimSpace(rawURL)] = append([]TransportScript(nil), scripts...)
	return a
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return core.TransportResponse{}, err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	key := strings.TrimSpace(req.URL)
	scripts, ok := a.routes[key]
	if !ok {
		key = ""
		scripts = a.scripts
	}
	index := a.calls[key]
	a.calls[key] = index + 1
	if index < len(scripts) {
		script := scripts[index]
		return withURL(cloneTransportResponse(script.Response), req.URL), script.Err
	}
	if len(scripts) > 0 {
		last := scripts[len(scripts)-1]
		return withURL(cloneTransportResponse(last.Response), req.URL), last.Err
	}
	return core.TransportResponse{
		StatusCode: 200,
		Headers:    map[string]string{},
		Metadata:   map[string]any{"kind": a.kind, core.MetadataURL: req.URL},
	}, nil
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

// RequestsTo returns captured requests sent to rawURL.
func (a *FakeTransportAdapter) RequestsTo(rawURL string) []core.TransportRequest {
	out := []core.TransportRequest{}
	for _, req := range a.Requests() {
		if strings.TrimSpace(req.URL) == strings.TrimSpace(rawURL) {
			out = append(out, req)
		}
	}
	return out
}

// JSON scripts a response with payload encoded as the body.
func JSON(status int, payload any) TransportScript {
	body, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("devkit: encode scripted payload: %v", err))
	}
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}}
}

// Failure scripts a transport level error.
func Failure(err error) TransportScript {
	return TransportScript{Err: err}
}

func withURL(res core.TransportResponse, rawURL string) core.TransportResponse {
	if _, ok := res.Metadata[core.MetadataURL]; !ok {
		res.Metadata[core.MetadataURL] = rawURL
	}
	return res
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Metadata:             map[string]any{},
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
