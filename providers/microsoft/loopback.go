package microsoft

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
)

const (
	callbackPageDone   = "Sign-in complete. You can close this tab and return to the launcher."
	callbackPageFailed = "Sign-in failed. You can close this tab and try again from the launcher."
	callbackReadLimit  = 10 * time.Second
)

// CallbackListener receives the browser redirect of the authorization code
// grant on a loopback address. It accepts the first request on the redirect
// path and ignores the rest.
type CallbackListener struct {
	redirectURI string
	path        string
	listener    net.Listener
	server      *http.Server

	once    sync.Once
	results chan core.AuthorizationCallback
}

// NewCallbackHandler returns a listener that is not bound to a socket. Use it
// to mount the callback on an existing server.
func NewCallbackHandler(redirectURI string) (*CallbackListener, error) {
	parsed, err := parseLoopbackRedirect(redirectURI)
	if err != nil {
		return nil, err
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	return &CallbackListener{
		redirectURI: parsed.String(),
		path:        path,
		results:     make(chan core.AuthorizationCallback, 1),
	}, nil
}

// ListenForCallback binds the host and port of redirectURI and serves the
// callback until Close. Port 0 picks a free port; RedirectURI reports the one
// that was bound.
func ListenForCallback(redirectURI string) (*CallbackListener, error) {
	l, err := NewCallbackHandler(redirectURI)
	if err != nil {
		return nil, err
	}
	parsed, _ := url.Parse(l.redirectURI)
	listener, err := net.Listen("tcp", parsed.Host)
	if err != nil {
		return nil, core.WrapError(err, goerrors.CategoryExternal, core.ErrorAuthNetwork, "microsoft: listen for authorization callback", map[string]any{
			core.MetadataURL: l.redirectURI,
		})
	}
	parsed.Host = listener.Addr().String()
	l.redirectURI = parsed.String()
	l.listener = listener
	l.server = &http.Server{Handler: l, ReadHeaderTimeout: callbackReadLimit}
	go func() {
		_ = l.server.Serve(listener)
	}()
	return l, nil
}

func (l *CallbackListener) RedirectURI() string {
	if l == nil {
		return ""
	}
	return l.redirectURI
}

func (l *CallbackListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != l.path {
		http.NotFound(w, r)
		return
	}
	query := r.URL.Query()
	callback := core.AuthorizationCallback{
		State:            query.Get("state"),
		Code:             query.Get("code"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
		RedirectURI:      l.redirectURI,
	}

	accepted := false
	l.once.Do(func() {
		l.results <- callback
		accepted = true
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch {
	case !accepted:
		w.WriteHeader(http.StatusConflict)
		_, _ = fmt.Fprintln(w, "This sign-in was already handled.")
	case callback.Error != "" || callback.Code == "":
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprintln(w, callbackPageFailed)
	default:
		_, _ = fmt.Fprintln(w, callbackPageDone)
	}
}

// Wait blocks until the redirect arrives or ctx is done.
func (l *CallbackListener) Wait(ctx context.Context) (core.AuthorizationCallback, error) {
	if l == nil {
		return core.AuthorizationCallback{}, core.NewError("microsoft: callback listener is not configured", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	select {
	case callback := <-l.results:
		return callback, nil
	case <-ctx.Done():
		return core.AuthorizationCallback{}, core.WrapError(ctx.Err(), goerrors.CategoryOperation, core.ErrorAuthCancelled, "microsoft: browser sign-in cancelled", nil)
	}
}

// Close stops the loopback server.
func (l *CallbackListener) Close() error {
	if l == nil || l.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func parseLoopbackRedirect(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme != "http" || parsed.Host == "" {
		return nil, core.NewError("microsoft: redirect uri must be an http loopback url", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
			core.MetadataURL: raw,
		})
	}
	host := parsed.Hostname()
	if host != "localhost" {
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			return nil, core.NewError("microsoft: redirect uri must point at a loopback address", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
				core.MetadataURL: raw,
			})
		}
	}
	if parsed.Port() == "" {
		return nil, core.NewError("microsoft: redirect uri needs an explicit port", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
			core.MetadataURL: raw,
		})
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed, nil
}
