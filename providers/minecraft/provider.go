// Package minecraft logs into the game services with an XSTS token and reads
// the player profile.
package minecraft

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	"github.com/goliatone/go-launcher/providers"
	"github.com/goliatone/go-launcher/transport"
)

const defaultSessionTTL = 24 * time.Hour

type Config struct {
	LoginURL   string
	ProfileURL string

	RequestTimeout time.Duration
	HTTPClient     core.HTTPDoer
	Transport      core.TransportAdapter
	Now            func() time.Time
}

type Provider struct {
	cfg       Config
	transport core.TransportAdapter
}

func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.LoginURL) == "" {
		cfg.LoginURL = core.DefaultServiceLoginURL
	}
	if strings.TrimSpace(cfg.ProfileURL) == "" {
		cfg.ProfileURL = core.DefaultProfileURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = core.DefaultHTTPTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(cfg.HTTPClient)
	}
	return &Provider{cfg: cfg, transport: adapter}, nil
}

// IdentityTokenHeader formats the login identity token from the user hash and
// XSTS token.
func IdentityTokenHeader(userHash string, xstsToken string) string {
	return fmt.Sprintf("XBL3.0 x=%s;%s", strings.TrimSpace(userHash), strings.TrimSpace(xstsToken))
}

// LoginWithXbox exchanges an XSTS token for a game access token.
func (p *Provider) LoginWithXbox(ctx context.Context, federated core.FederatedToken) (core.ServiceSession, error) {
	if strings.TrimSpace(federated.Token) == "" || strings.TrimSpace(federated.SubjectHash) == "" {
		return core.ServiceSession{}, core.NewError(
			"minecraft: xsts token and user hash are required",
			goerrors.CategoryBadInput,
			core.ErrorAuthMissingClaims,
			nil,
		)
	}
	req, err := transport.JSONRequest(http.MethodPost, p.cfg.LoginURL, map[string]string{
		"identityToken": IdentityTokenHeader(federated.SubjectHash, federated.Token),
	})
	if err != nil {
		return core.ServiceSession{}, err
	}
	res, err := p.do(ctx, req)
	if err != nil {
		return core.ServiceSession{}, err
	}
	if statusErr := transport.StatusError(res, loginTextCode(res.StatusCode), "minecraft: login with xbox"); statusErr != nil {
		return core.ServiceSession{}, statusErr
	}

	var decoded map[string]any
	if err := transport.DecodeJSON(res.Body, &decoded, core.ErrorAuthDecode); err != nil {
		return core.ServiceSession{}, err
	}
	accessToken := providers.ReadAnyString(decoded["access_token"])
	if accessToken == "" {
		return core.ServiceSession{}, core.NewError("minecraft: login response missing access token", goerrors.CategoryExternal, core.ErrorAuthDecode, map[string]any{
			core.MetadataURL: p.cfg.LoginURL,
		})
	}
	return core.ServiceSession{
		AccessToken: accessToken,
		TokenType:   providers.NormalizeTokenType(providers.ReadAnyString(decoded["token_type"])),
		ExpiresAt:   providers.ResolveExpiresAt(p.cfg.Now(), providers.ReadAnyInt64(decoded["expires_in"]), defaultSessionTTL),
	}, nil
}

// FetchProfile reads the profile owned by the session. Accounts that do not
// own the game have no profile.
func (p *Provider) FetchProfile(ctx context.Context, session core.ServiceSession) (core.Profile, error) {
	if strings.TrimSpace(session.AccessToken) == "" {
		return core.Profile{}, core.NewError("minecraft: session access token is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	req := core.TransportRequest{
		Method: http.MethodGet,
		URL:    p.cfg.ProfileURL,
		Headers: map[string]string{
			"Accept":        "application/json",
			"Authorization": session.AuthorizationHeader(),
		},
	}
	res, err := p.do(ctx, req)
	if err != nil {
		return core.Profile{}, err
	}
	code := core.ErrorAuthNetwork
	switch res.StatusCode {
	case http.StatusNotFound:
		code = core.ErrorAuthProfileNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		code = core.ErrorAuthDenied
	}
	if statusErr := transport.StatusError(res, code, "minecraft: fetch profile"); statusErr != nil {
		return core.Profile{}, statusErr
	}

	var profile core.Profile
	if err := transport.DecodeJSON(res.Body, &profile, core.ErrorAuthDecode); err != nil {
		return core.Profile{}, err
	}
	profile.ID = strings.TrimSpace(profile.ID)
	profile.Name = strings.TrimSpace(profile.Name)
	if profile.ID == "" {
		return core.Profile{}, core.NewError("minecraft: profile response missing id", goerrors.CategoryExternal, core.ErrorAuthDecode, map[string]any{
			core.MetadataURL: p.cfg.ProfileURL,
		})
	}
	return profile, nil
}

func (p *Provider) do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if p == nil || p.transport == nil {
		return core.TransportResponse{}, core.NewError("minecraft: provider is not configured", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req.Timeout = p.cfg.RequestTimeout
	return p.transport.Do(ctx, req)
}

func loginTextCode(status int) string {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return core.ErrorAuthDenied
	}
	return core.ErrorAuthNetwork
}

var _ core.GameServiceProvider = (*Provider)(nil)
