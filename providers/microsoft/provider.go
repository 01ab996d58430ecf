// Package microsoft implements the device authorization grant, the browser
// sign-in with PKCE and token refresh against the Microsoft identity platform.
package microsoft

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	"github.com/goliatone/go-launcher/providers"
	"github.com/goliatone/go-launcher/transport"
)

const (
	GrantTypeDeviceCode   = "urn:ietf:params:oauth:grant-type:device_code"
	GrantTypeRefreshToken = "refresh_token"
	GrantTypeAuthCode     = "authorization_code"

	ErrorCodePending   = "authorization_pending"
	ErrorCodeSlowDown  = "slow_down"
	ErrorCodeExpired   = "expired_token"
	ErrorCodeDeclined  = "authorization_declined"
	ErrorCodeBadCode   = "bad_verification_code"
	ErrorInvalidGrant  = "invalid_grant"
	ErrorUnavailable   = "temporarily_unavailable"
	ErrorServerError   = "server_error"
	slowDownIncrement  = 5 * time.Second
	defaultTokenExpiry = time.Hour
)

type Config struct {
	ClientID        string
	Scope           string
	AuthorizeURL    string
	DeviceCodeURL   string
	TokenURL        string
	DefaultInterval time.Duration
	DefaultExpiry   time.Duration

	TokenRequestTimeout time.Duration
	HTTPClient          core.HTTPDoer
	Transport           core.TransportAdapter
	Sleeper             core.Sleeper
	Now                 func() time.Time
}

type Provider struct {
	cfg       Config
	transport core.TransportAdapter
	sleeper   core.Sleeper
}

func New(cfg Config) (*Provider, error) {
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	if cfg.ClientID == "" {
		cfg.ClientID = core.DefaultClientID
	}
	if strings.TrimSpace(cfg.Scope) == "" {
		cfg.Scope = core.DefaultScope
	}
	if strings.TrimSpace(cfg.DeviceCodeURL) == "" {
		cfg.DeviceCodeURL = core.DefaultDeviceCodeURL
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		cfg.TokenURL = core.DefaultTokenURL
	}
	if strings.TrimSpace(cfg.AuthorizeURL) == "" {
		cfg.AuthorizeURL = core.DefaultAuthorizeURL
	}
	for _, raw := range []string{cfg.AuthorizeURL, cfg.DeviceCodeURL, cfg.TokenURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, core.WrapError(err, goerrors.CategoryBadInput, core.ErrorBadInput, "microsoft: invalid endpoint url", map[string]any{
				core.MetadataURL: raw,
			})
		}
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = core.DefaultDevicePollInterval
	}
	if cfg.DefaultExpiry <= 0 {
		cfg.DefaultExpiry = core.DefaultDeviceGrantExpiry
	}
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = core.DefaultHTTPTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(cfg.HTTPClient)
	}
	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = core.TimerSleeper{}
	}
	return &Provider{cfg: cfg, transport: adapter, sleeper: sleeper}, nil
}

type deviceCodePayload struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	Message         string `json:"message"`
	ExpiresIn       int64  `json:"expires_in"`
	Interval        int64  `json:"interval"`
}

// BeginDeviceFlow requests a device code and the user-facing instructions.
func (p *Provider) BeginDeviceFlow(ctx context.Context) (core.DeviceGrant, error) {
	res, err := p.post(ctx, p.cfg.DeviceCodeURL, url.Values{
		"client_id": {p.cfg.ClientID},
		"scope":     {p.cfg.Scope},
	})
	if err != nil {
		return core.DeviceGrant{}, err
	}

	payload, err := providers.ParseTokenPayload(res.Body, res.Headers["Content-Type"])
	if err == nil && payload.Failed() {
		return core.DeviceGrant{}, deniedError(payload, res.StatusCode)
	}
	if statusErr := transport.StatusError(res, core.ErrorAuthNetwork, "microsoft: device code request"); statusErr != nil {
		return core.DeviceGrant{}, statusErr
	}

	var device deviceCodePayload
	if err := transport.DecodeJSON(res.Body, &device, core.ErrorAuthDecode); err != nil {
		return core.DeviceGrant{}, err
	}
	if device.DeviceCode == "" || device.UserCode == "" || device.VerificationURI == "" {
		return core.DeviceGrant{}, core.NewError(
			"microsoft: device code response is missing required fields",
			goerrors.CategoryExternal,
			core.ErrorAuthDecode,
			map[string]any{core.MetadataURL: p.cfg.DeviceCodeURL},
		)
	}

	interval := p.cfg.DefaultInterval
	if device.Interval > 0 {
		interval = time.Duration(device.Interval) * time.Second
	}
	expiry := p.cfg.DefaultExpiry
	if device.ExpiresIn > 0 {
		expiry = time.Duration(device.ExpiresIn) * time.Second
	}
	return core.DeviceGrant{
		DeviceCode:      device.DeviceCode,
		UserCode:        device.UserCode,
		VerificationURI: device.VerificationURI,
		Message:         device.Message,
		PollInterval:    interval,
		ExpiresAt:       p.cfg.Now().Add(expiry),
	}, nil
}

// PollOnce sends a single device code token request and classifies the
// answer. Transport failures are returned as errors.
func (p *Provider) PollOnce(ctx context.Context, grant core.DeviceGrant) (core.DeviceFlowOutcome, error) {
	res, err := p.post(ctx, p.cfg.TokenURL, url.Values{
		"grant_type":  {GrantTypeDeviceCode},
		"client_id":   {p.cfg.ClientID},
		"device_code": {grant.DeviceCode},
	})
	if err != nil {
		return core.DeviceFlowOutcome{}, err
	}

	payload, parseErr := providers.ParseTokenPayload(res.Body, res.Headers["Content-Type"])
	if parseErr == nil && payload.Failed() && transientTokenError(payload.ErrorCode, res.StatusCode) {
		return core.DeviceFlowOutcome{}, deniedError(payload, res.StatusCode)
	}
	if parseErr == nil && payload.Failed() {
		outcome := core.DeviceFlowOutcome{
			ErrorCode: payload.ErrorCode,
			Message:   providers.DescribeTokenError(payload),
		}
		switch payload.ErrorCode {
		case ErrorCodePending:
			outcome.Status = core.DeviceFlowStatusPending
		case ErrorCodeSlowDown:
			outcome.Status = core.DeviceFlowStatusSlowDown
		case ErrorCodeExpired:
			outcome.Status = core.DeviceFlowStatusExpired
		default:
			outcome.Status = core.DeviceFlowStatusDenied
		}
		return outcome, nil
	}
	if statusErr := transport.StatusError(res, core.ErrorAuthNetwork, "microsoft: device token request"); statusErr != nil {
		return core.DeviceFlowOutcome{}, statusErr
	}
	if parseErr != nil {
		return core.DeviceFlowOutcome{}, core.WrapError(parseErr, goerrors.CategoryExternal, core.ErrorAuthDecode, "microsoft: decode token response", nil)
	}
	token, err := p.identityToken(payload, "")
	if err != nil {
		return core.DeviceFlowOutcome{}, err
	}
	return core.DeviceFlowOutcome{Status: core.DeviceFlowStatusSuccess, Token: token}, nil
}

// PollForIdentityToken polls until the user authorizes, declines or the
// device code expires. The wait between polls starts at the grant interval and
// grows by five seconds on every slow_down answer.
func (p *Provider) PollForIdentityToken(ctx context.Context, grant core.DeviceGrant) (core.IdentityToken, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(grant.DeviceCode) == "" {
		return core.IdentityToken{}, core.NewError("microsoft: device code is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	interval := grant.PollInterval
	if interval <= 0 {
		interval = p.cfg.DefaultInterval
	}

	for {
		if err := ctx.Err(); err != nil {
			return core.IdentityToken{}, cancelledError(err)
		}
		if grant.Expired(p.cfg.Now()) {
			return core.IdentityToken{}, expiredError(grant)
		}

		outcome, err := p.PollOnce(ctx, grant)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil || isContextError(err) {
				return core.IdentityToken{}, cancelledError(err)
			}
			return core.IdentityToken{}, err
		}

		switch outcome.Status {
		case core.DeviceFlowStatusSuccess:
			return outcome.Token, nil
		case core.DeviceFlowStatusPending:
		case core.DeviceFlowStatusSlowDown:
			interval += slowDownIncrement
		case core.DeviceFlowStatusExpired:
			return core.IdentityToken{}, expiredError(grant)
		default:
			return core.IdentityToken{}, core.NewError(
				fmt.Sprintf("microsoft: device authorization failed: %s", outcome.Message),
				goerrors.CategoryAuth,
				core.ErrorAuthDenied,
				map[string]any{core.MetadataErrorCode: outcome.ErrorCode},
			)
		}

		if err := p.sleeper.Sleep(ctx, interval); err != nil {
			return core.IdentityToken{}, cancelledError(err)
		}
	}
}

// AuthorizationURL builds the browser sign-in url for the authorization code
// grant. The answer is delivered to the redirect uri as a query string.
func (p *Provider) AuthorizationURL(req core.AuthorizationRequest) (string, error) {
	if strings.TrimSpace(req.RedirectURI) == "" || strings.TrimSpace(req.State) == "" || strings.TrimSpace(req.CodeChallenge) == "" {
		return "", core.NewError("microsoft: redirect uri, state and code challenge are required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	endpoint, err := url.Parse(p.cfg.AuthorizeURL)
	if err != nil {
		return "", core.WrapError(err, goerrors.CategoryBadInput, core.ErrorBadInput, "microsoft: invalid authorize url", nil)
	}
	query := endpoint.Query()
	query.Set("client_id", p.cfg.ClientID)
	query.Set("response_type", "code")
	query.Set("redirect_uri", req.RedirectURI)
	query.Set("response_mode", "query")
	query.Set("scope", p.cfg.Scope)
	query.Set("state", req.State)
	query.Set("code_challenge", req.CodeChallenge)
	query.Set("code_challenge_method", core.CodeChallengeMethodS256)
	endpoint.RawQuery = query.Encode()
	return endpoint.String(), nil
}

// ExchangeAuthorizationCode redeems the code returned to the loopback
// redirect, proving possession of the PKCE verifier.
func (p *Provider) ExchangeAuthorizationCode(ctx context.Context, exchange core.AuthorizationExchange) (core.IdentityToken, error) {
	if strings.TrimSpace(exchange.Code) == "" || strings.TrimSpace(exchange.CodeVerifier) == "" {
		return core.IdentityToken{}, core.NewError("microsoft: authorization code and verifier are required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	res, err := p.post(ctx, p.cfg.TokenURL, url.Values{
		"grant_type":    {GrantTypeAuthCode},
		"client_id":     {p.cfg.ClientID},
		"scope":         {p.cfg.Scope},
		"code":          {exchange.Code},
		"redirect_uri":  {exchange.RedirectURI},
		"code_verifier": {exchange.CodeVerifier},
	})
	if err != nil {
		return core.IdentityToken{}, err
	}

	payload, parseErr := providers.ParseTokenPayload(res.Body, res.Headers["Content-Type"])
	if parseErr == nil && payload.Failed() {
		return core.IdentityToken{}, deniedError(payload, res.StatusCode)
	}
	if statusErr := transport.StatusError(res, core.ErrorAuthNetwork, "microsoft: authorization code request"); statusErr != nil {
		return core.IdentityToken{}, statusErr
	}
	if parseErr != nil {
		return core.IdentityToken{}, core.WrapError(parseErr, goerrors.CategoryExternal, core.ErrorAuthDecode, "microsoft: decode authorization code response", nil)
	}
	return p.identityToken(payload, "")
}

// Refresh exchanges the refresh token for a new identity token. The previous
// refresh token is kept when the response does not rotate it.
func (p *Provider) Refresh(ctx context.Context, identity core.IdentityToken) (core.IdentityToken, error) {
	if strings.TrimSpace(identity.RefreshToken) == "" {
		return core.IdentityToken{}, core.NewError(
			"microsoft: identity token is not refreshable",
			goerrors.CategoryAuth,
			core.ErrorAuthDenied,
			map[string]any{core.MetadataErrorCode: ErrorInvalidGrant},
		)
	}
	res, err := p.post(ctx, p.cfg.TokenURL, url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"client_id":     {p.cfg.ClientID},
		"scope":         {p.cfg.Scope},
		"refresh_token": {identity.RefreshToken},
	})
	if err != nil {
		return core.IdentityToken{}, err
	}

	payload, parseErr := providers.ParseTokenPayload(res.Body, res.Headers["Content-Type"])
	if parseErr == nil && payload.Failed() {
		return core.IdentityToken{}, deniedError(payload, res.StatusCode)
	}
	if statusErr := transport.StatusError(res, core.ErrorAuthNetwork, "microsoft: refresh token request"); statusErr != nil {
		return core.IdentityToken{}, statusErr
	}
	if parseErr != nil {
		return core.IdentityToken{}, core.WrapError(parseErr, goerrors.CategoryExternal, core.ErrorAuthDecode, "microsoft: decode refresh response", nil)
	}
	return p.identityToken(payload, identity.RefreshToken)
}

func (p *Provider) identityToken(payload providers.TokenPayload, previousRefresh string) (core.IdentityToken, error) {
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.IdentityToken{}, core.NewError(
			"microsoft: token response missing access token",
			goerrors.CategoryExternal,
			core.ErrorAuthDecode,
			map[string]any{core.MetadataURL: p.cfg.TokenURL},
		)
	}
	refresh := payload.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	return core.IdentityToken{
		AccessToken:  payload.AccessToken,
		RefreshToken: refresh,
		TokenType:    providers.NormalizeTokenType(payload.TokenType),
		Scope:        payload.Scope,
		ExpiresAt:    providers.ResolveExpiresAt(p.cfg.Now(), payload.ExpiresIn, defaultTokenExpiry),
	}, nil
}

func (p *Provider) post(ctx context.Context, endpoint string, form url.Values) (core.TransportResponse, error) {
	if p == nil || p.transport == nil {
		return core.TransportResponse{}, core.NewError("microsoft: provider is not configured", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req := transport.FormRequest(endpoint, form)
	req.Timeout = p.cfg.TokenRequestTimeout
	return p.transport.Do(ctx, req)
}

// deniedError types an OAuth error body. Outages and throttling answers are
// network failures so callers keep the stored credentials.
func deniedError(payload providers.TokenPayload, status int) error {
	message := fmt.Sprintf("microsoft: token endpoint error: %s", providers.DescribeTokenError(payload))
	metadata := map[string]any{
		core.MetadataErrorCode:  payload.ErrorCode,
		core.MetadataStatusCode: status,
	}
	if transientTokenError(payload.ErrorCode, status) {
		return core.NewError(message, goerrors.CategoryExternal, core.ErrorAuthNetwork, metadata)
	}
	return core.NewError(message, goerrors.CategoryAuth, core.ErrorAuthDenied, metadata)
}

func transientTokenError(code string, status int) bool {
	switch strings.TrimSpace(code) {
	case ErrorUnavailable, ErrorServerError:
		return true
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func expiredError(grant core.DeviceGrant) error {
	return core.NewError("microsoft: device code expired", goerrors.CategoryAuth, core.ErrorAuthExpired, map[string]any{
		"expires_at": grant.ExpiresAt,
	})
}

func cancelledError(err error) error {
	return core.WrapError(err, goerrors.CategoryOperation, core.ErrorAuthCancelled, "microsoft: device authorization cancelled", nil)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

var (
	_ core.IdentityProvider          = (*Provider)(nil)
	_ core.AuthorizationCodeProvider = (*Provider)(nil)
)
