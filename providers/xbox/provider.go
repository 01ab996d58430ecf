// Package xbox exchanges an identity access token for Xbox Live user and XSTS
// tokens.
package xbox

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	"github.com/goliatone/go-launcher/transport"
)

const (
	DefaultUserRelyingParty = "http://auth.xboxlive.com"
	DefaultXSTSRelyingParty = "rp://api.minecraftservices.com/"
	DefaultSiteName         = "user.auth.xboxlive.com"
	DefaultSandboxID        = "RETAIL"

	MetadataXErr = "xerr"
)

// Known XSTS XErr values.
const (
	XErrNoAccount      int64 = 2148916233
	XErrRegionBlocked  int64 = 2148916235
	XErrAdultRequired  int64 = 2148916236
	XErrAdultRequired2 int64 = 2148916237
	XErrChildAccount   int64 = 2148916238
)

var xerrDescriptions = map[int64]string{
	XErrNoAccount:      "the account has no Xbox profile",
	XErrRegionBlocked:  "Xbox Live is not available in the account's region",
	XErrAdultRequired:  "the account needs adult verification",
	XErrAdultRequired2: "the account needs adult verification",
	XErrChildAccount:   "the account is a child account and must be added to a family",
}

type Config struct {
	UserAuthURL      string
	XSTSURL          string
	UserRelyingParty string
	XSTSRelyingParty string
	SandboxID        string

	RequestTimeout time.Duration
	HTTPClient     core.HTTPDoer
	Transport      core.TransportAdapter
}

type Provider struct {
	cfg       Config
	transport core.TransportAdapter
}

func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.UserAuthURL) == "" {
		cfg.UserAuthURL = core.DefaultUserAuthURL
	}
	if strings.TrimSpace(cfg.XSTSURL) == "" {
		cfg.XSTSURL = core.DefaultXSTSURL
	}
	if strings.TrimSpace(cfg.UserRelyingParty) == "" {
		cfg.UserRelyingParty = DefaultUserRelyingParty
	}
	if strings.TrimSpace(cfg.XSTSRelyingParty) == "" {
		cfg.XSTSRelyingParty = DefaultXSTSRelyingParty
	}
	if strings.TrimSpace(cfg.SandboxID) == "" {
		cfg.SandboxID = DefaultSandboxID
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = core.DefaultHTTPTimeout
	}
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(cfg.HTTPClient)
	}
	return &Provider{cfg: cfg, transport: adapter}, nil
}

type userAuthRequest struct {
	Properties   userAuthProperties `json:"Properties"`
	RelyingParty string             `json:"RelyingParty"`
	TokenType    string             `json:"TokenType"`
}

type userAuthProperties struct {
	AuthMethod string `json:"AuthMethod"`
	SiteName   string `json:"SiteName"`
	RpsTicket  string `json:"RpsTicket"`
}

type xstsRequest struct {
	Properties   xstsProperties `json:"Properties"`
	RelyingParty string         `json:"RelyingParty"`
	TokenType    string         `json:"TokenType"`
}

type xstsProperties struct {
	SandboxID  string   `json:"SandboxId"`
	UserTokens []string `json:"UserTokens"`
}

type tokenResponse struct {
	IssueInstant  string `json:"IssueInstant"`
	NotAfter      string `json:"NotAfter"`
	Token         string `json:"Token"`
	DisplayClaims struct {
		XUI []struct {
			UHS string `json:"uhs"`
		} `json:"xui"`
	} `json:"DisplayClaims"`
}

type errorResponse struct {
	Identity string `json:"Identity"`
	XErr     int64  `json:"XErr"`
	Message  string `json:"Message"`
	Redirect string `json:"Redirect"`
}

// AuthenticateUser trades an identity access token for an Xbox Live user
// token.
func (p *Provider) AuthenticateUser(ctx context.Context, identityAccessToken string) (core.FederatedToken, error) {
	if strings.TrimSpace(identityAccessToken) == "" {
		return core.FederatedToken{}, core.NewError("xbox: identity access token is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	payload := userAuthRequest{
		Properties: userAuthProperties{
			AuthMethod: "RPS",
			SiteName:   DefaultSiteName,
			RpsTicket:  "d=" + strings.TrimSpace(identityAccessToken),
		},
		RelyingParty: p.cfg.UserRelyingParty,
		TokenType:    "JWT",
	}
	return p.exchange(ctx, p.cfg.UserAuthURL, payload, "xbox: user token request")
}

// Authorize trades a user token for an XSTS token scoped to the game
// services relying party. The user hash claim is required.
func (p *Provider) Authorize(ctx context.Context, userToken core.FederatedToken) (core.FederatedToken, error) {
	if strings.TrimSpace(userToken.Token) == "" {
		return core.FederatedToken{}, core.NewError("xbox: user token is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	payload := xstsRequest{
		Properties: xstsProperties{
			SandboxID:  p.cfg.SandboxID,
			UserTokens: []string{userToken.Token},
		},
		RelyingParty: p.cfg.XSTSRelyingParty,
		TokenType:    "JWT",
	}
	token, err := p.exchange(ctx, p.cfg.XSTSURL, payload, "xbox: xsts token request")
	if err != nil {
		return core.FederatedToken{}, err
	}
	if strings.TrimSpace(token.SubjectHash) == "" {
		return core.FederatedToken{}, core.NewError(
			"xbox: xsts response carries no user hash claim",
			goerrors.CategoryExternal,
			core.ErrorAuthMissingClaims,
			map[string]any{core.MetadataURL: p.cfg.XSTSURL},
		)
	}
	return token, nil
}

func (p *Provider) exchange(ctx context.Context, endpoint string, payload any, message string) (core.FederatedToken, error) {
	if p == nil || p.transport == nil {
		return core.FederatedToken{}, core.NewError("xbox: provider is not configured", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := transport.JSONRequest(http.MethodPost, endpoint, payload)
	if err != nil {
		return core.FederatedToken{}, err
	}
	req.Headers["x-xbl-contract-version"] = "1"
	req.Timeout = p.cfg.RequestTimeout

	res, err := p.transport.Do(ctx, req)
	if err != nil {
		return core.FederatedToken{}, err
	}
	if !transport.Success(res.StatusCode) {
		return core.FederatedToken{}, statusError(res, message)
	}

	var decoded tokenResponse
	if err := transport.DecodeJSON(res.Body, &decoded, core.ErrorAuthDecode); err != nil {
		return core.FederatedToken{}, err
	}
	if strings.TrimSpace(decoded.Token) == "" {
		return core.FederatedToken{}, core.NewError(message+": response missing token", goerrors.CategoryExternal, core.ErrorAuthDecode, map[string]any{
			core.MetadataURL: endpoint,
		})
	}
	token := core.FederatedToken{Token: decoded.Token}
	if len(decoded.DisplayClaims.XUI) > 0 {
		token.SubjectHash = strings.TrimSpace(decoded.DisplayClaims.XUI[0].UHS)
	}
	if notAfter, err := time.Parse(time.RFC3339Nano, decoded.NotAfter); err == nil {
		token.NotAfter = notAfter.UTC()
	}
	return token, nil
}

// statusError classifies a failed response. XErr bodies become denials
// carrying the code and a readable reason.
func statusError(res core.TransportResponse, message string) error {
	var xerr errorResponse
	if len(res.Body) > 0 {
		_ = transport.DecodeJSON(res.Body, &xerr, core.ErrorAuthDecode)
	}
	if xerr.XErr != 0 {
		reason := DescribeXErr(xerr.XErr)
		if reason == "" {
			reason = strings.TrimSpace(xerr.Message)
		}
		metadata := map[string]any{
			MetadataXErr:            xerr.XErr,
			core.MetadataErrorCode:  fmt.Sprintf("%d", xerr.XErr),
			core.MetadataStatusCode: res.StatusCode,
		}
		if xerr.Redirect != "" {
			metadata["redirect"] = xerr.Redirect
		}
		if reason == "" {
			reason = "xsts authorization refused"
		}
		return core.NewError(fmt.Sprintf("%s: %s", message, reason), goerrors.CategoryAuth, core.ErrorAuthDenied, metadata)
	}
	code := core.ErrorAuthNetwork
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		code = core.ErrorAuthDenied
	}
	return transport.StatusError(res, code, message)
}

// DescribeXErr returns a readable reason for a known XErr value.
func DescribeXErr(code int64) string {
	return xerrDescriptions[code]
}

var _ core.FederationProvider = (*Provider)(nil)
