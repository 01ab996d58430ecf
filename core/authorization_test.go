package core

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

// browserIdentity adds the authorization code grant to fakeIdentity.
type browserIdentity struct {
	*fakeIdentity
	requests  []AuthorizationRequest
	exchanges []AuthorizationExchange
	exchange  error
}

func (b *browserIdentity) AuthorizationURL(req AuthorizationRequest) (string, error) {
	b.requests = append(b.requests, req)
	query := url.Values{}
	query.Set("state", req.State)
	query.Set("code_challenge", req.CodeChallenge)
	query.Set("redirect_uri", req.RedirectURI)
	return "https://login.example.test/authorize?" + query.Encode(), nil
}

func (b *browserIdentity) ExchangeAuthorizationCode(_ context.Context, exchange AuthorizationExchange) (IdentityToken, error) {
	b.exchanges = append(b.exchanges, exchange)
	if b.exchange != nil {
		return IdentityToken{}, b.exchange
	}
	return b.token, nil
}

func newBrowserService(t *testing.T, fixture *chainFixture) (*Service, *browserIdentity) {
	t.Helper()
	identity := &browserIdentity{fakeIdentity: fixture.identity}
	svc, err := NewService(Config{}, fixture.options(WithIdentityProvider(identity))...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, identity
}

func TestCodeChallengeS256(t *testing.T) {
	got := CodeChallenge("dBjftJeZ4CVP-mJ0kjrJfpBzrQ_9wmVkidtLvLfO4hfdjLtTp6bcPw")
	if got != "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM" {
		t.Fatalf("unexpected challenge %q", got)
	}

	verifier, err := NewCodeVerifier()
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	if len(verifier) != 128 {
		t.Fatalf("expected 128 character verifier, got %d", len(verifier))
	}
}

func TestMemoryAuthorizationStateStore_SingleUseAndExpiry(t *testing.T) {
	clock := newTestClock()
	store := NewMemoryAuthorizationStateStore(time.Minute, clock.Now)
	ctx := context.Background()

	if err := store.Save(ctx, AuthorizationState{State: "s1", CodeVerifier: "v1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	record, err := store.Consume(ctx, "s1")
	if err != nil || record.CodeVerifier != "v1" {
		t.Fatalf("unexpected consume %#v %v", record, err)
	}
	if _, err := store.Consume(ctx, "s1"); !IsTextCode(err, ErrorAuthStateInvalid) {
		t.Fatalf("expected replayed state to be rejected, got %v", err)
	}

	if err := store.Save(ctx, AuthorizationState{State: "s2"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if _, err := store.Consume(ctx, "s2"); !IsTextCode(err, ErrorAuthStateInvalid) {
		t.Fatalf("expected expired state to be rejected, got %v", err)
	}
	if _, err := store.Consume(ctx, ""); !IsTextCode(err, ErrorAuthStateInvalid) {
		t.Fatalf("expected empty state to be rejected, got %v", err)
	}
}

func TestBrowserSignIn_RunsChainWithVerifier(t *testing.T) {
	fixture := newChainFixture()
	svc, identity := newBrowserService(t, fixture)
	ctx := context.Background()

	start, err := svc.BeginAuthorization(ctx, "")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if start.RedirectURI != DefaultRedirectURI {
		t.Fatalf("expected configured redirect, got %q", start.RedirectURI)
	}
	if !start.ExpiresAt.Equal(testNow.Add(DefaultAuthorizationTTL)) {
		t.Fatalf("unexpected expiry %s", start.ExpiresAt)
	}
	parsed, err := url.Parse(start.URL)
	if err != nil || parsed.Query().Get("state") != start.State {
		t.Fatalf("expected state in url %q", start.URL)
	}

	account, err := svc.CompleteAuthorization(ctx, AuthorizationCallback{
		State:       start.State,
		Code:        "code-1",
		RedirectURI: start.RedirectURI,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if account.ID != notchID || account.Session.AccessToken != "FINAL" {
		t.Fatalf("unexpected account %#v", account)
	}
	if fixture.accounts.count() != 1 {
		t.Fatalf("expected account to be stored")
	}

	if len(identity.exchanges) != 1 {
		t.Fatalf("expected one exchange, got %d", len(identity.exchanges))
	}
	exchange := identity.exchanges[0]
	if exchange.Code != "code-1" || exchange.RedirectURI != DefaultRedirectURI {
		t.Fatalf("unexpected exchange %#v", exchange)
	}
	if CodeChallenge(exchange.CodeVerifier) != identity.requests[0].CodeChallenge {
		t.Fatalf("exchange verifier does not match the challenge sent to the browser")
	}

	_, err = svc.CompleteAuthorization(ctx, AuthorizationCallback{State: start.State, Code: "code-1"})
	if !IsTextCode(err, ErrorAuthStateInvalid) {
		t.Fatalf("expected replayed callback to fail, got %v", err)
	}
}

func TestBrowserSignIn_RejectedCallbacksWriteNothing(t *testing.T) {
	cases := []struct {
		name     string
		callback func(start AuthorizationStart) AuthorizationCallback
		want     string
	}{
		{
			name: "unknown state",
			callback: func(AuthorizationStart) AuthorizationCallback {
				return AuthorizationCallback{State: "forged", Code: "code-1"}
			},
			want: ErrorAuthStateInvalid,
		},
		{
			name: "user declined",
			callback: func(start AuthorizationStart) AuthorizationCallback {
				return AuthorizationCallback{State: start.State, Error: "access_denied", ErrorDescription: "declined"}
			},
			want: ErrorAuthDenied,
		},
		{
			name: "other redirect",
			callback: func(start AuthorizationStart) AuthorizationCallback {
				return AuthorizationCallback{State: start.State, Code: "code-1", RedirectURI: "http://127.0.0.1:9999"}
			},
			want: ErrorAuthStateInvalid,
		},
		{
			name: "missing code",
			callback: func(start AuthorizationStart) AuthorizationCallback {
				return AuthorizationCallback{State: start.State}
			},
			want: ErrorBadInput,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fixture := newChainFixture()
			svc, identity := newBrowserService(t, fixture)
			start, err := svc.BeginAuthorization(context.Background(), "http://127.0.0.1:3003/callback")
			if err != nil {
				t.Fatalf("begin: %v", err)
			}

			_, err = svc.CompleteAuthorization(context.Background(), tc.callback(start))
			if !IsTextCode(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
			if len(identity.exchanges) != 0 || fixture.accounts.count() != 0 {
				t.Fatalf("expected no exchange and no account")
			}
		})
	}
}

func TestBrowserSignIn_ExchangeFailureCarriesHop(t *testing.T) {
	fixture := newChainFixture()
	svc, identity := newBrowserService(t, fixture)
	identity.exchange = errors.New("connection reset")

	start, err := svc.BeginAuthorization(context.Background(), "")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, err = svc.CompleteAuthorization(context.Background(), AuthorizationCallback{State: start.State, Code: "code-1"})
	if !IsTextCode(err, ErrorAuthNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if hop, _ := MetadataValue(err, MetadataHop); hop != HopAuthorizationCode {
		t.Fatalf("expected authorization_code hop, got %v", hop)
	}
	if fixture.accounts.count() != 0 {
		t.Fatalf("expected no account after failed exchange")
	}
}

func TestBeginAuthorization_RequiresBrowserCapableIdentity(t *testing.T) {
	fixture := newChainFixture()
	svc, err := NewService(Config{}, fixture.options()...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.BeginAuthorization(context.Background(), ""); !IsTextCode(err, ErrorBadInput) {
		t.Fatalf("expected bad input for device-only identity, got %v", err)
	}
}

type stubNewsSource struct {
	sizes []int
	page  NewsPage
	err   error
}

func (s *stubNewsSource) Articles(_ context.Context, pageSize int) (NewsPage, error) {
	s.sizes = append(s.sizes, pageSize)
	return s.page, s.err
}

func TestNews_ClampsPageSize(t *testing.T) {
	source := &stubNewsSource{page: NewsPage{Articles: []NewsArticle{{Title: "a"}}, Total: 1}}
	svc, err := NewService(Config{}, newChainFixture().options(WithNewsSource(source))...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	for _, size := range []int{0, 5, 500} {
		if _, err := svc.News(context.Background(), size); err != nil {
			t.Fatalf("news %d: %v", size, err)
		}
	}
	if source.sizes[0] != DefaultNewsPageSize || source.sizes[1] != 5 || source.sizes[2] != DefaultNewsPageSize {
		t.Fatalf("unexpected page sizes %v", source.sizes)
	}
}

func TestNews_RequiresSource(t *testing.T) {
	svc, err := NewService(Config{}, newChainFixture().options()...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.News(context.Background(), 10); err == nil {
		t.Fatalf("expected missing news source error")
	}
}
