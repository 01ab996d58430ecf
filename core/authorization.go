package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	CodeChallengeMethodS256 = "S256"

	pkceVerifierBytes = 96
	stateBytes        = 24
)

// AuthorizationRequest is what an AuthorizationCodeProvider needs to build the
// browser sign-in url.
type AuthorizationRequest struct {
	RedirectURI   string
	State         string
	CodeChallenge string
}

// AuthorizationExchange redeems an authorization code.
type AuthorizationExchange struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
}

// AuthorizationStart is returned by BeginAuthorization. The caller opens URL
// in a browser and waits for the redirect to RedirectURI.
type AuthorizationStart struct {
	URL         string
	State       string
	RedirectURI string
	ExpiresAt   time.Time
}

// AuthorizationCallback carries the query parameters of the loopback redirect.
type AuthorizationCallback struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
	RedirectURI      string
}

// AuthorizationState is the pending half of a browser sign-in. The code
// verifier never leaves the launcher.
type AuthorizationState struct {
	State        string
	CodeVerifier string
	RedirectURI  string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// AuthorizationStateStore keeps pending sign-ins until their callback arrives.
// Consume is single use.
type AuthorizationStateStore interface {
	Save(ctx context.Context, record AuthorizationState) error
	Consume(ctx context.Context, state string) (AuthorizationState, error)
}

type MemoryAuthorizationStateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]AuthorizationState
}

func NewMemoryAuthorizationStateStore(ttl time.Duration, now func() time.Time) *MemoryAuthorizationStateStore {
	if ttl <= 0 {
		ttl = DefaultAuthorizationTTL
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryAuthorizationStateStore{
		ttl:     ttl,
		now:     now,
		entries: map[string]AuthorizationState{},
	}
}

func (s *MemoryAuthorizationStateStore) Save(_ context.Context, record AuthorizationState) error {
	if s == nil {
		return fmt.Errorf("core: authorization state store is not configured")
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return NewError("core: authorization state is required", goerrors.CategoryBadInput, ErrorBadInput, nil)
	}
	record.State = state

	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, key)
		}
	}
	s.entries[state] = record
	return nil
}

func (s *MemoryAuthorizationStateStore) Consume(_ context.Context, state string) (AuthorizationState, error) {
	if s == nil {
		return AuthorizationState{}, fmt.Errorf("core: authorization state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return AuthorizationState{}, stateError("core: authorization callback state is required", state)
	}

	s.mu.Lock()
	record, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	if !ok {
		return AuthorizationState{}, stateError("core: authorization state not found", state)
	}
	if s.now().After(record.ExpiresAt) {
		return AuthorizationState{}, stateError("core: authorization state expired", state)
	}
	return record, nil
}

func stateError(message string, state string) error {
	var metadata map[string]any
	if state != "" {
		metadata = map[string]any{"state": state}
	}
	return NewError(message, goerrors.CategoryAuth, ErrorAuthStateInvalid, metadata)
}

// NewCodeVerifier returns a PKCE code verifier of 128 url-safe characters.
func NewCodeVerifier() (string, error) {
	return randomToken(pkceVerifierBytes)
}

// CodeChallenge derives the S256 challenge sent with the authorization url.
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func generateAuthorizationState() (string, error) {
	return randomToken(stateBytes)
}

func randomToken(size int) (string, error) {
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// BeginAuthorization starts a browser sign-in. It records the state and PKCE
// verifier and returns the url to open. An empty redirectURI uses the
// configured loopback address.
func (s *Service) BeginAuthorization(ctx context.Context, redirectURI string) (start AuthorizationStart, err error) {
	startedAt := s.now()
	defer func() {
		s.observeOperation(ctx, startedAt, "begin_authorization", err, map[string]any{"redirect_uri": start.RedirectURI})
	}()

	provider, err := s.authorizationProvider()
	if err != nil {
		return AuthorizationStart{}, err
	}
	redirectURI = strings.TrimSpace(redirectURI)
	if redirectURI == "" {
		redirectURI = strings.TrimSpace(s.config.Authorization.RedirectURI)
	}
	if redirectURI == "" {
		err = NewError("core: authorization redirect uri is required", goerrors.CategoryBadInput, ErrorBadInput, nil)
		return AuthorizationStart{}, err
	}

	state, err := generateAuthorizationState()
	if err != nil {
		return AuthorizationStart{}, s.mapError(err)
	}
	verifier, err := NewCodeVerifier()
	if err != nil {
		return AuthorizationStart{}, s.mapError(err)
	}
	authURL, err := provider.AuthorizationURL(AuthorizationRequest{
		RedirectURI:   redirectURI,
		State:         state,
		CodeChallenge: CodeChallenge(verifier),
	})
	if err != nil {
		return AuthorizationStart{}, s.mapError(err)
	}

	ttl := s.config.Authorization.StateTTL
	if ttl <= 0 {
		ttl = DefaultAuthorizationTTL
	}
	record := AuthorizationState{
		State:        state,
		CodeVerifier: verifier,
		RedirectURI:  redirectURI,
		CreatedAt:    startedAt,
		ExpiresAt:    startedAt.Add(ttl),
	}
	if err = s.authStates.Save(ctx, record); err != nil {
		return AuthorizationStart{}, s.mapError(err)
	}
	return AuthorizationStart{
		URL:         authURL,
		State:       state,
		RedirectURI: redirectURI,
		ExpiresAt:   record.ExpiresAt,
	}, nil
}

// CompleteAuthorization redeems the loopback callback and runs the federation
// hops. Like the device flow, only a fully successful chain writes an account.
func (s *Service) CompleteAuthorization(ctx context.Context, callback AuthorizationCallback) (account Account, err error) {
	startedAt := s.now()
	fields := map[string]any{}
	defer func() {
		if account.ID != "" {
			fields["account_id"] = account.ID
		}
		s.observeOperation(ctx, startedAt, "complete_authorization", err, fields)
	}()

	provider, err := s.authorizationProvider()
	if err != nil {
		return Account{}, err
	}
	if err = s.requireCredentialChain(); err != nil {
		return Account{}, err
	}

	record, err := s.authStates.Consume(ctx, callback.State)
	if err != nil {
		return Account{}, s.mapError(err)
	}
	if code := strings.TrimSpace(callback.Error); code != "" {
		message := code
		if description := strings.TrimSpace(callback.ErrorDescription); description != "" {
			message = code + ": " + description
		}
		err = NewError("core: authorization failed: "+message, goerrors.CategoryAuth, ErrorAuthDenied, map[string]any{
			MetadataErrorCode: code,
			MetadataHop:       HopAuthorizationCode,
		})
		return Account{}, s.mapError(err)
	}
	if redirect := strings.TrimSpace(callback.RedirectURI); redirect != "" && redirect != record.RedirectURI {
		err = stateError("core: authorization callback redirect mismatch", record.State)
		return Account{}, s.mapError(err)
	}
	if strings.TrimSpace(callback.Code) == "" {
		err = NewError("core: authorization code is required", goerrors.CategoryBadInput, ErrorBadInput, map[string]any{
			MetadataHop: HopAuthorizationCode,
		})
		return Account{}, s.mapError(err)
	}

	identity, err := provider.ExchangeAuthorizationCode(ctx, AuthorizationExchange{
		Code:         strings.TrimSpace(callback.Code),
		RedirectURI:  record.RedirectURI,
		CodeVerifier: record.CodeVerifier,
	})
	if err != nil {
		err = WithHop(err, HopAuthorizationCode, ErrorAuthNetwork)
		return Account{}, s.mapError(err)
	}

	account, err = s.signIn(ctx, identity)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *Service) authorizationProvider() (AuthorizationCodeProvider, error) {
	if s.identity == nil {
		return nil, s.dependencyError("identity provider")
	}
	provider, ok := s.identity.(AuthorizationCodeProvider)
	if !ok {
		return nil, s.mapError(NewError("core: identity provider does not support browser sign-in", goerrors.CategoryBadInput, ErrorBadInput, nil))
	}
	if s.authStates == nil {
		return nil, s.dependencyError("authorization state store")
	}
	return provider, nil
}

var _ AuthorizationStateStore = (*MemoryAuthorizationStateStore)(nil)
