package launcher_test

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	launcher "github.com/goliatone/go-launcher"
	"github.com/goliatone/go-launcher/adapters/gojob"
	launchercommand "github.com/goliatone/go-launcher/command"
	"github.com/goliatone/go-launcher/core"
	"github.com/goliatone/go-launcher/providers/devkit"
	"github.com/goliatone/go-launcher/providers/microsoft"
	"github.com/goliatone/go-launcher/providers/minecraft"
	"github.com/goliatone/go-launcher/providers/xbox"
	launcherquery "github.com/goliatone/go-launcher/query"
	filestore "github.com/goliatone/go-launcher/store/file"
)

const (
	testDeviceURL  = "https://login.example.test/devicecode"
	testTokenURL   = "https://login.example.test/token"
	testUserURL    = "https://user.example.test/authenticate"
	testXSTSURL    = "https://xsts.example.test/authorize"
	testLoginURL   = "https://services.example.test/login_with_xbox"
	testProfileURL = "https://services.example.test/profile"
	testProfileID  = "069a79f444e94726a5befca90e38aaf5"
)

func TestNew_DefaultWiringUsesDataDir(t *testing.T) {
	cfg := launcher.DefaultConfig()
	cfg.DataDir = t.TempDir()

	svc, err := launcher.New(cfg)
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}
	if svc.Config().DataDir != cfg.DataDir {
		t.Fatalf("expected data dir %q, got %q", cfg.DataDir, svc.Config().DataDir)
	}
	accounts, err := svc.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("expected no accounts in a fresh data dir, got %d", len(accounts))
	}
}

func TestComposition_SignInThroughFacadePersistsAccount(t *testing.T) {
	ctx := context.Background()
	clock := devkit.NewClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	adapter := devkit.NewFakeTransportAdapter("rest").
		Route(testDeviceURL, devkit.JSON(http.StatusOK, map[string]any{
			"device_code":      "device-1",
			"user_code":        "ABCD-EFGH",
			"verification_uri": "https://microsoft.com/link",
			"expires_in":       900,
			"interval":         5,
		})).
		Route(testTokenURL,
			devkit.JSON(http.StatusBadRequest, map[string]any{"error": microsoft.ErrorCodePending}),
			devkit.JSON(http.StatusOK, map[string]any{
				"access_token":  "T1",
				"refresh_token": "R1",
				"token_type":    "bearer",
				"expires_in":    3600,
			}),
		).
		Route(testUserURL, devkit.JSON(http.StatusOK, map[string]any{
			"Token":         "XBL",
			"DisplayClaims": map[string]any{"xui": []map[string]string{{"uhs": "H1"}}},
		})).
		Route(testXSTSURL, devkit.JSON(http.StatusOK, map[string]any{
			"Token":         "T2",
			"DisplayClaims": map[string]any{"xui": []map[string]string{{"uhs": "H1"}}},
		})).
		Route(testLoginURL, devkit.JSON(http.StatusOK, map[string]any{
			"username":     "5b2d3c1e",
			"access_token": "FINAL",
			"token_type":   "Bearer",
			"expires_in":   86400,
		})).
		Route(testProfileURL, devkit.JSON(http.StatusOK, map[string]any{
			"id":   testProfileID,
			"name": "Notch",
		}))

	identity, err := microsoft.New(microsoft.Config{
		ClientID:      "client-1",
		DeviceCodeURL: testDeviceURL,
		TokenURL:      testTokenURL,
		Transport:     adapter,
		Sleeper:       &devkit.RecordingSleeper{},
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("microsoft provider: %v", err)
	}
	federation, err := xbox.New(xbox.Config{UserAuthURL: testUserURL, XSTSURL: testXSTSURL, Transport: adapter})
	if err != nil {
		t.Fatalf("xbox provider: %v", err)
	}
	game, err := minecraft.New(minecraft.Config{LoginURL: testLoginURL, ProfileURL: testProfileURL, Transport: adapter, Now: clock.Now})
	if err != nil {
		t.Fatalf("minecraft provider: %v", err)
	}

	cfg := launcher.DefaultConfig()
	cfg.DataDir = t.TempDir()
	svc, err := launcher.New(cfg,
		launcher.WithIdentityProvider(identity),
		launcher.WithFederationProvider(federation),
		launcher.WithGameServiceProvider(game),
		launcher.WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}
	facade, err := launcher.NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	var prompted core.DeviceGrant
	if err := facade.Commands().AcquireSession.Execute(ctx, launchercommand.AcquireSessionMessage{
		Request: core.AcquireRequest{
			Interactive: true,
			Prompt:      func(grant core.DeviceGrant) { prompted = grant },
		},
	}); err != nil {
		t.Fatalf("acquire session: %v", err)
	}
	if prompted.UserCode != "ABCD-EFGH" {
		t.Fatalf("expected user code to be shown, got %#v", prompted)
	}

	accounts, err := facade.Queries().ListAccounts.Query(ctx, launcherquery.ListAccountsMessage{})
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != testProfileID || accounts[0].DisplayName != "Notch" {
		t.Fatalf("unexpected accounts %#v", accounts)
	}
	if accounts[0].Identity.RefreshToken != "R1" || accounts[0].Session.AccessToken != "FINAL" {
		t.Fatalf("expected identity and session tokens to be stored, got %#v", accounts[0])
	}

	session, err := facade.Queries().Session.Query(ctx, launcherquery.SessionMessage{AccountID: testProfileID})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if session.AuthorizationHeader() != "Bearer FINAL" {
		t.Fatalf("unexpected session %#v", session)
	}

	if _, err := os.Stat(filepath.Join(cfg.DataDir, "accounts.json")); err != nil {
		t.Fatalf("expected accounts file under data dir: %v", err)
	}
	if got := len(adapter.RequestsTo(testTokenURL)); got != 2 {
		t.Fatalf("expected two token polls, got %d", got)
	}
}

func TestComposition_BrowserSignInThroughLoopback(t *testing.T) {
	ctx := context.Background()
	adapter := devkit.NewFakeTransportAdapter("rest").
		Route(testTokenURL, devkit.JSON(http.StatusOK, map[string]any{
			"access_token":  "T1",
			"refresh_token": "R1",
			"token_type":    "bearer",
			"expires_in":    3600,
		})).
		Route(testUserURL, devkit.JSON(http.StatusOK, map[string]any{
			"Token":         "XBL",
			"DisplayClaims": map[string]any{"xui": []map[string]string{{"uhs": "H1"}}},
		})).
		Route(testXSTSURL, devkit.JSON(http.StatusOK, map[string]any{
			"Token":         "T2",
			"DisplayClaims": map[string]any{"xui": []map[string]string{{"uhs": "H1"}}},
		})).
		Route(testLoginURL, devkit.JSON(http.StatusOK, map[string]any{
			"access_token": "FINAL",
			"token_type":   "Bearer",
			"expires_in":   86400,
		})).
		Route(testProfileURL, devkit.JSON(http.StatusOK, map[string]any{
			"id":   testProfileID,
			"name": "Notch",
		}))

	identity, err := microsoft.New(microsoft.Config{ClientID: "client-1", TokenURL: testTokenURL, DeviceCodeURL: testDeviceURL, Transport: adapter})
	if err != nil {
		t.Fatalf("microsoft provider: %v", err)
	}
	federation, err := xbox.New(xbox.Config{UserAuthURL: testUserURL, XSTSURL: testXSTSURL, Transport: adapter})
	if err != nil {
		t.Fatalf("xbox provider: %v", err)
	}
	game, err := minecraft.New(minecraft.Config{LoginURL: testLoginURL, ProfileURL: testProfileURL, Transport: adapter})
	if err != nil {
		t.Fatalf("minecraft provider: %v", err)
	}
	cfg := launcher.DefaultConfig()
	cfg.DataDir = t.TempDir()
	svc, err := launcher.New(cfg,
		launcher.WithIdentityProvider(identity),
		launcher.WithFederationProvider(federation),
		launcher.WithGameServiceProvider(game),
	)
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}
	facade, err := launcher.NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	listener, err := microsoft.ListenForCallback("http://127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	start, err := svc.BeginAuthorization(ctx, listener.RedirectURI())
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}
	authURL, err := url.Parse(start.URL)
	if err != nil {
		t.Fatalf("parse authorization url: %v", err)
	}
	if authURL.Query().Get("redirect_uri") != listener.RedirectURI() || authURL.Query().Get("code_challenge") == "" {
		t.Fatalf("unexpected authorization url %q", start.URL)
	}

	// The browser follows the redirect back to the launcher.
	res, err := http.Get(listener.RedirectURI() + "?code=code-1&state=" + url.QueryEscape(start.State))
	if err != nil {
		t.Fatalf("redirect: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected redirect status %d", res.StatusCode)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	callback, err := listener.Wait(waitCtx)
	if err != nil {
		t.Fatalf("wait for callback: %v", err)
	}
	if err := facade.Commands().CompleteAuthorization.Execute(ctx, launchercommand.CompleteAuthorizationMessage{Callback: callback}); err != nil {
		t.Fatalf("complete authorization: %v", err)
	}

	accounts, err := facade.Queries().ListAccounts.Query(ctx, launcherquery.ListAccountsMessage{})
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != testProfileID || accounts[0].Identity.RefreshToken != "R1" {
		t.Fatalf("unexpected accounts %#v", accounts)
	}

	form, _ := url.ParseQuery(string(adapter.RequestsTo(testTokenURL)[0].Body))
	if form.Get("grant_type") != microsoft.GrantTypeAuthCode || form.Get("code") != "code-1" {
		t.Fatalf("unexpected code exchange %v", form)
	}
	if core.CodeChallenge(form.Get("code_verifier")) != authURL.Query().Get("code_challenge") {
		t.Fatalf("code verifier does not match the challenge")
	}
}

func newRefreshLauncher(t *testing.T, tokenAnswer devkit.TransportScript, opts ...launcher.Option) (*launcher.Service, *devkit.FakeTransportAdapter) {
	t.Helper()
	cfg := launcher.DefaultConfig()
	cfg.DataDir = t.TempDir()

	store, err := filestore.NewAccountStore(cfg.AccountsPath())
	if err != nil {
		t.Fatalf("account store: %v", err)
	}
	if _, err := store.Upsert(context.Background(), core.Account{
		ID:          testProfileID,
		DisplayName: "Notch",
		Identity:    core.IdentityToken{AccessToken: "T1", RefreshToken: "R1"},
		Session:     core.ServiceSession{AccessToken: "FINAL", TokenType: "Bearer"},
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	adapter := devkit.NewFakeTransportAdapter("rest").Route(testTokenURL, tokenAnswer)
	identity, err := microsoft.New(microsoft.Config{TokenURL: testTokenURL, DeviceCodeURL: testDeviceURL, Transport: adapter})
	if err != nil {
		t.Fatalf("microsoft provider: %v", err)
	}
	federation, err := xbox.New(xbox.Config{UserAuthURL: testUserURL, XSTSURL: testXSTSURL, Transport: adapter})
	if err != nil {
		t.Fatalf("xbox provider: %v", err)
	}
	game, err := minecraft.New(minecraft.Config{LoginURL: testLoginURL, ProfileURL: testProfileURL, Transport: adapter})
	if err != nil {
		t.Fatalf("minecraft provider: %v", err)
	}
	opts = append([]launcher.Option{
		launcher.WithIdentityProvider(identity),
		launcher.WithFederationProvider(federation),
		launcher.WithGameServiceProvider(game),
		launcher.WithAccountStore(store),
	}, opts...)
	svc, err := launcher.New(cfg, opts...)
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}
	return svc, adapter
}

func TestRefreshSession_TokenEndpointOutageKeepsAccount(t *testing.T) {
	ctx := context.Background()
	svc, adapter := newRefreshLauncher(t, devkit.JSON(http.StatusServiceUnavailable, map[string]any{
		"error":             microsoft.ErrorUnavailable,
		"error_description": "try again later",
	}))

	_, err := svc.RefreshSession(ctx, testProfileID)
	if !core.IsTextCode(err, core.ErrorAuthNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if hop, _ := core.MetadataValue(err, core.MetadataHop); hop != core.HopRefresh {
		t.Fatalf("expected refresh hop, got %#v", hop)
	}
	accounts, err := svc.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Identity.RefreshToken != "R1" {
		t.Fatalf("expected account to survive the outage, got %#v", accounts)
	}
	if got := len(adapter.RequestsTo(testUserURL)); got != 0 {
		t.Fatalf("expected federation hops to be skipped, got %d", got)
	}
}

func TestRefreshSession_RevokedGrantRemovesAccount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRefreshLauncher(t, devkit.JSON(http.StatusBadRequest, map[string]any{
		"error": microsoft.ErrorInvalidGrant,
	}))

	_, err := svc.RefreshSession(ctx, testProfileID)
	if !core.IsTextCode(err, core.ErrorAuthDenied) {
		t.Fatalf("expected denied, got %v", err)
	}
	accounts, err := svc.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("expected revoked account to be removed, got %#v", accounts)
	}
}

func TestRefreshQueue_OutageRequeuesThroughGoJob(t *testing.T) {
	ctx := context.Background()
	jobs := &memoryQueue{}
	svc, _ := newRefreshLauncher(t, devkit.JSON(http.StatusServiceUnavailable, map[string]any{
		"error": microsoft.ErrorUnavailable,
	}), launcher.WithJobEnqueuer(gojob.NewEnqueuerAdapter(jobs)))

	if err := svc.EnqueueSessionRefresh(ctx, testProfileID); err != nil {
		t.Fatalf("enqueue refresh: %v", err)
	}
	if len(jobs.pending) != 1 || jobs.pending[0].IdempotencyKey != "refresh:"+testProfileID {
		t.Fatalf("expected one deduplicated refresh job, got %#v", jobs.pending)
	}

	worker := gojob.NewRefreshWorker(gojob.NewDequeuerAdapter(jobs, gojob.DefaultRetryPolicy()), svc)
	processed, err := worker.RunOnce(ctx)
	if !processed || !core.IsTextCode(err, core.ErrorAuthNetwork) {
		t.Fatalf("expected processed network failure, got %v %v", processed, err)
	}
	if len(jobs.nacks) != 1 || !jobs.nacks[0].Requeue || jobs.nacks[0].Delay != 30*time.Second {
		t.Fatalf("expected requeue after 30s, got %#v", jobs.nacks)
	}
	accounts, err := svc.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected account to survive the outage, got %#v", accounts)
	}
}

func TestRefreshQueue_RevokedGrantIsAcked(t *testing.T) {
	ctx := context.Background()
	jobs := &memoryQueue{}
	svc, _ := newRefreshLauncher(t, devkit.JSON(http.StatusBadRequest, map[string]any{
		"error": microsoft.ErrorInvalidGrant,
	}), launcher.WithJobEnqueuer(gojob.NewEnqueuerAdapter(jobs)))

	if err := svc.EnqueueSessionRefresh(ctx, testProfileID); err != nil {
		t.Fatalf("enqueue refresh: %v", err)
	}
	worker := gojob.NewRefreshWorker(gojob.NewDequeuerAdapter(jobs, gojob.DefaultRetryPolicy()), svc)
	if _, err := worker.RunOnce(ctx); err != nil {
		t.Fatalf("expected revoked refresh to settle cleanly, got %v", err)
	}
	if jobs.acks != 1 || len(jobs.nacks) != 0 {
		t.Fatalf("expected ack without retry, got acks=%d nacks=%#v", jobs.acks, jobs.nacks)
	}
	accounts, err := svc.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("expected revoked account to be removed, got %#v", accounts)
	}
}

// memoryQueue is a single-consumer go-job queue that records settlements.
type memoryQueue struct {
	pending []*job.ExecutionMessage
	acks    int
	nacks   []queue.NackOptions
}

func (q *memoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	q.pending = append(q.pending, msg)
	return nil
}

func (q *memoryQueue) Dequeue(context.Context) (queue.Delivery, error) {
	if len(q.pending) == 0 {
		return nil, nil
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	return &memoryDelivery{queue: q, msg: next}, nil
}

type memoryDelivery struct {
	queue *memoryQueue
	msg   *job.ExecutionMessage
}

func (d *memoryDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *memoryDelivery) Ack(context.Context) error {
	d.queue.acks++
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.queue.nacks = append(d.queue.nacks, opts)
	return nil
}
