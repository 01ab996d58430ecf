package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-launcher/core"
	"github.com/goliatone/go-launcher/providers/devkit"
)

const profileURL = "https://api.minecraftservices.com/minecraft/profile"

func TestKeyForURL(t *testing.T) {
	key := KeyForURL("https://API.minecraftservices.com/minecraft/profile?x=1")
	if key.Host != "api.minecraftservices.com" || key.Bucket != "/minecraft/profile" {
		t.Fatalf("unexpected key %#v", key)
	}
	if bare := KeyForURL("https://user.auth.xboxlive.com"); bare.Bucket != "/" {
		t.Fatalf("expected root bucket, got %#v", bare)
	}
}

func TestAdaptivePolicy_BeforeCallAllowsWhenNoState(t *testing.T) {
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	if err := policy.BeforeCall(context.Background(), KeyForURL(profileURL)); err != nil {
		t.Fatalf("expected no error when no state exists, got %v", err)
	}
}

func TestAdaptivePolicy_AfterCallParsesHeadersAndPersistsState(t *testing.T) {
	store := NewMemoryStateStore()
	policy := NewAdaptivePolicy(store)
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }

	key := KeyForURL(profileURL)
	err := policy.AfterCall(context.Background(), key, core.TransportResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "600",
			"X-RateLimit-Remaining": "599",
			"X-RateLimit-Reset":     "1700000045",
		},
	})
	if err != nil {
		t.Fatalf("after call: %v", err)
	}

	state, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Limit != 600 || state.Remaining != 599 {
		t.Fatalf("unexpected limits %#v", state)
	}
	if state.ResetAt == nil || !state.ResetAt.Equal(now.Add(45*time.Second)) {
		t.Fatalf("unexpected reset %#v", state.ResetAt)
	}
	if state.ThrottledUntil != nil {
		t.Fatalf("expected no throttle for a healthy response")
	}
}

func TestAdaptivePolicy_ThrottlesOnTooManyRequests(t *testing.T) {
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }
	key := KeyForURL(profileURL)

	if err := policy.AfterCall(context.Background(), key, core.TransportResponse{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Retry-After": "30"},
	}); err != nil {
		t.Fatalf("after call: %v", err)
	}

	err := policy.BeforeCall(context.Background(), key)
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if throttled.RetryAfter != 30*time.Second {
		t.Fatalf("expected retry after 30s, got %s", throttled.RetryAfter)
	}

	now = now.Add(31 * time.Second)
	if err := policy.BeforeCall(context.Background(), key); err != nil {
		t.Fatalf("expected throttle to lapse, got %v", err)
	}
}

func TestAdaptivePolicy_BackoffWithoutRetryHint(t *testing.T) {
	policy := NewAdaptivePolicy(NewMemoryStateStore())
	policy.InitialBackoff = time.Second
	policy.MaxBackoff = 3 * time.Second
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }
	key := KeyForURL(profileURL)

	expected := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	for i, want := range expected {
		if err := policy.AfterCall(context.Background(), key, core.TransportResponse{StatusCode: http.StatusTooManyRequests}); err != nil {
			t.Fatalf("after call %d: %v", i, err)
		}
		state, _ := policy.Store.Get(context.Background(), key)
		if got := state.ThrottledUntil.Sub(now); got != want {
			t.Fatalf("attempt %d: expected backoff %s, got %s", i+1, want, got)
		}
	}

	if err := policy.AfterCall(context.Background(), key, core.TransportResponse{StatusCode: http.StatusOK}); err != nil {
		t.Fatalf("after success: %v", err)
	}
	state, _ := policy.Store.Get(context.Background(), key)
	if state.Attempts != 0 || state.ThrottledUntil != nil {
		t.Fatalf("expected success to clear throttle, got %#v", state)
	}
}

func TestAdapter_FailsFastWhileThrottled(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest").Route(profileURL,
		devkit.TransportScript{Response: core.TransportResponse{
			StatusCode: http.StatusTooManyRequests,
			Headers:    map[string]string{"Retry-After": "60"},
		}},
		devkit.JSON(http.StatusOK, map[string]any{"id": "069a79f444e94726a5befca90e38aaf5", "name": "Notch"}),
	)
	adapter := NewAdapter(fake, nil, nil)
	ctx := context.Background()
	req := core.TransportRequest{Method: http.MethodGet, URL: profileURL}

	res, err := adapter.Do(ctx, req)
	if err != nil || res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected the 429 to pass through, got %d %v", res.StatusCode, err)
	}

	_, err = adapter.Do(ctx, req)
	if !core.IsTextCode(err, core.ErrorRateLimited) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	if retry, ok := core.MetadataValue(err, core.MetadataRetryAfter); !ok || retry.(int64) <= 0 {
		t.Fatalf("expected retry hint metadata, got %#v", retry)
	}
	if got := len(fake.RequestsTo(profileURL)); got != 1 {
		t.Fatalf("expected the throttled call to stay off the network, got %d requests", got)
	}

	other := core.TransportRequest{Method: http.MethodPost, URL: "https://api.minecraftservices.com/authentication/login_with_xbox"}
	if _, err := adapter.Do(ctx, other); err != nil {
		t.Fatalf("expected other buckets to pass, got %v", err)
	}
	if adapter.Kind() != "rest" {
		t.Fatalf("expected wrapped kind, got %q", adapter.Kind())
	}
}

func TestAdapter_RequiresTransport(t *testing.T) {
	var adapter *Adapter
	if _, err := adapter.Do(context.Background(), core.TransportRequest{URL: profileURL}); !core.IsTextCode(err, core.ErrorInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
