package providers

import (
	"testing"
	"time"
)

func TestParseTokenPayload_JSONAndForm(t *testing.T) {
	payload, err := ParseTokenPayload(
		[]byte(`{"access_token":"at","refresh_token":"rt","expires_in":"3600","token_type":"bearer"}`),
		"application/json; charset=utf-8",
	)
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if payload.AccessToken != "at" || payload.RefreshToken != "rt" || payload.ExpiresIn != 3600 {
		t.Fatalf("unexpected json payload %#v", payload)
	}

	form, err := ParseTokenPayload([]byte("error=authorization_pending&error_description=waiting"), "")
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	if !form.Failed() || form.ErrorCode != "authorization_pending" {
		t.Fatalf("unexpected form payload %#v", form)
	}
	if DescribeTokenError(form) != "waiting" {
		t.Fatalf("expected description, got %q", DescribeTokenError(form))
	}

	if _, err := ParseTokenPayload(nil, "application/json"); err == nil {
		t.Fatalf("expected empty payload error")
	}
}

func TestResolveExpiresAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := ResolveExpiresAt(now, 60, time.Hour); !got.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected response lifetime, got %s", got)
	}
	if got := ResolveExpiresAt(now, 0, time.Hour); !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected fallback lifetime, got %s", got)
	}
	if got := ResolveExpiresAt(now, 0, 0); !got.IsZero() {
		t.Fatalf("expected unknown lifetime, got %s", got)
	}
}

func TestNormalizeTokenType(t *testing.T) {
	for input, want := range map[string]string{"": "Bearer", "bearer": "Bearer", "MAC": "MAC"} {
		if got := NormalizeTokenType(input); got != want {
			t.Fatalf("NormalizeTokenType(%q): expected %q, got %q", input, want, got)
		}
	}
}
