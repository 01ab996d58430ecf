package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const defaultAccountLockTTL = 2 * time.Minute

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// AccountLocker serializes session refreshes per account.
type AccountLocker interface {
	Acquire(ctx context.Context, accountID string, ttl time.Duration) (LockHandle, error)
}

// MemoryAccountLocker is an in-process AccountLocker. Acquire waits for the
// current holder to release or for its ttl to lapse.
type MemoryAccountLocker struct {
	mu    sync.Mutex
	locks map[string]*accountLock
	nowFn func() time.Time
}

type accountLock struct {
	until    time.Time
	released chan struct{}
}

func NewMemoryAccountLocker() *MemoryAccountLocker {
	return &MemoryAccountLocker{
		locks: make(map[string]*accountLock),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryAccountLocker) Acquire(ctx context.Context, accountID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: account locker is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("core: account id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultAccountLockTTL
	}

	for {
		now := l.nowFn()
		l.mu.Lock()
		held, ok := l.locks[accountID]
		if !ok || !now.Before(held.until) {
			entry := &accountLock{until: now.Add(ttl), released: make(chan struct{})}
			l.locks[accountID] = entry
			l.mu.Unlock()
			return &memoryLockHandle{locker: l, accountID: accountID, entry: entry}, nil
		}
		released := held.released
		remaining := held.until.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-released:
		case <-timer.C:
		}
		timer.Stop()
	}
}

type memoryLockHandle struct {
	locker    *MemoryAccountLocker
	accountID string
	entry     *accountLock
	once      sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		if current, ok := h.locker.locks[h.accountID]; ok && current == h.entry {
			delete(h.locker.locks, h.accountID)
		}
		close(h.entry.released)
		h.locker.mu.Unlock()
	})
	return nil
}

// unrecoverableRefreshCodes are OAuth error codes after which the stored
// refresh token can never succeed again.
var unrecoverableRefreshCodes = map[string]struct{}{
	"invalid_grant":        {},
	"interaction_required": {},
	"consent_required":     {},
	"login_required":       {},
	"invalid_client":       {},
	"unauthorized_client":  {},
}

// isUnrecoverableRefreshError reports whether the stored identity can never
// be refreshed again and the account must sign in from scratch. Only explicit
// OAuth codes and 400/401 denials qualify; outages keep the account.
func isUnrecoverableRefreshError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if code, ok := richErr.Metadata[MetadataErrorCode]; ok {
			if _, hit := unrecoverableRefreshCodes[strings.ToLower(strings.TrimSpace(fmt.Sprint(code)))]; hit {
				return true
			}
		}
		if richErr.Category != goerrors.CategoryAuth && richErr.Category != goerrors.CategoryAuthz {
			return false
		}
		if !strings.EqualFold(strings.TrimSpace(richErr.TextCode), ErrorAuthDenied) {
			return false
		}
		status, _ := richErr.Metadata[MetadataStatusCode].(int)
		return status == http.StatusBadRequest || status == http.StatusUnauthorized
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant")
}

var _ AccountLocker = (*MemoryAccountLocker)(nil)
