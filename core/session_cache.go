package core

import (
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const defaultSessionCacheTTL = 24 * time.Hour

// SessionCache keeps live service sessions in memory so repeated lookups do
// not hit the account store. Entries never outlive the session expiry.
type SessionCache struct {
	cache *ttlcache.Cache[string, ServiceSession]
	now   func() time.Time
}

func NewSessionCache(now func() time.Time) *SessionCache {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SessionCache{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, ServiceSession](defaultSessionCacheTTL),
			ttlcache.WithDisableTouchOnHit[string, ServiceSession](),
		),
		now: now,
	}
}

func (c *SessionCache) Get(accountID string) (ServiceSession, bool) {
	if c == nil {
		return ServiceSession{}, false
	}
	accountID = strings.TrimSpace(accountID)
	item := c.cache.Get(accountID)
	if item == nil {
		return ServiceSession{}, false
	}
	session := item.Value()
	if session.Expired(c.now()) {
		c.cache.Delete(accountID)
		return ServiceSession{}, false
	}
	return session, true
}

func (c *SessionCache) Set(accountID string, session ServiceSession) {
	if c == nil {
		return
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return
	}
	ttl := ttlcache.DefaultTTL
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(c.now())
		if ttl <= 0 {
			c.cache.Delete(accountID)
			return
		}
	}
	c.cache.Set(accountID, session, ttl)
}

func (c *SessionCache) Delete(accountID string) {
	if c == nil {
		return
	}
	c.cache.Delete(strings.TrimSpace(accountID))
}

func (c *SessionCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
