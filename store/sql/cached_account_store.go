package sqlstore

import (
	"context"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const accountCacheKeyPrefix = "go-launcher::account::v1"

// CachedAccountStore serves Get from a read-through cache and drops the
// cached entry on every write to the same account.
type CachedAccountStore struct {
	base  core.AccountStore
	cache repositorycache.CacheService
}

func NewCachedAccountStore(base core.AccountStore, cacheService repositorycache.CacheService) (*CachedAccountStore, error) {
	if base == nil {
		return nil, core.NewError("sqlstore: base account store is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	if cacheService == nil {
		return nil, core.NewError("sqlstore: account cache service is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	return &CachedAccountStore{base: base, cache: cacheService}, nil
}

// AccountCacheKey returns go-launcher::account::v1::<id> with the id path
// escaped.
func AccountCacheKey(id string) string {
	return accountCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(id))
}

func (s *CachedAccountStore) List(ctx context.Context) ([]core.Account, error) {
	return s.base.List(ctx)
}

func (s *CachedAccountStore) Get(ctx context.Context, id string) (core.Account, error) {
	id = strings.TrimSpace(id)
	return repositorycache.GetOrFetch(ctx, s.cache, AccountCacheKey(id), func(ctx context.Context) (core.Account, error) {
		return s.base.Get(ctx, id)
	})
}

func (s *CachedAccountStore) Upsert(ctx context.Context, account core.Account) (bool, error) {
	replaced, err := s.base.Upsert(ctx, account)
	if err != nil {
		return false, err
	}
	return replaced, s.invalidate(ctx, account.ID)
}

func (s *CachedAccountStore) Update(
	ctx context.Context,
	id string,
	fn func(core.Account) (core.Account, error),
) (core.Account, error) {
	updated, err := s.base.Update(ctx, id, fn)
	if err != nil {
		return core.Account{}, err
	}
	return updated, s.invalidate(ctx, id)
}

func (s *CachedAccountStore) Delete(ctx context.Context, id string) error {
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

func (s *CachedAccountStore) invalidate(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, AccountCacheKey(id)); err != nil {
		return core.WrapError(err, goerrors.CategoryInternal, core.ErrorInternal, "sqlstore: invalidate cached account", map[string]any{
			"account_id": strings.TrimSpace(id),
		})
	}
	return nil
}
