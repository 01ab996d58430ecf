package sqlstore

import "github.com/goliatone/go-launcher/core"

var (
	_ core.AccountStore = (*AccountStore)(nil)
	_ core.AccountStore = (*CachedAccountStore)(nil)
)
