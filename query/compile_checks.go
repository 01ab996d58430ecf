package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-launcher/core"
)

var (
	_ gocmd.Querier[ListAccountsMessage, []core.Account]           = (*ListAccountsQuery)(nil)
	_ gocmd.Querier[SessionMessage, core.ServiceSession]           = (*SessionQuery)(nil)
	_ gocmd.Querier[ResolveManifestMessage, core.ResolvedManifest] = (*ResolveManifestQuery)(nil)
	_ gocmd.Querier[ListVersionsMessage, core.VersionList]         = (*ListVersionsQuery)(nil)
	_ gocmd.Querier[NewsMessage, core.NewsPage]                    = (*NewsQuery)(nil)
)
