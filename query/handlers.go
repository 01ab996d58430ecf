package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-launcher/core"
)

type AccountReader interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	Session(ctx context.Context, accountID string) (core.ServiceSession, error)
}

type ManifestReader interface {
	Resolve(ctx context.Context, versionID string, manifestURL string) (core.ResolvedManifest, error)
}

type VersionLister interface {
	VersionList(ctx context.Context) (core.VersionList, error)
}

type NewsReader interface {
	News(ctx context.Context, pageSize int) (core.NewsPage, error)
}

type ListAccountsQuery struct {
	reader AccountReader
}

func NewListAccountsQuery(reader AccountReader) *ListAccountsQuery {
	return &ListAccountsQuery{reader: reader}
}

func (q *ListAccountsQuery) Query(ctx context.Context, _ ListAccountsMessage) ([]core.Account, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: account reader is required")
	}
	return q.reader.ListAccounts(ctx)
}

type SessionQuery struct {
	reader AccountReader
}

func NewSessionQuery(reader AccountReader) *SessionQuery {
	return &SessionQuery{reader: reader}
}

func (q *SessionQuery) Query(ctx context.Context, msg SessionMessage) (core.ServiceSession, error) {
	if q == nil || q.reader == nil {
		return core.ServiceSession{}, queryDependencyError("query: account reader is required")
	}
	return q.reader.Session(ctx, msg.AccountID)
}

type ResolveManifestQuery struct {
	reader ManifestReader
}

func NewResolveManifestQuery(reader ManifestReader) *ResolveManifestQuery {
	return &ResolveManifestQuery{reader: reader}
}

func (q *ResolveManifestQuery) Query(ctx context.Context, msg ResolveManifestMessage) (core.ResolvedManifest, error) {
	if q == nil || q.reader == nil {
		return core.ResolvedManifest{}, queryDependencyError("query: manifest reader is required")
	}
	return q.reader.Resolve(ctx, msg.VersionID, msg.ManifestURL)
}

type ListVersionsQuery struct {
	lister VersionLister
}

func NewListVersionsQuery(lister VersionLister) *ListVersionsQuery {
	return &ListVersionsQuery{lister: lister}
}

func (q *ListVersionsQuery) Query(ctx context.Context, msg ListVersionsMessage) (core.VersionList, error) {
	if q == nil || q.lister == nil {
		return core.VersionList{}, queryDependencyError("query: version lister is required")
	}
	list, err := q.lister.VersionList(ctx)
	if err != nil {
		return core.VersionList{}, err
	}
	releaseType := strings.TrimSpace(msg.ReleaseType)
	if releaseType == "" {
		return list, nil
	}
	filtered := make([]core.VersionSummary, 0, len(list.Versions))
	for _, version := range list.Versions {
		if strings.EqualFold(version.Type, releaseType) {
			filtered = append(filtered, version)
		}
	}
	list.Versions = filtered
	return list, nil
}

type NewsQuery struct {
	reader NewsReader
}

func NewNewsQuery(reader NewsReader) *NewsQuery {
	return &NewsQuery{reader: reader}
}

func (q *NewsQuery) Query(ctx context.Context, msg NewsMessage) (core.NewsPage, error) {
	if q == nil || q.reader == nil {
		return core.NewsPage{}, queryDependencyError("query: news reader is required")
	}
	return q.reader.News(ctx, msg.PageSize)
}
