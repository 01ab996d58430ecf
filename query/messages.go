package query

import (
	"strings"

	"github.com/goliatone/go-launcher/core"
)

const (
	TypeListAccounts    = "launcher.query.account.list"
	TypeSession         = "launcher.query.session.get"
	TypeResolveManifest = "launcher.query.manifest.resolve"
	TypeListVersions    = "launcher.query.version.list"
	TypeNews            = "launcher.query.news.list"
)

type ListAccountsMessage struct{}

func (ListAccountsMessage) Type() string { return TypeListAccounts }

func (ListAccountsMessage) Validate() error { return nil }

type SessionMessage struct {
	AccountID string
}

func (SessionMessage) Type() string { return TypeSession }

func (m SessionMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return queryValidationError("account_id", "account id is required")
	}
	return nil
}

type ResolveManifestMessage struct {
	VersionID   string
	ManifestURL string
}

func (ResolveManifestMessage) Type() string { return TypeResolveManifest }

func (m ResolveManifestMessage) Validate() error {
	if strings.TrimSpace(m.VersionID) == "" {
		return queryValidationError("version_id", "version id is required")
	}
	return nil
}

type ListVersionsMessage struct {
	// ReleaseType keeps only versions of that type, such as release or
	// snapshot. Empty keeps all.
	ReleaseType string
}

func (ListVersionsMessage) Type() string { return TypeListVersions }

func (ListVersionsMessage) Validate() error { return nil }

type NewsMessage struct {
	// PageSize defaults to 20 when zero.
	PageSize int
}

func (NewsMessage) Type() string { return TypeNews }

func (m NewsMessage) Validate() error {
	if m.PageSize < 0 || m.PageSize > core.MaxNewsPageSize {
		return queryValidationError("page_size", "page size must be between 0 and 100")
	}
	return nil
}
