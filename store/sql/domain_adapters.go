package sqlstore

import (
	"time"

	"github.com/goliatone/go-launcher/core"
)

func newAccountRecord(account core.Account, now time.Time) *accountRecord {
	updatedAt := account.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	return &accountRecord{
		ID:                   account.ID,
		DisplayName:          account.DisplayName,
		IdentityAccessToken:  account.Identity.AccessToken,
		IdentityRefreshToken: account.Identity.RefreshToken,
		IdentityTokenType:    account.Identity.TokenType,
		IdentityScope:        account.Identity.Scope,
		IdentityExpiresAt:    utc(account.Identity.ExpiresAt),
		SessionAccessToken:   account.Session.AccessToken,
		SessionTokenType:     account.Session.TokenType,
		SessionSubjectID:     account.Session.SubjectID,
		SessionDisplayName:   account.Session.DisplayName,
		SessionExpiresAt:     utc(account.Session.ExpiresAt),
		CreatedAt:            now,
		UpdatedAt:            utc(updatedAt),
	}
}

func (r *accountRecord) toDomain() core.Account {
	if r == nil {
		return core.Account{}
	}
	return core.Account{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		Identity: core.IdentityToken{
			AccessToken:  r.IdentityAccessToken,
			RefreshToken: r.IdentityRefreshToken,
			TokenType:    r.IdentityTokenType,
			Scope:        r.IdentityScope,
			ExpiresAt:    utc(r.IdentityExpiresAt),
		},
		Session: core.ServiceSession{
			AccessToken: r.SessionAccessToken,
			TokenType:   r.SessionTokenType,
			SubjectID:   r.SessionSubjectID,
			DisplayName: r.SessionDisplayName,
			ExpiresAt:   utc(r.SessionExpiresAt),
		},
		UpdatedAt: utc(r.UpdatedAt),
	}
}

func utc(value time.Time) time.Time {
	if value.IsZero() {
		return time.Time{}
	}
	return value.UTC()
}
