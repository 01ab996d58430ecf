package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type accountRecord struct {
	bun.BaseModel `bun:"table:launcher_accounts,alias:la"`

	ID                   string    `bun:"id,pk"`
	DisplayName          string    `bun:"display_name,notnull"`
	IdentityAccessToken  string    `bun:"identity_access_token,notnull"`
	IdentityRefreshToken string    `bun:"identity_refresh_token,notnull"`
	IdentityTokenType    string    `bun:"identity_token_type,notnull"`
	IdentityScope        string    `bun:"identity_scope,notnull"`
	IdentityExpiresAt    time.Time `bun:"identity_expires_at,nullzero"`
	SessionAccessToken   string    `bun:"session_access_token,notnull"`
	SessionTokenType     string    `bun:"session_token_type,notnull"`
	SessionSubjectID     string    `bun:"session_subject_id,notnull"`
	SessionDisplayName   string    `bun:"session_display_name,notnull"`
	SessionExpiresAt     time.Time `bun:"session_expires_at,nullzero"`
	CreatedAt            time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt            time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
