package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type AccountStore struct {
	db   *bun.DB
	repo repository.Repository[*accountRecord]
	now  func() time.Time
}

func NewAccountStore(db *bun.DB) (*AccountStore, error) {
	if db == nil {
		return nil, core.NewError("sqlstore: bun db is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	repo := repository.NewRepository[*accountRecord](db, accountHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, core.WrapError(err, goerrors.CategoryInternal, core.ErrorInternal, "sqlstore: invalid account repository wiring", nil)
		}
	}
	return &AccountStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *AccountStore) List(ctx context.Context) ([]core.Account, error) {
	if s == nil || s.repo == nil {
		return nil, notConfigured()
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("id ASC"))
	if err != nil {
		return nil, storeError(err, "sqlstore: list accounts")
	}
	accounts := make([]core.Account, 0, len(records))
	for _, record := range records {
		accounts = append(accounts, record.toDomain())
	}
	return accounts, nil
}

func (s *AccountStore) Get(ctx context.Context, id string) (core.Account, error) {
	if s == nil || s.repo == nil {
		return core.Account{}, notConfigured()
	}
	id = strings.TrimSpace(id)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", id),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Account{}, storeError(err, "sqlstore: get account")
	}
	if len(records) == 0 {
		return core.Account{}, notFound(id)
	}
	return records[0].toDomain(), nil
}

// Upsert inserts the account or replaces the row with the same id in place.
func (s *AccountStore) Upsert(ctx context.Context, account core.Account) (bool, error) {
	if s == nil || s.db == nil {
		return false, notConfigured()
	}
	account.ID = strings.TrimSpace(account.ID)
	if account.ID == "" {
		return false, core.NewError("sqlstore: account id is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	now := s.now()
	replaced := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*accountRecord)(nil)).
			Where("?TableAlias.id = ?", account.ID).
			Exists(ctx)
		if err != nil {
			return err
		}
		record := newAccountRecord(account, now)
		if !exists {
			_, err = tx.NewInsert().Model(record).Exec(ctx)
			return err
		}
		replaced = true
		_, err = tx.NewUpdate().
			Model(record).
			ExcludeColumn("created_at").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return false, storeError(err, "sqlstore: upsert account")
	}
	return replaced, nil
}

func (s *AccountStore) Update(
	ctx context.Context,
	id string,
	fn func(core.Account) (core.Account, error),
) (core.Account, error) {
	if s == nil || s.db == nil {
		return core.Account{}, notConfigured()
	}
	if fn == nil {
		return core.Account{}, core.NewError("sqlstore: update function is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	id = strings.TrimSpace(id)
	var updated core.Account
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := new(accountRecord)
		if err := tx.NewSelect().
			Model(current).
			Where("?TableAlias.id = ?", id).
			Limit(1).
			Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(id)
			}
			return storeError(err, "sqlstore: load account")
		}
		next, err := fn(current.toDomain())
		if err != nil {
			return err
		}
		next.ID = id
		next.UpdatedAt = s.now()
		record := newAccountRecord(next, current.CreatedAt)
		if _, err := tx.NewUpdate().
			Model(record).
			ExcludeColumn("created_at").
			WherePK().
			Exec(ctx); err != nil {
			return storeError(err, "sqlstore: update account")
		}
		updated = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	return updated, nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return notConfigured()
	}
	id = strings.TrimSpace(id)
	res, err := s.db.NewDelete().
		Model((*accountRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storeError(err, "sqlstore: delete account")
	}
	if affected, affectedErr := res.RowsAffected(); affectedErr == nil && affected == 0 {
		return notFound(id)
	}
	return nil
}

func notConfigured() error {
	return core.NewError("sqlstore: account store is not configured", goerrors.CategoryInternal, core.ErrorInternal, nil)
}

func notFound(id string) error {
	return core.NewError("sqlstore: account not found", goerrors.CategoryNotFound, core.ErrorAccountNotFound, map[string]any{
		"account_id": id,
	})
}

func storeError(err error, message string) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return err
	}
	return core.WrapError(err, goerrors.CategoryInternal, core.ErrorInternal, message, nil)
}
