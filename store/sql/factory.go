package sqlstore

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db           *bun.DB
	accountStore *AccountStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB.
func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return core.NewError("sqlstore: repository factory is nil", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.accountStore != nil {
		return nil
	}
	store, err := NewAccountStore(f.db)
	if err != nil {
		return err
	}
	f.accountStore = store
	return nil
}

func (f *RepositoryFactory) AccountStore() core.AccountStore {
	if f == nil || f.accountStore == nil {
		return nil
	}
	return f.accountStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, core.NewError("sqlstore: persistence client is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, core.NewError("sqlstore: persistence client returned nil bun db", goerrors.CategoryInternal, core.ErrorInternal, nil)
		}
		return db, nil
	default:
		return nil, core.NewError("sqlstore: unsupported persistence client type", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
			"type": typeName(candidate),
		})
	}
}
