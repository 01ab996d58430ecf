package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
)

const accountsFilePerm os.FileMode = 0o600

// AccountStore keeps every account in a single accounts.json document.
type AccountStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewAccountStore(path string) (*AccountStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, core.NewError("file: accounts path is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	return &AccountStore{
		path: filepath.Clean(path),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *AccountStore) Path() string {
	return s.path
}

func (s *AccountStore) List(ctx context.Context) ([]core.Account, error) {
	var accounts []core.Account
	err := s.withDocument(ctx, false, func(doc *core.AccountsDocument) error {
		accounts = make([]core.Account, 0, len(doc.Accounts))
		for _, account := range doc.Accounts {
			accounts = append(accounts, account)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (s *AccountStore) Get(ctx context.Context, id string) (core.Account, error) {
	id = strings.TrimSpace(id)
	var account core.Account
	err := s.withDocument(ctx, false, func(doc *core.AccountsDocument) error {
		current, ok := doc.Accounts[id]
		if !ok {
			return notFound(id)
		}
		account = current
		return nil
	})
	return account, err
}

// Upsert stores account under its id. An existing entry with the same id is
// replaced in place and reported through replaced.
func (s *AccountStore) Upsert(ctx context.Context, account core.Account) (bool, error) {
	account.ID = strings.TrimSpace(account.ID)
	if account.ID == "" {
		return false, core.NewError("file: account id is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = s.now()
	}
	replaced := false
	err := s.withDocument(ctx, true, func(doc *core.AccountsDocument) error {
		_, replaced = doc.Accounts[account.ID]
		doc.Accounts[account.ID] = account
		return nil
	})
	if err != nil {
		return false, err
	}
	return replaced, nil
}

func (s *AccountStore) Update(
	ctx context.Context,
	id string,
	fn func(core.Account) (core.Account, error),
) (core.Account, error) {
	id = strings.TrimSpace(id)
	if fn == nil {
		return core.Account{}, core.NewError("file: update function is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}
	var updated core.Account
	err := s.withDocument(ctx, true, func(doc *core.AccountsDocument) error {
		current, ok := doc.Accounts[id]
		if !ok {
			return notFound(id)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		next.ID = id
		next.UpdatedAt = s.now()
		doc.Accounts[id] = next
		updated = next
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	return updated, nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return s.withDocument(ctx, true, func(doc *core.AccountsDocument) error {
		if _, ok := doc.Accounts[id]; !ok {
			return notFound(id)
		}
		delete(doc.Accounts, id)
		return nil
	})
}

// withDocument loads accounts.json under both locks, runs fn, and writes the
// document back when write is set and fn succeeded.
func (s *AccountStore) withDocument(ctx context.Context, write bool, fn func(*core.AccountsDocument) error) error {
	if s == nil {
		return core.NewError("file: account store is not configured", goerrors.CategoryInternal, core.ErrorInternal, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	doc := core.NewAccountsDocument()
	if _, err := readJSON(s.path, &doc); err != nil {
		return err
	}
	if doc.Accounts == nil {
		doc.Accounts = map[string]core.Account{}
	}
	if doc.FormatVersion == 0 {
		doc.FormatVersion = core.AccountsFormatVersion
	}

	if err := fn(&doc); err != nil {
		return err
	}
	if !write {
		return nil
	}
	return writeJSON(s.path, doc, accountsFilePerm)
}

func (s *AccountStore) lock() (func(), error) {
	lockPath := s.path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, ioError(err, "file: create accounts dir", filepath.Dir(lockPath))
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, accountsFilePerm)
	if err != nil {
		return nil, ioError(err, "file: open accounts lock", lockPath)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, ioError(err, "file: lock accounts", lockPath)
	}
	return func() {
		_ = unlockFile(f)
		_ = f.Close()
	}, nil
}

func notFound(id string) error {
	return core.NewError("file: account not found", goerrors.CategoryNotFound, core.ErrorAccountNotFound, map[string]any{
		"account_id": id,
	})
}

var _ core.AccountStore = (*AccountStore)(nil)
