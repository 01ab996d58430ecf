package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goliatone/go-launcher/core"
	"github.com/goliatone/go-launcher/providers/devkit"
)

func TestAccountStoreConformance(t *testing.T) {
	store, err := NewAccountStore(filepath.Join(t.TempDir(), "accounts.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := devkit.ValidateAccountStoreConformance(context.Background(), store); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}

func TestAccountStore_PersistsDocumentFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "accounts.json")
	store, err := NewAccountStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Upsert(context.Background(), core.Account{ID: "abc", DisplayName: "Steve"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read accounts: %v", err)
	}
	var doc core.AccountsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode accounts: %v", err)
	}
	if doc.FormatVersion != core.AccountsFormatVersion {
		t.Fatalf("expected format version %d, got %d", core.AccountsFormatVersion, doc.FormatVersion)
	}
	if doc.Accounts["abc"].DisplayName != "Steve" {
		t.Fatalf("unexpected document %#v", doc)
	}

	reopened, err := NewAccountStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	account, err := reopened.Get(context.Background(), "abc")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if account.UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at to be stamped")
	}
}

func TestAccountStore_SameDisplayNameCoexists(t *testing.T) {
	store, err := NewAccountStore(filepath.Join(t.TempDir(), "accounts.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	for _, id := range []string{"id-a", "id-b"} {
		if _, err := store.Upsert(ctx, core.Account{ID: id, DisplayName: "Steve"}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	accounts, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 2 || accounts[0].ID != "id-a" || accounts[1].ID != "id-b" {
		t.Fatalf("expected both accounts sorted by id, got %#v", accounts)
	}
}

func TestAccountStore_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	first, err := NewAccountStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	second, err := NewAccountStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		store := first
		if i%2 == 1 {
			store = second
		}
		wg.Add(1)
		go func(store *AccountStore, i int) {
			defer wg.Done()
			_, err := store.Upsert(ctx, core.Account{ID: fmt.Sprintf("account-%02d", i)})
			errs <- err
		}(store, i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	accounts, err := first.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 20 {
		t.Fatalf("expected 20 accounts, got %d", len(accounts))
	}
}

func TestAccountStore_UpdateErrorLeavesDocument(t *testing.T) {
	store, err := NewAccountStore(filepath.Join(t.TempDir(), "accounts.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Upsert(ctx, core.Account{ID: "abc", DisplayName: "Steve"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	boom := fmt.Errorf("boom")
	if _, err := store.Update(ctx, "abc", func(current core.Account) (core.Account, error) {
		current.DisplayName = "Alex"
		return current, boom
	}); err != boom {
		t.Fatalf("expected update error, got %v", err)
	}
	account, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if account.DisplayName != "Steve" {
		t.Fatalf("expected unchanged account, got %#v", account)
	}
}

func TestConfigStore_ReadMissingAndRoundTrip(t *testing.T) {
	store, err := NewConfigStore(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	cfg, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("read missing: %v", err)
	}
	if cfg != (core.LauncherConfig{}) {
		t.Fatalf("expected zero config, got %#v", cfg)
	}

	cfg.LastLaunchedInstance = "survival"
	cfg.Java.Memory = "4G"
	if err := store.Write(ctx, cfg); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if loaded != cfg {
		t.Fatalf("expected %#v, got %#v", cfg, loaded)
	}
}

func TestInstanceStore_Lifecycle(t *testing.T) {
	store, err := NewInstanceStore(filepath.Join(t.TempDir(), "instances"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	names, err := store.ListInstances(ctx)
	if err != nil || len(names) != 0 {
		t.Fatalf("expected no instances, got %v %v", names, err)
	}

	cfg := core.InstanceConfig{GameVersion: "1.20.4", VersionType: "release"}
	if err := store.CreateInstance(ctx, "survival", cfg); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateInstance(ctx, "survival", cfg); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
	loaded, err := store.ReadInstanceConfig(ctx, "survival")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if loaded != cfg {
		t.Fatalf("expected %#v, got %#v", cfg, loaded)
	}

	if err := store.RenameInstance(ctx, "survival", "creative"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	names, err = store.ListInstances(ctx)
	if err != nil || len(names) != 1 || names[0] != "creative" {
		t.Fatalf("expected [creative], got %v %v", names, err)
	}
	if _, err := store.ReadInstanceConfig(ctx, "survival"); !core.IsTextCode(err, core.ErrorInstanceNotFound) {
		t.Fatalf("expected instance not found, got %v", err)
	}

	if err := store.RemoveInstance(ctx, "creative"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.RemoveInstance(ctx, "creative"); !core.IsTextCode(err, core.ErrorInstanceNotFound) {
		t.Fatalf("expected instance not found on second remove, got %v", err)
	}
}

func TestInstanceStore_RejectsPathNames(t *testing.T) {
	store, err := NewInstanceStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../x"} {
		if _, err := store.InstancePath(name); !core.IsTextCode(err, core.ErrorBadInput) {
			t.Fatalf("expected bad input for %q, got %v", name, err)
		}
	}
}

func TestAccountStore_LockIsReleasedForTheNextStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "accounts.json")
	first, err := NewAccountStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	second, err := NewAccountStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	unlock, err := first.lock()
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	unlock()

	unlock, err = second.lock()
	if err != nil {
		t.Fatalf("second lock: %v", err)
	}
	unlock()
	if _, err := os.Stat(path + ".lock"); err != nil {
		t.Fatalf("expected lock file next to the document: %v", err)
	}
}
