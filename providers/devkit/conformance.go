package devkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-launcher/core"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateAccountStoreConformance exercises the account store contract
// against an empty store.
func ValidateAccountStoreConformance(ctx context.Context, store core.AccountStore) error {
	if store == nil {
		return fmt.Errorf("devkit: account store is required")
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	account := core.Account{
		ID:          "profile-1",
		DisplayName: "Steve",
		Identity:    core.IdentityToken{AccessToken: "id-1", RefreshToken: "refresh-1", ExpiresAt: now.Add(time.Hour)},
		Session:     core.ServiceSession{AccessToken: "game-1", TokenType: "Bearer", SubjectID: "profile-1", DisplayName: "Steve", ExpiresAt: now.Add(time.Hour)},
		UpdatedAt:   now,
	}

	replaced, err := store.Upsert(ctx, account)
	if err != nil {
		return err
	}
	if replaced {
		return fmt.Errorf("devkit: first upsert should insert")
	}

	account.Session.AccessToken = "game-2"
	replaced, err = store.Upsert(ctx, account)
	if err != nil {
		return err
	}
	if !replaced {
		return fmt.Errorf("devkit: second upsert should replace in place")
	}

	listed, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(listed) != 1 {
		return fmt.Errorf("devkit: expected one account after replace, got %d", len(listed))
	}

	loaded, err := store.Get(ctx, account.ID)
	if err != nil {
		return err
	}
	if loaded.Session.AccessToken != "game-2" || loaded.Identity.RefreshToken != "refresh-1" {
		return fmt.Errorf("devkit: unexpected stored account %#v", loaded)
	}
	if !loaded.Session.ExpiresAt.Equal(account.Session.ExpiresAt) {
		return fmt.Errorf("devkit: session expiry not preserved")
	}

	updated, err := store.Update(ctx, account.ID, func(current core.Account) (core.Account, error) {
		current.DisplayName = "Alex"
		return current, nil
	})
	if err != nil {
		return err
	}
	if updated.DisplayName != "Alex" {
		return fmt.Errorf("devkit: update result not returned")
	}

	if _, err := store.Update(ctx, "missing", func(current core.Account) (core.Account, error) {
		return current, nil
	}); !core.IsTextCode(err, core.ErrorAccountNotFound) {
		return fmt.Errorf("devkit: expected account not found for update, got %v", err)
	}

	if err := store.Delete(ctx, account.ID); err != nil {
		return err
	}
	if _, err := store.Get(ctx, account.ID); !core.IsTextCode(err, core.ErrorAccountNotFound) {
		return fmt.Errorf("devkit: expected account not found after delete, got %v", err)
	}
	return nil
}
