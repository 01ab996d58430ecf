package gocommand

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	launchercommand "github.com/goliatone/go-launcher/command"
	"github.com/goliatone/go-launcher/core"
	launcherquery "github.com/goliatone/go-launcher/query"
)

type okMessage struct{}

func (okMessage) Type() string { return "launcher.test.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "launcher.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "launcher.test.dispatch" }

type queueMessage struct{}

func (queueMessage) Type() string { return "launcher.test.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
	if err := ValidateMessageContract(launchercommand.RemoveAccountMessage{}); err == nil {
		t.Fatalf("expected missing account id to fail")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	sub, err := RegisterAndSubscribe(adapter, cmd)
	if err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverMirrorsLauncherCommands(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	sub, err := RegisterAndSubscribe(adapter, command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil }))
	if err != nil {
		t.Fatalf("register command: %v", err)
	}
	defer sub.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("launcher.test.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegisterAndSubscribeRequiresRegistry(t *testing.T) {
	var adapter *RegistryAdapter
	if _, err := RegisterAndSubscribe(adapter, command.CommandFunc[okMessage](func(context.Context, okMessage) error { return nil })); err == nil {
		t.Fatalf("expected nil adapter to fail")
	}
	if err := NewRegistryAdapter(nil).AddQueueResolver("queue", nil); err == nil {
		t.Fatalf("expected nil queue registry to fail")
	}
}

func TestRegisterLauncherDispatchesCommandsAndQueries(t *testing.T) {
	svc := &stubLauncherService{
		versions: core.VersionList{
			LatestRelease: "1.20.4",
			Versions: []core.VersionSummary{
				{ID: "1.20.4", Type: "release"},
				{ID: "24w03a", Type: "snapshot"},
			},
		},
	}
	adapter := NewRegistryAdapter(command.NewRegistry())
	subs, err := RegisterLauncher(adapter, svc)
	if err != nil {
		t.Fatalf("register launcher: %v", err)
	}
	defer subs.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	ctx := context.Background()
	if err := Dispatch(ctx, launchercommand.RemoveAccountMessage{AccountID: "acc-1"}); err != nil {
		t.Fatalf("dispatch remove: %v", err)
	}
	if svc.removed != "acc-1" {
		t.Fatalf("expected remove to reach the service, got %q", svc.removed)
	}

	list, err := Query[launcherquery.ListVersionsMessage, core.VersionList](ctx, launcherquery.ListVersionsMessage{ReleaseType: "release"})
	if err != nil {
		t.Fatalf("query versions: %v", err)
	}
	if len(list.Versions) != 1 || list.Versions[0].ID != "1.20.4" {
		t.Fatalf("expected filtered release list, got %#v", list.Versions)
	}
}

func TestRegisterLauncherRequiresService(t *testing.T) {
	if _, err := RegisterLauncher(NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected missing service to fail")
	}
}

type stubLauncherService struct {
	removed  string
	versions core.VersionList
}

func (s *stubLauncherService) AcquireServiceSession(context.Context, core.AcquireRequest) (core.Account, error) {
	return core.Account{}, nil
}

func (s *stubLauncherService) RefreshSession(context.Context, string) (core.Account, error) {
	return core.Account{}, nil
}

func (s *stubLauncherService) RemoveAccount(_ context.Context, accountID string) error {
	s.removed = accountID
	return nil
}

func (s *stubLauncherService) EnsureFetched(context.Context, core.Artifact) error { return nil }

func (s *stubLauncherService) FetchAll(context.Context, []core.Artifact) error { return nil }

func (s *stubLauncherService) StageNatives(context.Context, []core.Artifact) (string, error) {
	return "", nil
}

func (s *stubLauncherService) PrepareLaunch(context.Context, core.PrepareLaunchRequest) (core.LaunchPlan, error) {
	return core.LaunchPlan{}, nil
}

func (s *stubLauncherService) EnqueueSessionRefresh(context.Context, string) error { return nil }

func (s *stubLauncherService) EnqueueExpiringRefreshes(context.Context, time.Duration) (int, error) {
	return 0, nil
}

func (s *stubLauncherService) ListAccounts(context.Context) ([]core.Account, error) { return nil, nil }

func (s *stubLauncherService) Session(context.Context, string) (core.ServiceSession, error) {
	return core.ServiceSession{}, nil
}

func (s *stubLauncherService) Resolve(context.Context, string, string) (core.ResolvedManifest, error) {
	return core.ResolvedManifest{}, nil
}

func (s *stubLauncherService) VersionList(context.Context) (core.VersionList, error) {
	return s.versions, nil
}

var _ LauncherService = (*stubLauncherService)(nil)
