package admin

import (
	"context"
	"sync"
	"testing"

	"tika/internal/store"
	"tika/pkg/tika"
)

func newTestManager(t *testing.T) (*Manager, tika.GuildStore) {
	t.Helper()

	guildStore, err := store.NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("store.NewManager() error = %v", err)
	}
	manager, err := NewManager(guildStore, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	return manager, guildStore
}

func TestManagerAddRemoveLifecycle(t *testing.T) {
	t.Parallel()

	manager, guildStore := newTestManager(t)

	added, err := manager.Add(42, 7)
	if err != nil || !added {
		t.Fatalf("Add(42, 7) = (%v, %v), want (true, nil)", added, err)
	}

	added, err = manager.Add(42, 7)
	if err != nil || added {
		t.Fatalf("Add(42, 7) repeat = (%v, %v), want (false, nil)", added, err)
	}

	if !manager.IsAdmin(42, 7, false) {
		t.Fatal("IsAdmin(42, 7) = false, want true after add")
	}
	if manager.IsAdmin(42, 9, false) {
		t.Fatal("IsAdmin(42, 9) = true, want false")
	}
	if manager.IsAdmin(99, 7, false) {
		t.Fatal("IsAdmin(99, 7) = true, want false in other guild")
	}

	removed, err := manager.Remove(42, 7)
	if err != nil || !removed {
		t.Fatalf("Remove(42, 7) = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = manager.Remove(42, 7)
	if err != nil || removed {
		t.Fatalf("Remove(42, 7) repeat = (%v, %v), want (false, nil)", removed, err)
	}

	document, err := guildStore.Read(42, PluginName)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(document) != 0 {
		t.Fatalf("admin document = %v, want deleted after last removal", document)
	}
}

func TestManagerPlatformAdministratorAlwaysQualifies(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	if !manager.IsAdmin(42, 7, true) {
		t.Fatal("IsAdmin() with platform permission = false, want true")
	}
}

func TestManagerLoadRestoresPersistedState(t *testing.T) {
	t.Parallel()

	manager, guildStore := newTestManager(t)

	for _, userID := range []int64{9, 7} {
		if _, err := manager.Add(42, userID); err != nil {
			t.Fatalf("Add(42, %d) error = %v", userID, err)
		}
	}
	if _, err := manager.Add(99, 5); err != nil {
		t.Fatalf("Add(99, 5) error = %v", err)
	}

	reloaded, err := NewManager(guildStore, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	admins := reloaded.GuildAdmins(42)
	if len(admins) != 2 || admins[0] != 7 || admins[1] != 9 {
		t.Fatalf("GuildAdmins(42) = %v, want [7 9]", admins)
	}
	if !reloaded.IsAdmin(99, 5, false) {
		t.Fatal("IsAdmin(99, 5) = false after reload, want true")
	}
}

func TestManagerConcurrentMutationsDoNotLoseWrites(t *testing.T) {
	t.Parallel()

	manager, guildStore := newTestManager(t)

	const workers = 16
	wg := sync.WaitGroup{}
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			if _, err := manager.Add(42, userID); err != nil {
				t.Errorf("Add(42, %d) error = %v", userID, err)
			}
		}(int64(worker + 1))
	}
	wg.Wait()

	if admins := manager.GuildAdmins(42); len(admins) != workers {
		t.Fatalf("GuildAdmins(42) length = %d, want %d", len(admins), workers)
	}

	document, err := guildStore.Read(42, PluginName)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	persisted, _ := document["user_ids"].([]any)
	if len(persisted) != workers {
		t.Fatalf("persisted user_ids length = %d, want %d", len(persisted), workers)
	}
}

func TestManagerRejectsInvalidIdentifiers(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	if _, err := manager.Add(0, 7); err == nil {
		t.Fatal("Add(0, 7) error = nil, want error")
	}
	if _, err := manager.Remove(42, 0); err == nil {
		t.Fatal("Remove(42, 0) error = nil, want error")
	}
}
