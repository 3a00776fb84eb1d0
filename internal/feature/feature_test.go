package feature

import (
	"context"
	"errors"
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

func TestManagerFeaturesEnabledByDefault(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	for _, feature := range manager.Known() {
		if !manager.Enabled(42, feature.Name) {
			t.Fatalf("Enabled(42, %s) = false, want true by default", feature.Name)
		}
	}
	if manager.Enabled(42, "telepathy") {
		t.Fatal("Enabled(42, telepathy) = true, want false for unknown feature")
	}
}

func TestManagerDisableEnableRoundTrip(t *testing.T) {
	t.Parallel()

	manager, guildStore := newTestManager(t)

	changed, err := manager.Disable(42, "chat")
	if err != nil || !changed {
		t.Fatalf("Disable(42, chat) = (%v, %v), want (true, nil)", changed, err)
	}
	changed, err = manager.Disable(42, "chat")
	if err != nil || changed {
		t.Fatalf("Disable(42, chat) repeat = (%v, %v), want (false, nil)", changed, err)
	}

	if manager.Enabled(42, "chat") {
		t.Fatal("Enabled(42, chat) = true after disable, want false")
	}
	if !manager.Enabled(99, "chat") {
		t.Fatal("Enabled(99, chat) = false, want true in other guild")
	}

	changed, err = manager.Enable(42, "chat")
	if err != nil || !changed {
		t.Fatalf("Enable(42, chat) = (%v, %v), want (true, nil)", changed, err)
	}

	document, err := guildStore.Read(42, PluginName)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(document) != 0 {
		t.Fatalf("feature document = %v, want deleted when nothing disabled", document)
	}
}

func TestManagerUnknownFeatureMutation(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	if _, err := manager.Disable(42, "telepathy"); !errors.Is(err, tika.ErrUnknownFeature) {
		t.Fatalf("Disable(42, telepathy) error = %v, want %v", err, tika.ErrUnknownFeature)
	}
	if _, err := manager.Enable(42, "telepathy"); !errors.Is(err, tika.ErrUnknownFeature) {
		t.Fatalf("Enable(42, telepathy) error = %v, want %v", err, tika.ErrUnknownFeature)
	}
}

func TestManagerLoadRestoresPersistedState(t *testing.T) {
	t.Parallel()

	manager, guildStore := newTestManager(t)

	if _, err := manager.Disable(42, "chat"); err != nil {
		t.Fatalf("Disable(42, chat) error = %v", err)
	}
	if _, err := manager.Disable(42, "backups"); err != nil {
		t.Fatalf("Disable(42, backups) error = %v", err)
	}

	reloaded, err := NewManager(guildStore, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	disabled := reloaded.GuildDisabled(42)
	if len(disabled) != 2 || disabled[0] != "backups" || disabled[1] != "chat" {
		t.Fatalf("GuildDisabled(42) = %v, want [backups chat]", disabled)
	}
	if !reloaded.Enabled(42, "knowledge") {
		t.Fatal("Enabled(42, knowledge) = false after reload, want true")
	}
}

func TestManagerNormalizesFeatureNames(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	if _, err := manager.Disable(42, "  ChAt "); err != nil {
		t.Fatalf("Disable() normalized error = %v", err)
	}
	if manager.Enabled(42, "CHAT") {
		t.Fatal("Enabled(42, CHAT) = true, want false after normalized disable")
	}
}
