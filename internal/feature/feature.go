// Package feature stores per-guild feature flags on top of the guild
// document store. Every feature is enabled until a guild disables it.
package feature

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"tika/pkg/tika"
)

// PluginName is the guild store plugin document holding feature flags.
const PluginName = "features"

const disabledKey = "disabled"

// Well-known feature names gated by modules.
const (
	FeatureChat      = "chat"
	FeatureKnowledge = "knowledge"
	FeatureBackups   = "backups"
)

// Feature describes one toggleable capability.
type Feature struct {
	// Name is the stable flag identifier used in commands and storage.
	Name string
	// Description is a short human-readable summary.
	Description string
}

// defaultCatalog lists every feature the bot knows about.
var defaultCatalog = []Feature{
	{Name: FeatureChat, Description: "Persona chat replies and conversation memory."},
	{Name: FeatureKnowledge, Description: "Learning facts from web pages and recalling them."},
	{Name: FeatureBackups, Description: "On-demand data directory backups."},
}

// Catalog returns the declared feature catalog in declaration order.
func Catalog() []Feature {
	return append([]Feature(nil), defaultCatalog...)
}

// Manager caches disabled feature sets per guild and persists mutations.
// Only disabled flags are stored, so an absent document means all enabled.
type Manager struct {
	store   tika.GuildStore
	logger  *slog.Logger
	catalog map[string]Feature

	mu       sync.RWMutex
	disabled map[int64]map[string]struct{}

	guildMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewManager creates a feature manager backed by store with the default
// feature catalog.
func NewManager(store tika.GuildStore, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("new feature manager: nil store")
	}
	if logger == nil {
		logger = slog.Default()
	}

	catalog := make(map[string]Feature, len(defaultCatalog))
	for _, feature := range defaultCatalog {
		catalog[feature.Name] = feature
	}

	return &Manager{
		store:    store,
		logger:   logger,
		catalog:  catalog,
		disabled: make(map[int64]map[string]struct{}),
		locks:    make(map[int64]*sync.Mutex),
	}, nil
}

// Load populates the cache from every guild's stored feature document.
// Corrupt documents are logged and treated as all-enabled.
func (m *Manager) Load(ctx context.Context) error {
	guildIDs, err := m.store.GuildIDs()
	if err != nil {
		return fmt.Errorf("load features: %w", err)
	}

	loaded := make(map[int64]map[string]struct{}, len(guildIDs))
	for _, guildID := range guildIDs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load features: %w", err)
		}

		document, err := m.store.Read(guildID, PluginName)
		if err != nil {
			m.logger.Warn("feature document unavailable, treating all features as enabled",
				"guild_id", guildID,
				"error", err,
			)
			continue
		}
		disabled := m.decodeDisabled(document)
		if len(disabled) == 0 {
			continue
		}
		loaded[guildID] = disabled
	}

	m.mu.Lock()
	m.disabled = loaded
	m.mu.Unlock()

	m.logger.Info("feature cache loaded", "guilds", len(loaded))

	return nil
}

// Known returns the full feature catalog sorted by name.
func (m *Manager) Known() []Feature {
	features := make([]Feature, 0, len(m.catalog))
	for _, feature := range m.catalog {
		features = append(features, feature)
	}
	sort.Slice(features, func(i, j int) bool { return features[i].Name < features[j].Name })

	return features
}

// Enabled reports whether the feature is enabled for the guild. Unknown
// feature names report false.
func (m *Manager) Enabled(guildID int64, name string) bool {
	name = normalizeFeatureName(name)
	if _, known := m.catalog[name]; !known {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, isDisabled := m.disabled[guildID][name]

	return !isDisabled
}

// Enable turns the feature on for the guild. It returns false with nil error
// when the feature already was enabled. When no disabled features remain,
// the guild's feature document is deleted.
func (m *Manager) Enable(guildID int64, name string) (bool, error) {
	name = normalizeFeatureName(name)
	if err := m.validateMutation(guildID, name); err != nil {
		return false, fmt.Errorf("enable feature: %w", err)
	}

	lock := m.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	disabled := m.snapshotGuild(guildID)
	if _, isDisabled := disabled[name]; !isDisabled {
		return false, nil
	}
	delete(disabled, name)

	if err := m.persistGuild(guildID, disabled); err != nil {
		return false, fmt.Errorf("enable feature %s for guild %d: %w", name, guildID, err)
	}

	return true, nil
}

// Disable turns the feature off for the guild. It returns false with nil
// error when the feature already was disabled.
func (m *Manager) Disable(guildID int64, name string) (bool, error) {
	name = normalizeFeatureName(name)
	if err := m.validateMutation(guildID, name); err != nil {
		return false, fmt.Errorf("disable feature: %w", err)
	}

	lock := m.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	disabled := m.snapshotGuild(guildID)
	if _, isDisabled := disabled[name]; isDisabled {
		return false, nil
	}
	disabled[name] = struct{}{}

	if err := m.persistGuild(guildID, disabled); err != nil {
		return false, fmt.Errorf("disable feature %s for guild %d: %w", name, guildID, err)
	}

	return true, nil
}

// GuildDisabled returns the guild's disabled feature names sorted ascending.
func (m *Manager) GuildDisabled(guildID int64) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.disabled[guildID]))
	for name := range m.disabled[guildID] {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (m *Manager) validateMutation(guildID int64, name string) error {
	if guildID <= 0 {
		return fmt.Errorf("invalid guild id %d", guildID)
	}
	if _, known := m.catalog[name]; !known {
		return fmt.Errorf("%w: %s", tika.ErrUnknownFeature, name)
	}

	return nil
}

func (m *Manager) persistGuild(guildID int64, disabled map[string]struct{}) error {
	if len(disabled) == 0 {
		if err := m.store.Delete(guildID, PluginName); err != nil {
			return fmt.Errorf("delete empty feature document: %w", err)
		}
	} else {
		if err := m.store.Write(guildID, PluginName, encodeDisabled(disabled)); err != nil {
			return fmt.Errorf("persist feature document: %w", err)
		}
	}

	m.mu.Lock()
	if len(disabled) == 0 {
		delete(m.disabled, guildID)
	} else {
		m.disabled[guildID] = disabled
	}
	m.mu.Unlock()

	return nil
}

func (m *Manager) snapshotGuild(guildID int64) map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	disabled := make(map[string]struct{}, len(m.disabled[guildID])+1)
	for name := range m.disabled[guildID] {
		disabled[name] = struct{}{}
	}

	return disabled
}

func (m *Manager) guildLock(guildID int64) *sync.Mutex {
	m.guildMu.Lock()
	defer m.guildMu.Unlock()

	lock, exists := m.locks[guildID]
	if !exists {
		lock = &sync.Mutex{}
		m.locks[guildID] = lock
	}

	return lock
}

// decodeDisabled extracts known disabled feature names from a stored
// document. Names no longer in the catalog are dropped.
func (m *Manager) decodeDisabled(document tika.Document) map[string]struct{} {
	rawNames, _ := document[disabledKey].([]any)
	disabled := make(map[string]struct{}, len(rawNames))
	for _, raw := range rawNames {
		name, ok := raw.(string)
		if !ok {
			continue
		}
		name = normalizeFeatureName(name)
		if _, known := m.catalog[name]; !known {
			continue
		}
		disabled[name] = struct{}{}
	}

	return disabled
}

func encodeDisabled(disabled map[string]struct{}) tika.Document {
	ordered := make([]string, 0, len(disabled))
	for name := range disabled {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	encoded := make([]any, 0, len(ordered))
	for _, name := range ordered {
		encoded = append(encoded, name)
	}

	return tika.Document{disabledKey: encoded}
}

func normalizeFeatureName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
