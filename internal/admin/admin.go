// Package admin manages delegated bot administrators per guild on top of the
// guild document store.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"tika/pkg/tika"
)

// PluginName is the guild store plugin document holding delegated admins.
const PluginName = "bot_admins"

const userIDsKey = "user_ids"

// Manager caches delegated admin identifiers per guild and persists every
// mutation back to the guild store.
//
// Mutations for one guild are serialized so concurrent !admin add/remove
// invocations cannot interleave their load, mutate, and persist steps.
type Manager struct {
	store  tika.GuildStore
	logger *slog.Logger

	mu     sync.RWMutex
	admins map[int64]map[int64]struct{}

	guildMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewManager creates an admin manager backed by store.
func NewManager(store tika.GuildStore, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("new admin manager: nil store")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:  store,
		logger: logger,
		admins: make(map[int64]map[int64]struct{}),
		locks:  make(map[int64]*sync.Mutex),
	}, nil
}

// Load populates the cache from every guild's stored admin document. Corrupt
// documents are logged and treated as empty so one bad file cannot keep the
// bot from starting.
func (m *Manager) Load(ctx context.Context) error {
	guildIDs, err := m.store.GuildIDs()
	if err != nil {
		return fmt.Errorf("load admins: %w", err)
	}

	loaded := make(map[int64]map[int64]struct{}, len(guildIDs))
	for _, guildID := range guildIDs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load admins: %w", err)
		}

		document, err := m.store.Read(guildID, PluginName)
		if err != nil {
			m.logger.Warn("admin document unavailable, treating as empty",
				"guild_id", guildID,
				"error", err,
			)
			continue
		}
		userIDs := decodeUserIDs(document)
		if len(userIDs) == 0 {
			continue
		}
		loaded[guildID] = userIDs
	}

	m.mu.Lock()
	m.admins = loaded
	m.mu.Unlock()

	m.logger.Info("admin cache loaded", "guilds", len(loaded))

	return nil
}

// IsAdmin reports whether the user may run admin commands in the guild.
// Platform administrators always qualify.
func (m *Manager) IsAdmin(guildID, userID int64, hasAdminPermission bool) bool {
	if hasAdminPermission {
		return true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.admins[guildID][userID]

	return exists
}

// Add grants delegated admin rights to the user in the guild. It returns
// false with nil error when the user already was an admin.
func (m *Manager) Add(guildID, userID int64) (bool, error) {
	if guildID <= 0 || userID <= 0 {
		return false, fmt.Errorf("add admin: invalid guild %d or user %d", guildID, userID)
	}

	lock := m.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	userIDs := m.snapshotGuild(guildID)
	if _, exists := userIDs[userID]; exists {
		return false, nil
	}
	userIDs[userID] = struct{}{}

	if err := m.persistGuild(guildID, userIDs); err != nil {
		return false, fmt.Errorf("add admin %d to guild %d: %w", userID, guildID, err)
	}

	return true, nil
}

// Remove revokes delegated admin rights from the user in the guild. It
// returns false with nil error when the user was not an admin. When the last
// admin is removed, the guild's admin document is deleted.
func (m *Manager) Remove(guildID, userID int64) (bool, error) {
	if guildID <= 0 || userID <= 0 {
		return false, fmt.Errorf("remove admin: invalid guild %d or user %d", guildID, userID)
	}

	lock := m.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	userIDs := m.snapshotGuild(guildID)
	if _, exists := userIDs[userID]; !exists {
		return false, nil
	}
	delete(userIDs, userID)

	if err := m.persistGuild(guildID, userIDs); err != nil {
		return false, fmt.Errorf("remove admin %d from guild %d: %w", userID, guildID, err)
	}

	return true, nil
}

// GuildAdmins returns the guild's delegated admin user identifiers ascending.
func (m *Manager) GuildAdmins(guildID int64) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userIDs := make([]int64, 0, len(m.admins[guildID]))
	for userID := range m.admins[guildID] {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	return userIDs
}

// persistGuild writes the new admin set for one guild and updates the cache
// only after persistence succeeds. Empty sets delete the backing document.
func (m *Manager) persistGuild(guildID int64, userIDs map[int64]struct{}) error {
	if len(userIDs) == 0 {
		if err := m.store.Delete(guildID, PluginName); err != nil {
			return fmt.Errorf("delete empty admin document: %w", err)
		}
	} else {
		if err := m.store.Write(guildID, PluginName, encodeUserIDs(userIDs)); err != nil {
			return fmt.Errorf("persist admin document: %w", err)
		}
	}

	m.mu.Lock()
	if len(userIDs) == 0 {
		delete(m.admins, guildID)
	} else {
		m.admins[guildID] = userIDs
	}
	m.mu.Unlock()

	return nil
}

// snapshotGuild copies the cached admin set for one guild for mutation.
func (m *Manager) snapshotGuild(guildID int64) map[int64]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userIDs := make(map[int64]struct{}, len(m.admins[guildID])+1)
	for userID := range m.admins[guildID] {
		userIDs[userID] = struct{}{}
	}

	return userIDs
}

// guildLock returns the mutex serializing mutations for one guild.
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

// decodeUserIDs extracts the admin user ID set from a stored document.
// Unrecognized entries are skipped.
func decodeUserIDs(document tika.Document) map[int64]struct{} {
	rawIDs, _ := document[userIDsKey].([]any)
	userIDs := make(map[int64]struct{}, len(rawIDs))
	for _, raw := range rawIDs {
		number, ok := raw.(float64)
		if !ok {
			continue
		}
		userID := int64(number)
		if userID <= 0 {
			continue
		}
		userIDs[userID] = struct{}{}
	}

	return userIDs
}

// encodeUserIDs renders an admin set as its stored document form with a
// stable ascending order.
func encodeUserIDs(userIDs map[int64]struct{}) tika.Document {
	ordered := make([]int64, 0, len(userIDs))
	for userID := range userIDs {
		ordered = append(ordered, userID)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	encoded := make([]any, 0, len(ordered))
	for _, userID := range ordered {
		encoded = append(encoded, userID)
	}

	return tika.Document{userIDsKey: encoded}
}
