// Package store persists guild-scoped plugin documents as indented JSON
// files under a single data directory.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"tika/pkg/tika"
)

const (
	guildsDirName = "guilds"
	usersDirName  = "users"

	documentExtension = ".json"
	backupExtension   = ".bak"
)

// Manager is a flat-file guild document store. Every guild/plugin pair maps
// to one JSON file; concurrent access to the same file is serialized.
type Manager struct {
	baseDir string
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a manager rooted at baseDir and ensures the guild and
// user subdirectories exist.
func NewManager(baseDir string, logger *slog.Logger) (*Manager, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		return nil, fmt.Errorf("new store manager: empty base directory")
	}
	if logger == nil {
		logger = slog.Default()
	}

	for _, sub := range []string{guildsDirName, usersDirName} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("new store manager: create %s directory: %w", sub, err)
		}
	}

	return &Manager{
		baseDir: baseDir,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// BaseDir returns the data directory root the manager operates on.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Read loads one guild plugin document.
//
// A missing file yields an empty document and nil error. A file that exists
// but fails to parse yields an empty document and an error wrapping
// tika.ErrCorruptDocument, so callers can choose between degrading to empty
// state and refusing to proceed.
func (m *Manager) Read(guildID int64, plugin string) (tika.Document, error) {
	path, err := m.documentPath(guildID, plugin)
	if err != nil {
		return tika.Document{}, fmt.Errorf("read document: %w", err)
	}

	lock := m.fileLock(path)
	lock.Lock()
	defer lock.Unlock()

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return tika.Document{}, nil
	}
	if err != nil {
		return tika.Document{}, fmt.Errorf(
			"read document %s: %w: %w", path, tika.ErrCorruptDocument, err,
		)
	}

	document := tika.Document{}
	if err := json.Unmarshal(raw, &document); err != nil {
		m.logger.Error("guild document is corrupt",
			"guild_id", guildID,
			"plugin", plugin,
			"path", path,
			"error", err,
		)

		return tika.Document{}, fmt.Errorf(
			"read document %s: %w: %w", path, tika.ErrCorruptDocument, err,
		)
	}

	return document, nil
}

// Write persists one guild plugin document atomically.
//
// The previous file content, when present, is preserved as a sibling .bak
// file until the next successful write replaces it.
func (m *Manager) Write(guildID int64, plugin string, document tika.Document) error {
	path, err := m.documentPath(guildID, plugin)
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if document == nil {
		document = tika.Document{}
	}

	encoded, err := encodeDocument(document)
	if err != nil {
		return fmt.Errorf("write document %s: %w", path, err)
	}

	lock := m.fileLock(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write document %s: create guild directory: %w", path, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write document %s: write temp file: %w", path, err)
	}

	backupPath := path + backupExtension
	hadPrevious := true
	if err := os.Rename(path, backupPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = os.Remove(tempPath)
			return fmt.Errorf("write document %s: stage backup: %w", path, err)
		}
		hadPrevious = false
	}

	if err := os.Rename(tempPath, path); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(backupPath, path); restoreErr != nil {
				m.logger.Error("failed to restore document backup",
					"path", path,
					"error", restoreErr,
				)
			}
		}
		_ = os.Remove(tempPath)

		return fmt.Errorf("write document %s: replace file: %w", path, err)
	}

	return nil
}

// Delete removes one guild plugin document and its backup, pruning the guild
// directory when it becomes empty. Deleting a missing document is a no-op.
func (m *Manager) Delete(guildID int64, plugin string) error {
	path, err := m.documentPath(guildID, plugin)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	lock := m.fileLock(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete document %s: %w", path, err)
	}
	if err := os.Remove(path + backupExtension); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete document backup %s: %w", path+backupExtension, err)
	}

	guildDir := filepath.Dir(path)
	entries, err := os.ReadDir(guildDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("delete document %s: inspect guild directory: %w", path, err)
	}
	if len(entries) == 0 {
		if err := os.Remove(guildDir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete document %s: prune guild directory: %w", path, err)
		}
	}

	return nil
}

// GuildIDs lists all guilds with at least one stored document, ascending.
func (m *Manager) GuildIDs() ([]int64, error) {
	entries, err := os.ReadDir(filepath.Join(m.baseDir, guildsDirName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("list guild ids: %w", err)
	}

	guildIDs := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		guildID, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil || guildID <= 0 {
			m.logger.Warn("skipping unrecognized guild directory", "name", entry.Name())
			continue
		}
		guildIDs = append(guildIDs, guildID)
	}
	sort.Slice(guildIDs, func(i, j int) bool { return guildIDs[i] < guildIDs[j] })

	return guildIDs, nil
}

// documentPath resolves the storage path for one guild plugin document.
func (m *Manager) documentPath(guildID int64, plugin string) (string, error) {
	if guildID <= 0 {
		return "", fmt.Errorf("invalid guild id %d", guildID)
	}
	plugin = strings.TrimSpace(plugin)
	if plugin == "" {
		return "", fmt.Errorf("empty plugin name")
	}
	if strings.ContainsAny(plugin, `/\`) || plugin == "." || plugin == ".." {
		return "", fmt.Errorf("invalid plugin name %q", plugin)
	}

	return filepath.Join(
		m.baseDir,
		guildsDirName,
		strconv.FormatInt(guildID, 10),
		plugin+documentExtension,
	), nil
}

// fileLock returns the mutex serializing access to one document path.
func (m *Manager) fileLock(path string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, exists := m.locks[path]
	if !exists {
		lock = &sync.Mutex{}
		m.locks[path] = lock
	}

	return lock
}

// encodeDocument renders a document as two-space indented UTF-8 JSON without
// escaping non-ASCII or HTML characters.
func encodeDocument(document tika.Document) ([]byte, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(document); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	return buffer.Bytes(), nil
}

var _ tika.GuildStore = (*Manager)(nil)
