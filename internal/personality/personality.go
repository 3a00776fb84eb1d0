// Package personality resolves Tika's templated response lines from a JSON
// file, reloading it live when the file changes on disk.
package personality

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"tika/pkg/tika"
)

// FallbackLine is returned when no line exists for a category/key pair.
const FallbackLine = "I don't know what to say to that."

// defaultLines seeds every store so the bot can speak before any custom
// personality file exists. File entries override these per key.
var defaultLines = map[string]map[string]string{
	"general": {
		"permission_denied": "You don't have the authority to ask that of me, {user}.",
		"feature_disabled":  "That feature is switched off here.",
		"usage":             "That's not how you use it. Try: `{usage}`",
		"error":             "Something went wrong on my side. Give me a moment.",
	},
	"admin": {
		"added":          "Fine, {user} can boss me around now.",
		"already_admin":  "{user} already has that privilege. Pay attention.",
		"removed":        "{user} no longer gets special treatment.",
		"not_admin":      "{user} was never an admin to begin with.",
		"list_header":    "These people are allowed to give me orders:",
		"list_empty":     "Nobody here has been promoted. A clean slate.",
		"invalid_target": "I need an actual user mention for that.",
	},
	"feature": {
		"enabled":          "The {feature} feature is back on.",
		"already_enabled":  "The {feature} feature was never off.",
		"disabled":         "I've switched {feature} off. Don't make me regret it.",
		"already_disabled": "The {feature} feature is already off.",
		"unknown":          "I've never heard of a feature called {feature}.",
		"list_header":      "Features and their state:",
	},
	"knowledge": {
		"learned":      "Noted. I've read {url} and kept what mattered.",
		"already_read": "I've already read {url}. I do remember things.",
		"fetch_failed": "I couldn't read {url}. Either it's broken or it's hiding from me.",
		"forgotten":    "Fine. I've forgotten everything I learned here.",
		"empty":        "I haven't learned anything in this server yet.",
	},
	"backup": {
		"created":     "Backup done: {name} ({size}).",
		"failed":      "The backup failed. This is worrying.",
		"list_header": "Backups I'm keeping:",
		"list_empty":  "There are no backups. Bold strategy.",
	},
	"chat": {
		"unavailable": "My brain is offline right now. Try again later.",
		"reset":       "Conversation wiped. Who are you again?",
	},
}

// Store is a hot-reloading personality line store.
type Store struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	lines map[string]map[string]string

	watcher   *fsnotify.Watcher
	watchDone chan struct{}
	closeOnce sync.Once
}

// NewStore creates a store reading lines from path. A missing file leaves
// only the built-in defaults active; a corrupt file is an error. When watch
// is true the store reloads the file on change until Close is called.
func NewStore(path string, logger *slog.Logger, watch bool) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("new personality store: empty path")
	}
	if logger == nil {
		logger = slog.Default()
	}

	store := &Store{
		path:   path,
		logger: logger,
		lines:  cloneLines(defaultLines),
	}
	if err := store.reload(); err != nil {
		return nil, fmt.Errorf("new personality store: %w", err)
	}

	if watch {
		if err := store.startWatcher(); err != nil {
			return nil, fmt.Errorf("new personality store: %w", err)
		}
	}

	return store, nil
}

// Line returns the formatted line for category/key, substituting
// {placeholder} markers from vars. Unknown pairs yield the fallback line.
func (s *Store) Line(category, key string, vars map[string]string) string {
	s.mu.RLock()
	line, exists := s.lines[normalizeLineName(category)][normalizeLineName(key)]
	s.mu.RUnlock()
	if !exists {
		return FallbackLine
	}

	for name, value := range vars {
		line = strings.ReplaceAll(line, "{"+name+"}", value)
	}

	return line
}

// Category returns a copy of all lines in one category.
func (s *Store) Category(category string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	source := s.lines[normalizeLineName(category)]
	copied := make(map[string]string, len(source))
	for key, line := range source {
		copied[key] = line
	}

	return copied
}

// Close stops the file watcher. It is safe to call on an unwatched store.
func (s *Store) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		if s.watcher == nil {
			return
		}
		closeErr = s.watcher.Close()
		<-s.watchDone
	})

	return closeErr
}

// reload merges file content over the defaults. The file format is an object
// of categories, each an object of key to line string.
func (s *Store) reload() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read personality file %s: %w", s.path, err)
	}

	var fileLines map[string]map[string]string
	if err := json.Unmarshal(raw, &fileLines); err != nil {
		return fmt.Errorf("parse personality file %s: %w", s.path, err)
	}

	merged := cloneLines(defaultLines)
	for category, keys := range fileLines {
		category = normalizeLineName(category)
		if merged[category] == nil {
			merged[category] = make(map[string]string, len(keys))
		}
		for key, line := range keys {
			merged[category][normalizeLineName(key)] = line
		}
	}

	s.mu.Lock()
	s.lines = merged
	s.mu.Unlock()

	return nil
}

// startWatcher watches the personality file's directory and reloads on
// change. Watching the directory instead of the file survives editors that
// replace the file via rename.
func (s *Store) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch personality directory: %w", err)
	}

	s.watcher = watcher
	s.watchDone = make(chan struct{})

	go s.watchLoop()

	return nil
}

func (s *Store) watchLoop() {
	defer close(s.watchDone)

	target := filepath.Clean(s.path)
	for {
		select {
		case event, open := <-s.watcher.Events:
			if !open {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.reload(); err != nil {
				s.logger.Warn("personality reload failed, keeping previous lines",
					"path", s.path,
					"error", err,
				)
				continue
			}
			s.logger.Info("personality lines reloaded", "path", s.path)
		case err, open := <-s.watcher.Errors:
			if !open {
				return
			}
			s.logger.Warn("personality watcher error", "error", err)
		}
	}
}

func cloneLines(source map[string]map[string]string) map[string]map[string]string {
	cloned := make(map[string]map[string]string, len(source))
	for category, keys := range source {
		clonedKeys := make(map[string]string, len(keys))
		for key, line := range keys {
			clonedKeys[key] = line
		}
		cloned[category] = clonedKeys
	}

	return cloned
}

func normalizeLineName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

var _ tika.Personality = (*Store)(nil)
