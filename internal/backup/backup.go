// Package backup archives the bot data directory into timestamped zip files
// and manages their retention.
package backup

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	archivePrefix    = "tika-backup-"
	archiveExtension = ".zip"
	timestampLayout  = "20060102-150405"
)

// defaultIncludePatterns selects which data files enter an archive.
var defaultIncludePatterns = []string{
	"guilds/**/*.json",
	"users/**/*.json",
}

// Archive describes one backup archive on disk.
type Archive struct {
	// Name is the archive file name.
	Name string
	// Path is the absolute archive location.
	Path string
	// Size is the archive size in bytes.
	Size int64
	// CreatedAt is the archive modification time.
	CreatedAt time.Time
}

// Service creates and manages data directory backups. Create calls are
// serialized so overlapping backup commands cannot race on archive names.
type Service struct {
	dataDir   string
	backupDir string
	logger    *slog.Logger
	patterns  []string

	mu sync.Mutex
}

// NewService creates a backup service archiving dataDir into backupDir.
// Empty patterns fall back to the default JSON document selection.
func NewService(dataDir, backupDir string, logger *slog.Logger, patterns []string) (*Service, error) {
	dataDir = strings.TrimSpace(dataDir)
	if dataDir == "" {
		return nil, fmt.Errorf("new backup service: empty data directory")
	}
	backupDir = strings.TrimSpace(backupDir)
	if backupDir == "" {
		return nil, fmt.Errorf("new backup service: empty backup directory")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(patterns) == 0 {
		patterns = defaultIncludePatterns
	}
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("new backup service: invalid include pattern %q", pattern)
		}
	}

	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("new backup service: create backup directory: %w", err)
	}

	return &Service{
		dataDir:   dataDir,
		backupDir: backupDir,
		logger:    logger,
		patterns:  append([]string(nil), patterns...),
	}, nil
}

// Create archives all matching data files into a new timestamped zip.
func (s *Service) Create() (Archive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.matchFiles()
	if err != nil {
		return Archive{}, fmt.Errorf("create backup: %w", err)
	}
	if len(files) == 0 {
		return Archive{}, fmt.Errorf("create backup: no files match include patterns")
	}

	name, path := s.nextArchivePath()
	tempPath := path + ".tmp"

	if err := s.writeArchive(tempPath, files); err != nil {
		_ = os.Remove(tempPath)
		return Archive{}, fmt.Errorf("create backup %s: %w", name, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return Archive{}, fmt.Errorf("create backup %s: finalize: %w", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Archive{}, fmt.Errorf("create backup %s: stat: %w", name, err)
	}

	s.logger.Info("backup created",
		"name", name,
		"files", len(files),
		"bytes", info.Size(),
	)

	return Archive{
		Name:      name,
		Path:      path,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

// List returns all archives newest first.
func (s *Service) List() ([]Archive, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("list backups: %w", err)
	}

	archives := make([]Archive, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("list backups: stat %s: %w", name, err)
		}
		archives = append(archives, Archive{
			Name:      name,
			Path:      filepath.Join(s.backupDir, name),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(archives, func(i, j int) bool {
		if archives[i].CreatedAt.Equal(archives[j].CreatedAt) {
			return archives[i].Name > archives[j].Name
		}

		return archives[i].CreatedAt.After(archives[j].CreatedAt)
	})

	return archives, nil
}

// Clean deletes all but the newest keep archives and returns how many were
// removed.
func (s *Service) Clean(keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("clean backups: keep must be >= 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	archives, err := s.List()
	if err != nil {
		return 0, fmt.Errorf("clean backups: %w", err)
	}
	if len(archives) <= keep {
		return 0, nil
	}

	removed := 0
	for _, archive := range archives[keep:] {
		if err := os.Remove(archive.Path); err != nil {
			return removed, fmt.Errorf("clean backups: remove %s: %w", archive.Name, err)
		}
		removed++
	}

	s.logger.Info("backups cleaned", "removed", removed, "kept", keep)

	return removed, nil
}

// nextArchivePath picks an unused timestamped archive name. A numeric suffix
// keeps archives created within the same second distinct.
func (s *Service) nextArchivePath() (string, string) {
	stamp := time.Now().UTC().Format(timestampLayout)
	name := archivePrefix + stamp + archiveExtension
	path := filepath.Join(s.backupDir, name)
	for sequence := 2; ; sequence++ {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return name, path
		}
		name = fmt.Sprintf("%s%s-%d%s", archivePrefix, stamp, sequence, archiveExtension)
		path = filepath.Join(s.backupDir, name)
	}
}

// matchFiles walks the data directory and returns relative paths matching
// any include pattern, sorted for stable archive layout.
func (s *Service) matchFiles() ([]string, error) {
	matched := make([]string, 0, 64)
	err := filepath.WalkDir(s.dataDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}

		relative, err := filepath.Rel(s.dataDir, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		relative = filepath.ToSlash(relative)
		for _, pattern := range s.patterns {
			ok, err := doublestar.Match(pattern, relative)
			if err != nil {
				return fmt.Errorf("match pattern %q: %w", pattern, err)
			}
			if ok {
				matched = append(matched, relative)
				return nil
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("walk data directory: %w", err)
	}
	sort.Strings(matched)

	return matched, nil
}

func (s *Service) writeArchive(path string, files []string) error {
	output, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}

	writer := zip.NewWriter(output)
	for _, relative := range files {
		if err := s.addFile(writer, relative); err != nil {
			_ = writer.Close()
			_ = output.Close()

			return err
		}
	}
	if err := writer.Close(); err != nil {
		_ = output.Close()

		return fmt.Errorf("finalize archive: %w", err)
	}

	if err := output.Close(); err != nil {
		return fmt.Errorf("close archive file: %w", err)
	}

	return nil
}

func (s *Service) addFile(writer *zip.Writer, relative string) error {
	source, err := os.Open(filepath.Join(s.dataDir, filepath.FromSlash(relative)))
	if err != nil {
		return fmt.Errorf("open %s: %w", relative, err)
	}
	defer func() { _ = source.Close() }()

	entry, err := writer.Create(relative)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", relative, err)
	}
	if _, err := io.Copy(entry, source); err != nil {
		return fmt.Errorf("copy %s: %w", relative, err)
	}

	return nil
}
