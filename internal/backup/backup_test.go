package backup

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func seedDataDir(t *testing.T) string {
	t.Helper()

	dataDir := t.TempDir()
	files := map[string]string{
		"guilds/42/bot_admins.json":     `{"user_ids": [7]}`,
		"guilds/42/knowledge_base.json": `{"facts": ["x"]}`,
		"guilds/99/features.json":       `{"disabled": ["chat"]}`,
		"guilds/42/notes.txt":           "not a document",
		"users/7/profile.json":          `{}`,
	}
	for relative, content := range files {
		path := filepath.Join(dataDir, filepath.FromSlash(relative))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	return dataDir
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	service, err := NewService(seedDataDir(t), t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	return service
}

func TestServiceCreateArchivesMatchingDocuments(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	archive, err := service.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(archive.Name, "tika-backup-") || !strings.HasSuffix(archive.Name, ".zip") {
		t.Fatalf("archive name = %q", archive.Name)
	}
	if archive.Size <= 0 {
		t.Fatalf("archive size = %d, want > 0", archive.Size)
	}

	reader, err := zip.OpenReader(archive.Path)
	if err != nil {
		t.Fatalf("zip.OpenReader() error = %v", err)
	}
	t.Cleanup(func() { _ = reader.Close() })

	entries := make(map[string]bool, len(reader.File))
	for _, file := range reader.File {
		entries[file.Name] = true
	}
	for _, want := range []string{
		"guilds/42/bot_admins.json",
		"guilds/42/knowledge_base.json",
		"guilds/99/features.json",
		"users/7/profile.json",
	} {
		if !entries[want] {
			t.Fatalf("archive missing entry %s, has %v", want, entries)
		}
	}
	if entries["guilds/42/notes.txt"] {
		t.Fatal("archive contains non-matching file notes.txt")
	}
}

func TestServiceCreateFailsOnEmptyMatch(t *testing.T) {
	t.Parallel()

	service, err := NewService(t.TempDir(), t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	if _, err := service.Create(); err == nil {
		t.Fatal("Create() error = nil, want no-match error")
	}
}

func TestServiceListNewestFirst(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	for count := 0; count < 3; count++ {
		if _, err := service.Create(); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	archives, err := service.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(archives) != 3 {
		t.Fatalf("List() length = %d, want 3", len(archives))
	}
	for index := 1; index < len(archives); index++ {
		if archives[index].CreatedAt.After(archives[index-1].CreatedAt) {
			t.Fatalf("List() not newest first: %v", archives)
		}
	}
}

func TestServiceClean(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	for count := 0; count < 4; count++ {
		if _, err := service.Create(); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	removed, err := service.Clean(2)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("Clean() removed = %d, want 2", removed)
	}

	archives, err := service.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(archives) != 2 {
		t.Fatalf("List() after clean = %d, want 2", len(archives))
	}

	removed, err = service.Clean(2)
	if err != nil || removed != 0 {
		t.Fatalf("Clean() repeat = (%d, %v), want (0, nil)", removed, err)
	}
	if _, err := service.Clean(-1); err == nil {
		t.Fatal("Clean(-1) error = nil, want error")
	}
}

func TestNewServiceRejectsInvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := NewService(t.TempDir(), t.TempDir(), nil, []string{"guilds/[.json"}); err == nil {
		t.Fatal("NewService() error = nil, want invalid pattern error")
	}
}
