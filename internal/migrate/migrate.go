// Package migrate rewrites legacy flat-file layouts into the current
// per-guild document store. Migrations run offline against the data
// directory and refuse corrupt input instead of degrading to empty.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"tika/internal/admin"
	"tika/internal/feature"
	"tika/internal/knowledge"
	"tika/internal/store"
	"tika/pkg/tika"
)

const (
	legacyAdminsFile = "bot_admins.json"
	migratedSuffix   = ".migrated"

	legacyKnowledgePlugin = "knowledge"
	legacyLearnedPlugin   = "learned"
)

// Change describes one planned or applied document rewrite.
type Change struct {
	// GuildID is the guild whose document changes. Zero for global files.
	GuildID int64
	// Description is a human-readable rewrite summary.
	Description string
}

// Report summarizes one migration run.
type Report struct {
	// Changes lists every planned or applied rewrite.
	Changes []Change
	// DryRun is true when no file was modified.
	DryRun bool
}

// Runner executes migrations against one data directory.
type Runner struct {
	dataDir string
	store   *store.Manager
	logger  *slog.Logger
	dryRun  bool
}

// NewRunner creates a migration runner for dataDir.
func NewRunner(dataDir string, logger *slog.Logger, dryRun bool) (*Runner, error) {
	manager, err := store.NewManager(dataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("new migration runner: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		dataDir: dataDir,
		store:   manager,
		logger:  logger,
		dryRun:  dryRun,
	}, nil
}

// Admins migrates the legacy flat bot_admins.json file, shaped as
// {"<guildID>": [ids]}, into per-guild bot_admins documents. The legacy
// file is renamed with a .migrated suffix on success.
func (r *Runner) Admins() (Report, error) {
	report := Report{DryRun: r.dryRun}

	legacyPath := filepath.Join(r.dataDir, legacyAdminsFile)
	data, err := os.ReadFile(legacyPath)
	if errors.Is(err, os.ErrNotExist) {
		return report, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("migrate admins: read %s: %w", legacyPath, err)
	}

	var legacy map[string][]int64
	if err := json.Unmarshal(data, &legacy); err != nil {
		return Report{}, fmt.Errorf("migrate admins: decode %s: %w", legacyPath, tika.ErrCorruptDocument)
	}

	guildKeys := make([]string, 0, len(legacy))
	for key := range legacy {
		guildKeys = append(guildKeys, key)
	}
	sort.Strings(guildKeys)

	for _, key := range guildKeys {
		guildID, err := strconv.ParseInt(key, 10, 64)
		if err != nil || guildID <= 0 {
			return Report{}, fmt.Errorf("migrate admins: invalid guild id %q: %w", key, tika.ErrCorruptDocument)
		}

		userIDs := dedupeInt64(legacy[key])
		if len(userIDs) == 0 {
			continue
		}

		report.Changes = append(report.Changes, Change{
			GuildID:     guildID,
			Description: fmt.Sprintf("write %s with %d admin(s)", admin.PluginName, len(userIDs)),
		})
		if r.dryRun {
			continue
		}

		encoded := make([]any, 0, len(userIDs))
		for _, userID := range userIDs {
			encoded = append(encoded, userID)
		}
		document := tika.Document{"user_ids": encoded}
		if err := r.store.Write(guildID, admin.PluginName, document); err != nil {
			return Report{}, fmt.Errorf("migrate admins guild %d: %w", guildID, err)
		}
	}

	if !r.dryRun {
		if err := os.Rename(legacyPath, legacyPath+migratedSuffix); err != nil {
			return Report{}, fmt.Errorf("migrate admins: retire %s: %w", legacyPath, err)
		}
	}

	r.logger.Info("admins migration complete",
		"guilds", len(report.Changes),
		"dry_run", r.dryRun,
	)

	return report, nil
}

// Knowledge merges legacy per-guild knowledge and learned documents into
// the knowledge_base document, preserving order and dropping duplicates.
// The legacy documents are deleted on success.
func (r *Runner) Knowledge() (Report, error) {
	report := Report{DryRun: r.dryRun}

	guildIDs, err := r.store.GuildIDs()
	if err != nil {
		return Report{}, fmt.Errorf("migrate knowledge: %w", err)
	}

	for _, guildID := range guildIDs {
		legacyKnowledge, err := r.store.Read(guildID, legacyKnowledgePlugin)
		if err != nil {
			return Report{}, fmt.Errorf("migrate knowledge guild %d: %w", guildID, err)
		}
		legacyLearned, err := r.store.Read(guildID, legacyLearnedPlugin)
		if err != nil {
			return Report{}, fmt.Errorf("migrate knowledge guild %d: %w", guildID, err)
		}
		if len(legacyKnowledge) == 0 && len(legacyLearned) == 0 {
			continue
		}

		current, err := r.store.Read(guildID, knowledge.PluginName)
		if err != nil {
			return Report{}, fmt.Errorf("migrate knowledge guild %d: %w", guildID, err)
		}

		facts := dedupeStrings(append(
			documentStrings(current, "facts"),
			documentStrings(legacyKnowledge, "facts")...,
		))
		learnedURLs := dedupeStrings(append(
			append(
				documentStrings(current, "learned_urls"),
				documentStrings(legacyKnowledge, "urls")...,
			),
			documentStrings(legacyLearned, "urls")...,
		))

		report.Changes = append(report.Changes, Change{
			GuildID: guildID,
			Description: fmt.Sprintf(
				"merge into %s: %d fact(s), %d url(s)",
				knowledge.PluginName, len(facts), len(learnedURLs),
			),
		})
		if r.dryRun {
			continue
		}

		merged := tika.Document{
			"facts":        toAnySlice(facts),
			"learned_urls": toAnySlice(learnedURLs),
		}
		if err := r.store.Write(guildID, knowledge.PluginName, merged); err != nil {
			return Report{}, fmt.Errorf("migrate knowledge guild %d: %w", guildID, err)
		}
		if err := r.store.Delete(guildID, legacyKnowledgePlugin); err != nil {
			return Report{}, fmt.Errorf("migrate knowledge guild %d: %w", guildID, err)
		}
		if err := r.store.Delete(guildID, legacyLearnedPlugin); err != nil {
			return Report{}, fmt.Errorf("migrate knowledge guild %d: %w", guildID, err)
		}
	}

	r.logger.Info("knowledge migration complete",
		"guilds", len(report.Changes),
		"dry_run", r.dryRun,
	)

	return report, nil
}

// Features rewrites legacy per-guild feature documents, shaped as
// {"enabled": {feature: bool}}, into the current disabled-list form.
// Unknown feature names are dropped. Documents already in the current
// form are left alone.
func (r *Runner) Features() (Report, error) {
	report := Report{DryRun: r.dryRun}

	known := make(map[string]struct{})
	for _, declared := range feature.Catalog() {
		known[declared.Name] = struct{}{}
	}

	guildIDs, err := r.store.GuildIDs()
	if err != nil {
		return Report{}, fmt.Errorf("migrate features: %w", err)
	}

	for _, guildID := range guildIDs {
		document, err := r.store.Read(guildID, feature.PluginName)
		if err != nil {
			return Report{}, fmt.Errorf("migrate features guild %d: %w", guildID, err)
		}

		rawEnabled, isLegacy := document["enabled"].(map[string]any)
		if !isLegacy {
			continue
		}

		disabled := make([]string, 0, len(rawEnabled))
		for name, value := range rawEnabled {
			enabled, ok := value.(bool)
			if !ok {
				return Report{}, fmt.Errorf(
					"migrate features guild %d: non-boolean flag %q: %w",
					guildID, name, tika.ErrCorruptDocument,
				)
			}
			if _, declared := known[name]; !declared {
				continue
			}
			if !enabled {
				disabled = append(disabled, name)
			}
		}
		sort.Strings(disabled)

		report.Changes = append(report.Changes, Change{
			GuildID:     guildID,
			Description: fmt.Sprintf("rewrite %s with %d disabled flag(s)", feature.PluginName, len(disabled)),
		})
		if r.dryRun {
			continue
		}

		if len(disabled) == 0 {
			if err := r.store.Delete(guildID, feature.PluginName); err != nil {
				return Report{}, fmt.Errorf("migrate features guild %d: %w", guildID, err)
			}
			continue
		}
		rewritten := tika.Document{"disabled": toAnySlice(disabled)}
		if err := r.store.Write(guildID, feature.PluginName, rewritten); err != nil {
			return Report{}, fmt.Errorf("migrate features guild %d: %w", guildID, err)
		}
	}

	r.logger.Info("features migration complete",
		"guilds", len(report.Changes),
		"dry_run", r.dryRun,
	)

	return report, nil
}

func documentStrings(document tika.Document, key string) []string {
	raw, ok := document[key].([]any)
	if !ok {
		return nil
	}

	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if value, ok := item.(string); ok && value != "" {
			values = append(values, value)
		}
	}

	return values
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	deduped := make([]string, 0, len(values))
	for _, value := range values {
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		deduped = append(deduped, value)
	}

	return deduped
}

func dedupeInt64(values []int64) []int64 {
	seen := make(map[int64]struct{}, len(values))
	deduped := make([]int64, 0, len(values))
	for _, value := range values {
		if value <= 0 {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		deduped = append(deduped, value)
	}
	sort.Slice(deduped, func(left, right int) bool { return deduped[left] < deduped[right] })

	return deduped
}

func toAnySlice(values []string) []any {
	converted := make([]any, 0, len(values))
	for _, value := range values {
		converted = append(converted, value)
	}

	return converted
}
