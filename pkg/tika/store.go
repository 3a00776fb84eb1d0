package tika

// Document is one untyped guild-scoped JSON object. Schemas are defined ad
// hoc by each consumer; the store never enforces them.
type Document = map[string]any

// GuildStore reads and writes one JSON document per (guild, plugin) pair.
//
// Read degrades to an empty document on missing or undecodable files; a
// decode failure additionally returns an error wrapping ErrCorruptDocument
// so callers that must not mask data loss can refuse to proceed.
type GuildStore interface {
	// Read returns the stored document for one (guild, plugin) pair.
	Read(guildID int64, plugin string) (Document, error)
	// Write persists the full document for one (guild, plugin) pair.
	Write(guildID int64, plugin string, doc Document) error
	// Delete removes the stored document for one (guild, plugin) pair.
	Delete(guildID int64, plugin string) error
	// GuildIDs lists guilds that have at least one stored document.
	GuildIDs() ([]int64, error)
}
