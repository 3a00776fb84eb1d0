package tika

import (
	"fmt"
	"strings"
)

// CommandPrefix introduces one command invocation in message text.
const CommandPrefix = "!"

// CommandSpec declares one module command registration.
type CommandSpec struct {
	// Name is the command name without prefix.
	Name string
	// Description describes command behavior for diagnostics and help text.
	Description string
	// Usage is an optional argument synopsis shown in help text.
	Usage string
	// AdminOnly restricts the command to delegated bot admins.
	AdminOnly bool
	// MinArgs is the minimum accepted argument token count.
	MinArgs int
	// Feature optionally names the feature flag gating this command.
	Feature string
}

// Validate checks command specification coherence.
func (s CommandSpec) Validate() error {
	if normalizeCommandName(s.Name) == "" {
		return fmt.Errorf("validate command spec: missing name")
	}
	if strings.ContainsAny(s.Name, " \t\r\n") {
		return fmt.Errorf("validate command spec: name %q contains whitespace", s.Name)
	}
	if s.MinArgs < 0 {
		return fmt.Errorf("validate command spec %s: min_args must be >= 0", s.Name)
	}

	return nil
}

// Label renders the prefixed command label for help and diagnostics.
func (s CommandSpec) Label() string {
	return CommandPrefix + normalizeCommandName(s.Name)
}

// CommandCandidate is a parsed command-looking message before spec binding.
type CommandCandidate struct {
	// Name is the normalized command name without prefix.
	Name string
	// Args stores tokens after the command header token.
	Args []string
	// RawInput is the original untrimmed message text.
	RawInput string
}

// ParseCommandCandidate parses message text into a command candidate.
//
// matched is false when text does not look like a command. When matched is
// true and err is non-nil, the header was malformed (for example a bare
// prefix with no name).
func ParseCommandCandidate(text string) (candidate CommandCandidate, matched bool, err error) {
	candidate.RawInput = text

	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return candidate, false, nil
	}
	header := fields[0]
	if !strings.HasPrefix(header, CommandPrefix) {
		return candidate, false, nil
	}

	candidate.Name = normalizeCommandName(header[len(CommandPrefix):])
	if candidate.Name == "" {
		return candidate, true, fmt.Errorf("parse command candidate: missing command name")
	}
	if len(fields) > 1 {
		candidate.Args = append([]string(nil), fields[1:]...)
	}

	return candidate, true, nil
}

func normalizeCommandName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
