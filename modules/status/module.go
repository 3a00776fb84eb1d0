// Package status implements the !status command reporting process health.
package status

import (
	"context"
	"fmt"
	"strings"

	"tika/internal/monitor"
	"tika/pkg/tika"
)

const commandName = "status"

// StatsSource snapshots process resource usage.
type StatsSource interface {
	Snapshot() monitor.Stats
}

// PresenceSource reports live platform presence counts.
type PresenceSource interface {
	GuildCount() int
}

// Module handles the !status command.
type Module struct {
	stats    StatsSource
	presence PresenceSource
}

// New creates a status module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "status"
}

// Spec declares the !status command.
func (m *Module) Spec() tika.ModuleSpec {
	return tika.ModuleSpec{
		Handlers: []tika.ModuleHandler{
			{
				Command: tika.CommandSpec{
					Name:        commandName,
					Description: "show process resource usage",
					AdminOnly:   true,
				},
				Handler: m.handleCommand,
			},
		},
	}
}

// OnRegister resolves dependencies required by this module. Presence is
// optional so status still works while the gateway is down.
func (m *Module) OnRegister(_ context.Context, runtime tika.ModuleRuntime) error {
	stats, err := tika.ResolveAs[StatsSource](runtime.Services(), tika.ServiceMonitor)
	if err != nil {
		return fmt.Errorf("status resolve monitor: %w", err)
	}
	m.stats = stats

	if presence, err := tika.ResolveAs[PresenceSource](runtime.Services(), tika.ServicePresence); err == nil {
		m.presence = presence
	}

	return nil
}

func (m *Module) handleCommand(ctx context.Context, interaction *tika.Interaction) error {
	stats := m.stats.Snapshot()

	builder := &strings.Builder{}
	builder.WriteString("**Status**\n")
	builder.WriteString(fmt.Sprintf("Uptime: %s\n", monitor.FormatUptime(stats.Uptime)))
	builder.WriteString(fmt.Sprintf("Heap: %s (sys %s)\n",
		monitor.FormatBytes(stats.HeapAllocBytes),
		monitor.FormatBytes(stats.SysBytes),
	))
	builder.WriteString(fmt.Sprintf("Goroutines: %d\n", stats.Goroutines))
	builder.WriteString(fmt.Sprintf("GC cycles: %d\n", stats.NumGC))
	if m.presence != nil {
		builder.WriteString(fmt.Sprintf("Guilds: %d\n", m.presence.GuildCount()))
	}
	builder.WriteString(fmt.Sprintf("Runtime: %s", stats.GoVersion))

	if err := interaction.Responder.Reply(ctx, builder.String()); err != nil {
		return fmt.Errorf("status reply: %w", err)
	}

	return nil
}

var (
	_ tika.Module          = (*Module)(nil)
	_ tika.ModuleRegistrar = (*Module)(nil)
)
