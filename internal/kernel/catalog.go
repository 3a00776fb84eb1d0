package kernel

import (
	"sort"

	"tika/pkg/tika"
)

// kernelCommandCatalog exposes registered commands for help rendering.
type kernelCommandCatalog struct {
	kernel *Kernel
}

// ListCommands returns all registered commands sorted by command label.
func (c *kernelCommandCatalog) ListCommands() []tika.RegisteredCommand {
	c.kernel.mu.RLock()
	listed := make([]tika.RegisteredCommand, 0, len(c.kernel.commands))
	for _, registration := range c.kernel.commands {
		listed = append(listed, tika.RegisteredCommand{
			ModuleName: registration.moduleName,
			Command:    registration.spec,
		})
	}
	c.kernel.mu.RUnlock()

	sort.Slice(listed, func(i, j int) bool {
		return listed[i].Command.Label() < listed[j].Command.Label()
	})

	return listed
}

var _ tika.CommandCatalog = (*kernelCommandCatalog)(nil)
