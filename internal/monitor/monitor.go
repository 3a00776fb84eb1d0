// Package monitor snapshots process resource usage for the status command.
package monitor

import (
	"fmt"
	"runtime"
	"time"
)

// Stats is one point-in-time process resource snapshot.
type Stats struct {
	// HeapAllocBytes is the live heap allocation size.
	HeapAllocBytes uint64
	// SysBytes is the total memory obtained from the OS.
	SysBytes uint64
	// Goroutines is the current goroutine count.
	Goroutines int
	// Uptime is the elapsed time since monitor creation.
	Uptime time.Duration
	// GoVersion is the runtime Go version string.
	GoVersion string
	// NumGC is the completed garbage collection cycle count.
	NumGC uint32
}

// Monitor reports process resource statistics.
type Monitor struct {
	startedAt time.Time
}

// New creates a monitor anchored at the current time.
func New() *Monitor {
	return &Monitor{startedAt: time.Now()}
}

// Snapshot collects current process statistics.
func (m *Monitor) Snapshot() Stats {
	memory := runtime.MemStats{}
	runtime.ReadMemStats(&memory)

	return Stats{
		HeapAllocBytes: memory.HeapAlloc,
		SysBytes:       memory.Sys,
		Goroutines:     runtime.NumGoroutine(),
		Uptime:         time.Since(m.startedAt),
		GoVersion:      runtime.Version(),
		NumGC:          memory.NumGC,
	}
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	value := float64(bytes)
	exponent := 0
	for value >= unit && exponent < 4 {
		value /= unit
		exponent++
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB"}

	return fmt.Sprintf("%.1f %s", value, suffixes[exponent-1])
}

// FormatUptime renders a duration as whole days, hours, minutes, seconds.
func FormatUptime(uptime time.Duration) string {
	if uptime < 0 {
		uptime = 0
	}
	uptime = uptime.Round(time.Second)

	days := uptime / (24 * time.Hour)
	uptime -= days * 24 * time.Hour
	hours := uptime / time.Hour
	uptime -= hours * time.Hour
	minutes := uptime / time.Minute
	seconds := uptime - minutes*time.Minute

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds/time.Second)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds/time.Second)
	}

	return fmt.Sprintf("%dm %ds", minutes, seconds/time.Second)
}
