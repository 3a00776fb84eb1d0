package monitor

import (
	"strings"
	"testing"
	"time"
)

func TestMonitorSnapshot(t *testing.T) {
	t.Parallel()

	monitor := New()
	stats := monitor.Snapshot()

	if stats.HeapAllocBytes == 0 {
		t.Fatal("Snapshot() heap alloc = 0")
	}
	if stats.SysBytes == 0 {
		t.Fatal("Snapshot() sys bytes = 0")
	}
	if stats.Goroutines <= 0 {
		t.Fatalf("Snapshot() goroutines = %d", stats.Goroutines)
	}
	if stats.Uptime < 0 {
		t.Fatalf("Snapshot() uptime = %v", stats.Uptime)
	}
	if !strings.HasPrefix(stats.GoVersion, "go") {
		t.Fatalf("Snapshot() go version = %q", stats.GoVersion)
	}
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes uint64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}

	for _, test := range tests {
		if got := FormatBytes(test.bytes); got != test.want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", test.bytes, got, test.want)
		}
	}
}

func TestFormatUptime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uptime time.Duration
		want   string
	}{
		{42 * time.Second, "0m 42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 10*time.Minute, "2h 10m 0s"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1d 2h 3m 4s"},
		{-time.Second, "0m 0s"},
	}

	for _, test := range tests {
		if got := FormatUptime(test.uptime); got != test.want {
			t.Fatalf("FormatUptime(%v) = %q, want %q", test.uptime, got, test.want)
		}
	}
}
