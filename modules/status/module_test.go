package status

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"tika/internal/monitor"
	"tika/pkg/tika"
)

type stubStatsSource struct {
	stats monitor.Stats
}

func (s *stubStatsSource) Snapshot() monitor.Stats {
	return s.stats
}

type stubPresenceSource struct {
	guilds int
}

func (s *stubPresenceSource) GuildCount() int {
	return s.guilds
}

type stubResponder struct {
	replies []string
}

func (r *stubResponder) Reply(_ context.Context, text string) error {
	r.replies = append(r.replies, text)

	return nil
}

func (r *stubResponder) ReplyPrivate(ctx context.Context, text string) error {
	return r.Reply(ctx, text)
}

type stubRegistry struct {
	services map[string]any
}

func (r *stubRegistry) Register(string, any) error {
	return nil
}

func (r *stubRegistry) Resolve(name string) (any, error) {
	service, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("resolve service %s: %w", name, tika.ErrServiceNotFound)
	}

	return service, nil
}

type stubRuntime struct {
	registry *stubRegistry
}

func (r *stubRuntime) Services() tika.ServiceRegistry {
	return r.registry
}

func testStats() monitor.Stats {
	return monitor.Stats{
		HeapAllocBytes: 5 * 1024 * 1024,
		SysBytes:       64 * 1024 * 1024,
		Goroutines:     12,
		Uptime:         90 * time.Second,
		GoVersion:      "go1.26.0",
		NumGC:          4,
	}
}

func newInteraction() (*tika.Interaction, *stubResponder) {
	responder := &stubResponder{}

	return &tika.Interaction{
		ID:        "1",
		GuildID:   42,
		ChannelID: "chan",
		UserID:    7,
		Command:   "status",
		Responder: responder,
	}, responder
}

func TestModuleReportsStats(t *testing.T) {
	t.Parallel()

	module := New()
	runtime := &stubRuntime{registry: &stubRegistry{services: map[string]any{
		tika.ServiceMonitor:  &stubStatsSource{stats: testStats()},
		tika.ServicePresence: &stubPresenceSource{guilds: 3},
	}}}
	if err := module.OnRegister(context.Background(), runtime); err != nil {
		t.Fatalf("OnRegister() error = %v", err)
	}

	interaction, responder := newInteraction()
	if err := module.Spec().Handlers[0].Handler(context.Background(), interaction); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	reply := responder.replies[0]
	for _, want := range []string{
		"Uptime: 1m 30s",
		"Heap: 5.0 MiB (sys 64.0 MiB)",
		"Goroutines: 12",
		"GC cycles: 4",
		"Guilds: 3",
		"Runtime: go1.26.0",
	} {
		if !strings.Contains(reply, want) {
			t.Fatalf("status reply = %q, want %q", reply, want)
		}
	}
}

func TestModuleWorksWithoutPresence(t *testing.T) {
	t.Parallel()

	module := New()
	runtime := &stubRuntime{registry: &stubRegistry{services: map[string]any{
		tika.ServiceMonitor: &stubStatsSource{stats: testStats()},
	}}}
	if err := module.OnRegister(context.Background(), runtime); err != nil {
		t.Fatalf("OnRegister() error = %v", err)
	}

	interaction, responder := newInteraction()
	if err := module.Spec().Handlers[0].Handler(context.Background(), interaction); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if strings.Contains(responder.replies[0], "Guilds:") {
		t.Fatalf("status reply = %q, want no guild line", responder.replies[0])
	}
}

func TestModuleRequiresMonitor(t *testing.T) {
	t.Parallel()

	runtime := &stubRuntime{registry: &stubRegistry{services: map[string]any{}}}
	if err := New().OnRegister(context.Background(), runtime); err == nil {
		t.Fatal("OnRegister() error = nil, want missing monitor error")
	}
}
