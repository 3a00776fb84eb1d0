package knowledgebase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"tika/pkg/tika"
)

type stubKnowledgeStore struct {
	learned   bool
	fact      string
	learnErr  error
	facts     []string
	factsErr  error
	forgetErr error

	forgotten []int64
}

func (s *stubKnowledgeStore) LearnFromURL(_ context.Context, _ int64, _ string) (bool, string, error) {
	return s.learned, s.fact, s.learnErr
}

func (s *stubKnowledgeStore) Facts(int64) ([]string, error) {
	return s.facts, s.factsErr
}

func (s *stubKnowledgeStore) Forget(guildID int64) error {
	s.forgotten = append(s.forgotten, guildID)

	return s.forgetErr
}

type stubPersonality struct{}

func (stubPersonality) Line(category, key string, vars map[string]string) string {
	line := category + "." + key
	for name, value := range vars {
		line += " " + name + "=" + value
	}

	return line
}

func (stubPersonality) Category(string) map[string]string {
	return nil
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

func newTestModule(t *testing.T, store *stubKnowledgeStore) *Module {
	t.Helper()

	module := New()
	runtime := &stubRuntime{registry: &stubRegistry{services: map[string]any{
		tika.ServiceKnowledge:   store,
		tika.ServicePersonality: stubPersonality{},
	}}}
	if err := module.OnRegister(context.Background(), runtime); err != nil {
		t.Fatalf("OnRegister() error = %v", err)
	}

	return module
}

func newInteraction(command string, args ...string) (*tika.Interaction, *stubResponder) {
	responder := &stubResponder{}

	return &tika.Interaction{
		ID:        "1",
		GuildID:   42,
		ChannelID: "chan",
		UserID:    7,
		Command:   command,
		Args:      args,
		Responder: responder,
	}, responder
}

func handlerFor(t *testing.T, module *Module, command string) tika.InteractionHandler {
	t.Helper()

	for _, handler := range module.Spec().Handlers {
		if handler.Command.Name == command {
			return handler.Handler
		}
	}
	t.Fatalf("no handler for command %s", command)

	return nil
}

func TestModuleLearn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		store     *stubKnowledgeStore
		wantReply string
		wantErr   bool
	}{
		{
			name:      "learns new url",
			store:     &stubKnowledgeStore{learned: true, fact: "a fact"},
			wantReply: "knowledge.learned url=https://example.com/doc",
		},
		{
			name:      "already read url",
			store:     &stubKnowledgeStore{learned: true},
			wantReply: "knowledge.already_read url=https://example.com/doc",
		},
		{
			name:      "fetch failure",
			store:     &stubKnowledgeStore{learnErr: errors.New("status 404")},
			wantReply: "knowledge.fetch_failed url=https://example.com/doc",
			wantErr:   true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			module := newTestModule(t, test.store)
			interaction, responder := newInteraction("learn", "https://example.com/doc")

			err := handlerFor(t, module, "learn")(context.Background(), interaction)
			if (err != nil) != test.wantErr {
				t.Fatalf("handler error = %v, wantErr %v", err, test.wantErr)
			}
			if len(responder.replies) != 1 || responder.replies[0] != test.wantReply {
				t.Fatalf("replies = %v, want %q", responder.replies, test.wantReply)
			}
		})
	}
}

func TestModuleFacts(t *testing.T) {
	t.Parallel()

	module := newTestModule(t, &stubKnowledgeStore{facts: []string{"First.", "Second."}})
	interaction, responder := newInteraction("facts")

	if err := handlerFor(t, module, "facts")(context.Background(), interaction); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	reply := responder.replies[0]
	if !strings.Contains(reply, "1. First.") || !strings.Contains(reply, "2. Second.") {
		t.Fatalf("facts reply = %q", reply)
	}

	empty := newTestModule(t, &stubKnowledgeStore{})
	interaction, responder = newInteraction("facts")
	if err := handlerFor(t, empty, "facts")(context.Background(), interaction); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if responder.replies[0] != "knowledge.empty" {
		t.Fatalf("empty reply = %q", responder.replies[0])
	}
}

func TestModuleForget(t *testing.T) {
	t.Parallel()

	store := &stubKnowledgeStore{}
	module := newTestModule(t, store)
	interaction, responder := newInteraction("forget")

	if err := handlerFor(t, module, "forget")(context.Background(), interaction); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if len(store.forgotten) != 1 || store.forgotten[0] != 42 {
		t.Fatalf("forgotten = %v, want invoked guild", store.forgotten)
	}
	if responder.replies[0] != "knowledge.forgotten" {
		t.Fatalf("reply = %q", responder.replies[0])
	}
}

func TestModuleSpecGating(t *testing.T) {
	t.Parallel()

	for _, handler := range New().Spec().Handlers {
		if handler.Command.Feature != "knowledge" {
			t.Fatalf("command %s feature = %q, want knowledge", handler.Command.Name, handler.Command.Feature)
		}
		if handler.Command.Name == "forget" && !handler.Command.AdminOnly {
			t.Fatal("forget command is not admin only")
		}
	}
}
