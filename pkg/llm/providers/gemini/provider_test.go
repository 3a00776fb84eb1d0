package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"tika/pkg/tika"
)

type stubModelsClient struct {
	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
	response     *genai.GenerateContentResponse
	err          error
}

func (c *stubModelsClient) GenerateContent(
	_ context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	c.lastModel = model
	c.lastContents = contents
	c.lastConfig = config

	return c.response, c.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}
}

func TestProviderGenerate(t *testing.T) {
	t.Parallel()

	client := &stubModelsClient{response: textResponse("  A dry reply.  ")}
	provider := &Provider{models: client}

	reply, err := provider.Generate(context.Background(), tika.GenerateRequest{
		Model: "gemini-2.5-flash",
		Messages: []tika.GeneratorMessage{
			{Role: tika.GeneratorRoleSystem, Content: "You are Tika."},
			{Role: tika.GeneratorRoleUser, Content: "Say something."},
			{Role: tika.GeneratorRoleAssistant, Content: "Something."},
			{Role: tika.GeneratorRoleUser, Content: "Again."},
		},
		Temperature:     0.8,
		MaxOutputTokens: 256,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "A dry reply." {
		t.Fatalf("Generate() = %q, want trimmed completion", reply)
	}

	if client.lastModel != "gemini-2.5-flash" {
		t.Fatalf("model = %q", client.lastModel)
	}
	if len(client.lastContents) != 3 {
		t.Fatalf("contents length = %d, want 3 non-system messages", len(client.lastContents))
	}
	if client.lastContents[1].Role != string(genai.RoleModel) {
		t.Fatalf("assistant role mapped to %q, want %q", client.lastContents[1].Role, genai.RoleModel)
	}
	if client.lastConfig.SystemInstruction == nil {
		t.Fatal("system instruction missing")
	}
	if client.lastConfig.Temperature == nil || *client.lastConfig.Temperature != 0.8 {
		t.Fatalf("temperature = %v, want 0.8", client.lastConfig.Temperature)
	}
	if client.lastConfig.MaxOutputTokens != 256 {
		t.Fatalf("max output tokens = %d, want 256", client.lastConfig.MaxOutputTokens)
	}
}

func TestProviderGenerateErrors(t *testing.T) {
	t.Parallel()

	validRequest := tika.GenerateRequest{
		Model: "gemini-2.5-flash",
		Messages: []tika.GeneratorMessage{
			{Role: tika.GeneratorRoleUser, Content: "Hello."},
		},
	}

	tests := []struct {
		name    string
		client  *stubModelsClient
		request tika.GenerateRequest
	}{
		{
			name:    "client error",
			client:  &stubModelsClient{err: errors.New("quota exceeded")},
			request: validRequest,
		},
		{
			name:    "empty completion",
			client:  &stubModelsClient{response: textResponse("   ")},
			request: validRequest,
		},
		{
			name:   "only system messages",
			client: &stubModelsClient{response: textResponse("x")},
			request: tika.GenerateRequest{
				Model: "gemini-2.5-flash",
				Messages: []tika.GeneratorMessage{
					{Role: tika.GeneratorRoleSystem, Content: "You are Tika."},
				},
			},
		},
		{
			name:    "invalid request",
			client:  &stubModelsClient{response: textResponse("x")},
			request: tika.GenerateRequest{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			provider := &Provider{models: test.client}
			if _, err := provider.Generate(context.Background(), test.request); err == nil {
				t.Fatal("Generate() error = nil, want error")
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(ProviderConfig{}); err == nil {
		t.Fatal("New() error = nil, want missing api_key error")
	}
	if _, err := New(ProviderConfig{APIKey: "key", BaseURL: "not-a-url"}); err == nil {
		t.Fatal("New() error = nil, want base_url error")
	}
}
