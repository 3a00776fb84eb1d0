package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"tika/pkg/tika"
)

type stubResponsesClient struct {
	lastParams responses.ResponseNewParams
	response   *responses.Response
	err        error
}

func (c *stubResponsesClient) New(
	_ context.Context,
	body responses.ResponseNewParams,
	_ ...option.RequestOption,
) (*responses.Response, error) {
	c.lastParams = body

	return c.response, c.err
}

func textResponse(text string) *responses.Response {
	return &responses.Response{
		Output: []responses.ResponseOutputItemUnion{
			{
				Type: "message",
				Content: []responses.ResponseOutputMessageContentUnion{
					{Type: "output_text", Text: text},
				},
			},
		},
	}
}

func TestProviderGenerate(t *testing.T) {
	t.Parallel()

	client := &stubResponsesClient{response: textResponse(" Done. ")}
	provider := &Provider{responses: client}

	reply, err := provider.Generate(context.Background(), tika.GenerateRequest{
		Model: "gpt-4.1-mini",
		Messages: []tika.GeneratorMessage{
			{Role: tika.GeneratorRoleSystem, Content: "You are Tika."},
			{Role: tika.GeneratorRoleUser, Content: "Say done."},
		},
		Temperature:     0.5,
		MaxOutputTokens: 64,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "Done." {
		t.Fatalf("Generate() = %q, want trimmed completion", reply)
	}

	if client.lastParams.Model != "gpt-4.1-mini" {
		t.Fatalf("model = %q", client.lastParams.Model)
	}
	if len(client.lastParams.Input.OfInputItemList) != 2 {
		t.Fatalf("input items = %d, want 2", len(client.lastParams.Input.OfInputItemList))
	}
	if !client.lastParams.Temperature.Valid() || client.lastParams.Temperature.Value != 0.5 {
		t.Fatalf("temperature = %v, want 0.5", client.lastParams.Temperature)
	}
	if !client.lastParams.MaxOutputTokens.Valid() || client.lastParams.MaxOutputTokens.Value != 64 {
		t.Fatalf("max output tokens = %v, want 64", client.lastParams.MaxOutputTokens)
	}
}

func TestProviderGenerateErrors(t *testing.T) {
	t.Parallel()

	validRequest := tika.GenerateRequest{
		Model: "gpt-4.1-mini",
		Messages: []tika.GeneratorMessage{
			{Role: tika.GeneratorRoleUser, Content: "Hello."},
		},
	}

	tests := []struct {
		name    string
		client  *stubResponsesClient
		request tika.GenerateRequest
	}{
		{
			name:    "client error",
			client:  &stubResponsesClient{err: errors.New("rate limited")},
			request: validRequest,
		},
		{
			name:    "empty completion",
			client:  &stubResponsesClient{response: textResponse("  ")},
			request: validRequest,
		},
		{
			name:    "invalid request",
			client:  &stubResponsesClient{response: textResponse("x")},
			request: tika.GenerateRequest{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			provider := &Provider{responses: test.client}
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
	negative := -1
	if _, err := New(ProviderConfig{APIKey: "key", MaxRetries: &negative}); err == nil {
		t.Fatal("New() error = nil, want max_retries error")
	}
}
