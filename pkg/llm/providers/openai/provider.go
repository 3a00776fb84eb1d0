// Package openai implements a tika generator backed by the OpenAI Responses API.
package openai

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"tika/pkg/tika"
)

// ProviderConfig configures one OpenAI-backed generator instance.
type ProviderConfig struct {
	// APIKey is the credential used to authenticate requests.
	APIKey string
	// BaseURL optionally overrides the OpenAI endpoint.
	BaseURL string
	// Organization optionally sets the OpenAI organization header.
	Organization string
	// Project optionally sets the OpenAI project header.
	Project string
	// MaxRetries optionally overrides the SDK retry count.
	//
	// Nil keeps the SDK default behavior.
	MaxRetries *int
}

// Provider is a tika generator backed by the OpenAI Responses API.
type Provider struct {
	responses openAIResponsesClient
}

type openAIResponsesClient interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

type openAIResponseServiceAdapter struct {
	service responses.ResponseService
}

func (a openAIResponseServiceAdapter) New(
	ctx context.Context,
	body responses.ResponseNewParams,
	opts ...option.RequestOption,
) (*responses.Response, error) {
	return a.service.New(ctx, body, opts...)
}

// New builds one OpenAI Responses API generator instance.
func New(cfg ProviderConfig) (*Provider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("new openai provider: missing api_key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("new openai provider: parse base_url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("new openai provider: base_url must include scheme and host")
		}
	}
	if cfg.MaxRetries != nil && *cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("new openai provider: max_retries must be >= 0")
	}

	options := make([]option.RequestOption, 0, 5)
	options = append(options, option.WithAPIKey(apiKey))
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	if organization := strings.TrimSpace(cfg.Organization); organization != "" {
		options = append(options, option.WithOrganization(organization))
	}
	if project := strings.TrimSpace(cfg.Project); project != "" {
		options = append(options, option.WithProject(project))
	}
	if cfg.MaxRetries != nil {
		options = append(options, option.WithMaxRetries(*cfg.MaxRetries))
	}

	client := openai.NewClient(options...)

	return &Provider{
		responses: openAIResponseServiceAdapter{service: client.Responses},
	}, nil
}

// Generate runs one non-streaming OpenAI Responses completion.
func (p *Provider) Generate(ctx context.Context, req tika.GenerateRequest) (string, error) {
	if p == nil {
		return "", fmt.Errorf("openai generate: nil provider")
	}
	if ctx == nil {
		return "", fmt.Errorf("openai generate: nil context")
	}
	if p.responses == nil {
		return "", fmt.Errorf("openai generate: responses client is nil")
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("openai generate validate request: %w", err)
	}

	params, err := mapGenerateRequest(req)
	if err != nil {
		return "", fmt.Errorf("openai generate map request: %w", err)
	}

	response, err := p.responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("openai generate: nil response")
	}

	text := strings.TrimSpace(response.OutputText())
	if text == "" {
		return "", fmt.Errorf("openai generate: empty completion")
	}

	return text, nil
}

func mapGenerateRequest(req tika.GenerateRequest) (responses.ResponseNewParams, error) {
	items := make(responses.ResponseInputParam, 0, len(req.Messages))
	for index, message := range req.Messages {
		role, err := mapMessageRole(message.Role)
		if err != nil {
			return responses.ResponseNewParams{}, fmt.Errorf("messages[%d] role: %w", index, err)
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(message.Content, role))
	}

	params := responses.ResponseNewParams{
		Model: strings.TrimSpace(req.Model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	return params, nil
}

func mapMessageRole(role tika.GeneratorRole) (responses.EasyInputMessageRole, error) {
	switch role {
	case tika.GeneratorRoleSystem:
		return responses.EasyInputMessageRoleSystem, nil
	case tika.GeneratorRoleUser:
		return responses.EasyInputMessageRoleUser, nil
	case tika.GeneratorRoleAssistant:
		return responses.EasyInputMessageRoleAssistant, nil
	default:
		return "", fmt.Errorf("unsupported role %q", role)
	}
}

var _ tika.Generator = (*Provider)(nil)
