// Package gemini implements a tika generator backed by the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"

	"google.golang.org/genai"

	"tika/pkg/tika"
)

const defaultAPIVersion = "v1beta"

// ProviderConfig configures one Gemini-backed generator instance.
type ProviderConfig struct {
	// APIKey is the credential used to authenticate requests.
	APIKey string
	// BaseURL optionally overrides the Gemini endpoint.
	BaseURL string
	// APIVersion optionally overrides Gemini API version.
	//
	// Zero defaults to v1beta.
	APIVersion string
}

// Provider is a tika generator backed by the Gemini API.
type Provider struct {
	models geminiModelsClient
}

type geminiModelsClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// New builds one Gemini API generator instance.
func New(cfg ProviderConfig) (*Provider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("new gemini provider: missing api_key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("new gemini provider: parse base_url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("new gemini provider: base_url must include scheme and host")
		}
	}

	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	if client == nil || client.Models == nil {
		return nil, fmt.Errorf("new gemini client: models client is nil")
	}

	return &Provider{models: client.Models}, nil
}

// Generate runs one non-streaming Gemini completion.
func (p *Provider) Generate(ctx context.Context, req tika.GenerateRequest) (string, error) {
	if p == nil {
		return "", fmt.Errorf("gemini generate: nil provider")
	}
	if ctx == nil {
		return "", fmt.Errorf("gemini generate: nil context")
	}
	if p.models == nil {
		return "", fmt.Errorf("gemini generate: models client is nil")
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("gemini generate validate request: %w", err)
	}

	contents, config, err := mapGenerateRequest(req)
	if err != nil {
		return "", fmt.Errorf("gemini generate map request: %w", err)
	}

	response, err := p.models.GenerateContent(ctx, strings.TrimSpace(req.Model), contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("gemini generate: nil response")
	}

	text := strings.TrimSpace(response.Text())
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty completion")
	}

	return text, nil
}

func mapGenerateRequest(req tika.GenerateRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	systemParts := make([]string, 0, len(req.Messages))
	contents := make([]*genai.Content, 0, len(req.Messages))
	for index, message := range req.Messages {
		switch message.Role {
		case tika.GeneratorRoleSystem:
			systemParts = append(systemParts, message.Content)
		case tika.GeneratorRoleUser, tika.GeneratorRoleAssistant:
			role, err := mapMessageRole(message.Role)
			if err != nil {
				return nil, nil, fmt.Errorf("messages[%d] role: %w", index, err)
			}
			contents = append(contents, &genai.Content{
				Role: role,
				Parts: []*genai.Part{
					{Text: message.Content},
				},
			})
		default:
			return nil, nil, fmt.Errorf("messages[%d] role: unsupported role %q", index, message.Role)
		}
	}
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("missing non-system messages")
	}

	config := &genai.GenerateContentConfig{}
	if len(systemParts) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: strings.Join(systemParts, "\n\n")},
			},
		}
	}
	if req.Temperature > 0 {
		temperature := float32(req.Temperature)
		config.Temperature = &temperature
	}
	if req.MaxOutputTokens > 0 {
		if req.MaxOutputTokens > math.MaxInt32 {
			return nil, nil, fmt.Errorf("max_output_tokens exceeds int32 range")
		}
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}

	return contents, config, nil
}

func mapMessageRole(role tika.GeneratorRole) (string, error) {
	switch role {
	case tika.GeneratorRoleUser:
		return string(genai.RoleUser), nil
	case tika.GeneratorRoleAssistant:
		return string(genai.RoleModel), nil
	default:
		return "", fmt.Errorf("unsupported role %q", role)
	}
}

var _ tika.Generator = (*Provider)(nil)
