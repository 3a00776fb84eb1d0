// Package config loads and validates the LLM runtime configuration model.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultRequestTimeout  = 60 * time.Second
	defaultHistoryLimit    = 20
	defaultGeminiVersion   = "v1beta"
	providerTypeOpenAI     = "openai"
	providerTypeGemini     = "gemini"
	maxPersonaSystemPrompt = 32 * 1024

	envOpenAIAPIKey = "OPENAI_API_KEY"
	envGeminiAPIKey = "GEMINI_API_KEY"
)

// Config is the full runtime LLM configuration model loaded from JSON.
type Config struct {
	// RequestTimeout bounds one generation request lifecycle.
	RequestTimeout time.Duration
	// Providers contains provider profiles keyed by profile name.
	Providers map[string]ProviderProfile
	// Persona configures the bot's chat persona generation.
	Persona Persona
}

// ProviderProfile describes one named provider profile.
type ProviderProfile struct {
	// Type identifies provider implementation kind (openai|gemini).
	Type string
	// APIKey is the provider credential.
	APIKey string
	// BaseURL optionally overrides provider API endpoint.
	BaseURL string
	// OpenAI carries OpenAI-specific options.
	OpenAI *OpenAIOptions
	// Gemini carries Gemini-specific options.
	Gemini *GeminiOptions
}

// OpenAIOptions carries OpenAI-specific profile options.
type OpenAIOptions struct {
	// Organization optionally scopes requests to one OpenAI organization.
	Organization string
	// Project optionally scopes requests to one OpenAI project.
	Project string
	// MaxRetries optionally overrides SDK retry count.
	MaxRetries *int
}

// GeminiOptions carries Gemini-specific profile options.
type GeminiOptions struct {
	// APIVersion selects the Gemini Developer API version.
	APIVersion string
}

// Persona configures which provider profile and model speak for the bot.
type Persona struct {
	// Provider identifies which provider profile to resolve.
	Provider string
	// Model identifies which provider model name to call.
	Model string
	// SystemPrompt is the persona behavior prompt.
	SystemPrompt string
	// Temperature optionally controls output randomness.
	Temperature float64
	// MaxOutputTokens optionally limits generated token count.
	MaxOutputTokens int
	// HistoryLimit bounds remembered conversation turns per channel.
	HistoryLimit int
}

type fileConfig struct {
	RequestTimeout string                       `json:"request_timeout"`
	Providers      map[string]fileProviderEntry `json:"providers"`
	Persona        filePersona                  `json:"persona"`
}

type fileProviderEntry struct {
	Type    string           `json:"type"`
	APIKey  string           `json:"api_key"`
	BaseURL string           `json:"base_url"`
	OpenAI  *fileOpenAIEntry `json:"openai"`
	Gemini  *fileGeminiEntry `json:"gemini"`
}

type fileOpenAIEntry struct {
	Organization string `json:"organization"`
	Project      string `json:"project"`
	MaxRetries   *int   `json:"max_retries"`
}

type fileGeminiEntry struct {
	APIVersion string `json:"api_version"`
}

type filePersona struct {
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	SystemPrompt    string  `json:"system_prompt"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	HistoryLimit    int     `json:"history_limit"`
}

// LoadFile reads and validates runtime LLM configuration from path.
//
// Profiles that omit api_key fall back to the provider's environment
// variable (OPENAI_API_KEY or GEMINI_API_KEY by type), so credentials never
// have to live in the config file.
func LoadFile(path string) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("load llm config: empty path")
	}

	data, err := os.ReadFile(trimmedPath)
	if err != nil {
		return Config{}, fmt.Errorf("load llm config read %s: %w", trimmedPath, err)
	}

	var parsed fileConfig
	if err := decodeStrictJSON(data, &parsed); err != nil {
		return Config{}, fmt.Errorf("load llm config parse %s: %w", trimmedPath, err)
	}

	cfg := Config{
		RequestTimeout: defaultRequestTimeout,
		Providers:      make(map[string]ProviderProfile, len(parsed.Providers)),
		Persona: Persona{
			Provider:        strings.TrimSpace(parsed.Persona.Provider),
			Model:           strings.TrimSpace(parsed.Persona.Model),
			SystemPrompt:    strings.TrimSpace(parsed.Persona.SystemPrompt),
			Temperature:     parsed.Persona.Temperature,
			MaxOutputTokens: parsed.Persona.MaxOutputTokens,
			HistoryLimit:    parsed.Persona.HistoryLimit,
		},
	}
	if cfg.Persona.HistoryLimit == 0 {
		cfg.Persona.HistoryLimit = defaultHistoryLimit
	}

	if rawTimeout := strings.TrimSpace(parsed.RequestTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("load llm config parse request_timeout: %w", err)
		}
		cfg.RequestTimeout = timeout
	}

	for key, rawProvider := range parsed.Providers {
		profileKey := strings.TrimSpace(key)
		if profileKey == "" {
			return Config{}, fmt.Errorf("load llm config providers: empty provider key")
		}

		profile := ProviderProfile{
			Type:    strings.ToLower(strings.TrimSpace(rawProvider.Type)),
			APIKey:  strings.TrimSpace(rawProvider.APIKey),
			BaseURL: strings.TrimSpace(rawProvider.BaseURL),
		}
		if profile.APIKey == "" {
			profile.APIKey = strings.TrimSpace(os.Getenv(apiKeyEnvName(profile.Type)))
		}
		if rawProvider.OpenAI != nil {
			profile.OpenAI = &OpenAIOptions{
				Organization: strings.TrimSpace(rawProvider.OpenAI.Organization),
				Project:      strings.TrimSpace(rawProvider.OpenAI.Project),
				MaxRetries:   cloneIntPointer(rawProvider.OpenAI.MaxRetries),
			}
		}
		if rawProvider.Gemini != nil {
			apiVersion := strings.TrimSpace(rawProvider.Gemini.APIVersion)
			if apiVersion == "" {
				apiVersion = defaultGeminiVersion
			}
			profile.Gemini = &GeminiOptions{APIVersion: apiVersion}
		}
		cfg.Providers[profileKey] = profile
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks configuration coherence.
func (cfg Config) Validate() error {
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("validate llm config: request_timeout must be > 0")
	}
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("validate llm config: providers is required")
	}

	for key, profile := range cfg.Providers {
		if err := validateProviderProfile(profile); err != nil {
			return fmt.Errorf("validate llm config providers[%s]: %w", key, err)
		}
	}

	if err := cfg.validatePersona(); err != nil {
		return fmt.Errorf("validate llm config persona: %w", err)
	}

	return nil
}

func (cfg Config) validatePersona() error {
	persona := cfg.Persona
	if persona.Provider == "" {
		return fmt.Errorf("missing provider")
	}
	if _, exists := cfg.Providers[persona.Provider]; !exists {
		return fmt.Errorf("provider %s is not configured", persona.Provider)
	}
	if persona.Model == "" {
		return fmt.Errorf("missing model")
	}
	if persona.SystemPrompt == "" {
		return fmt.Errorf("missing system_prompt")
	}
	if len(persona.SystemPrompt) > maxPersonaSystemPrompt {
		return fmt.Errorf("system_prompt exceeds %d bytes", maxPersonaSystemPrompt)
	}
	if persona.Temperature < 0 {
		return fmt.Errorf("temperature must be >= 0")
	}
	if persona.MaxOutputTokens < 0 {
		return fmt.Errorf("max_output_tokens must be >= 0")
	}
	if persona.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be > 0")
	}

	return nil
}

func validateProviderProfile(profile ProviderProfile) error {
	switch profile.Type {
	case providerTypeOpenAI, providerTypeGemini:
	case "":
		return fmt.Errorf("missing type")
	default:
		return fmt.Errorf("unsupported type %q", profile.Type)
	}
	if profile.APIKey == "" {
		return fmt.Errorf("missing api_key")
	}
	if profile.BaseURL != "" {
		parsed, err := url.Parse(profile.BaseURL)
		if err != nil {
			return fmt.Errorf("parse base_url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("base_url must include scheme and host")
		}
	}
	if profile.Type == providerTypeOpenAI && profile.Gemini != nil {
		return fmt.Errorf("gemini options set on openai profile")
	}
	if profile.Type == providerTypeGemini && profile.OpenAI != nil {
		return fmt.Errorf("openai options set on gemini profile")
	}
	if profile.OpenAI != nil && profile.OpenAI.MaxRetries != nil && *profile.OpenAI.MaxRetries < 0 {
		return fmt.Errorf("openai.max_retries must be >= 0")
	}

	return nil
}

// apiKeyEnvName maps a provider type to the environment variable consulted
// when a profile omits api_key.
func apiKeyEnvName(providerType string) string {
	switch providerType {
	case providerTypeOpenAI:
		return envOpenAIAPIKey
	case providerTypeGemini:
		return envGeminiAPIKey
	}

	return ""
}

func decodeStrictJSON(data []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("unexpected trailing content")
	}

	return nil
}

func cloneIntPointer(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value

	return &cloned
}
