package llm

import (
	"fmt"

	"tika/pkg/llm/config"
	"tika/pkg/llm/providers/gemini"
	"tika/pkg/llm/providers/openai"
	"tika/pkg/tika"
)

// BuildRegistry constructs one generator per configured provider profile and
// wraps them in an immutable registry.
func BuildRegistry(cfg config.Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("build generator registry: %w", err)
	}

	generators := make(map[string]tika.Generator, len(cfg.Providers))
	for key, profile := range cfg.Providers {
		generator, err := buildGenerator(profile)
		if err != nil {
			return nil, fmt.Errorf("build generator registry: profile %s: %w", key, err)
		}
		generators[key] = generator
	}

	registry, err := NewRegistry(generators)
	if err != nil {
		return nil, fmt.Errorf("build generator registry: %w", err)
	}

	return registry, nil
}

func buildGenerator(profile config.ProviderProfile) (tika.Generator, error) {
	switch profile.Type {
	case "gemini":
		providerConfig := gemini.ProviderConfig{
			APIKey:  profile.APIKey,
			BaseURL: profile.BaseURL,
		}
		if profile.Gemini != nil {
			providerConfig.APIVersion = profile.Gemini.APIVersion
		}

		return gemini.New(providerConfig)
	case "openai":
		providerConfig := openai.ProviderConfig{
			APIKey:  profile.APIKey,
			BaseURL: profile.BaseURL,
		}
		if profile.OpenAI != nil {
			providerConfig.Organization = profile.OpenAI.Organization
			providerConfig.Project = profile.OpenAI.Project
			providerConfig.MaxRetries = profile.OpenAI.MaxRetries
		}

		return openai.New(providerConfig)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", profile.Type)
	}
}
