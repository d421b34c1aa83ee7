package repository

import (
	"fmt"
	"strings"
)

// ProviderType represents the type of repository provider
type ProviderType string

const (
	// ProviderGitHub represents GitHub as the repository provider
	ProviderGitHub ProviderType = "github"
	// ProviderGitLab represents GitLab as the repository provider
	ProviderGitLab ProviderType = "gitlab"
)

// Factory creates repository clients based on the provider type
type Factory struct {
	config Config
}

// NewFactory creates a new factory instance with the provided configuration
// The configuration will be applied to all clients created by this factory
func NewFactory(config Config) *Factory {
	return &Factory{
		config: config,
	}
}

// CreateClient creates a new repository client based on the provider name.
// The provider name is case-insensitive.
func (f *Factory) CreateClient(provider string) (Client, error) {
	switch ProviderType(strings.ToLower(strings.TrimSpace(provider))) {
	case ProviderGitHub:
		return NewGitHubClient(f.config)
	case ProviderGitLab:
		return NewGitLabClient(f.config)
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: github, gitlab)", provider)
	}
}

// NewClient creates a repository client without instantiating a Factory.
func NewClient(provider string, config Config) (Client, error) {
	return NewFactory(config).CreateClient(provider)
}

// SupportedProviders returns a list of all supported provider types
func SupportedProviders() []string {
	return []string{
		string(ProviderGitHub),
		string(ProviderGitLab),
	}
}
