package llm

import (
	"taskrunner/pkg/config"
)

// ProviderGroupConfig is one entry of the "llm" array in config.json.
type ProviderGroupConfig struct {
	Type           string         `json:"type"`
	APIKeys        []string       `json:"api_keys,omitempty"`
	Models         []string       `json:"models"`
	EmbeddingModel string         `json:"embedding_model,omitempty"`
	BaseURL        string         `json:"base_url,omitempty"`
	Options        map[string]any `json:"options,omitempty"`
}

// ProviderFactory builds the atomic clients of one provider group.
type ProviderFactory interface {
	Create(groupConfig ProviderGroupConfig, systemConfig *config.SystemConfig) ([]LLMClient, error)
}

var providerRegistry = make(map[string]ProviderFactory)

// RegisterProvider registers a factory under name. Called from init().
func RegisterProvider(name string, factory ProviderFactory) {
	providerRegistry[name] = factory
}

// GetProviderFactory returns the factory registered under name.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	f, ok := providerRegistry[name]
	return f, ok
}
