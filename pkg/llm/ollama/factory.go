package ollama

import (
	"log/slog"
	"taskrunner/pkg/config"
	"taskrunner/pkg/llm"
)

// OllamaFactory handles creation of Ollama Clients
type OllamaFactory struct{}

// Create implements ProviderFactory
func (f *OllamaFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.LLMClient, error) {
	var clients []llm.LLMClient

	baseURL := cfg.BaseURL
	if baseURL == "" && sys != nil {
		baseURL = sys.OllamaDefaultURL
	}

	for _, model := range cfg.Models {
		client, err := NewOllamaClient(model, cfg.EmbeddingModel, baseURL, cfg.Options)
		if err != nil {
			slog.Error("Failed to create Ollama client", "model", model, "error", err)
			continue
		}
		clients = append(clients, client)
	}
	return clients, nil
}

func init() {
	llm.RegisterProvider("ollama", &OllamaFactory{})
}
