package generation

import (
	"fmt"
	"net/http"

	"git.home.luguber.info/inful/pagesmith/internal/config"
)

// NewProvider builds the configured provider.
func NewProvider(cfg config.GenerationConfig, client *http.Client) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiProvider(client, cfg.APIURL, cfg.APIKey, cfg.Model), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(client, cfg.APIURL, cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", cfg.Provider)
	}
}
