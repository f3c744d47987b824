package embedding

import (
	"fmt"

	"github.com/hyperengineering/recollect/internal/config"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI     = "openai"
	ProviderCompatible = "compatible"
	ProviderHashing    = "hashing"
)

// New builds the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimensions), nil
	case ProviderCompatible:
		return NewCompatible(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderHashing:
		return NewHashing(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
