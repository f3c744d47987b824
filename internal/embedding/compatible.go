package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

var _ Embedder = (*Compatible)(nil)

// Compatible embeds text through any server exposing the OpenAI embeddings
// API (llama.cpp, Ollama, vLLM and similar local deployments).
type Compatible struct {
	embedder embeddings.Embedder
	model    string
}

// NewCompatible creates an embedder for the server at baseURL. token may be
// empty for servers that do not authenticate.
func NewCompatible(baseURL, token, model string) (*Compatible, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("compatible embedder: base URL is required")
	}
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("compatible embedder: create client: %w", err)
	}

	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("compatible embedder: %w", err)
	}

	return &Compatible{embedder: e, model: model}, nil
}

// Embed generates an embedding for a single text.
func (c *Compatible) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("embedding generation failed: no data returned")
	}
	return v, nil
}

// EmbedBatch generates embeddings for texts, one row per input.
func (c *Compatible) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	out, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("batch embedding generation failed: %w", err)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("batch embedding generation failed: expected %d embeddings, got %d", len(texts), len(out))
	}
	return out, nil
}

// ModelName returns the configured model.
func (c *Compatible) ModelName() string {
	return c.model
}
