package types

import (
	"encoding/json"
	"time"
)

// HealthResponse represents the service health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	EmbeddingModel string `json:"embedding_model"`
	Primary        string `json:"primary,omitempty"`
}

// UserHealthResponse reports whether one user's bundle is ready for search.
type UserHealthResponse struct {
	UUID             string `json:"uuid"`
	Status           string `json:"status"`
	ModelLoaded      bool   `json:"model_loaded"`
	DataLoaded       bool   `json:"data_loaded"`
	EmbeddingsLoaded bool   `json:"embeddings_loaded"`
	KeysAvailable    bool   `json:"keys_available"`
	TotalDocuments   int    `json:"total_documents"`
	ReadyForSearch   bool   `json:"ready_for_search"`
	Source           string `json:"source,omitempty"`
}

// ExtractResponse represents the response from ingesting a conversation export
type ExtractResponse struct {
	Success        bool   `json:"success"`
	UUID           string `json:"uuid"`
	DocumentCount  int    `json:"document_count"`
	EmbeddingShape [2]int `json:"embedding_shape"`
	Revision       string `json:"revision"`
	Model          string `json:"model"`
	Overwrites     int    `json:"overwrites"`
}

// SearchRequest represents a search query against one user's bundle
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchHit is one ranked prompt/response pair
type SearchHit struct {
	Key        string  `json:"key"`
	Similarity float32 `json:"similarity"`
	Content    string  `json:"content"`
}

// SearchResponse represents the ranked results of a search
type SearchResponse struct {
	Results      []SearchHit `json:"results"`
	Query        string      `json:"query"`
	TotalResults int         `json:"total_results"`
}

// MarshalJSON ensures nil Results marshals as [] not null.
func (s SearchResponse) MarshalJSON() ([]byte, error) {
	type alias SearchResponse
	if s.Results == nil {
		s.Results = []SearchHit{}
	}
	return json.Marshal(alias(s))
}

// DeleteResponse represents the outcome of deleting a user's bundle
type DeleteResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	UUID    string `json:"uuid"`
}

// MirrorResponse represents a bundle copied into the fallback backend
type MirrorResponse struct {
	UUID           string `json:"uuid"`
	Revision       string `json:"revision"`
	Backend        string `json:"backend"`
	EmbeddingShape [2]int `json:"embedding_shape"`
}

// BundleSummary describes one stored bundle without its content
type BundleSummary struct {
	UUID           string     `json:"uuid"`
	Source         string     `json:"source"`
	Revision       string     `json:"revision,omitempty"`
	EmbeddingShape [2]int     `json:"embedding_shape"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}
