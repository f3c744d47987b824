package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockEmbeddingsService implements EmbeddingsService for testing
type mockEmbeddingsService struct {
	response *openai.CreateEmbeddingResponse
	err      error
	// Track calls for verification
	callCount  int
	lastInput  []string
	lastParams openai.EmbeddingNewParams
}

func (m *mockEmbeddingsService) New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	m.callCount++
	m.lastParams = params

	if params.Input.Value != nil {
		if arr, ok := params.Input.Value.(openai.EmbeddingNewParamsInputArrayOfStrings); ok {
			m.lastInput = []string(arr)
		}
	}

	return m.response, m.err
}

// Helper to create a mock embedding response
func createMockResponse(embeddings [][]float64) *openai.CreateEmbeddingResponse {
	indices := make([]int64, len(embeddings))
	for i := range indices {
		indices[i] = int64(i)
	}
	return createMockResponseWithIndices(embeddings, indices)
}

// Helper to create a mock embedding response with custom indices (for order testing)
func createMockResponseWithIndices(embeddings [][]float64, indices []int64) *openai.CreateEmbeddingResponse {
	data := make([]openai.Embedding, len(embeddings))
	for i, emb := range embeddings {
		data[i] = openai.Embedding{
			Embedding: emb,
			Index:     indices[i],
		}
	}
	return &openai.CreateEmbeddingResponse{
		Data: data,
	}
}

func newTestOpenAI(mock *mockEmbeddingsService, dims int) *OpenAI {
	return &OpenAI{
		embeddings: mock,
		model:      openai.EmbeddingModelTextEmbedding3Small,
		dimensions: dims,
	}
}

func TestEmbed_ConvertsFloat64ToFloat32(t *testing.T) {
	embedding := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	mock := &mockEmbeddingsService{
		response: createMockResponse([][]float64{embedding}),
	}

	result, err := newTestOpenAI(mock, 0).Embed(context.Background(), "How do I learn Python?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, v := range embedding {
		if result[i] != float32(v) {
			t.Errorf("index %d: expected %f, got %f", i, float32(v), result[i])
		}
	}
	if len(mock.lastInput) != 1 || mock.lastInput[0] != "How do I learn Python?" {
		t.Errorf("unexpected input sent: %v", mock.lastInput)
	}
}

func TestEmbed_WrapsErrorWithContext(t *testing.T) {
	originalErr := errors.New("api error")
	mock := &mockEmbeddingsService{err: originalErr}

	_, err := newTestOpenAI(mock, 0).Embed(context.Background(), "query")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "embedding generation failed") {
		t.Errorf("error should contain 'embedding generation failed', got: %v", err)
	}
	if !errors.Is(err, originalErr) {
		t.Errorf("error should wrap original error")
	}
}

func TestEmbed_NoDataReturned(t *testing.T) {
	mock := &mockEmbeddingsService{
		response: &openai.CreateEmbeddingResponse{Data: []openai.Embedding{}},
	}

	_, err := newTestOpenAI(mock, 0).Embed(context.Background(), "query")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestEmbed_SendsDimensionsWhenConfigured(t *testing.T) {
	mock := &mockEmbeddingsService{
		response: createMockResponse([][]float64{{0.1, 0.2}}),
	}

	if _, err := newTestOpenAI(mock, 256).Embed(context.Background(), "query"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mock.lastParams.Dimensions.Present {
		t.Fatal("expected dimensions parameter to be set")
	}
	if mock.lastParams.Dimensions.Value != 256 {
		t.Errorf("dimensions = %d, want 256", mock.lastParams.Dimensions.Value)
	}
}

func TestEmbed_OmitsDimensionsByDefault(t *testing.T) {
	mock := &mockEmbeddingsService{
		response: createMockResponse([][]float64{{0.1, 0.2}}),
	}

	if _, err := newTestOpenAI(mock, 0).Embed(context.Background(), "query"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.lastParams.Dimensions.Present {
		t.Error("dimensions parameter should not be sent")
	}
}

func TestEmbedBatch_ReturnsEmbeddingsInOrder(t *testing.T) {
	emb0 := []float64{0.0, 0.0, 0.0}
	emb1 := []float64{1.0, 1.0, 1.0}
	emb2 := []float64{2.0, 2.0, 2.0}

	// Return embeddings in reverse order (2, 1, 0) but with correct indices
	mock := &mockEmbeddingsService{
		response: createMockResponseWithIndices(
			[][]float64{emb2, emb1, emb0},
			[]int64{2, 1, 0},
		),
	}

	result, err := newTestOpenAI(mock, 0).EmbedBatch(context.Background(), []string{"p0", "p1", "p2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range result {
		if result[i][0] != float32(i) {
			t.Errorf("row %d = %v, want leading %d", i, result[i], i)
		}
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	mock := &mockEmbeddingsService{}

	result, err := newTestOpenAI(mock, 0).EmbedBatch(context.Background(), []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || len(result) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", result)
	}
	if mock.callCount != 0 {
		t.Errorf("expected no API calls for empty input, got %d", mock.callCount)
	}
}

func TestEmbedBatch_MismatchedCount(t *testing.T) {
	mock := &mockEmbeddingsService{
		response: createMockResponse([][]float64{{0.1}, {0.2}}),
	}

	_, err := newTestOpenAI(mock, 0).EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "expected 3 embeddings") {
		t.Errorf("error should mention expected count, got: %v", err)
	}
}

func TestEmbedBatch_RespectsContextCancellation(t *testing.T) {
	mock := &mockEmbeddingsService{
		response: createMockResponse([][]float64{{0.1}}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestOpenAI(mock, 0).EmbedBatch(ctx, []string{"text"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled error, got: %v", err)
	}
}

func TestModelName_ReturnsConfiguredModel(t *testing.T) {
	client := NewOpenAI("sk-test", "text-embedding-3-large", "", 0)
	if client.ModelName() != "text-embedding-3-large" {
		t.Errorf("ModelName() = %s", client.ModelName())
	}
}
