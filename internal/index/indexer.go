// Package index turns an extracted Record into the ordered key list and the
// embedding matrix that retrieval searches over.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/hyperengineering/recollect/internal/apperr"
	"github.com/hyperengineering/recollect/internal/conversation"
	"github.com/hyperengineering/recollect/internal/embedding"
	"github.com/hyperengineering/recollect/internal/vector"
)

const (
	DefaultBatchSize   = 256
	DefaultConcurrency = 4
)

// ErrEmbedderRequired is returned by NewIndexer when no embedder is given.
var ErrEmbedderRequired = errors.New("embedder is required")

// Index is the result of embedding a Record. Row i of Matrix embeds
// KeyOrder[i].
type Index struct {
	KeyOrder []string
	Matrix   *vector.Matrix
	Model    string
}

// Indexer embeds prompts in batches on a bounded worker pool.
type Indexer struct {
	embedder  embedding.Embedder
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithBatchSize sets how many prompts go into one embedder call.
func WithBatchSize(n int) Option {
	return func(ix *Indexer) error {
		if n < 1 {
			n = 1
		}
		ix.batchSize = n
		return nil
	}
}

// WithConcurrency sets how many batches are embedded at once.
func WithConcurrency(n int) Option {
	return func(ix *Indexer) error {
		if n < 1 {
			n = 1
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		if ix.pool != nil {
			ix.pool.Release()
		}
		ix.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// NewIndexer creates an Indexer. Call Release when done to stop the pool.
func NewIndexer(e embedding.Embedder, opts ...Option) (*Indexer, error) {
	if e == nil {
		return nil, ErrEmbedderRequired
	}

	pool, err := ants.NewPool(DefaultConcurrency)
	if err != nil {
		return nil, err
	}

	ix := &Indexer{
		embedder:  e,
		pool:      pool,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			ix.Release()
			return nil, err
		}
	}
	ix.logger = ix.logger.With("component", "indexer")
	return ix, nil
}

// Release stops the worker pool.
func (ix *Indexer) Release() {
	if ix.pool != nil {
		ix.pool.Release()
	}
}

// ModelName returns the embedder's model identifier.
func (ix *Indexer) ModelName() string {
	return ix.embedder.ModelName()
}

// Build embeds every prompt of rec in insertion order. Responses are never
// embedded.
func (ix *Indexer) Build(ctx context.Context, rec *conversation.Record) (*Index, error) {
	const op = "index.build"

	if rec == nil || rec.Len() == 0 {
		return nil, apperr.Msg(apperr.Embedding, op, "no prompts to embed")
	}
	keys := rec.Keys()

	rows, err := ix.embedAll(ctx, keys)
	if err != nil {
		return nil, apperr.New(apperr.Embedding, op, err)
	}

	dims := len(rows[0])
	if dims == 0 {
		return nil, apperr.Msg(apperr.Embedding, op, "embedder returned an empty vector")
	}
	for i, row := range rows {
		if len(row) != dims {
			return nil, apperr.Msg(apperr.Embedding, op,
				fmt.Sprintf("row %d has dimension %d, want %d", i, len(row), dims))
		}
	}

	m, err := vector.New(rows)
	if err != nil {
		return nil, apperr.New(apperr.Embedding, op, err)
	}

	ix.logger.Debug("index built",
		"prompts", len(keys),
		"dimensions", dims,
		"model", ix.embedder.ModelName(),
	)

	return &Index{KeyOrder: keys, Matrix: m, Model: ix.embedder.ModelName()}, nil
}

func (ix *Indexer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= ix.batchSize {
		return ix.embedBatch(ctx, texts)
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(texts); start += ix.batchSize {
		end := min(start+ix.batchSize, len(texts))
		offset, batch := start, texts[start:end]

		wg.Add(1)
		err := ix.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			out, err := ix.embedBatch(ctx, batch)
			if err != nil {
				fail(fmt.Errorf("batch at offset %d: %w", offset, err))
				return
			}
			copy(rows[offset:], out)
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submit batch: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (ix *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d prompts", len(out), len(texts))
	}
	return out, nil
}
