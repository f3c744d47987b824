package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

var _ Embedder = (*Hashing)(nil)

// Hashing is a deterministic bag-of-words embedder. Each lowercase token is
// hashed into one of dims buckets with a hash-derived sign, and the result is
// L2-normalised. It needs no model or network and is meant for development
// and tests; texts sharing words score higher than unrelated texts.
type Hashing struct {
	dims int
}

// NewHashing returns a hashing embedder producing vectors of length dims.
func NewHashing(dims int) (*Hashing, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("hashing embedder: dimensions must be positive, got %d", dims)
	}
	return &Hashing{dims: dims}, nil
}

// Embed returns the hashed vector for text.
func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(text), nil
}

// EmbedBatch embeds each text independently.
func (h *Hashing) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

// ModelName identifies the embedder and its dimension.
func (h *Hashing) ModelName() string {
	return fmt.Sprintf("hashing-%d", h.dims)
}

func (h *Hashing) vector(text string) []float32 {
	v := make([]float32, h.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		f := fnv.New64a()
		f.Write([]byte(tok))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dims))
		if sum>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
