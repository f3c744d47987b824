package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/recollect/internal/apperr"
	"github.com/hyperengineering/recollect/internal/conversation"
	"github.com/hyperengineering/recollect/internal/vector"
)

// Bundle is everything persisted for one user: the prompt/response record,
// the prompt order and the embedding matrix whose row i embeds KeyOrder[i].
type Bundle struct {
	UUID      string
	Record    *conversation.Record
	KeyOrder  []string
	Matrix    *vector.Matrix
	CreatedAt time.Time
	Revision  string
	// Source names the backend that served a Load.
	Source string
}

// Shape returns the embedding matrix shape, or the zero shape when no matrix
// is attached.
func (b *Bundle) Shape() vector.Shape {
	if b.Matrix == nil {
		return vector.Shape{}
	}
	return b.Matrix.Shape()
}

// Validate checks the structural invariants shared by every backend.
func (b *Bundle) Validate() error {
	const op = "store.validate"

	if b.UUID == "" {
		return apperr.Msg(apperr.Validation, op, "uuid is required")
	}
	if b.Record == nil || b.Matrix == nil {
		return &apperr.Error{Kind: apperr.Corrupt, Op: op, UUID: b.UUID, Msg: "record and embeddings are required"}
	}

	n := len(b.KeyOrder)
	if n != b.Record.Len() || n != b.Matrix.Rows() {
		return &apperr.Error{
			Kind: apperr.Corrupt, Op: op, UUID: b.UUID,
			Msg: fmt.Sprintf("key_order has %d keys, record %d, embeddings %d rows", n, b.Record.Len(), b.Matrix.Rows()),
		}
	}

	seen := make(map[string]struct{}, n)
	for _, k := range b.KeyOrder {
		if _, dup := seen[k]; dup {
			return &apperr.Error{Kind: apperr.Corrupt, Op: op, UUID: b.UUID, Msg: fmt.Sprintf("duplicate key %q in key_order", k)}
		}
		seen[k] = struct{}{}
		if _, ok := b.Record.Get(k); !ok {
			return &apperr.Error{Kind: apperr.Corrupt, Op: op, UUID: b.UUID, Msg: fmt.Sprintf("key %q missing from record", k)}
		}
	}

	shape := b.Matrix.Shape()
	if len(b.Matrix.Data()) != shape.Rows()*shape.Cols() {
		return &apperr.Error{Kind: apperr.Corrupt, Op: op, UUID: b.UUID, Msg: "embedding data does not match its shape"}
	}
	return nil
}

// Summary describes a stored bundle without loading its payload.
type Summary struct {
	UUID      string
	Shape     vector.Shape
	Revision  string
	CreatedAt time.Time
	Source    string
}

// Backend is one storage substrate for bundles.
type Backend interface {
	// Name identifies the backend in logs and results.
	Name() string
	// Save writes b, replacing any bundle stored under b.UUID.
	Save(ctx context.Context, b *Bundle) error
	// Load returns the bundle for uuid. A miss is a NotFound error.
	Load(ctx context.Context, uuid string) (*Bundle, error)
	// Delete removes the bundle for uuid. A miss is a NotFound error.
	Delete(ctx context.Context, uuid string) error
	// List summarizes stored bundles.
	List(ctx context.Context) ([]Summary, error)
}

// Counter is implemented by backends that can count bundles without
// listing them.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
