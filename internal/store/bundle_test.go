package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hyperengineering/recollect/internal/apperr"
	"github.com/hyperengineering/recollect/internal/conversation"
	"github.com/hyperengineering/recollect/internal/vector"
)

// newTestBundle builds a valid bundle with n prompts inserted in reverse
// alphabetical order and d-dimensional embeddings where row i is filled
// with i+1.
func newTestBundle(t *testing.T, uuid string, n, d int) *Bundle {
	t.Helper()

	rec := conversation.NewRecord()
	rows := make([][]float32, n)
	for i := 0; i < n; i++ {
		rec.Set(fmt.Sprintf("prompt %c", 'z'-i), fmt.Sprintf("response %d", i))
		rows[i] = make([]float32, d)
		for j := range rows[i] {
			rows[i][j] = float32(i + 1)
		}
	}
	m, err := vector.New(rows)
	if err != nil {
		t.Fatal(err)
	}

	return &Bundle{
		UUID:      uuid,
		Record:    rec,
		KeyOrder:  rec.Keys(),
		Matrix:    m,
		CreatedAt: time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.UTC),
		Revision:  "01HX0000000000000000000000",
	}
}

// assertSameBundle compares the persisted fields of two bundles.
func assertSameBundle(t *testing.T, got, want *Bundle) {
	t.Helper()

	if got.UUID != want.UUID {
		t.Errorf("UUID = %q, want %q", got.UUID, want.UUID)
	}
	if len(got.KeyOrder) != len(want.KeyOrder) {
		t.Fatalf("KeyOrder = %v, want %v", got.KeyOrder, want.KeyOrder)
	}
	for i := range want.KeyOrder {
		if got.KeyOrder[i] != want.KeyOrder[i] {
			t.Errorf("KeyOrder[%d] = %q, want %q", i, got.KeyOrder[i], want.KeyOrder[i])
		}
	}
	gotKeys := got.Record.Keys()
	for i, k := range want.Record.Keys() {
		if gotKeys[i] != k {
			t.Errorf("Record key %d = %q, want %q", i, gotKeys[i], k)
		}
		gv, _ := got.Record.Get(k)
		wv, _ := want.Record.Get(k)
		if gv != wv {
			t.Errorf("Record[%q] = %q, want %q", k, gv, wv)
		}
	}
	if got.Shape() != want.Shape() {
		t.Fatalf("Shape = %v, want %v", got.Shape(), want.Shape())
	}
	gd, wd := got.Matrix.Data(), want.Matrix.Data()
	for i := range wd {
		if gd[i] != wd[i] {
			t.Fatalf("Matrix data[%d] = %v, want %v", i, gd[i], wd[i])
		}
	}
	if got.Revision != want.Revision {
		t.Errorf("Revision = %q, want %q", got.Revision, want.Revision)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestBundle_ValidateAcceptsConsistentBundle(t *testing.T) {
	if err := newTestBundle(t, "u1", 3, 4).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestBundle_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Bundle)
		kind   apperr.Kind
	}{
		{"missing uuid", func(b *Bundle) { b.UUID = "" }, apperr.Validation},
		{"missing record", func(b *Bundle) { b.Record = nil }, apperr.Corrupt},
		{"missing matrix", func(b *Bundle) { b.Matrix = nil }, apperr.Corrupt},
		{"short key order", func(b *Bundle) { b.KeyOrder = b.KeyOrder[:2] }, apperr.Corrupt},
		{"duplicate key", func(b *Bundle) { b.KeyOrder[1] = b.KeyOrder[0] }, apperr.Corrupt},
		{"key not in record", func(b *Bundle) { b.KeyOrder[2] = "unknown" }, apperr.Corrupt},
		{"row count mismatch", func(b *Bundle) {
			m, _ := vector.New([][]float32{{1}, {2}})
			b.Matrix = m
		}, apperr.Corrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBundle(t, "u1", 3, 2)
			tt.mutate(b)
			err := b.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if apperr.KindOf(err) != tt.kind {
				t.Errorf("Validate() kind = %v, want %v", apperr.KindOf(err), tt.kind)
			}
		})
	}
}

func TestBundle_ShapeWithoutMatrix(t *testing.T) {
	b := &Bundle{}
	if b.Shape() != (vector.Shape{}) {
		t.Errorf("Shape() = %v, want zero", b.Shape())
	}
}

func TestBundle_ValidateErrorMatchesSentinel(t *testing.T) {
	b := newTestBundle(t, "u1", 2, 2)
	b.KeyOrder = b.KeyOrder[:1]
	if err := b.Validate(); !errors.Is(err, apperr.ErrCorrupt) {
		t.Errorf("Validate() error = %v, want ErrCorrupt", err)
	}
}
