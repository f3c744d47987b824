package store

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperengineering/recollect/internal/apperr"
	"github.com/hyperengineering/recollect/internal/vector"
)

func newDocumentBackend(t *testing.T) (*DocumentBackend, string) {
	t.Helper()
	dir := t.TempDir()
	return NewDocumentBackend(NewDirBlobs(dir), "", nil), dir
}

func writeDocument(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestDocumentBackend_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	d, dir := newDocumentBackend(t)
	want := newTestBundle(t, "user-1", 3, 5)

	if err := d.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "user-1userData.json")); err != nil {
		t.Errorf("document file not written: %v", err)
	}

	got, err := d.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertSameBundle(t, got, want)
	if got.Source != BackendDocument {
		t.Errorf("Source = %q", got.Source)
	}
}

func TestDocumentBackend_LegacyDocumentInfersShape(t *testing.T) {
	d, dir := newDocumentBackend(t)

	// Two prompts, two dimensions, no key_order or shape recorded
	emb := base64.StdEncoding.EncodeToString(vector.Pack([]float32{1, 2, 3, 4}))
	writeDocument(t, dir, "legacyuserData.json",
		`{"legacy":{"processed_data":{"second prompt":"b","first prompt":"a"},"embeddings":"`+emb+`"}}`)

	got, err := d.Load(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Shape() != (vector.Shape{2, 2}) {
		t.Errorf("Shape = %v, want [2 2]", got.Shape())
	}
	if got.KeyOrder[0] != "second prompt" || got.KeyOrder[1] != "first prompt" {
		t.Errorf("KeyOrder = %v, want document order", got.KeyOrder)
	}
	if row := got.Matrix.Row(1); row[0] != 3 || row[1] != 4 {
		t.Errorf("Row(1) = %v", row)
	}
	if !got.CreatedAt.IsZero() {
		t.Errorf("CreatedAt = %v, want zero for legacy document", got.CreatedAt)
	}
}

func TestDocumentBackend_KeyOrderOverridesDocumentOrder(t *testing.T) {
	d, dir := newDocumentBackend(t)

	emb := base64.StdEncoding.EncodeToString(vector.Pack([]float32{1, 2}))
	writeDocument(t, dir, "u1userData.json",
		`{"u1":{"processed_data":{"b":"2","a":"1"},"key_order":["a","b"],"embeddings":"`+emb+`","embedding_shape":[2,1]}}`)

	got, err := d.Load(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if keys := got.Record.Keys(); keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Record keys = %v, want [a b]", keys)
	}
}

func TestDocumentBackend_LoadErrors(t *testing.T) {
	three := base64.StdEncoding.EncodeToString(vector.Pack([]float32{1, 2, 3}))

	tests := []struct {
		name    string
		content string
		kind    apperr.Kind
	}{
		{"malformed json", `{"u1": {`, apperr.Corrupt},
		{"uuid key absent", `{"someone-else":{"processed_data":{},"embeddings":""}}`, apperr.NotFound},
		{"inferred shape not divisible", `{"u1":{"processed_data":{"a":"1","b":"2"},"embeddings":"` + three + `"}}`, apperr.Corrupt},
		{"recorded shape mismatch", `{"u1":{"processed_data":{"a":"1"},"embeddings":"` + three + `","embedding_shape":[1,2]}}`, apperr.Corrupt},
		{"bad base64", `{"u1":{"processed_data":{"a":"1"},"embeddings":"!!!"}}`, apperr.Corrupt},
		{"missing processed_data", `{"u1":{"embeddings":""}}`, apperr.Corrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, dir := newDocumentBackend(t)
			writeDocument(t, dir, "u1userData.json", tt.content)

			_, err := d.Load(context.Background(), "u1")
			if apperr.KindOf(err) != tt.kind {
				t.Errorf("Load() error = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func TestDocumentBackend_MissingDocument(t *testing.T) {
	ctx := context.Background()
	d, _ := newDocumentBackend(t)

	if _, err := d.Load(ctx, "nobody"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Load() error = %v, want not found", err)
	}
	if err := d.Delete(ctx, "nobody"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete() error = %v, want not found", err)
	}
}

func TestDocumentBackend_DeleteKeepsUnreadableDocuments(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    apperr.Kind
	}{
		{"another user's entry", `{"someone-else": {}}`, apperr.NotFound},
		{"malformed json", `{"u1": {`, apperr.Corrupt},
		{"entry not an object", `{"u1": 42}`, apperr.Corrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, dir := newDocumentBackend(t)
			writeDocument(t, dir, "u1userData.json", tt.content)

			err := d.Delete(context.Background(), "u1")
			if apperr.KindOf(err) != tt.kind {
				t.Errorf("Delete() error = %v, want kind %v", err, tt.kind)
			}
			got, rerr := os.ReadFile(filepath.Join(dir, "u1userData.json"))
			if rerr != nil {
				t.Fatalf("document removed: %v", rerr)
			}
			if string(got) != tt.content {
				t.Errorf("document changed to %q", got)
			}
		})
	}
}

func TestDocumentBackend_DeleteUndecodableEntry(t *testing.T) {
	d, dir := newDocumentBackend(t)
	writeDocument(t, dir, "u1userData.json", `{"u1":{"embeddings":"!!!"}}`)

	if err := d.Delete(context.Background(), "u1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "u1userData.json")); !os.IsNotExist(err) {
		t.Errorf("document still present: %v", err)
	}
}

func TestDocumentBackend_UpperCaseLegacyName(t *testing.T) {
	const (
		canonical = "6f1c2a3b-4d5e-4f60-8a9b-0c1d2e3f4a5b"
		upper     = "6F1C2A3B-4D5E-4F60-8A9B-0C1D2E3F4A5B"
	)
	ctx := context.Background()
	d, dir := newDocumentBackend(t)

	emb := base64.StdEncoding.EncodeToString(vector.Pack([]float32{1, 0}))
	writeDocument(t, dir, upper+"userData.json",
		`{"`+upper+`":{"processed_data":{"only prompt":"a"},"embeddings":"`+emb+`"}}`)

	got, err := d.Load(ctx, canonical)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.UUID != canonical || len(got.KeyOrder) != 1 {
		t.Errorf("Load() = uuid %q keys %v", got.UUID, got.KeyOrder)
	}

	if err := d.Delete(ctx, canonical); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, upper+"userData.json")); !os.IsNotExist(err) {
		t.Errorf("legacy document still present: %v", err)
	}
}

func TestDocumentBackend_NonUUIDIdsAreCaseSensitive(t *testing.T) {
	d, dir := newDocumentBackend(t)
	emb := base64.StdEncoding.EncodeToString(vector.Pack([]float32{1}))
	writeDocument(t, dir, "USER-1userData.json",
		`{"USER-1":{"processed_data":{"p":"a"},"embeddings":"`+emb+`"}}`)

	if _, err := d.Load(context.Background(), "user-1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Load() error = %v, want not found", err)
	}
}

func TestDocumentBackend_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	d, dir := newDocumentBackend(t)

	for _, uuid := range []string{"bob", "alice"} {
		if err := d.Save(ctx, newTestBundle(t, uuid, 1, 2)); err != nil {
			t.Fatal(err)
		}
	}
	writeDocument(t, dir, "notes.txt", "ignored")

	list, err := d.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].UUID != "alice" || list[1].UUID != "bob" {
		t.Fatalf("List() = %+v", list)
	}

	if err := d.Delete(ctx, "bob"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	list, _ = d.List(ctx)
	if len(list) != 1 || list[0].UUID != "alice" {
		t.Errorf("List() after delete = %+v", list)
	}
}

func TestDocumentBackend_CustomSuffix(t *testing.T) {
	dir := t.TempDir()
	d := NewDocumentBackend(NewDirBlobs(dir), ".bundle.json", nil)

	if err := d.Save(context.Background(), newTestBundle(t, "u1", 1, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "u1.bundle.json")); err != nil {
		t.Errorf("expected u1.bundle.json: %v", err)
	}
	if d.DocumentName("u1") != "u1.bundle.json" {
		t.Errorf("DocumentName() = %q", d.DocumentName("u1"))
	}
}
