package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	googleuuid "github.com/google/uuid"
	"github.com/hyperengineering/recollect/internal/apperr"
	"github.com/hyperengineering/recollect/internal/conversation"
	"github.com/hyperengineering/recollect/internal/vector"
)

// DefaultDocumentSuffix is appended to the uuid to name a fallback document.
const DefaultDocumentSuffix = "userData.json"

// documentEntry is the per-user object inside a fallback document. Older
// documents carry only processed_data and embeddings.
type documentEntry struct {
	ProcessedData  json.RawMessage `json:"processed_data"`
	KeyOrder       []string        `json:"key_order,omitempty"`
	Embeddings     string          `json:"embeddings"`
	EmbeddingShape *vector.Shape   `json:"embedding_shape,omitempty"`
	CreatedAt      string          `json:"created_at,omitempty"`
	Revision       string          `json:"revision,omitempty"`
}

// DocumentBackend is the fallback backend: one JSON document per user,
// keyed by uuid, held in a Blobs store.
type DocumentBackend struct {
	blobs  Blobs
	suffix string
	logger *slog.Logger
}

// NewDocumentBackend creates a DocumentBackend. An empty suffix uses
// DefaultDocumentSuffix.
func NewDocumentBackend(blobs Blobs, suffix string, logger *slog.Logger) *DocumentBackend {
	if suffix == "" {
		suffix = DefaultDocumentSuffix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentBackend{
		blobs:  blobs,
		suffix: suffix,
		logger: logger.With("component", "store", "backend", BackendDocument),
	}
}

// Name returns "document".
func (d *DocumentBackend) Name() string { return BackendDocument }

// DocumentName returns the name of the document holding uuid's bundle.
func (d *DocumentBackend) DocumentName(uuid string) string {
	return uuid + d.suffix
}

// Location describes where documents are stored.
func (d *DocumentBackend) Location() string { return d.blobs.Location() }

// Save writes the bundle as a document, replacing any previous one.
func (d *DocumentBackend) Save(ctx context.Context, b *Bundle) error {
	const op = "store.save"

	if err := b.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(b.Record)
	if err != nil {
		return &apperr.Error{Kind: apperr.SaveFailed, Op: op, Backend: d.Name(), UUID: b.UUID, Err: err}
	}
	shape := b.Shape()
	entry := documentEntry{
		ProcessedData:  data,
		KeyOrder:       b.KeyOrder,
		Embeddings:     base64.StdEncoding.EncodeToString(b.Matrix.Bytes()),
		EmbeddingShape: &shape,
		Revision:       b.Revision,
	}
	if !b.CreatedAt.IsZero() {
		entry.CreatedAt = b.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	doc, err := json.Marshal(map[string]documentEntry{b.UUID: entry})
	if err != nil {
		return &apperr.Error{Kind: apperr.SaveFailed, Op: op, Backend: d.Name(), UUID: b.UUID, Err: err}
	}

	if err := d.blobs.Put(ctx, d.DocumentName(b.UUID), doc); err != nil {
		return withContext(err, d.Name(), b.UUID)
	}

	d.logger.Debug("document written", "uuid", b.UUID, "document", d.DocumentName(b.UUID))
	return nil
}

// Load reads and decodes uuid's document.
func (d *DocumentBackend) Load(ctx context.Context, uuid string) (*Bundle, error) {
	const op = "store.load"

	name, entry, err := d.readEntry(ctx, op, uuid)
	if err != nil {
		return nil, err
	}

	b, err := decodeEntry(uuid, entry)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.Corrupt, Op: op, Backend: d.Name(), UUID: uuid, Err: err}
	}
	b.Source = d.Name()
	d.logger.Debug("document read", "uuid", uuid, "document", name)
	return b, nil
}

// readEntry finds uuid's document and returns its name and the entry stored
// under uuid. Documents written before ids were normalised may be named
// after the upper-case form of a UUID; that name is tried when the
// canonical one is missing.
func (d *DocumentBackend) readEntry(ctx context.Context, op, uuid string) (string, documentEntry, error) {
	name := d.DocumentName(uuid)
	raw, err := d.blobs.Get(ctx, name)
	if err != nil && apperr.KindOf(err) == apperr.NotFound {
		if legacy, ok := legacyID(uuid); ok {
			if lraw, lerr := d.blobs.Get(ctx, d.DocumentName(legacy)); lerr == nil {
				name, raw, err = d.DocumentName(legacy), lraw, nil
				d.logger.Debug("legacy document name matched", "uuid", uuid, "document", name)
			}
		}
	}
	if err != nil {
		return "", documentEntry{}, withContext(err, d.Name(), uuid)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", documentEntry{}, &apperr.Error{Kind: apperr.Corrupt, Op: op, Backend: d.Name(), UUID: uuid, Err: fmt.Errorf("decode document: %w", err)}
	}
	entryRaw, ok := doc[uuid]
	if !ok {
		if legacy, isUUID := legacyID(uuid); isUUID {
			entryRaw, ok = doc[legacy]
		}
	}
	if !ok {
		return "", documentEntry{}, &apperr.Error{Kind: apperr.NotFound, Op: op, Backend: d.Name(), UUID: uuid, Msg: "document does not contain uuid"}
	}

	var entry documentEntry
	if err := json.Unmarshal(entryRaw, &entry); err != nil {
		return "", documentEntry{}, &apperr.Error{Kind: apperr.Corrupt, Op: op, Backend: d.Name(), UUID: uuid, Err: fmt.Errorf("decode entry: %w", err)}
	}
	return name, entry, nil
}

// legacyID returns the upper-case spelling of a canonical UUID. Other ids
// are case-sensitive and have no alternative spelling.
func legacyID(id string) (string, bool) {
	if _, err := googleuuid.Parse(id); err != nil {
		return "", false
	}
	upper := strings.ToUpper(id)
	return upper, upper != id
}

func decodeEntry(uuid string, entry documentEntry) (*Bundle, error) {
	if len(entry.ProcessedData) == 0 {
		return nil, fmt.Errorf("processed_data missing")
	}

	var rec conversation.Record
	if err := json.Unmarshal(entry.ProcessedData, &rec); err != nil {
		return nil, fmt.Errorf("decode processed_data: %w", err)
	}

	// Without key_order the document order of processed_data is used.
	keyOrder := entry.KeyOrder
	record := &rec
	if keyOrder == nil {
		keyOrder = rec.Keys()
	} else {
		var err error
		if record, err = conversation.RecordFromMap(keyOrder, rec.Map()); err != nil {
			return nil, err
		}
	}

	raw, err := base64.StdEncoding.DecodeString(entry.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}

	var shape vector.Shape
	if entry.EmbeddingShape != nil {
		shape = *entry.EmbeddingShape
	} else if shape, err = vector.InferShape(len(raw), len(keyOrder)); err != nil {
		return nil, err
	}

	matrix, err := vector.Decode(raw, shape)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		UUID:     uuid,
		Record:   record,
		KeyOrder: keyOrder,
		Matrix:   matrix,
		Revision: entry.Revision,
	}
	if entry.CreatedAt != "" {
		if b.CreatedAt, err = time.Parse(time.RFC3339Nano, entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("decode created_at: %w", err)
		}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Delete removes uuid's document. The document is read first: one that
// cannot be decoded, or that holds another user's entry, is left in place.
func (d *DocumentBackend) Delete(ctx context.Context, uuid string) error {
	const op = "store.delete"

	name, _, err := d.readEntry(ctx, op, uuid)
	if err != nil {
		return err
	}
	if err := d.blobs.Delete(ctx, name); err != nil {
		return withContext(err, d.Name(), uuid)
	}
	d.logger.Debug("document deleted", "uuid", uuid, "document", name)
	return nil
}

// List returns one summary per document. Only the uuid is filled in;
// reading each document to report its shape is left to Load.
func (d *DocumentBackend) List(ctx context.Context) ([]Summary, error) {
	names, err := d.blobs.List(ctx, "*"+d.suffix)
	if err != nil {
		return nil, withContext(err, d.Name(), "")
	}
	out := make([]Summary, 0, len(names))
	for _, name := range names {
		uuid := strings.TrimSuffix(name, d.suffix)
		if uuid == "" {
			continue
		}
		out = append(out, Summary{UUID: uuid, Source: d.Name()})
	}
	return out, nil
}

// withContext fills in the backend and uuid of a blobs error.
func withContext(err error, backend, uuid string) error {
	if e, ok := err.(*apperr.Error); ok {
		c := *e
		c.Backend = backend
		c.UUID = uuid
		return &c
	}
	return &apperr.Error{Kind: apperr.Unavailable, Backend: backend, UUID: uuid, Err: err}
}
