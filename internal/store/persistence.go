package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/recollect/internal/apperr"
	"github.com/hyperengineering/recollect/internal/conversation"
	"github.com/hyperengineering/recollect/internal/vector"
)

// DeleteStatus reports which backend a delete removed the bundle from.
type DeleteStatus string

const (
	DeletedFromPrimary  DeleteStatus = "deleted_from_primary"
	DeletedFromFallback DeleteStatus = "deleted_from_fallback"
	NotFoundAnywhere    DeleteStatus = "not_found_anywhere"
)

// SaveResult describes a successful save.
type SaveResult struct {
	UUID      string
	Revision  string
	CreatedAt time.Time
	Shape     vector.Shape
	Backend   string
}

// DeleteResult describes the outcome of a delete. A bundle that exists in
// neither backend is a normal result with Success false.
type DeleteResult struct {
	UUID          string
	Success       bool
	Status        DeleteStatus
	PrimaryError  error
	FallbackError error
}

// MirrorResult describes a bundle copied from the primary to the fallback.
type MirrorResult struct {
	UUID     string
	Revision string
	Shape    vector.Shape
	Backend  string
}

// ErrBackendRequired is returned by NewPersistence when a backend is nil.
var ErrBackendRequired = errors.New("primary and fallback backends are required")

// Persistence coordinates the primary and fallback backends. Saves go to the
// primary only. Loads and deletes fall back when the primary fails, except
// when the primary reports corrupt data.
type Persistence struct {
	primary  Backend
	fallback Backend
	logger   *slog.Logger
	now      func() time.Time
}

// NewPersistence creates a Persistence over the two backends.
func NewPersistence(primary, fallback Backend, logger *slog.Logger) (*Persistence, error) {
	if primary == nil || fallback == nil {
		return nil, ErrBackendRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Persistence{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With("component", "persistence"),
		now:      time.Now,
	}, nil
}

// Primary returns the primary backend.
func (p *Persistence) Primary() Backend { return p.primary }

// Fallback returns the fallback backend.
func (p *Persistence) Fallback() Backend { return p.fallback }

// Save replaces uuid's bundle in the primary backend with a fresh revision.
func (p *Persistence) Save(ctx context.Context, uuid string, record *conversation.Record, keyOrder []string, matrix *vector.Matrix) (*SaveResult, error) {
	b := &Bundle{
		UUID:      uuid,
		Record:    record,
		KeyOrder:  keyOrder,
		Matrix:    matrix,
		CreatedAt: p.now().UTC(),
		Revision:  ulid.Make().String(),
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	if err := p.primary.Save(ctx, b); err != nil {
		return nil, err
	}

	p.logger.Info("bundle saved",
		"uuid", uuid,
		"backend", p.primary.Name(),
		"rows", b.Matrix.Rows(),
		"dimensions", b.Matrix.Cols(),
		"revision", b.Revision,
	)

	return &SaveResult{
		UUID:      uuid,
		Revision:  b.Revision,
		CreatedAt: b.CreatedAt,
		Shape:     b.Shape(),
		Backend:   p.primary.Name(),
	}, nil
}

// Load returns uuid's bundle from the primary, or from the fallback when the
// primary fails with anything but corrupt data.
func (p *Persistence) Load(ctx context.Context, uuid string) (*Bundle, error) {
	b, perr := p.primary.Load(ctx, uuid)
	if perr == nil {
		return b, nil
	}
	if apperr.KindOf(perr) == apperr.Corrupt {
		p.logger.Error("primary bundle corrupt", "uuid", uuid, "backend", p.primary.Name(), "error", perr)
		return nil, perr
	}

	p.logger.Warn("primary load failed, trying fallback",
		"uuid", uuid,
		"primary", p.primary.Name(),
		"fallback", p.fallback.Name(),
		"error", perr,
	)

	b, ferr := p.fallback.Load(ctx, uuid)
	if ferr == nil {
		return b, nil
	}
	return nil, combine("store.load", uuid, perr, ferr)
}

// combine builds the error for a miss in both backends. Two plain misses
// are NotFound; otherwise the fallback's kind wins.
func combine(op, uuid string, perr, ferr error) error {
	kind := apperr.KindOf(ferr)
	if isMiss(perr) && isMiss(ferr) {
		kind = apperr.NotFound
	}
	return &apperr.Error{Kind: kind, Op: op, UUID: uuid, Err: errors.Join(ferr, perr)}
}

func isMiss(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.NotFound, apperr.SchemaMissing:
		return true
	}
	return false
}

// Delete removes uuid's bundle from the primary, or from the fallback when
// the primary fails. Deleting twice reports not_found_anywhere.
func (p *Persistence) Delete(ctx context.Context, uuid string) (*DeleteResult, error) {
	res := &DeleteResult{UUID: uuid}

	perr := p.primary.Delete(ctx, uuid)
	if perr == nil {
		res.Success = true
		res.Status = DeletedFromPrimary
		p.logger.Info("bundle deleted", "uuid", uuid, "backend", p.primary.Name())
		return res, nil
	}
	res.PrimaryError = perr

	if !isMiss(perr) {
		p.logger.Warn("primary delete failed, trying fallback",
			"uuid", uuid,
			"primary", p.primary.Name(),
			"fallback", p.fallback.Name(),
			"error", perr,
		)
	}

	ferr := p.fallback.Delete(ctx, uuid)
	if ferr == nil {
		res.Success = true
		res.Status = DeletedFromFallback
		p.logger.Info("bundle deleted", "uuid", uuid, "backend", p.fallback.Name())
		return res, nil
	}
	res.FallbackError = ferr
	res.Status = NotFoundAnywhere

	if apperr.KindOf(ferr) == apperr.NotFound {
		p.logger.Info("bundle not found for delete", "uuid", uuid)
		return res, nil
	}
	return res, combine("store.delete", uuid, perr, ferr)
}

// Mirror copies uuid's bundle from the primary into the fallback. It never
// reads from the fallback.
func (p *Persistence) Mirror(ctx context.Context, uuid string) (*MirrorResult, error) {
	b, err := p.primary.Load(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if err := p.fallback.Save(ctx, b); err != nil {
		return nil, err
	}

	p.logger.Info("bundle mirrored",
		"uuid", uuid,
		"from", p.primary.Name(),
		"to", p.fallback.Name(),
		"revision", b.Revision,
	)

	return &MirrorResult{
		UUID:     uuid,
		Revision: b.Revision,
		Shape:    b.Shape(),
		Backend:  p.fallback.Name(),
	}, nil
}

// List returns the summaries of both backends, primary first.
func (p *Persistence) List(ctx context.Context) ([]Summary, error) {
	primary, err := p.primary.List(ctx)
	if err != nil {
		return nil, err
	}
	fallback, err := p.fallback.List(ctx)
	if err != nil {
		return nil, err
	}
	return append(primary, fallback...), nil
}

// Stats holds the number of bundles in each backend.
type Stats struct {
	PrimaryBackend  string `json:"primary_backend"`
	PrimaryCount    int64  `json:"primary_count"`
	FallbackBackend string `json:"fallback_backend"`
	FallbackCount   int64  `json:"fallback_count"`
}

// Stats counts the bundles held by each backend.
func (p *Persistence) Stats(ctx context.Context) (*Stats, error) {
	primary, err := countBundles(ctx, p.primary)
	if err != nil {
		return nil, err
	}
	fallback, err := countBundles(ctx, p.fallback)
	if err != nil {
		return nil, err
	}
	return &Stats{
		PrimaryBackend:  p.primary.Name(),
		PrimaryCount:    primary,
		FallbackBackend: p.fallback.Name(),
		FallbackCount:   fallback,
	}, nil
}

func countBundles(ctx context.Context, b Backend) (int64, error) {
	if c, ok := b.(Counter); ok {
		return c.Count(ctx)
	}
	list, err := b.List(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// Ping checks the primary backend when it supports it.
func (p *Persistence) Ping(ctx context.Context) error {
	if pinger, ok := p.primary.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
