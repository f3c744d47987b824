// Package apperr defines the tagged error type shared by the indexing,
// persistence and retrieval layers. Each error carries an explicit Kind that
// callers switch on when deciding whether to fall back to another backend.
package apperr

import (
	"errors"
	"strings"
)

// Kind classifies a failure.
type Kind uint8

const (
	Internal Kind = iota
	Validation
	NotFound
	SchemaMissing
	Unavailable
	Corrupt
	SaveFailed
	Embedding
	Retrieval
	IndexOutOfRange
)

var kindNames = map[Kind]string{
	Internal:        "internal",
	Validation:      "validation",
	NotFound:        "not_found",
	SchemaMissing:   "schema_missing",
	Unavailable:     "unavailable",
	Corrupt:         "corrupt",
	SaveFailed:      "save_failed",
	Embedding:       "embedding",
	Retrieval:       "retrieval",
	IndexOutOfRange: "index_out_of_range",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Sentinels for errors.Is matching. An *Error of a given kind matches the
// sentinel of that kind.
var (
	ErrInternal        = errors.New("internal error")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrSchemaMissing   = errors.New("storage schema missing")
	ErrUnavailable     = errors.New("backend unavailable")
	ErrCorrupt         = errors.New("corrupt data")
	ErrSaveFailed      = errors.New("save failed")
	ErrEmbedding       = errors.New("embedding failed")
	ErrRetrieval       = errors.New("retrieval failed")
	ErrIndexOutOfRange = errors.New("index out of range")
)

var sentinels = map[Kind]error{
	Internal:        ErrInternal,
	Validation:      ErrValidation,
	NotFound:        ErrNotFound,
	SchemaMissing:   ErrSchemaMissing,
	Unavailable:     ErrUnavailable,
	Corrupt:         ErrCorrupt,
	SaveFailed:      ErrSaveFailed,
	Embedding:       ErrEmbedding,
	Retrieval:       ErrRetrieval,
	IndexOutOfRange: ErrIndexOutOfRange,
}

// Error is a classified failure. Op names the operation ("store.load"),
// Backend the storage substrate when one is involved.
type Error struct {
	Kind    Kind
	Op      string
	Backend string
	UUID    string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	write := func(s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(s)
	}
	write(e.Op)
	write(e.Backend)
	if e.UUID != "" {
		write("uuid " + e.UUID)
	}
	write(e.Msg)
	if e.Err != nil {
		write(e.Err.Error())
	}
	if e.Msg == "" && e.Err == nil {
		write(sentinels[e.Kind].Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New returns an error of the given kind wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Msg returns an error of the given kind with a message and no cause.
func Msg(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// Internal when there is none. A nil error has kind Internal too; callers
// check err != nil first.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Has reports whether any *Error in err's chain has the given kind.
func Has(err error, kind Kind) bool {
	return errors.Is(err, sentinels[kind])
}
