package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hyperengineering/recollect/internal/apperr"
	"github.com/hyperengineering/recollect/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

type problemType struct {
	typeURI string
	title   string
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]problemType{
	http.StatusUnauthorized: {
		typeURI: "https://recollect.dev/errors/unauthorized",
		title:   "Unauthorized",
	},
	http.StatusBadRequest: {
		typeURI: "https://recollect.dev/errors/bad-request",
		title:   "Bad Request",
	},
	http.StatusNotFound: {
		typeURI: "https://recollect.dev/errors/not-found",
		title:   "Not Found",
	},
	http.StatusRequestEntityTooLarge: {
		typeURI: "https://recollect.dev/errors/payload-too-large",
		title:   "Payload Too Large",
	},
	http.StatusInternalServerError: {
		typeURI: "https://recollect.dev/errors/internal-error",
		title:   "Internal Server Error",
	},
	http.StatusUnprocessableEntity: {
		typeURI: "https://recollect.dev/errors/validation-error",
		title:   "Validation Error",
	},
	http.StatusServiceUnavailable: {
		typeURI: "https://recollect.dev/errors/service-unavailable",
		title:   "Service Unavailable",
	},
	http.StatusTooManyRequests: {
		typeURI: "https://recollect.dev/errors/rate-limit",
		title:   "Too Many Requests",
	},
}

func lookupProblemType(status int) problemType {
	if pt, ok := problemTypes[status]; ok {
		return pt
	}
	return problemType{
		typeURI: "https://recollect.dev/errors/unknown",
		title:   http.StatusText(status),
	}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt := lookupProblemType(status)
	p := Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := problemTypes[http.StatusUnprocessableEntity]

	p := ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// statusForError picks the response status for a domain error. A retrieval
// failure caused by an unreachable or unmigrated backend is reported as 503.
func statusForError(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}

	switch apperr.KindOf(err) {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.SchemaMissing, apperr.Unavailable:
		return http.StatusServiceUnavailable
	case apperr.Retrieval:
		if apperr.Has(err, apperr.Unavailable) || apperr.Has(err, apperr.SchemaMissing) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// detailForError returns a client-safe detail. Validation messages describe
// the client's input and are passed through. Server failures carry the
// messages of the classified errors in the chain; untagged causes such as
// driver errors are never included.
func detailForError(status int, err error) string {
	var e *apperr.Error
	switch status {
	case http.StatusBadRequest:
		if errors.As(err, &e) {
			if e.Msg != "" {
				return e.Msg
			}
			if e.Err != nil {
				return e.Err.Error()
			}
		}
		return "Invalid request"
	case http.StatusNotFound:
		return "No conversation data found for user"
	case http.StatusRequestEntityTooLarge:
		return "Request body too large"
	case http.StatusServiceUnavailable:
		if apperr.Has(err, apperr.SchemaMissing) {
			return withMessages("Storage schema missing", err)
		}
		if apperr.Has(err, apperr.Unavailable) {
			return withMessages("Storage backend unavailable", err)
		}
		return "Storage backend unavailable"
	}
	switch apperr.KindOf(err) {
	case apperr.Embedding:
		return "Embedding generation failed"
	case apperr.Corrupt:
		return withMessages("Stored conversation data is corrupt", err)
	case apperr.Retrieval:
		return withMessages("Search failed", err)
	case apperr.IndexOutOfRange:
		return "Search failed"
	}
	// Never expose internal error details to client
	return "Internal Server Error"
}

// withMessages appends the Msg of every *apperr.Error in err's chain to base.
func withMessages(base string, err error) string {
	var msgs []string
	for err != nil {
		var e *apperr.Error
		if !errors.As(err, &e) {
			break
		}
		if e.Msg != "" {
			msgs = append(msgs, e.Msg)
		}
		err = e.Err
	}
	if len(msgs) == 0 {
		return base
	}
	return base + ": " + strings.Join(msgs, ": ")
}

// MapError converts domain errors to Problem Details responses.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"path", r.URL.Path,
			"request_id", GetRequestID(r.Context()),
			"kind", apperr.KindOf(err).String(),
			"error", err,
		)
	}
	WriteProblem(w, r, status, detailForError(status, err))
}
