package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"

	"github.com/hyperengineering/recollect/internal/apperr"
)

// Backend names reported in errors, logs and results.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDocument = "document"
)

// classify maps a database/sql error to a Kind. Errors it does not
// recognize are reported as fallback.
func classify(err error, fallback apperr.Kind) apperr.Kind {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFound
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return apperr.Unavailable
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "42P01": // undefined_table
			return apperr.SchemaMissing
		case pqErr.Code.Class() == "08", // connection_exception
			pqErr.Code == "57P01", // admin_shutdown
			pqErr.Code == "57P03": // cannot_connect_now
			return apperr.Unavailable
		}
		return fallback
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.Unavailable
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such table"):
		return apperr.SchemaMissing
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "unable to open database"):
		return apperr.Unavailable
	}
	return fallback
}

// sqlError wraps err with the classified kind.
func sqlError(op, backend, uuid string, err error, fallback apperr.Kind) error {
	return &apperr.Error{
		Kind:    classify(err, fallback),
		Op:      op,
		Backend: backend,
		UUID:    uuid,
		Err:     err,
	}
}
