package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"recruitment-tracker-go/internal/apperr"
)

// classify turns a driver error into an apperr code the service layer can act
// on. Anything unrecognised is INTERNAL.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var domain *apperr.Error
	if errors.As(err, &domain) {
		return err
	}
	switch {
	case isUnavailable(err):
		return apperr.Wrap(apperr.CodeStorageUnavailable, op, err)
	case isUniqueViolation(err):
		return apperr.Wrap(apperr.CodeConflict, op, err)
	case isForeignKeyViolation(err):
		return apperr.Wrap(apperr.CodeValidation, op+": referenced record does not exist", err)
	default:
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return true
		}
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}

// expectOneRow turns a guarded UPDATE that matched nothing into CONFLICT: the
// row moved past the version the caller read.
func expectOneRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify("rows affected", err)
	}
	if n != 1 {
		return apperr.WithMetadata(apperr.CodeConflict, resource+" was modified concurrently", map[string]string{
			"resource": resource,
			"id":       id,
		})
	}
	return nil
}
