package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrConcurrentUpdate is returned when a row changed between read and write
var ErrConcurrentUpdate = errors.New("row changed concurrently")

// ErrorClass groups store failures by how the caller should react
type ErrorClass int

const (
	// ClassNone means the error is nil or not a store failure
	ClassNone ErrorClass = iota
	// ClassTransient failures may succeed if the whole unit of work is retried
	ClassTransient
	// ClassUnavailable failures mean the store cannot be reached
	ClassUnavailable
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassUnavailable:
		return "unavailable"
	default:
		return "none"
	}
}

// ClassifyError maps driver errors from either backend onto an ErrorClass
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}

	if errors.Is(err, ErrConcurrentUpdate) {
		return ClassTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "55P03":
			return ClassTransient
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "57P03", pgErr.Code == "53300":
			return ClassUnavailable
		}
		return ClassNone
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return ClassTransient
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return ClassUnavailable
		}
		return ClassNone
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return ClassUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassUnavailable
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return ClassUnavailable
	}

	return ClassNone
}

// IsTransient reports whether retrying the unit of work may succeed
func IsTransient(err error) bool {
	return ClassifyError(err) == ClassTransient
}

// IsUnavailable reports whether the store could not be reached
func IsUnavailable(err error) bool {
	return ClassifyError(err) == ClassUnavailable
}
