package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/IntentMarket/internal/domain"
)

// SQLSTATE codes mapped onto domain errors.
const (
	codeUniqueViolation     = "23505"
	codeInvalidText         = "22P02" // malformed UUID in a lookup
	codeCheckViolation      = "23514"
	codeAdminShutdown       = "57P01"
	codeCannotConnectNow    = "57P03"
	codeTooManyConnections  = "53300"
	classConnectionFailures = "08"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// nullIfEmpty returns nil for empty strings (for nullable columns).
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// pgTextArray converts a string slice to a pgx-compatible text array.
// nil slices become empty arrays to avoid SQL NULL.
func pgTextArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// orEmpty returns items unchanged if non-nil, or an empty slice if nil, so
// JSON encodes [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// mapErr wraps err with a formatted message and the matching domain
// sentinel: missing rows and malformed ids become ErrNotFound, unique
// violations ErrConflict, check violations ErrValidation, and connection
// failures or timeouts ErrUpstreamUnavailable.
func mapErr(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			return fmt.Errorf("%s: %w: %s", msg, domain.ErrConflict, pgErr.ConstraintName)
		case pgErr.Code == codeInvalidText:
			return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
		case pgErr.Code == codeCheckViolation:
			return fmt.Errorf("%s: %w: %s", msg, domain.ErrValidation, pgErr.ConstraintName)
		case pgErr.Code == codeAdminShutdown,
			pgErr.Code == codeCannotConnectNow,
			pgErr.Code == codeTooManyConnections,
			len(pgErr.Code) == 5 && pgErr.Code[:2] == classConnectionFailures:
			return fmt.Errorf("%s: %w: %w", msg, domain.ErrUpstreamUnavailable, err)
		}
		return fmt.Errorf("%s: %w", msg, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", msg, domain.ErrUpstreamUnavailable, err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}

// execExpectOne verifies that an Exec affected exactly one row. If not
// (and err is nil), it returns domain.ErrNotFound with the given message.
func execExpectOne(tag pgconn.CommandTag, err error, format string, args ...any) error {
	if err != nil {
		return mapErr(err, format, args...)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrNotFound)
	}
	return nil
}
