// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist or is not in a
// state that allows the requested operation.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent write raced a uniqueness constraint.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates malformed input rejected at the boundary.
var ErrValidation = errors.New("validation failed")

// ErrInvalidStatus indicates a status value outside the allowed set.
var ErrInvalidStatus = errors.New("invalid status")

// ErrUpstreamUnavailable indicates the store or an external collaborator
// could not be reached. Callers may retry or degrade.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")
