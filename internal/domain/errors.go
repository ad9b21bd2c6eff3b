// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a request failed field validation.
var ErrValidation = errors.New("validation failed")

// ErrInvalidTransition indicates a delivery status change that the
// lifecycle state machine does not permit.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrConflict indicates a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource was modified by another request")
