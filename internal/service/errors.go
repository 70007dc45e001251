// Package service implements the bonus ledger, the storage cell
// registry and the reporting on top of the repositories.  Services own
// every business rule; handlers only translate HTTP to calls.
package service

import (
	"errors"
	"fmt"
)

// ErrNotFound is the root of every "missing" error below.
var ErrNotFound = errors.New("not found")

var (
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrCellNotFound       = fmt.Errorf("cell %w", ErrNotFound)
	ErrAssignmentNotFound = fmt.Errorf("assignment %w", ErrNotFound)
)

var (
	// ErrInvalidAmount rejects negative amounts and non-positive counts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidInput rejects malformed requests: empty ids, a bad month.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidSetting rejects out-of-range settings and unknown enum
	// values such as roles, periods or storage types.
	ErrInvalidSetting = errors.New("invalid setting")
	// ErrAssignmentConflict means the cell is not in a state that allows
	// the requested transition.
	ErrAssignmentConflict = errors.New("assignment conflict")
	// ErrForbidden means the caller is not the party allowed to act.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means a unique value is already taken.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable means an optional backend (Redis) is not configured.
	ErrUnavailable = errors.New("unavailable")
)

// ErrSettingNotFound is returned for an unknown settings field.  It is
// both a NotFound and an InvalidSetting.
var ErrSettingNotFound = fmt.Errorf("setting %w: %w", ErrNotFound, ErrInvalidSetting)
