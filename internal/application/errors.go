package application

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the requested resource does not exist
	// in the caller's organization.
	ErrNotFound = errors.New("application: not found")
	// ErrForbidden is returned when the acting principal lacks the role an
	// operation requires.
	ErrForbidden = errors.New("application: forbidden")
	// ErrSessionEnded rejects edits to a session already classified Past.
	ErrSessionEnded = errors.New("application: session has ended")
	// ErrSessionCancelled rejects operations on a cancelled session.
	ErrSessionCancelled = errors.New("application: session is cancelled")
	// ErrSessionCompleted rejects cancelling an already completed session.
	ErrSessionCompleted = errors.New("application: session is completed")
	// ErrScanWindowClosed rejects check-ins on any day other than the
	// session's own date.
	ErrScanWindowClosed = errors.New("application: scan window closed")
	// ErrNotOnRoster rejects check-ins from users the session roster does
	// not carry.
	ErrNotOnRoster = errors.New("application: user not on roster")
	// ErrAlreadyCheckedIn rejects a second check-in for the same session
	// and user.
	ErrAlreadyCheckedIn = errors.New("application: already checked in")
	// ErrScanCodeMismatch rejects check-ins carrying a stale or foreign
	// scan code.
	ErrScanCodeMismatch = errors.New("application: scan code mismatch")
	// ErrOutsideGeofence rejects physical check-ins whose position falls
	// outside the session's geofence.
	ErrOutsideGeofence = errors.New("application: outside geofence")
)

// ValidationError captures field level validation issues that callers can
// surface to users. Field keys match the JSON field names of the API.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a
// field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// errOrNil converts an empty accumulator into a nil error.
func (v *ValidationError) errOrNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}
