package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{
		"title":     "title is required",
		"startDate": "must be a YYYY-MM-DD date",
	}}
	if got := withFields.Error(); got != "validation failed: startDate, title" {
		t.Fatalf("expected sorted field list, got %q", got)
	}
}

func TestValidationError_AddKeepsFirstMessage(t *testing.T) {
	t.Parallel()

	vErr := &ValidationError{}
	vErr.add("roster", "first")
	vErr.add("roster", "second")
	if got := vErr.FieldErrors["roster"]; got != "first" {
		t.Fatalf("expected first message kept, got %q", got)
	}
}

func TestValidationError_MergeAndErrOrNil(t *testing.T) {
	t.Parallel()

	vErr := &ValidationError{}
	if err := vErr.errOrNil(); err != nil {
		t.Fatalf("expected nil for empty accumulator, got %v", err)
	}

	other := &ValidationError{FieldErrors: map[string]string{"slug": "already in use"}}
	vErr.merge(other)
	vErr.merge(nil)
	if !vErr.HasErrors() {
		t.Fatalf("expected merged fields to register")
	}
	if err := vErr.errOrNil(); err == nil {
		t.Fatalf("expected non-nil after merge")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrForbidden, "forbidden"},
		{ErrNotFound, "not_found"},
		{ErrSessionEnded, "session_ended"},
		{ErrSessionCancelled, "session_cancelled"},
		{ErrSessionCompleted, "session_completed"},
		{ErrScanWindowClosed, "scan_window_closed"},
		{ErrNotOnRoster, "not_on_roster"},
		{ErrAlreadyCheckedIn, "already_checked_in"},
		{ErrScanCodeMismatch, "scan_code_mismatch"},
		{ErrOutsideGeofence, "outside_geofence"},
		{fmt.Errorf("check in to session s-1: %w", ErrScanWindowClosed), "scan_window_closed"},
		{&ValidationError{FieldErrors: map[string]string{"title": "required"}}, "validation"},
		{errors.New("disk on fire"), "unexpected"},
	}

	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("expected kind %q for %v, got %q", tc.want, tc.err, got)
		}
	}
}
