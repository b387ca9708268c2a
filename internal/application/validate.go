package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/example/attendance-tracker/internal/recurrence"
	"github.com/example/attendance-tracker/internal/session"
)

// sharedFieldValues are the fields a batch and a one-off session
// validate identically.
type sharedFieldValues struct {
	Title        string
	SessionType  string
	LocationSpec string
	RadiusMeters int
	VirtualLink  string
	Roster       []RosterEntryInput
}

// validateSharedFields checks title, type-conditional location and link
// requirements, and roster mode agreement. It returns the parsed
// session type, or "" when the type itself failed.
func validateSharedFields(values sharedFieldValues, vErr *ValidationError) session.Type {
	if strings.TrimSpace(values.Title) == "" {
		vErr.add("title", "title is required")
	}

	sessionType, ok := session.ParseType(values.SessionType)
	if !ok {
		vErr.add("sessionType", "must be one of PHYSICAL, REMOTE, HYBRID")
		return ""
	}

	if sessionType.RequiresLocation() {
		if strings.TrimSpace(values.LocationSpec) == "" {
			vErr.add("locationSpec", "required for physical attendance")
		}
		if values.RadiusMeters <= 0 {
			vErr.add("radiusMeters", "must be a positive number of meters")
		}
	}
	if sessionType.RequiresVirtualLink() {
		if values.VirtualLink == "" {
			vErr.add("virtualLink", "required for remote attendance")
		} else if _, err := url.ParseRequestURI(values.VirtualLink); err != nil {
			vErr.add("virtualLink", "must be a valid URL")
		}
	}

	validateRosterEntries(values.Roster, sessionType, vErr)
	return sessionType
}

func validateRosterEntries(entries []RosterEntryInput, sessionType session.Type, vErr *ValidationError) {
	seen := make(map[string]struct{}, len(entries))
	var duplicates []string
	for _, entry := range entries {
		if entry.UserID == "" {
			vErr.add("roster", "entries require a userId")
			continue
		}
		if _, dup := seen[entry.UserID]; dup {
			duplicates = append(duplicates, entry.UserID)
			continue
		}
		seen[entry.UserID] = struct{}{}

		mode, hasMode := session.ParseMode(entry.Mode)
		switch {
		case sessionType == session.TypeHybrid:
			if !hasMode {
				vErr.add("roster", fmt.Sprintf("attendee %s requires a mode on hybrid sessions", entry.UserID))
			}
		case entry.Mode == "":
			// single-mode entries may omit the mode
		case !hasMode:
			vErr.add("roster", fmt.Sprintf("attendee %s carries an unknown mode", entry.UserID))
		default:
			if single, isSingle := sessionType.SingleMode(); isSingle && mode != single {
				vErr.add("roster", fmt.Sprintf("attendee %s mode disagrees with the session type", entry.UserID))
			}
		}
	}
	if len(duplicates) > 0 {
		vErr.add("roster", "duplicate user ids: "+strings.Join(duplicates, ", "))
	}
}

// mergeDescriptorError folds recurrence validation failures into the
// accumulator; non-descriptor errors pass through unchanged.
func mergeDescriptorError(err error, vErr *ValidationError) error {
	if err == nil {
		return nil
	}
	var dErr *recurrence.DescriptorError
	if errors.As(err, &dErr) {
		for field, msg := range dErr.Fields {
			vErr.add(field, msg)
		}
		return nil
	}
	return err
}

func rosterUserIDs(entries []RosterEntryInput) []string {
	ids := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.UserID == "" {
			continue
		}
		if _, dup := seen[entry.UserID]; dup {
			continue
		}
		seen[entry.UserID] = struct{}{}
		ids = append(ids, entry.UserID)
	}
	return ids
}

// ensureRosterUsersExist records a validation error naming every roster
// id the organization's directory does not know.
func ensureRosterUsersExist(ctx context.Context, users UserDirectory, orgID string, entries []RosterEntryInput, vErr *ValidationError) error {
	if users == nil {
		return nil
	}
	ids := rosterUserIDs(entries)
	if len(ids) == 0 {
		return nil
	}
	missing, err := users.MissingUserIDs(ctx, orgID, ids)
	if err != nil {
		return fmt.Errorf("verify roster users: %w", err)
	}
	if len(missing) > 0 {
		vErr.add("roster", "unknown user ids: "+strings.Join(missing, ", "))
	}
	return nil
}

// buildRoster snapshots directory details onto the roster entries and
// stamps modes: single-mode sessions force their own mode, hybrid ones
// keep the per-entry choice.
func buildRoster(ctx context.Context, users UserDirectory, orgID string, sessionType session.Type, entries []RosterEntryInput) ([]session.Attendee, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	var records map[string]User
	if users != nil {
		found, err := users.UsersByID(ctx, orgID, rosterUserIDs(entries))
		if err != nil {
			return nil, fmt.Errorf("load roster users: %w", err)
		}
		records = make(map[string]User, len(found))
		for _, user := range found {
			records[user.ID] = user
		}
	}

	single, isSingle := sessionType.SingleMode()
	out := make([]session.Attendee, 0, len(entries))
	for _, entry := range entries {
		attendee := session.Attendee{UserID: entry.UserID}
		if record, ok := records[entry.UserID]; ok {
			attendee.Email = record.Email
			attendee.FirstName = record.FirstName
			attendee.LastName = record.LastName
		}
		if isSingle {
			attendee.Mode = single
		} else if mode, ok := session.ParseMode(entry.Mode); ok {
			attendee.Mode = mode
		}
		out = append(out, attendee)
	}
	return out, nil
}

func civilDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func cloneAttendees(entries []session.Attendee) []session.Attendee {
	if len(entries) == 0 {
		return nil
	}
	out := make([]session.Attendee, len(entries))
	copy(out, entries)
	return out
}
