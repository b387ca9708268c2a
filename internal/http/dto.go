package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/session"
)

// patchField translates a tri-state JSON field into an application
// patch: absent keeps the stored value, null clears it, a value sets it.
func patchField[T any](n nullable.Nullable[T]) application.Patch[T] {
	switch {
	case !n.IsSpecified():
		return application.Patch[T]{}
	case n.IsNull():
		return application.Clear[T]()
	default:
		return application.Value(n.MustGet())
	}
}

type rosterEntryDTO struct {
	UserID string `json:"userId" validate:"required"`
	Mode   string `json:"mode" validate:"omitempty,oneof=PHYSICAL REMOTE"`
}

func toRosterInputs(entries []rosterEntryDTO) []application.RosterEntryInput {
	if len(entries) == 0 {
		return nil
	}
	out := make([]application.RosterEntryInput, 0, len(entries))
	for _, entry := range entries {
		out = append(out, application.RosterEntryInput{
			UserID: strings.TrimSpace(entry.UserID),
			Mode:   entry.Mode,
		})
	}
	return out
}

type attendeeDTO struct {
	UserID    string `json:"userId"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

func toAttendeeDTOs(roster []session.Attendee) []attendeeDTO {
	if len(roster) == 0 {
		return nil
	}
	out := make([]attendeeDTO, 0, len(roster))
	for _, attendee := range roster {
		out = append(out, attendeeDTO{
			UserID:    attendee.UserID,
			Email:     attendee.Email,
			FirstName: attendee.FirstName,
			LastName:  attendee.LastName,
			Mode:      string(attendee.Mode),
		})
	}
	return out
}

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// parseWeekdays maps wire day names onto weekdays. Unknown names are
// skipped; the DTO enum check rejects them before this runs.
func parseWeekdays(values []string) []time.Weekday {
	if len(values) == 0 {
		return nil
	}
	out := make([]time.Weekday, 0, len(values))
	for _, value := range values {
		if day, ok := weekdayNames[strings.ToUpper(strings.TrimSpace(value))]; ok {
			out = append(out, day)
		}
	}
	return out
}

func weekdayWireNames(days []time.Weekday) []string {
	if len(days) == 0 {
		return nil
	}
	out := make([]string, 0, len(days))
	for _, day := range days {
		out = append(out, strings.ToUpper(day.String()))
	}
	return out
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseBoolParam reads a query flag; anything unparseable reads false.
func parseBoolParam(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && parsed
}
