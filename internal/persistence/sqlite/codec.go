package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/attendance-tracker/internal/persistence"
)

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseInstant(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed instant %q: %w", value, err)
	}
	return parsed, nil
}

// encodeRoster serializes attendees for the roster column. The column
// is NOT NULL so an empty roster stores as an empty array.
func encodeRoster(roster []persistence.Attendee) (string, error) {
	if len(roster) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(roster)
	if err != nil {
		return "", fmt.Errorf("encode roster: %w", err)
	}
	return string(raw), nil
}

func decodeRoster(raw string) ([]persistence.Attendee, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var roster []persistence.Attendee
	if err := json.Unmarshal([]byte(raw), &roster); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return roster, nil
}

func encodeWeekdays(days []time.Weekday) (*string, error) {
	if len(days) == 0 {
		return nil, nil
	}
	values := make([]int, len(days))
	for i, day := range days {
		values[i] = int(day)
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode weekdays: %w", err)
	}
	encoded := string(raw)
	return &encoded, nil
}

func decodeWeekdays(raw *string) ([]time.Weekday, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var values []int
	if err := json.Unmarshal([]byte(*raw), &values); err != nil {
		return nil, fmt.Errorf("decode weekdays: %w", err)
	}
	days := make([]time.Weekday, len(values))
	for i, value := range values {
		days[i] = time.Weekday(value)
	}
	return days, nil
}

func encodeDateList(dates []string) (*string, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(dates)
	if err != nil {
		return nil, fmt.Errorf("encode custom dates: %w", err)
	}
	encoded := string(raw)
	return &encoded, nil
}

func decodeDateList(raw *string) ([]string, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var dates []string
	if err := json.Unmarshal([]byte(*raw), &dates); err != nil {
		return nil, fmt.Errorf("decode custom dates: %w", err)
	}
	return dates, nil
}
