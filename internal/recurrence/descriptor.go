package recurrence

import (
	"errors"
	"sort"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Frequency represents supported batch recurrence patterns.
type Frequency int

const (
	// FrequencyUnspecified indicates the descriptor frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyOneTime generates a single occurrence on the start date.
	FrequencyOneTime
	// FrequencyDaily generates an occurrence for every date in the range.
	FrequencyDaily
	// FrequencyWeekly generates occurrences for the selected weekdays.
	FrequencyWeekly
	// FrequencyMonthly generates one occurrence per month on the start date's
	// day of month. Months without that day (day 31 in February) are skipped.
	FrequencyMonthly
	// FrequencyRandom generates occurrences for an explicit list of dates.
	FrequencyRandom
)

var frequencyNames = map[Frequency]string{
	FrequencyOneTime: "ONE_TIME",
	FrequencyDaily:   "DAILY",
	FrequencyWeekly:  "WEEKLY",
	FrequencyMonthly: "MONTHLY",
	FrequencyRandom:  "RANDOM",
}

// String returns the canonical wire name of the frequency.
func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return "UNSPECIFIED"
}

// ParseFrequency maps a wire name such as "WEEKLY" onto a Frequency.
func ParseFrequency(value string) (Frequency, bool) {
	for freq, name := range frequencyNames {
		if name == value {
			return freq, true
		}
	}
	return FrequencyUnspecified, false
}

// Descriptor describes how a batch repeats. Dates are calendar dates in
// YYYY-MM-DD form and times are 24-hour HH:MM values; both are kept as
// strings because that is how they travel through the API and the store.
type Descriptor struct {
	Frequency   Frequency
	StartDate   string
	EndDate     string
	Weekdays    []time.Weekday
	CustomDates []string
	StartTime   string
	EndTime     string
}

// Occurrence is one generated session slot. Every occurrence of a batch
// shares the descriptor's start and end times.
type Occurrence struct {
	Date      string
	StartTime string
	EndTime   string
}

// ErrInvalidRecurrence is wrapped by every descriptor validation failure.
var ErrInvalidRecurrence = errors.New("recurrence: invalid descriptor")

// DescriptorError reports which descriptor fields failed validation and why.
type DescriptorError struct {
	Fields map[string]string
}

func (e *DescriptorError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrInvalidRecurrence.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return ErrInvalidRecurrence.Error() + ": " + strings.Join(names, ", ")
}

// Unwrap lets errors.Is match ErrInvalidRecurrence.
func (e *DescriptorError) Unwrap() error {
	return ErrInvalidRecurrence
}

func (e *DescriptorError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *DescriptorError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validate checks a descriptor without generating anything. Expansion is
// all-or-nothing: a descriptor that fails here produces no occurrences.
func Validate(d Descriptor) error {
	vErr := &DescriptorError{}

	switch d.Frequency {
	case FrequencyOneTime, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		validateWindow(d, vErr)
	case FrequencyRandom:
		// The explicit date list drives generation; startDate and endDate
		// are ignored for random batches.
		if len(d.CustomDates) == 0 {
			vErr.add("customDates", "select at least one date")
		}
		for _, value := range d.CustomDates {
			if _, err := parseDate(value); err != nil {
				vErr.add("customDates", "dates must be in YYYY-MM-DD form")
				break
			}
		}
	default:
		vErr.add("frequency", "unsupported frequency")
	}

	if d.Frequency == FrequencyWeekly && len(d.Weekdays) == 0 {
		vErr.add("weeklyDays", "select at least one weekday")
	}

	startMinutes, startOK := clockMinutes(d.StartTime)
	if !startOK {
		vErr.add("startTime", "must be a 24-hour HH:MM time")
	}
	endMinutes, endOK := clockMinutes(d.EndTime)
	if !endOK {
		vErr.add("endTime", "must be a 24-hour HH:MM time")
	}
	if startOK && endOK && startMinutes >= endMinutes {
		vErr.add("startTime", "must be earlier than endTime")
	}

	return vErr.errOrNil()
}

// Expand produces the ordered, deduplicated occurrence dates for a
// descriptor. It is a pure function of its input.
func Expand(d Descriptor) ([]Occurrence, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}

	switch d.Frequency {
	case FrequencyOneTime:
		return []Occurrence{occurrenceOn(d, d.StartDate)}, nil
	case FrequencyDaily, FrequencyWeekly:
		return expandRange(d)
	case FrequencyMonthly:
		return expandMonthly(d)
	case FrequencyRandom:
		return expandCustom(d)
	default:
		return nil, &DescriptorError{Fields: map[string]string{"frequency": "unsupported frequency"}}
	}
}

func validateWindow(d Descriptor, vErr *DescriptorError) {
	start, err := parseDate(d.StartDate)
	if err != nil {
		vErr.add("startDate", "must be a YYYY-MM-DD date")
	}

	if d.Frequency == FrequencyOneTime {
		// A single occurrence needs no end bound.
		return
	}

	if d.EndDate == "" {
		vErr.add("endDate", "required for recurring batches")
		return
	}
	end, err := parseDate(d.EndDate)
	if err != nil {
		vErr.add("endDate", "must be a YYYY-MM-DD date")
		return
	}
	if !start.IsZero() && end.Before(start) {
		vErr.add("endDate", "must not be earlier than startDate")
	}
}

func expandRange(d Descriptor) ([]Occurrence, error) {
	start, _ := parseDate(d.StartDate)
	end, _ := parseDate(d.EndDate)

	weekdaySet := make(map[time.Weekday]struct{}, len(d.Weekdays))
	for _, day := range d.Weekdays {
		weekdaySet[day] = struct{}{}
	}

	occurrences := make([]Occurrence, 0)
	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		if !includeDate(d.Frequency, weekdaySet, current.Weekday()) {
			continue
		}
		occurrences = append(occurrences, occurrenceOn(d, current.Format(dateLayout)))
	}
	return occurrences, nil
}

func expandMonthly(d Descriptor) ([]Occurrence, error) {
	start, _ := parseDate(d.StartDate)
	end, _ := parseDate(d.EndDate)
	day := start.Day()

	occurrences := make([]Occurrence, 0)
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		candidate := time.Date(cursor.Year(), cursor.Month(), day, 0, 0, 0, 0, time.UTC)
		// time.Date normalizes impossible dates (Feb 31 becomes early
		// March); a month change means this month lacks the day.
		if candidate.Month() == cursor.Month() && !candidate.Before(start) && !candidate.After(end) {
			occurrences = append(occurrences, occurrenceOn(d, candidate.Format(dateLayout)))
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return occurrences, nil
}

func expandCustom(d Descriptor) ([]Occurrence, error) {
	seen := make(map[string]struct{}, len(d.CustomDates))
	dates := make([]string, 0, len(d.CustomDates))
	for _, value := range d.CustomDates {
		parsed, _ := parseDate(value)
		normalized := parsed.Format(dateLayout)
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		dates = append(dates, normalized)
	}
	// ISO dates order lexically, so a string sort is a chronological sort.
	sort.Strings(dates)

	occurrences := make([]Occurrence, 0, len(dates))
	for _, date := range dates {
		occurrences = append(occurrences, occurrenceOn(d, date))
	}
	return occurrences, nil
}

func includeDate(freq Frequency, weekdaySet map[time.Weekday]struct{}, day time.Weekday) bool {
	if freq != FrequencyWeekly {
		return true
	}
	_, ok := weekdaySet[day]
	return ok
}

func occurrenceOn(d Descriptor, date string) Occurrence {
	return Occurrence{Date: date, StartTime: d.StartTime, EndTime: d.EndTime}
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

// clockMinutes parses a 24-hour HH:MM value into minutes since midnight.
// The length check rejects unpadded values that time.Parse would accept.
func clockMinutes(value string) (int, bool) {
	if len(value) != len("15:04") {
		return 0, false
	}
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return parsed.Hour()*60 + parsed.Minute(), true
}
