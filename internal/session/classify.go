package session

import "time"

// Status is the lifecycle phase of a session relative to a reference
// instant. The values double as the labels handed to reporting surfaces.
type Status string

const (
	StatusUpcoming Status = "Upcoming"
	StatusLive     Status = "Live"
	StatusPast     Status = "Past"
)

// LiveCutoff is how long a session keeps reporting Live after its end
// instant. It is a display buffer only and is independent of the
// late-arrival grace period applied to check-ins; the two are tuned
// separately even if their values happen to coincide.
const LiveCutoff = 10 * time.Minute

// Classification is the classifier verdict for one session. Cancellation
// is deliberately not a status: a cancelled session still reads as
// Upcoming here and callers surface the cancelled flag on its own.
type Classification struct {
	Status  Status
	IsToday bool
}

// Classifier derives lifecycle statuses from session date and time
// fields. The location fixes the civil timezone in which those strings
// are interpreted.
type Classifier struct {
	location *time.Location
}

// NewClassifier constructs a Classifier. If loc is nil, UTC is used.
func NewClassifier(loc *time.Location) *Classifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Classifier{location: loc}
}

// Location returns the timezone the classifier interprets dates in.
func (c *Classifier) Location() *time.Location {
	return c.location
}

// Classify returns the lifecycle verdict for a session at the given
// instant. First match wins: cancelled, completed, then the temporal
// window. Both window boundaries are inclusive, so a session is Live
// from its exact start instant through the exact cutoff instant.
func (c *Classifier) Classify(s Session, now time.Time) Classification {
	verdict := Classification{IsToday: c.isToday(s, now)}

	switch {
	case s.Cancelled:
		verdict.Status = StatusUpcoming
	case s.Completed:
		verdict.Status = StatusPast
	default:
		start, end := c.Window(s)
		cutoff := end.Add(LiveCutoff)
		switch {
		case now.Before(start):
			verdict.Status = StatusUpcoming
		case now.After(cutoff):
			verdict.Status = StatusPast
		default:
			verdict.Status = StatusLive
		}
	}

	return verdict
}

// Window computes the concrete start and end instants of a session.
// Malformed time fields recover instead of failing, because rows may
// predate strict write-side validation: a bad startTime reads as
// midnight and a bad or absent endTime reads as end of day. A session
// without an end date whose end time precedes its start time runs
// overnight, so its end rolls forward one day.
func (c *Classifier) Window(s Session) (start, end time.Time) {
	startDay, _ := c.day(s.StartDate)

	if hour, min, ok := parseClock(s.StartTime); ok {
		start = c.at(startDay, hour, min)
	} else {
		start = c.at(startDay, 0, 0)
	}

	endDay := startDay
	hasEndDate := false
	if s.EndDate != "" {
		if day, ok := c.day(s.EndDate); ok {
			endDay = day
			hasEndDate = true
		}
	}

	if hour, min, ok := parseClock(s.EndTime); ok {
		end = c.at(endDay, hour, min)
	} else {
		end = c.endOfDay(endDay)
	}

	if !hasEndDate && end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}

	return start, end
}

// isToday is pure calendar-date equality between the reference instant
// and the session's start date. No time of day, no buffer: a session
// can already be Past and still count as today, and scan gating keys
// off this flag rather than the status.
func (c *Classifier) isToday(s Session, now time.Time) bool {
	day, ok := c.day(s.StartDate)
	if !ok {
		return false
	}
	year, month, dom := day.Date()
	nowYear, nowMonth, nowDom := now.In(c.location).Date()
	return year == nowYear && month == nowMonth && dom == nowDom
}

func (c *Classifier) day(value string) (time.Time, bool) {
	parsed, err := time.ParseInLocation(DateLayout, value, c.location)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func (c *Classifier) at(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, c.location)
}

// endOfDay is the 23:59:59.999 instant assumed when a session has no
// usable end time.
func (c *Classifier) endOfDay(day time.Time) time.Time {
	nanos := int(999 * time.Millisecond)
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, nanos, c.location)
}

// parseClock parses a 24-hour HH:MM value. Anything else, including the
// empty string, reports false and the caller applies its fallback.
func parseClock(value string) (hour, min int, ok bool) {
	if len(value) != len("15:04") {
		return 0, 0, false
	}
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, false
	}
	return parsed.Hour(), parsed.Minute(), true
}
