package session

import "time"

// Indicator is the calendar dot color for one day. Days with no
// matching sessions carry no indicator at all.
type Indicator string

const (
	IndicatorNone   Indicator = ""
	IndicatorGreen  Indicator = "green"
	IndicatorYellow Indicator = "yellow"
	IndicatorRed    Indicator = "red"
)

// DayIndicator reduces the sessions falling on one date to a single
// color. Cancelled sessions are ignored. Any Past session wins red,
// otherwise any edited session wins yellow, otherwise green. This is a
// strict priority reduction: one past session turns a day of nine green
// sessions fully red.
func (c *Classifier) DayIndicator(sessions []Session, date string, now time.Time) Indicator {
	hasAny := false
	hasPast := false
	hasEdited := false

	for _, s := range sessions {
		if s.Cancelled || s.StartDate != date {
			continue
		}
		hasAny = true
		if c.Classify(s, now).Status == StatusPast {
			hasPast = true
			break
		}
		if s.Edited() {
			hasEdited = true
		}
	}

	switch {
	case !hasAny:
		return IndicatorNone
	case hasPast:
		return IndicatorRed
	case hasEdited:
		return IndicatorYellow
	default:
		return IndicatorGreen
	}
}

// MonthIndicators computes the indicator for every day of a month.
// Days without an indicator are absent from the result.
func (c *Classifier) MonthIndicators(sessions []Session, year int, month time.Month, now time.Time) map[string]Indicator {
	indicators := make(map[string]Indicator)
	first := time.Date(year, month, 1, 0, 0, 0, 0, c.location)
	for day := first; day.Month() == month; day = day.AddDate(0, 0, 1) {
		date := day.Format(DateLayout)
		if indicator := c.DayIndicator(sessions, date, now); indicator != IndicatorNone {
			indicators[date] = indicator
		}
	}
	return indicators
}
