// Package ics renders session lists as iCalendar documents so users can
// subscribe to their assigned sessions from a calendar client.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/attendance-tracker/internal/session"
)

const productID = "-//attendance-tracker//sessions//EN"

// Options control feed contents.
type Options struct {
	// Name labels the calendar in clients that honor X-WR-CALNAME.
	Name string
	// IncludeCancelled keeps cancelled sessions in the feed, marked
	// STATUS:CANCELLED, instead of dropping them.
	IncludeCancelled bool
}

// Feed renders sessions as a VCALENDAR document. Dates and times are
// interpreted in loc, the same way the classifier reads them, and every
// event instant is emitted in UTC. Each materialized session becomes a
// single VEVENT; recurrence stays expanded.
func Feed(sessions []session.Session, loc *time.Location, opts Options) string {
	classifier := session.NewClassifier(loc)

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, s := range sessions {
		if s.Cancelled && !opts.IncludeCancelled {
			continue
		}

		start, end := classifier.Window(s)

		event := cal.AddEvent(s.ID)
		event.SetDtStampTime(s.UpdatedAt.UTC())
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(s.Title)
		if s.LocationSpec != "" {
			event.SetLocation(s.LocationSpec)
		}
		if s.VirtualLink != "" {
			event.SetURL(s.VirtualLink)
		}
		if s.Cancelled {
			event.SetStatus(ical.ObjectStatusCancelled)
		} else {
			event.SetStatus(ical.ObjectStatusConfirmed)
		}
	}

	return cal.Serialize()
}
