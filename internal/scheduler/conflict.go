// Package scheduler detects roster double-bookings: the same user
// assigned to two sessions whose time windows overlap. Detection is
// advisory; the services log conflicts as warnings instead of blocking
// the write, because overlapping assignments are sometimes intentional
// (a coordinator attending one of two hybrid sessions remotely).
package scheduler

import (
	"time"

	"github.com/example/attendance-tracker/internal/session"
)

// Conflict reports one attendee assigned to a candidate session while
// already assigned to an overlapping existing session.
type Conflict struct {
	UserID        string
	SessionID     string
	WithSessionID string
}

// DetectDoubleBookings compares each candidate session against the
// existing list and returns one conflict per (user, overlapping pair).
// Cancelled sessions on either side are ignored, as is a candidate
// matched against its own stored row (the update case). Sessions whose
// temporal fields do not parse get the classifier's end-of-day window,
// so legacy rows still participate rather than escaping detection.
func DetectDoubleBookings(classifier *session.Classifier, existing []session.Session, candidates ...session.Session) []Conflict {
	if classifier == nil || len(candidates) == 0 {
		return nil
	}

	var conflicts []Conflict
	for _, candidate := range candidates {
		if candidate.Cancelled {
			continue
		}
		cStart, cEnd := classifier.Window(candidate)
		for _, other := range existing {
			if other.Cancelled || other.ID == candidate.ID {
				continue
			}
			oStart, oEnd := classifier.Window(other)
			if !overlaps(cStart, cEnd, oStart, oEnd) {
				continue
			}
			for _, userID := range sharedAttendees(candidate.Roster, other.Roster) {
				conflicts = append(conflicts, Conflict{
					UserID:        userID,
					SessionID:     candidate.ID,
					WithSessionID: other.ID,
				})
			}
		}
	}
	return conflicts
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// sharedAttendees returns the user ids present on both rosters, in the
// first roster's order.
func sharedAttendees(a, b []session.Attendee) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	inB := make(map[string]struct{}, len(b))
	for _, attendee := range b {
		inB[attendee.UserID] = struct{}{}
	}
	var shared []string
	for _, attendee := range a {
		if _, ok := inB[attendee.UserID]; ok {
			shared = append(shared, attendee.UserID)
		}
	}
	return shared
}
