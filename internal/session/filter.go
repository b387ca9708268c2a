package session

import "time"

// DisplayLimit is how many sessions a list view shows before offering
// to expand.
const DisplayLimit = 7

// Filter selects which sessions a list view renders. A selected date
// overrides everything else; otherwise Past sessions are hidden unless
// ShowPast is set.
type Filter struct {
	SelectedDate string
	ShowPast     bool
}

// VisibleSet is the filter projection handed to a view.
type VisibleSet struct {
	Visible []Session
	// RemainingCount is the eligible count minus the display limit and
	// may be negative when fewer sessions exist; callers clamp it to
	// zero before display.
	RemainingCount int
}

// VisibleSessions projects a session list through a filter. With a
// selected date every session on that date is visible, past or not,
// with no limit. Without one, eligible sessions keep their list order
// and are truncated to the display limit. The projection is pure and is
// recomputed on every tick.
func (c *Classifier) VisibleSessions(sessions []Session, filter Filter, now time.Time) VisibleSet {
	if filter.SelectedDate != "" {
		visible := make([]Session, 0)
		for _, s := range sessions {
			if s.StartDate == filter.SelectedDate {
				visible = append(visible, s)
			}
		}
		return VisibleSet{Visible: visible}
	}

	eligible := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if !filter.ShowPast && c.Classify(s, now).Status == StatusPast {
			continue
		}
		eligible = append(eligible, s)
	}

	visible := eligible
	if len(visible) > DisplayLimit {
		visible = visible[:DisplayLimit]
	}
	return VisibleSet{Visible: visible, RemainingCount: len(eligible) - DisplayLimit}
}
