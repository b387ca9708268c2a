// Package roster maintains attendee selections while a session or batch
// is being authored and serializes them into the persisted roster shape.
// Hybrid sessions keep two independent selection sets, one per check-in
// mode; single-mode sessions keep one. A user belongs to at most one set
// at a time.
package roster

import (
	"errors"
	"fmt"

	"github.com/example/attendance-tracker/internal/session"
)

// ErrModeUnavailable indicates a toggle targeted a mode the session
// type does not offer, such as a remote toggle on a physical session.
var ErrModeUnavailable = errors.New("roster: mode not available for this session type")

// ErrIntegrity indicates a user ended up in both hybrid sets. Toggle
// and switch keep membership exclusive, so hitting this at serialize
// time means a bug in the calling code, not bad user input.
var ErrIntegrity = errors.New("roster: user present in both hybrid sets")

// Manager tracks attendee selections for one session type. Mutations
// are plain method calls applied in the order received; the manager is
// not safe for concurrent use.
type Manager struct {
	sessionType session.Type

	physical []session.Attendee
	remote   []session.Attendee
	assigned []session.Attendee
}

// NewManager returns an empty manager for the given session type.
func NewManager(t session.Type) *Manager {
	return &Manager{sessionType: t}
}

// Report describes what hydration had to repair or guess.
type Report struct {
	// NeedsModeReview lists users whose hybrid mode was guessed because
	// the stored entry carried none. Rows written before per-attendee
	// modes existed have no ground truth to recover, so these users
	// should be re-confirmed rather than trusted.
	NeedsModeReview []string
}

// Hydrate rebuilds a manager from a persisted roster so an existing
// session can be edited. Entries keep their stored order. Entries
// without a mode fall back to the session type: single-mode sessions
// admit only one mode anyway, while hybrid entries are placed in the
// physical set and flagged in the report. Duplicate users keep their
// first entry.
func Hydrate(t session.Type, entries []session.Attendee) (*Manager, Report) {
	m := NewManager(t)
	report := Report{}

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.UserID]; dup {
			continue
		}
		seen[entry.UserID] = struct{}{}

		if t != session.TypeHybrid {
			mode, _ := t.SingleMode()
			entry.Mode = mode
			m.assigned = append(m.assigned, entry)
			continue
		}

		switch entry.Mode {
		case session.ModePhysical:
			m.physical = append(m.physical, entry)
		case session.ModeRemote:
			m.remote = append(m.remote, entry)
		default:
			entry.Mode = session.ModePhysical
			m.physical = append(m.physical, entry)
			report.NeedsModeReview = append(report.NeedsModeReview, entry.UserID)
		}
	}

	return m, report
}

// SessionType returns the type the manager is currently authoring for.
func (m *Manager) SessionType() session.Type {
	return m.sessionType
}

// Toggle adds the attendee to the target set if absent and removes them
// if present. Toggling a user into the opposite hybrid set moves them:
// they are removed from their current set before being added, so a user
// is never selected twice.
func (m *Manager) Toggle(attendee session.Attendee, target session.Mode) error {
	if m.sessionType != session.TypeHybrid {
		mode, _ := m.sessionType.SingleMode()
		if target != mode {
			return fmt.Errorf("%w: %s on %s", ErrModeUnavailable, target, m.sessionType)
		}
		attendee.Mode = mode
		m.assigned = toggleEntry(m.assigned, attendee)
		return nil
	}

	attendee.Mode = target
	switch target {
	case session.ModePhysical:
		m.remote = removeEntry(m.remote, attendee.UserID)
		m.physical = toggleEntry(m.physical, attendee)
	case session.ModeRemote:
		m.physical = removeEntry(m.physical, attendee.UserID)
		m.remote = toggleEntry(m.remote, attendee)
	default:
		return fmt.Errorf("%w: %s on %s", ErrModeUnavailable, target, m.sessionType)
	}
	return nil
}

// SwitchType changes the session type and applies the clearing rule:
// entering hybrid clears the single-mode set, leaving hybrid clears
// both hybrid sets. The reset is deliberately lossy because a user's
// appropriate mode under the new type cannot be inferred. Switching
// between the two single modes keeps the selection; only the stamped
// mode changes.
func (m *Manager) SwitchType(newType session.Type) {
	if newType == m.sessionType {
		return
	}

	switch {
	case newType == session.TypeHybrid:
		m.assigned = nil
	case m.sessionType == session.TypeHybrid:
		m.physical = nil
		m.remote = nil
	}

	m.sessionType = newType
}

// Selected returns a copy of one hybrid selection set in selection
// order. It is empty for single-mode managers.
func (m *Manager) Selected(target session.Mode) []session.Attendee {
	switch target {
	case session.ModePhysical:
		return cloneEntries(m.physical)
	case session.ModeRemote:
		return cloneEntries(m.remote)
	default:
		return nil
	}
}

// Assigned returns a copy of the single-mode selection set in selection
// order. It is empty for hybrid managers.
func (m *Manager) Assigned() []session.Attendee {
	return cloneEntries(m.assigned)
}

// Serialize emits the roster shape the persistence layer stores. Hybrid
// rosters emit the physical set followed by the remote set, each entry
// tagged with its mode; single-mode rosters emit the assigned set
// tagged with the session's own mode.
func (m *Manager) Serialize() ([]session.Attendee, error) {
	if m.sessionType != session.TypeHybrid {
		mode, _ := m.sessionType.SingleMode()
		out := make([]session.Attendee, 0, len(m.assigned))
		for _, entry := range m.assigned {
			entry.Mode = mode
			out = append(out, entry)
		}
		return out, nil
	}

	physical := make(map[string]struct{}, len(m.physical))
	for _, entry := range m.physical {
		physical[entry.UserID] = struct{}{}
	}
	for _, entry := range m.remote {
		if _, both := physical[entry.UserID]; both {
			return nil, fmt.Errorf("%w: %s", ErrIntegrity, entry.UserID)
		}
	}

	out := make([]session.Attendee, 0, len(m.physical)+len(m.remote))
	for _, entry := range m.physical {
		entry.Mode = session.ModePhysical
		out = append(out, entry)
	}
	for _, entry := range m.remote {
		entry.Mode = session.ModeRemote
		out = append(out, entry)
	}
	return out, nil
}

func toggleEntry(entries []session.Attendee, attendee session.Attendee) []session.Attendee {
	if trimmed, removed := removeUser(entries, attendee.UserID); removed {
		return trimmed
	}
	return append(entries, attendee)
}

func removeEntry(entries []session.Attendee, userID string) []session.Attendee {
	trimmed, _ := removeUser(entries, userID)
	return trimmed
}

func removeUser(entries []session.Attendee, userID string) ([]session.Attendee, bool) {
	for i, entry := range entries {
		if entry.UserID == userID {
			return append(entries[:i], entries[i+1:]...), true
		}
	}
	return entries, false
}

func cloneEntries(entries []session.Attendee) []session.Attendee {
	if len(entries) == 0 {
		return nil
	}
	out := make([]session.Attendee, len(entries))
	copy(out, entries)
	return out
}
