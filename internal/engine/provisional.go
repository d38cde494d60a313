package engine

import (
	"github.com/skyvault/alertfeed/internal/alert"
)

// While the initial catch-up is being processed, live change events can
// race with it and describe objects the catch-up already accounts for, or
// objects that no longer exist. Provisional buffering holds the alerts
// those events produce until the caller can validate them against its
// current state; only validated alerts are committed, the rest vanish
// without trace.

// StartProvisional enters buffering mode: every alert offered through Add
// is held in a side buffer instead of being committed.
func (e *Engine) StartProvisional() {
	e.provisional = true
}

// ProvisionalMode reports whether buffering is active.
func (e *Engine) ProvisionalMode() bool { return e.provisional }

// ProvisionalCount returns the number of buffered alerts.
func (e *Engine) ProvisionalCount() int { return len(e.provisionals) }

// EvalProvisional ends buffering and validates each buffered alert for the
// originating user against the caller's current state. Valid alerts go
// through the normal merge/commit path; invalid ones are discarded with no
// trace. A nil state skips the object-existence checks.
func (e *Engine) EvalProvisional(originatingUser alert.Handle, state ClientState) {
	e.provisional = false
	buffered := e.provisionals
	e.provisionals = nil

	for _, a := range buffered {
		if !checkProvisional(a, originatingUser, state) {
			e.stats.Discarded++
			e.log.Debug("provisional alert discarded", "kind", a.Kind(), "user", a.User)
			continue
		}
		e.commit(a)
	}
}

// checkProvisional runs the per-kind validity check. originatingUser is the
// caller's own user handle: changes the caller performed itself are stale
// echoes during catch-up. Kinds that reference no external object are
// always valid.
func checkProvisional(a *alert.Alert, originatingUser alert.Handle, state ClientState) bool {
	switch p := a.Payload.(type) {
	case *alert.ContactChange:
		if a.User == originatingUser {
			return false
		}
		// A contact-established change for a user no longer visible is a
		// leftover from before the catch-up.
		if state != nil && p.Action == alert.ContactChangeEstablished {
			return state.ContactVisible(a.User)
		}
		return true
	case *alert.IncomingPendingContact:
		// Deletions and reminders are historical facts; only a live request
		// needs to still exist.
		if p.Deleted() || p.Reminded() {
			return true
		}
		if state != nil {
			return state.PendingRequestExists(p.RequestHandle)
		}
		return true
	case *alert.NewShare:
		if state != nil {
			return state.ShareExists(p.Folder)
		}
		return true
	default:
		return true
	}
}
