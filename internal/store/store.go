// Package store provides the bounded, ordered alert log and its notify queue.
//
// The store owns every alert the engine has committed: newest at the tail,
// ids assigned from a monotonic counter, size capped so the oldest entries
// are trimmed first. A non-owning notify queue collects new, updated and
// removed alerts for the application to drain after each processing batch.
//
// The store is single-threaded by design; callers serialize access
// externally, like the rest of the engine.
package store

import (
	"log/slog"

	"github.com/skyvault/alertfeed/internal/alert"
	"github.com/skyvault/alertfeed/internal/logging"
)

// Persister mirrors every mutation of the alert log to backing storage. It
// is invoked synchronously after each mutating operation so that in-memory
// and persisted state never diverge across a restart.
type Persister interface {
	// Put writes or replaces the record for an alert id.
	Put(id uint32, data []byte) error

	// Delete removes the record for an alert id.
	Delete(id uint32) error
}

// Store is the bounded alert log.
type Store struct {
	log *slog.Logger

	// alerts holds committed alerts, newest at the end.
	alerts []*alert.Alert

	// notify collects alerts to hand to the application: new, merged-update
	// and removed entries alike. Non-owning; entries also live in alerts
	// until trimmed.
	notify   []*alert.Alert
	inNotify map[*alert.Alert]struct{}

	nextID    uint32
	maxAlerts int

	persister Persister
}

// New creates a Store bounded to maxAlerts entries. persister may be nil
// when the host runs without local persistence.
func New(maxAlerts int, persister Persister) *Store {
	return &Store{
		log:       logging.Component("store"),
		inNotify:  make(map[*alert.Alert]struct{}),
		maxAlerts: maxAlerts,
		persister: persister,
	}
}

// NextID consumes and returns the next alert id. A candidate that took an
// id but was later merged away or discarded never reaches the log, which is
// why the persisted sequence may show gaps.
func (s *Store) NextID() uint32 {
	s.nextID++
	return s.nextID
}

// Len returns the number of alerts in the log.
func (s *Store) Len() int { return len(s.alerts) }

// Alerts returns the log, oldest first. The slice is the store's own;
// callers must not modify it.
func (s *Store) Alerts() []*alert.Alert { return s.alerts }

// Append commits a candidate to the tail of the log, enqueues it for
// notification, trims the log to its bound and persists the record. A
// candidate without an id is assigned the next one.
func (s *Store) Append(a *alert.Alert) {
	if a.ID == 0 {
		a.ID = s.NextID()
	}
	s.alerts = append(s.alerts, a)
	s.Enqueue(a)
	s.trim()
	s.persist(a)
}

// Enqueue adds an alert to the notify queue unless it is already pending,
// so a merged update reaches the application once, not duplicated.
func (s *Store) Enqueue(a *alert.Alert) {
	if _, ok := s.inNotify[a]; ok {
		return
	}
	s.inNotify[a] = struct{}{}
	s.notify = append(s.notify, a)
}

// PullNotify drains the notify queue. Drained alerts are flushed: they have
// been shown to the user and must not silently change, so they stop being
// merge targets.
func (s *Store) PullNotify() []*alert.Alert {
	out := s.notify
	s.notify = nil
	s.inNotify = make(map[*alert.Alert]struct{})
	for _, a := range out {
		a.SetFlushed()
	}
	return out
}

// NotifyPending returns the number of undrained notify entries.
func (s *Store) NotifyPending() int { return len(s.notify) }

// ScanUnflushed walks the log backward from the tail over alerts not yet
// flushed to the application, stopping early when fn returns true. This is
// the merge search surface: flushed alerts are excluded both for cost and
// because they must not change under the user.
func (s *Store) ScanUnflushed(fn func(a *alert.Alert) bool) {
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if a.Flushed() {
			return
		}
		if fn(a) {
			return
		}
	}
}

// Updated re-persists and re-enqueues an alert after an in-place mutation
// (merge, ghost-suppression edit, seen flag).
func (s *Store) Updated(a *alert.Alert) {
	s.Enqueue(a)
	s.persist(a)
}

// Persist re-persists an alert without notifying the application, e.g.
// after a lazy email resolution.
func (s *Store) Persist(a *alert.Alert) {
	s.persist(a)
}

// MarkSeenAll marks every alert seen and persists the change.
func (s *Store) MarkSeenAll() {
	for _, a := range s.alerts {
		if a.Seen {
			continue
		}
		a.Seen = true
		s.persist(a)
	}
}

// RemoveMatching removes every alert the predicate selects, marking it
// removed, enqueueing it so the application hears about the removal, and
// deleting its persisted record.
func (s *Store) RemoveMatching(pred func(a *alert.Alert) bool) {
	kept := s.alerts[:0]
	for _, a := range s.alerts {
		if !pred(a) {
			kept = append(kept, a)
			continue
		}
		s.remove(a)
	}
	s.alerts = kept
}

// Load restores the log from persisted alerts, oldest first, and advances
// the id counter past the maximum restored id. Restored alerts are not
// enqueued for notification and count as flushed: they were shown in the
// session that created them, so they are not merge targets either.
func (s *Store) Load(alerts []*alert.Alert) {
	s.alerts = append(s.alerts[:0], alerts...)
	for _, a := range s.alerts {
		a.SetFlushed()
		if a.ID > s.nextID {
			s.nextID = a.ID
		}
	}
}

// Clear resets the in-memory log and notify queue, e.g. on logout. The
// persisted records are the host's to discard.
func (s *Store) Clear() {
	s.alerts = nil
	s.notify = nil
	s.inNotify = make(map[*alert.Alert]struct{})
	s.nextID = 0
}

// trim drops entries from the head until the log is within its bound.
// Trimmed entries are marked removed and enqueued so persistence cleanup
// and the application both see them go.
func (s *Store) trim() {
	for len(s.alerts) > s.maxAlerts {
		a := s.alerts[0]
		s.alerts = s.alerts[1:]
		s.remove(a)
	}
}

func (s *Store) remove(a *alert.Alert) {
	a.SetRemoved()
	s.Enqueue(a)
	if s.persister == nil {
		return
	}
	if err := s.persister.Delete(a.ID); err != nil {
		s.log.Warn("delete persisted alert", "id", a.ID, "error", err)
	}
}

func (s *Store) persist(a *alert.Alert) {
	if s.persister == nil {
		return
	}
	data, err := alert.Encode(a)
	if err != nil {
		s.log.Warn("encode alert", "id", a.ID, "kind", a.Kind(), "error", err)
		return
	}
	if err := s.persister.Put(a.ID, data); err != nil {
		s.log.Warn("persist alert", "id", a.ID, "kind", a.Kind(), "error", err)
	}
}
