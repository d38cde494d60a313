// Package engine turns the change-event stream of a cloud-storage session
// into the bounded, deduplicated alert history the application shows.
//
// Processing is single-threaded and synchronous: classification, merge
// decisions, noted-node aggregation, trimming and persistence all run on
// the session thread. A host embedding the engine in a concurrent program
// must serialize calls externally.
package engine

import (
	"log/slog"
	"time"

	"github.com/skyvault/alertfeed/config"
	"github.com/skyvault/alertfeed/internal/alert"
	"github.com/skyvault/alertfeed/internal/logging"
	"github.com/skyvault/alertfeed/internal/stats"
	"github.com/skyvault/alertfeed/internal/store"
)

// PendingContactUser caches what is known about a user who so far exists
// only as a pending-contact record. It backfills the email of alerts whose
// originating user had no resolvable email at creation time.
type PendingContactUser struct {
	Handle    alert.Handle
	Email     string
	AltEmails []string
	Name      string
}

// ClientState is the slice of session state provisional validation needs.
// The host passes it explicitly; alerts never hold a session back-pointer.
type ClientState interface {
	// ContactVisible reports whether the user is still a visible contact.
	ContactVisible(u alert.Handle) bool

	// PendingRequestExists reports whether the contact request still exists.
	PendingRequestExists(req alert.Handle) bool

	// ShareExists reports whether the folder is still shared with us.
	ShareExists(folder alert.Handle) bool
}

// EmailResolver resolves a user handle to an email, reporting whether one
// is known. Used for lazy email backfill.
type EmailResolver func(u alert.Handle) (string, bool)

// Engine is the user-alert engine for one client session.
type Engine struct {
	log   *slog.Logger
	flags config.AlertFlags

	store *store.Store
	stats *stats.Stats

	pendingContacts map[alert.Handle]PendingContactUser

	// catch-up progress, consumed by the host to decide when the initial
	// alert state is ready to display.
	beginCatchup  bool
	catchupDone   bool
	catchupLastTS int64
	catchupCount  int

	// provisional buffering, active only while catching up.
	provisional  bool
	provisionals []*alert.Alert

	// noted shared nodes: live aggregation window plus the stash for
	// deletions awaiting their own user context. An entry key is in at
	// most one of the two maps at any instant.
	noted       map[notedKey]*notedEntry
	stash       map[notedKey]*notedEntry
	noting      bool
	ignoreUnder alert.Handle

	// tag correlates commits with the application request being processed.
	tag int

	now func() int64
}

// New creates an engine over the given store. stats may be nil.
func New(cfg config.EngineConfig, st *store.Store, tracker *stats.Stats) *Engine {
	if tracker == nil {
		tracker = stats.New(config.DefaultPercentileAccuracy)
	}
	return &Engine{
		log:             logging.Component("engine"),
		flags:           cfg.Alerts,
		catchupCount:    cfg.CatchupCount,
		store:           st,
		stats:           tracker,
		pendingContacts: make(map[alert.Handle]PendingContactUser),
		noted:           make(map[notedKey]*notedEntry),
		stash:           make(map[notedKey]*notedEntry),
		ignoreUnder:     alert.UndefHandle,
		now:             func() int64 { return time.Now().Unix() },
	}
}

// Store exposes the alert log, e.g. for the host's notify drain.
func (e *Engine) Store() *store.Store { return e.store }

// Stats exposes the engine counters.
func (e *Engine) Stats() *stats.Stats { return e.stats }

// SetTag sets the application-correlation tag applied to alerts committed
// from now on.
func (e *Engine) SetTag(tag int) { e.tag = tag }

// NewAlert builds a candidate with the common header set. The candidate
// has no id yet; the id is consumed when the engine accepts it in Add, so
// a candidate dropped by the category filter leaves no gap.
func (e *Engine) NewAlert(user alert.Handle, email string, timestamp int64, p alert.Payload) *alert.Alert {
	if timestamp == 0 {
		timestamp = e.now()
	}
	return alert.New(0, user, email, timestamp, p)
}

// Add offers an alert to the engine. Unwanted categories are dropped;
// accepted candidates consume the next id. While provisional buffering is
// active the alert is held back for validation; otherwise it is committed
// through the merge path. A candidate accepted here but later merged away
// or discarded by validation leaves a gap in the id sequence.
func (e *Engine) Add(a *alert.Alert) {
	if a == nil || a.Payload == nil {
		return
	}
	e.stats.EventsIn++

	if e.isUnwanted(a) {
		e.stats.Unwanted++
		e.log.Debug("alert dropped by category flags", "kind", a.Kind(), "user", a.User)
		return
	}

	if a.ID == 0 {
		a.ID = e.store.NextID()
	}
	if a.Email == "" {
		if pc, ok := e.pendingContacts[a.User]; ok {
			a.Email = pc.Email
		}
	}

	if e.provisional {
		e.provisionals = append(e.provisionals, a)
		return
	}
	e.commit(a)
}

// commit runs the merge decision and lands the alert in the store.
func (e *Engine) commit(a *alert.Alert) {
	start := time.Now()
	a.Tag = e.tag

	if e.tryMerge(a) {
		e.stats.Merged++
		e.log.Debug("candidate merged", "kind", a.Kind(), "skipped_id", a.ID)
	} else {
		before := e.store.Len()
		e.store.Append(a)
		e.stats.Committed++
		if dropped := before + 1 - e.store.Len(); dropped > 0 {
			e.stats.Trimmed += int64(dropped)
		}
		e.log.Debug("alert committed", "kind", a.Kind(), "id", a.ID)
	}
	e.stats.RecordCommit(time.Since(start))
}

// isUnwanted applies the per-category enable switches.
func (e *Engine) isUnwanted(a *alert.Alert) bool {
	switch p := a.Payload.(type) {
	case *alert.IncomingPendingContact:
		if !e.flags.ContactsEnabled || !e.flags.ContactsIncoming {
			return true
		}
		return p.Deleted() && !e.flags.ContactsDeleted
	case *alert.ContactChange:
		return !e.flags.ContactsEnabled
	case *alert.UpdatedPendingContactIncoming:
		if !e.flags.ContactsEnabled {
			return true
		}
		return p.Action == alert.ContactRequestAccepted && !e.flags.ContactsAccepted
	case *alert.UpdatedPendingContactOutgoing:
		if !e.flags.ContactsEnabled {
			return true
		}
		return p.Action == alert.ContactRequestAccepted && !e.flags.ContactsAccepted
	case *alert.NewShare:
		return !e.flags.CloudEnabled || !e.flags.CloudNewShare
	case *alert.DeletedShare:
		return !e.flags.CloudEnabled || !e.flags.CloudDeletedShare
	case *alert.NewSharedNodes, *alert.RemovedSharedNode, *alert.UpdatedSharedNode:
		return !e.flags.CloudEnabled || !e.flags.CloudNewFiles
	default:
		return false
	}
}

// =============================================================================
// Pending contacts and email resolution
// =============================================================================

// SetPendingContact caches a pending-contact record for email backfill.
func (e *Engine) SetPendingContact(pc PendingContactUser) {
	e.pendingContacts[pc.Handle] = pc
}

// PendingContact looks up a cached pending-contact record.
func (e *Engine) PendingContact(u alert.Handle) (PendingContactUser, bool) {
	pc, ok := e.pendingContacts[u]
	return pc, ok
}

// UpdateEmails re-resolves the email of every alert still missing one,
// persisting any that change. Called by the host when fresh user data
// arrives.
func (e *Engine) UpdateEmails(resolve EmailResolver) {
	if resolve == nil {
		return
	}
	for _, a := range e.store.Alerts() {
		email, ok := resolve(a.User)
		if !ok || email == "" || email == a.Email {
			continue
		}
		a.Email = email
		e.store.Persist(a)
	}
}

// =============================================================================
// Catch-up progress
// =============================================================================

// StartCatchup records that the initial bulk fetch was requested.
func (e *Engine) StartCatchup() {
	e.beginCatchup = true
	e.catchupDone = false
}

// CatchupInProgress reports whether a catch-up was requested and has not
// completed.
func (e *Engine) CatchupInProgress() bool { return e.beginCatchup && !e.catchupDone }

// CatchupDone reports whether the full catch-up reply was processed.
func (e *Engine) CatchupDone() bool { return e.catchupDone }

// CatchupLastTimestamp returns the newest alert timestamp seen in the
// catch-up reply.
func (e *Engine) CatchupLastTimestamp() int64 { return e.catchupLastTS }

// CatchupCount returns how many recent alerts the host should request in
// its catch-up fetch.
func (e *Engine) CatchupCount() int { return e.catchupCount }

// =============================================================================
// Acknowledgment
// =============================================================================

// AcknowledgeAll marks every alert seen. The host mirrors the
// acknowledgment to the backing service.
func (e *Engine) AcknowledgeAll() {
	e.store.MarkSeenAll()
	e.log.Debug("all alerts acknowledged")
}

// OnAcknowledgeReceived applies an acknowledgment another session of the
// same account performed.
func (e *Engine) OnAcknowledgeReceived() {
	e.store.MarkSeenAll()
}

// =============================================================================
// Restore / teardown
// =============================================================================

// Restore loads the persisted alert history and advances the id counter
// past the maximum restored id.
func (e *Engine) Restore(db *store.DB) error {
	alerts, err := db.LoadAll()
	if err != nil {
		return err
	}
	e.store.Load(alerts)
	e.log.Info("alert history restored", "alerts", len(alerts))
	return nil
}

// Clear resets the engine to its initial state, discarding alerts, buffered
// provisional alerts, noted nodes and catch-up progress. Used on logout.
func (e *Engine) Clear() {
	e.store.Clear()
	e.pendingContacts = make(map[alert.Handle]PendingContactUser)
	e.beginCatchup = false
	e.catchupDone = false
	e.catchupLastTS = 0
	e.provisional = false
	e.provisionals = nil
	e.clearNoted()
}
