// Package alert defines the user-alert taxonomy for the alertfeed engine.
//
// An Alert is a plain data record: a common header (id, timestamp, originating
// user, email, relevant/seen flags) plus a kind-specific payload. The set of
// kinds is closed; every operation over alerts dispatches on the payload type
// rather than on inheritance, so adding a kind means adding a payload struct
// and one case per operation.
package alert

// Handle identifies a user, node, contact request, share or scheduled meeting.
type Handle uint64

// UndefHandle is the sentinel for an absent handle.
const UndefHandle Handle = ^Handle(0)

// Kind is the alert type discriminant. The numeric values are the persisted
// type tags; they must never be reordered or reused.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindIncomingPendingContact
	KindContactChange
	KindUpdatedPendingContactIncoming
	KindUpdatedPendingContactOutgoing
	KindNewShare
	KindDeletedShare
	KindNewSharedNodes
	KindRemovedSharedNode
	KindUpdatedSharedNode
	KindPayment
	KindPaymentReminder
	KindTakedown
	KindNewScheduledMeeting
	KindUpdatedScheduledMeeting
	KindDeletedScheduledMeeting
)

// String returns a stable lowercase name for the kind.
func (k Kind) String() string {
	switch k {
	case KindIncomingPendingContact:
		return "incoming_pending_contact"
	case KindContactChange:
		return "contact_change"
	case KindUpdatedPendingContactIncoming:
		return "updated_pending_contact_incoming"
	case KindUpdatedPendingContactOutgoing:
		return "updated_pending_contact_outgoing"
	case KindNewShare:
		return "new_share"
	case KindDeletedShare:
		return "deleted_share"
	case KindNewSharedNodes:
		return "new_shared_nodes"
	case KindRemovedSharedNode:
		return "removed_shared_node"
	case KindUpdatedSharedNode:
		return "updated_shared_node"
	case KindPayment:
		return "payment"
	case KindPaymentReminder:
		return "payment_reminder"
	case KindTakedown:
		return "takedown"
	case KindNewScheduledMeeting:
		return "new_scheduled_meeting"
	case KindUpdatedScheduledMeeting:
		return "updated_scheduled_meeting"
	case KindDeletedScheduledMeeting:
		return "deleted_scheduled_meeting"
	default:
		return "invalid"
	}
}

// Contact change action codes, as delivered by the service.
const (
	ContactChangeDeletedYou     = 0
	ContactChangeEstablished    = 1
	ContactChangeAccountDeleted = 2
	ContactChangeBlockedYou     = 3
)

// Pending contact request update action codes.
const (
	ContactRequestIgnored  = 1
	ContactRequestAccepted = 2
	ContactRequestDenied   = 3
)

// Payload is the kind-specific part of an alert. Implementations live in this
// package only; the set is closed.
type Payload interface {
	Kind() Kind

	// appendTo appends the payload's persisted form to buf.
	appendTo(buf []byte) []byte
}

// Alert is one user-facing notification.
type Alert struct {
	// ID is assigned once from the store's monotonic counter. The persisted
	// sequence may show gaps where a candidate was merged away before commit.
	ID uint32

	// Timestamp is the alert's creation or last-merge time, unix seconds.
	Timestamp int64

	// User is the originating user's handle.
	User Handle

	// Email is the originating user's email, resolved lazily; may be empty
	// until a pending-contact record or a resolver supplies it.
	Email string

	// Relevant is cleared for alerts not worth showing, e.g. a payment
	// reminder that is already obsolete.
	Relevant bool

	// Seen is set once the user acknowledged the alert.
	Seen bool

	// Tag correlates the alert with the application request that produced it.
	// Not persisted.
	Tag int

	Payload Payload

	// removed drives persistence cleanup for trimmed or emptied alerts.
	// Transient: never serialized.
	removed bool

	// flushed is set once the alert left the notify queue; flushed alerts are
	// no longer merge targets.
	flushed bool
}

// New builds an alert with the common header filled in. A zero id marks a
// candidate that has not been accepted yet; the store's counter supplies one
// on acceptance.
func New(id uint32, user Handle, email string, timestamp int64, p Payload) *Alert {
	return &Alert{
		ID:        id,
		Timestamp: timestamp,
		User:      user,
		Email:     email,
		Relevant:  true,
		Payload:   p,
	}
}

// Kind returns the payload discriminant, or KindInvalid for a bare header.
func (a *Alert) Kind() Kind {
	if a.Payload == nil {
		return KindInvalid
	}
	return a.Payload.Kind()
}

// SetRemoved marks the alert for persistence cleanup.
func (a *Alert) SetRemoved() { a.removed = true }

// Removed reports whether the alert awaits persistence cleanup.
func (a *Alert) Removed() bool { return a.removed }

// SetFlushed marks the alert as delivered to the application.
func (a *Alert) SetFlushed() { a.flushed = true }

// Flushed reports whether the alert was already delivered; flushed alerts must
// not change under the user.
func (a *Alert) Flushed() bool { return a.flushed }

// =============================================================================
// Payloads
// =============================================================================

// IncomingPendingContact is a new, deleted or reminded incoming contact request.
type IncomingPendingContact struct {
	RequestHandle Handle

	// DeletedTS / RemindedTS are non-zero when the request was deleted or
	// reminded rather than newly created.
	DeletedTS  int64
	RemindedTS int64
}

func (*IncomingPendingContact) Kind() Kind { return KindIncomingPendingContact }

// Deleted reports whether the request was cancelled or denied.
func (p *IncomingPendingContact) Deleted() bool { return p.DeletedTS > 0 }

// Reminded reports whether the request was re-sent as a reminder.
func (p *IncomingPendingContact) Reminded() bool { return p.RemindedTS > 0 }

// ContactChange is a change in an established contact relationship.
type ContactChange struct {
	Action int
}

func (*ContactChange) Kind() Kind { return KindContactChange }

// UpdatedPendingContactIncoming reports the local user's reaction to an
// incoming contact request.
type UpdatedPendingContactIncoming struct {
	Action int
}

func (*UpdatedPendingContactIncoming) Kind() Kind { return KindUpdatedPendingContactIncoming }

// UpdatedPendingContactOutgoing reports the remote user's reaction to an
// outgoing contact request.
type UpdatedPendingContactOutgoing struct {
	Action int
}

func (*UpdatedPendingContactOutgoing) Kind() Kind { return KindUpdatedPendingContactOutgoing }

// NewShare is a folder newly shared with the user.
type NewShare struct {
	Folder Handle
}

func (*NewShare) Kind() Kind { return KindNewShare }

// DeletedShare is access to a shared folder being revoked. Path and name are
// snapshots taken while the share was still resolvable.
type DeletedShare struct {
	Folder Handle
	Path   string
	Name   string
	Owner  Handle
}

func (*DeletedShare) Kind() Kind { return KindDeletedShare }

// NewSharedNodes aggregates nodes added inside a shared folder. The handle
// lists never contain duplicates.
type NewSharedNodes struct {
	Parent  Handle
	Files   []Handle
	Folders []Handle
}

func (*NewSharedNodes) Kind() Kind { return KindNewSharedNodes }

// Empty reports whether ghost suppression erased every handle.
func (p *NewSharedNodes) Empty() bool { return len(p.Files) == 0 && len(p.Folders) == 0 }

// RemovedSharedNode aggregates nodes removed from a shared folder.
type RemovedSharedNode struct {
	Nodes []Handle
}

func (*RemovedSharedNode) Kind() Kind { return KindRemovedSharedNode }

// UpdatedSharedNode aggregates nodes updated inside a shared folder.
type UpdatedSharedNode struct {
	Nodes []Handle
}

func (*UpdatedSharedNode) Kind() Kind { return KindUpdatedSharedNode }

// Payment reports the outcome of a plan purchase.
type Payment struct {
	Success bool
	Plan    int
}

func (*Payment) Kind() Kind { return KindPayment }

// PaymentReminder warns about an upcoming plan expiry.
type PaymentReminder struct {
	Expiry int64
}

func (*PaymentReminder) Kind() Kind { return KindPaymentReminder }

// Takedown reports a node taken down or reinstated.
type Takedown struct {
	Down      bool
	Reinstate bool
	Node      Handle
}

func (*Takedown) Kind() Kind { return KindTakedown }

// NewScheduledMeeting announces a newly scheduled meeting.
type NewScheduledMeeting struct {
	Meeting Handle

	// Parent is the series handle for occurrences of a recurring meeting,
	// UndefHandle otherwise.
	Parent Handle
}

func (*NewScheduledMeeting) Kind() Kind { return KindNewScheduledMeeting }

// UpdatedScheduledMeeting carries a field-level changeset for a meeting update.
type UpdatedScheduledMeeting struct {
	Meeting Handle
	Parent  Handle
	Changes Changeset
}

func (*UpdatedScheduledMeeting) Kind() Kind { return KindUpdatedScheduledMeeting }

// DeletedScheduledMeeting announces a cancelled scheduled meeting.
type DeletedScheduledMeeting struct {
	Meeting Handle
}

func (*DeletedScheduledMeeting) Kind() Kind { return KindDeletedScheduledMeeting }

// =============================================================================
// Handle set helpers
// =============================================================================

// MergeHandles appends the handles from src that are not already present in
// dst, preserving order. Used when folding one node alert into another.
func MergeHandles(dst, src []Handle) []Handle {
	for _, h := range src {
		if !ContainsHandle(dst, h) {
			dst = append(dst, h)
		}
	}
	return dst
}

// ContainsHandle reports whether hs contains h.
func ContainsHandle(hs []Handle, h Handle) bool {
	for _, x := range hs {
		if x == h {
			return true
		}
	}
	return false
}

// RemoveHandle deletes h from hs, preserving order, and reports whether it
// was present.
func RemoveHandle(hs []Handle, h Handle) ([]Handle, bool) {
	for i, x := range hs {
		if x == h {
			return append(hs[:i], hs[i+1:]...), true
		}
	}
	return hs, false
}
