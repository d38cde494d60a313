// Package raw models the catch-up reply records delivered by the service.
//
// A catch-up record is a type code plus a bag of short-coded fields, each
// holding an integer, a handle, a string, or an array of (handle, type)
// pairs. The engine consumes records only through the Record capability
// surface (has-key and typed get-with-default); parsing the actual wire
// form stays with the transport layer.
package raw

import (
	"github.com/skyvault/alertfeed/internal/alert"
)

// Type is a catch-up record type code, matching the service's short names.
type Type string

const (
	TypeIncomingPendingContact Type = "ipc"
	TypeContactChange          Type = "c"
	TypeUpdatedPendingIncoming Type = "upci"
	TypeUpdatedPendingOutgoing Type = "upco"
	TypeNewShare               Type = "share"
	TypeDeletedShare           Type = "dshare"
	TypeNewSharedNodes         Type = "put"
	TypeRemovedSharedNode      Type = "d"
	TypeUpdatedSharedNode      Type = "u"
	TypePayment                Type = "psts"
	TypePaymentReminder        Type = "pses"
	TypeTakedown               Type = "ph"
	TypeScheduledMeetingNew    Type = "mcsmp"
	TypeScheduledMeetingDel    Type = "mcsmr"
)

// Field is a short field code within a record.
type Field string

const (
	FieldUser       Field = "u"    // originating user handle
	FieldEmail      Field = "m"    // originating user email
	FieldTimestamp  Field = "ts"   // event timestamp, unix seconds
	FieldRequest    Field = "p"    // pending contact request handle
	FieldDeletedTS  Field = "dts"  // request deletion timestamp
	FieldRemindedTS Field = "rts"  // request reminder timestamp
	FieldAction     Field = "c"    // contact change / request update action
	FieldStatus     Field = "s"    // request update status
	FieldNode       Field = "n"    // folder or node handle
	FieldOwner      Field = "o"    // share owner handle
	FieldNodes      Field = "f"    // array of (handle, type) pairs
	FieldPlan       Field = "pn"   // payment plan number
	FieldResult     Field = "r"    // payment result
	FieldExpiry     Field = "ex"   // payment expiry timestamp
	FieldTakedown   Field = "down" // takedown (1) or reinstate (0)
	FieldMeeting    Field = "id"   // scheduled meeting handle
	FieldParent     Field = "pid"  // parent series handle
	FieldChanges    Field = "cs"   // changed-field bitmask
	FieldTitleOld   Field = "to"   // previous meeting title
	FieldTitleNew   Field = "tn"   // new meeting title
)

// HandleType is one element of a node array field.
type HandleType struct {
	Handle alert.Handle
	Type   alert.NodeType
}

// Record is the capability surface the engine classifies catch-up replies
// through. Absent or mistyped fields yield the supplied default; there is
// no error channel.
type Record interface {
	// Type returns the record's type code.
	Type() Type

	// Has reports whether the field is present.
	Has(f Field) bool

	// Int returns the field as an int, or def.
	Int(f Field, def int) int

	// Int64 returns the field as an int64, or def.
	Int64(f Field, def int64) int64

	// Handle returns the field as a handle, or def.
	Handle(f Field, def alert.Handle) alert.Handle

	// String returns the field as a string, or def.
	String(f Field, def string) string

	// HandleTypes returns the field as a (handle, type) array; ok is false
	// when the field is absent or not an array.
	HandleTypes(f Field) (v []HandleType, ok bool)
}

// MapRecord is a map-backed Record for hosts that construct records
// programmatically, and for tests.
type MapRecord struct {
	T      Type
	Fields map[Field]any
}

var _ Record = (*MapRecord)(nil)

// Type returns the record's type code.
func (r *MapRecord) Type() Type { return r.T }

// Has reports whether the field is present.
func (r *MapRecord) Has(f Field) bool {
	_, ok := r.Fields[f]
	return ok
}

// Int returns the field as an int, or def.
func (r *MapRecord) Int(f Field, def int) int {
	switch v := r.Fields[f].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return def
	}
}

// Int64 returns the field as an int64, or def.
func (r *MapRecord) Int64(f Field, def int64) int64 {
	switch v := r.Fields[f].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return def
	}
}

// Handle returns the field as a handle, or def.
func (r *MapRecord) Handle(f Field, def alert.Handle) alert.Handle {
	switch v := r.Fields[f].(type) {
	case alert.Handle:
		return v
	case uint64:
		return alert.Handle(v)
	default:
		return def
	}
}

// String returns the field as a string, or def.
func (r *MapRecord) String(f Field, def string) string {
	if v, ok := r.Fields[f].(string); ok {
		return v
	}
	return def
}

// HandleTypes returns the field as a (handle, type) array.
func (r *MapRecord) HandleTypes(f Field) ([]HandleType, bool) {
	v, ok := r.Fields[f].([]HandleType)
	return v, ok
}
