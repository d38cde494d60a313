package alert

import (
	"encoding/binary"
	"fmt"

	"github.com/skyvault/alertfeed/internal/errors"
)

// Alert record format (binary, little-endian):
// - Kind tag (1 byte)
// - Timestamp (8 bytes, unix seconds)
// - User handle (8 bytes)
// - Email length (2 bytes) + email bytes
// - Relevant (1 byte, bool)
// - Seen (1 byte, bool)
// - Kind-specific payload
//
// The alert id is not part of the record; it is the key the record is stored
// under. Handle lists are encoded as a 4-byte count followed by 8-byte
// handles. The transient removed marker is never encoded.

// MaxEmailLen bounds the email field; longer values are refused at encode
// time rather than silently truncated.
const MaxEmailLen = 1<<16 - 1

// Encode serializes the alert into its persisted byte form.
func Encode(a *Alert) ([]byte, error) {
	if a.Payload == nil {
		return nil, errors.ErrInvalidKind
	}
	if len(a.Email) > MaxEmailLen {
		return nil, fmt.Errorf("email of %d bytes: %w", len(a.Email), errors.ErrRecordTooLong)
	}

	buf := make([]byte, 0, 64)
	buf = append(buf, byte(a.Kind()))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(a.Timestamp))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(a.User))
	buf = appendString(buf, a.Email)
	buf = appendBool(buf, a.Relevant)
	buf = appendBool(buf, a.Seen)
	return a.Payload.appendTo(buf), nil
}

// Decode reconstructs an alert from its persisted byte form. The id is
// supplied by the caller from the record's storage key.
//
// A truncated record or unknown kind tag returns an error for this record
// only; callers restoring a set of records skip it and continue.
func Decode(data []byte, id uint32) (*Alert, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("empty record: %w", errors.ErrTruncatedRecord)
	}

	kind := Kind(data[0])
	offset := 1

	a := &Alert{ID: id}
	var err error

	ts, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	a.Timestamp = int64(ts)

	user, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, fmt.Errorf("user handle: %w", err)
	}
	a.User = Handle(user)

	a.Email, offset, err = readString(data, offset)
	if err != nil {
		return nil, fmt.Errorf("email: %w", err)
	}

	a.Relevant, offset, err = readBool(data, offset)
	if err != nil {
		return nil, fmt.Errorf("relevant flag: %w", err)
	}

	a.Seen, offset, err = readBool(data, offset)
	if err != nil {
		return nil, fmt.Errorf("seen flag: %w", err)
	}

	decode, ok := payloadDecoders[kind]
	if !ok {
		return nil, fmt.Errorf("kind tag %d: %w", kind, errors.ErrUnknownKind)
	}

	a.Payload, offset, err = decode(data, offset)
	if err != nil {
		return nil, fmt.Errorf("%s payload: %w", kind, err)
	}
	if offset != len(data) {
		return nil, fmt.Errorf("%s record has %d trailing bytes: %w", kind, len(data)-offset, errors.ErrTruncatedRecord)
	}
	return a, nil
}

// payloadDecoders dispatches on the persisted kind tag. One entry per kind;
// the set is closed.
var payloadDecoders = map[Kind]func(data []byte, offset int) (Payload, int, error){
	KindIncomingPendingContact:        decodeIncomingPendingContact,
	KindContactChange:                 decodeContactChange,
	KindUpdatedPendingContactIncoming: decodeUpdatedPendingContactIncoming,
	KindUpdatedPendingContactOutgoing: decodeUpdatedPendingContactOutgoing,
	KindNewShare:                      decodeNewShare,
	KindDeletedShare:                  decodeDeletedShare,
	KindNewSharedNodes:                decodeNewSharedNodes,
	KindRemovedSharedNode:             decodeRemovedSharedNode,
	KindUpdatedSharedNode:             decodeUpdatedSharedNode,
	KindPayment:                       decodePayment,
	KindPaymentReminder:               decodePaymentReminder,
	KindTakedown:                      decodeTakedown,
	KindNewScheduledMeeting:           decodeNewScheduledMeeting,
	KindUpdatedScheduledMeeting:       decodeUpdatedScheduledMeeting,
	KindDeletedScheduledMeeting:       decodeDeletedScheduledMeeting,
}

// =============================================================================
// Per-kind encoding
// =============================================================================

func (p *IncomingPendingContact) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.RequestHandle))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.DeletedTS))
	return binary.LittleEndian.AppendUint64(buf, uint64(p.RemindedTS))
}

func decodeIncomingPendingContact(data []byte, offset int) (Payload, int, error) {
	p := &IncomingPendingContact{}
	rh, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.RequestHandle = Handle(rh)
	dts, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.DeletedTS = int64(dts)
	rts, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.RemindedTS = int64(rts)
	return p, offset, nil
}

func (p *ContactChange) appendTo(buf []byte) []byte {
	return append(buf, byte(p.Action))
}

func decodeContactChange(data []byte, offset int) (Payload, int, error) {
	action, offset, err := readUint8(data, offset)
	if err != nil {
		return nil, offset, err
	}
	return &ContactChange{Action: int(action)}, offset, nil
}

func (p *UpdatedPendingContactIncoming) appendTo(buf []byte) []byte {
	return append(buf, byte(p.Action))
}

func decodeUpdatedPendingContactIncoming(data []byte, offset int) (Payload, int, error) {
	action, offset, err := readUint8(data, offset)
	if err != nil {
		return nil, offset, err
	}
	return &UpdatedPendingContactIncoming{Action: int(action)}, offset, nil
}

func (p *UpdatedPendingContactOutgoing) appendTo(buf []byte) []byte {
	return append(buf, byte(p.Action))
}

func decodeUpdatedPendingContactOutgoing(data []byte, offset int) (Payload, int, error) {
	action, offset, err := readUint8(data, offset)
	if err != nil {
		return nil, offset, err
	}
	return &UpdatedPendingContactOutgoing{Action: int(action)}, offset, nil
}

func (p *NewShare) appendTo(buf []byte) []byte {
	return binary.LittleEndian.AppendUint64(buf, uint64(p.Folder))
}

func decodeNewShare(data []byte, offset int) (Payload, int, error) {
	folder, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	return &NewShare{Folder: Handle(folder)}, offset, nil
}

func (p *DeletedShare) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.Folder))
	buf = appendString(buf, p.Path)
	buf = appendString(buf, p.Name)
	return binary.LittleEndian.AppendUint64(buf, uint64(p.Owner))
}

func decodeDeletedShare(data []byte, offset int) (Payload, int, error) {
	p := &DeletedShare{}
	folder, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.Folder = Handle(folder)
	p.Path, offset, err = readString(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.Name, offset, err = readString(data, offset)
	if err != nil {
		return nil, offset, err
	}
	owner, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.Owner = Handle(owner)
	return p, offset, nil
}

func (p *NewSharedNodes) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.Parent))
	buf = appendHandles(buf, p.Files)
	return appendHandles(buf, p.Folders)
}

func decodeNewSharedNodes(data []byte, offset int) (Payload, int, error) {
	p := &NewSharedNodes{}
	parent, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.Parent = Handle(parent)
	p.Files, offset, err = readHandles(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.Folders, offset, err = readHandles(data, offset)
	if err != nil {
		return nil, offset, err
	}
	return p, offset, nil
}

func (p *RemovedSharedNode) appendTo(buf []byte) []byte {
	return appendHandles(buf, p.Nodes)
}

func decodeRemovedSharedNode(data []byte, offset int) (Payload, int, error) {
	nodes, offset, err := readHandles(data, offset)
	if err != nil {
		return nil, offset, err
	}
	return &RemovedSharedNode{Nodes: nodes}, offset, nil
}

func (p *UpdatedSharedNode) appendTo(buf []byte) []byte {
	return appendHandles(buf, p.Nodes)
}

func decodeUpdatedSharedNode(data []byte, offset int) (Payload, int, error) {
	nodes, offset, err := readHandles(data, offset)
	if err != nil {
		return nil, offset, err
	}
	return &UpdatedSharedNode{Nodes: nodes}, offset, nil
}

func (p *Payment) appendTo(buf []byte) []byte {
	buf = appendBool(buf, p.Success)
	return binary.LittleEndian.AppendUint32(buf, uint32(p.Plan))
}

func decodePayment(data []byte, offset int) (Payload, int, error) {
	p := &Payment{}
	var err error
	p.Success, offset, err = readBool(data, offset)
	if err != nil {
		return nil, offset, err
	}
	plan, offset, err := readUint32(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.Plan = int(plan)
	return p, offset, nil
}

func (p *PaymentReminder) appendTo(buf []byte) []byte {
	return binary.LittleEndian.AppendUint64(buf, uint64(p.Expiry))
}

func decodePaymentReminder(data []byte, offset int) (Payload, int, error) {
	expiry, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	return &PaymentReminder{Expiry: int64(expiry)}, offset, nil
}

func (p *Takedown) appendTo(buf []byte) []byte {
	buf = appendBool(buf, p.Down)
	buf = appendBool(buf, p.Reinstate)
	return binary.LittleEndian.AppendUint64(buf, uint64(p.Node))
}

func decodeTakedown(data []byte, offset int) (Payload, int, error) {
	p := &Takedown{}
	var err error
	p.Down, offset, err = readBool(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.Reinstate, offset, err = readBool(data, offset)
	if err != nil {
		return nil, offset, err
	}
	node, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.Node = Handle(node)
	return p, offset, nil
}

func (p *NewScheduledMeeting) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.Meeting))
	return binary.LittleEndian.AppendUint64(buf, uint64(p.Parent))
}

func decodeNewScheduledMeeting(data []byte, offset int) (Payload, int, error) {
	meeting, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	parent, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	return &NewScheduledMeeting{Meeting: Handle(meeting), Parent: Handle(parent)}, offset, nil
}

// Changeset encoding: a 1-byte bitmask of changed fields, then the title
// old/new pair only when the title bit is set.
func (p *UpdatedScheduledMeeting) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.Meeting))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.Parent))
	buf = append(buf, byte(p.Changes.Changes()))
	if p.Changes.HasChanged(ChangeTypeTitle) {
		title := p.Changes.UpdatedTitle()
		buf = appendString(buf, title.Old)
		buf = appendString(buf, title.New)
	}
	return buf
}

func decodeUpdatedScheduledMeeting(data []byte, offset int) (Payload, int, error) {
	p := &UpdatedScheduledMeeting{}
	meeting, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.Meeting = Handle(meeting)
	parent, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	p.Parent = Handle(parent)

	bits, offset, err := readUint8(data, offset)
	if err != nil {
		return nil, offset, err
	}
	if bits >= 1<<ChangeTypeCount {
		return nil, offset, fmt.Errorf("changeset bitmask %#x: %w", bits, errors.ErrInvalidChangeType)
	}
	var oldTitle, newTitle string
	if bits&(1<<ChangeTypeTitle) != 0 {
		oldTitle, offset, err = readString(data, offset)
		if err != nil {
			return nil, offset, err
		}
		newTitle, offset, err = readString(data, offset)
		if err != nil {
			return nil, offset, err
		}
	}
	for ct := 0; ct < ChangeTypeCount; ct++ {
		if bits&(1<<uint(ct)) == 0 {
			continue
		}
		if ct == ChangeTypeTitle {
			p.Changes.AddChange(ct, oldTitle, newTitle)
		} else {
			p.Changes.AddChange(ct, "", "")
		}
	}
	return p, offset, nil
}

func (p *DeletedScheduledMeeting) appendTo(buf []byte) []byte {
	return binary.LittleEndian.AppendUint64(buf, uint64(p.Meeting))
}

func decodeDeletedScheduledMeeting(data []byte, offset int) (Payload, int, error) {
	meeting, offset, err := readUint64(data, offset)
	if err != nil {
		return nil, offset, err
	}
	return &DeletedScheduledMeeting{Meeting: Handle(meeting)}, offset, nil
}

// =============================================================================
// Primitive encoding helpers
// =============================================================================

// appendString appends a length-prefixed string to the buffer.
func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// appendHandles appends a count-prefixed handle list to the buffer.
func appendHandles(buf []byte, hs []Handle) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(hs)))
	for _, h := range hs {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(h))
	}
	return buf
}

func readUint8(data []byte, offset int) (uint8, int, error) {
	if offset+1 > len(data) {
		return 0, offset, errors.ErrTruncatedRecord
	}
	return data[offset], offset + 1, nil
}

func readBool(data []byte, offset int) (bool, int, error) {
	b, offset, err := readUint8(data, offset)
	return b == 1, offset, err
}

func readUint32(data []byte, offset int) (uint32, int, error) {
	if offset+4 > len(data) {
		return 0, offset, errors.ErrTruncatedRecord
	}
	return binary.LittleEndian.Uint32(data[offset:]), offset + 4, nil
}

func readUint64(data []byte, offset int) (uint64, int, error) {
	if offset+8 > len(data) {
		return 0, offset, errors.ErrTruncatedRecord
	}
	return binary.LittleEndian.Uint64(data[offset:]), offset + 8, nil
}

// readString reads a length-prefixed string from the buffer.
func readString(data []byte, offset int) (string, int, error) {
	if offset+2 > len(data) {
		return "", offset, errors.ErrTruncatedRecord
	}
	length := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2
	if offset+length > len(data) {
		return "", offset, errors.ErrTruncatedRecord
	}
	return string(data[offset : offset+length]), offset + length, nil
}

// readHandles reads a count-prefixed handle list from the buffer.
func readHandles(data []byte, offset int) ([]Handle, int, error) {
	count, offset, err := readUint32(data, offset)
	if err != nil {
		return nil, offset, err
	}
	if count == 0 {
		return nil, offset, nil
	}
	if offset+int(count)*8 > len(data) {
		return nil, offset, errors.ErrTruncatedRecord
	}
	hs := make([]Handle, count)
	for i := range hs {
		hs[i] = Handle(binary.LittleEndian.Uint64(data[offset:]))
		offset += 8
	}
	return hs, offset, nil
}
