package alert

import (
	"reflect"
	"testing"

	"github.com/skyvault/alertfeed/internal/errors"
)

func roundTrip(t *testing.T, a *Alert) *Alert {
	t.Helper()
	data, err := Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data, a.ID)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestCodec_CommonFields(t *testing.T) {
	a := New(42, Handle(0xdeadbeef), "user@example.com", 1700000000, &NewShare{Folder: 7})
	a.Seen = true
	a.Relevant = false

	got := roundTrip(t, a)

	if got.ID != 42 {
		t.Errorf("expected id=42, got %d", got.ID)
	}
	if got.Timestamp != 1700000000 {
		t.Errorf("expected timestamp preserved, got %d", got.Timestamp)
	}
	if got.User != Handle(0xdeadbeef) {
		t.Errorf("expected user preserved, got %x", uint64(got.User))
	}
	if got.Email != "user@example.com" {
		t.Errorf("expected email preserved, got %q", got.Email)
	}
	if got.Relevant || !got.Seen {
		t.Errorf("expected relevant=false seen=true, got %t/%t", got.Relevant, got.Seen)
	}
}

func TestCodec_RemovedMarkerNotPersisted(t *testing.T) {
	a := New(1, 2, "", 100, &PaymentReminder{Expiry: 500})
	a.SetRemoved()

	got := roundTrip(t, a)
	if got.Removed() {
		t.Error("removed marker is transient and must not round-trip")
	}
}

func TestCodec_NewSharedNodes(t *testing.T) {
	a := New(5, 9, "", 1234, &NewSharedNodes{
		Parent:  100,
		Files:   []Handle{1, 2, 3},
		Folders: []Handle{10},
	})

	got := roundTrip(t, a)
	p, ok := got.Payload.(*NewSharedNodes)
	if !ok {
		t.Fatalf("expected NewSharedNodes payload, got %T", got.Payload)
	}
	if p.Parent != 100 {
		t.Errorf("expected parent=100, got %d", p.Parent)
	}
	if len(p.Files) != 3 || p.Files[0] != 1 || p.Files[2] != 3 {
		t.Errorf("file handles not preserved: %v", p.Files)
	}
	if len(p.Folders) != 1 || p.Folders[0] != 10 {
		t.Errorf("folder handles not preserved: %v", p.Folders)
	}
}

func TestCodec_DeletedShareSnapshots(t *testing.T) {
	a := New(5, 9, "owner@example.com", 1234, &DeletedShare{
		Folder: 100,
		Path:   "/shares/projects",
		Name:   "projects",
		Owner:  77,
	})

	got := roundTrip(t, a)
	p := got.Payload.(*DeletedShare)
	if p.Path != "/shares/projects" || p.Name != "projects" || p.Owner != 77 {
		t.Errorf("snapshot fields not preserved: %+v", p)
	}
}

func TestCodec_UpdatedScheduledMeetingWithTitle(t *testing.T) {
	p := &UpdatedScheduledMeeting{Meeting: 11, Parent: UndefHandle}
	p.Changes.AddChange(ChangeTypeTitle, "standup", "retro")
	p.Changes.AddChange(ChangeTypeStartDate, "", "")

	got := roundTrip(t, New(3, 4, "", 99, p))
	gp := got.Payload.(*UpdatedScheduledMeeting)

	if gp.Meeting != 11 || gp.Parent != UndefHandle {
		t.Errorf("meeting handles not preserved: %+v", gp)
	}
	if !gp.Changes.HasChanged(ChangeTypeStartDate) {
		t.Error("start date flag lost")
	}
	title := gp.Changes.UpdatedTitle()
	if title == nil || title.Old != "standup" || title.New != "retro" {
		t.Errorf("title pair not preserved: %+v", title)
	}
}

func TestCodec_UpdatedScheduledMeetingWithoutTitle(t *testing.T) {
	p := &UpdatedScheduledMeeting{Meeting: 11, Parent: 12}
	p.Changes.AddChange(ChangeTypeCancelled, "", "")

	got := roundTrip(t, New(3, 4, "", 99, p))
	gp := got.Payload.(*UpdatedScheduledMeeting)

	if gp.Changes.UpdatedTitle() != nil {
		t.Error("no title pair expected when the title flag is clear")
	}
	if !gp.Changes.HasChanged(ChangeTypeCancelled) {
		t.Error("cancelled flag lost")
	}
}

func TestCodec_IncomingPendingContact(t *testing.T) {
	a := New(8, 15, "peer@example.com", 555, &IncomingPendingContact{
		RequestHandle: 999,
		DeletedTS:     444,
	})

	got := roundTrip(t, a)
	p := got.Payload.(*IncomingPendingContact)
	if p.RequestHandle != 999 || p.DeletedTS != 444 || p.RemindedTS != 0 {
		t.Errorf("payload not preserved: %+v", p)
	}
	if !p.Deleted() || p.Reminded() {
		t.Errorf("expected deleted=true reminded=false")
	}
}

func TestCodec_AllKindsRoundTrip(t *testing.T) {
	updated := &UpdatedScheduledMeeting{Meeting: 13, Parent: 14}
	updated.Changes.AddChange(ChangeTypeTitle, "a", "b")
	updated.Changes.AddChange(ChangeTypeRules, "", "")

	payloads := []Payload{
		&IncomingPendingContact{RequestHandle: 1, DeletedTS: 2, RemindedTS: 3},
		&ContactChange{Action: ContactChangeBlockedYou},
		&UpdatedPendingContactIncoming{Action: ContactRequestAccepted},
		&UpdatedPendingContactOutgoing{Action: ContactRequestDenied},
		&NewShare{Folder: 4},
		&DeletedShare{Folder: 5, Path: "/x/y", Name: "y", Owner: 6},
		&NewSharedNodes{Parent: 7, Files: []Handle{8, 9}, Folders: []Handle{10}},
		&RemovedSharedNode{Nodes: []Handle{11}},
		&UpdatedSharedNode{Nodes: []Handle{12}},
		&Payment{Success: true, Plan: 2},
		&PaymentReminder{Expiry: 1700000000},
		&Takedown{Down: true, Node: 15},
		&NewScheduledMeeting{Meeting: 16, Parent: UndefHandle},
		updated,
		&DeletedScheduledMeeting{Meeting: 17},
	}

	for _, p := range payloads {
		got := roundTrip(t, New(1, 2, "u@example.com", 100, p))
		if !reflect.DeepEqual(got.Payload, p) {
			t.Errorf("%s: payload not preserved: got %#v, want %#v", p.Kind(), got.Payload, p)
		}
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	a := New(1, 2, "", 100, &Payment{Success: true, Plan: 3})
	data, err := Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data[0] = 0xfe

	if _, err := Decode(data, 1); !errors.Is(err, errors.ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDecode_Truncated(t *testing.T) {
	a := New(1, 2, "someone@example.com", 100, &RemovedSharedNode{Nodes: []Handle{1, 2}})
	data, err := Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	for _, cut := range []int{0, 1, 5, len(data) / 2, len(data) - 1} {
		if _, err := Decode(data[:cut], 1); !errors.Is(err, errors.ErrTruncatedRecord) {
			t.Errorf("cut at %d: expected ErrTruncatedRecord, got %v", cut, err)
		}
	}
}

func TestDecode_InvalidChangesetBitmask(t *testing.T) {
	p := &UpdatedScheduledMeeting{Meeting: 1, Parent: 2}
	p.Changes.AddChange(ChangeTypeTimezone, "", "")
	data, err := Encode(New(1, 2, "", 100, p))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// The bitmask is the byte right after the two meeting handles.
	data[len(data)-1] = 0xff

	if _, err := Decode(data, 1); !errors.Is(err, errors.ErrInvalidChangeType) {
		t.Errorf("expected ErrInvalidChangeType, got %v", err)
	}
}

func TestDecode_TrailingBytes(t *testing.T) {
	a := New(1, 2, "", 100, &Takedown{Down: true, Node: 5})
	data, err := Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data = append(data, 0x00)

	if _, err := Decode(data, 1); !errors.Is(err, errors.ErrTruncatedRecord) {
		t.Errorf("expected ErrTruncatedRecord for trailing bytes, got %v", err)
	}
}
