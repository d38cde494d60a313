package store

import (
	"testing"

	"github.com/skyvault/alertfeed/internal/alert"
)

// fakePersister records Put/Delete calls without a database.
type fakePersister struct {
	puts    map[uint32][]byte
	deletes []uint32
}

func newFakePersister() *fakePersister {
	return &fakePersister{puts: make(map[uint32][]byte)}
}

func (f *fakePersister) Put(id uint32, data []byte) error {
	f.puts[id] = data
	return nil
}

func (f *fakePersister) Delete(id uint32) error {
	f.deletes = append(f.deletes, id)
	return nil
}

func newShareAlert(id uint32, user, folder alert.Handle) *alert.Alert {
	return alert.New(id, user, "", 1000, &alert.NewShare{Folder: folder})
}

func TestStore_AppendAssignsIDs(t *testing.T) {
	s := New(10, nil)

	a := newShareAlert(0, 1, 100)
	b := newShareAlert(0, 2, 200)
	s.Append(a)
	s.Append(b)

	if a.ID != 1 {
		t.Errorf("expected first id=1, got %d", a.ID)
	}
	if b.ID != 2 {
		t.Errorf("expected second id=2, got %d", b.ID)
	}
	if s.Len() != 2 {
		t.Errorf("expected len=2, got %d", s.Len())
	}
}

func TestStore_IDGapAfterSkippedCandidate(t *testing.T) {
	s := New(10, nil)

	a := newShareAlert(s.NextID(), 1, 100)
	_ = s.NextID() // candidate merged away, id consumed but never committed
	b := newShareAlert(s.NextID(), 1, 300)
	s.Append(a)
	s.Append(b)

	if a.ID != 1 || b.ID != 3 {
		t.Errorf("expected ids 1 and 3, got %d and %d", a.ID, b.ID)
	}
}

func TestStore_TrimRemovesOldestFirst(t *testing.T) {
	p := newFakePersister()
	s := New(200, p)

	for i := 0; i < 200; i++ {
		s.Append(newShareAlert(0, 1, alert.Handle(i)))
	}
	if s.Len() != 200 {
		t.Fatalf("expected len=200, got %d", s.Len())
	}
	oldest := s.Alerts()[0]

	extra := newShareAlert(0, 1, 999)
	s.Append(extra)

	if s.Len() != 200 {
		t.Errorf("expected len=200 after trim, got %d", s.Len())
	}
	for _, a := range s.Alerts() {
		if a == oldest {
			t.Error("previously-oldest alert still present after trim")
		}
	}
	if !oldest.Removed() {
		t.Error("trimmed alert should be marked removed")
	}
	if len(p.deletes) != 1 || p.deletes[0] != oldest.ID {
		t.Errorf("expected persisted delete of id %d, got %v", oldest.ID, p.deletes)
	}
}

func TestStore_NotifyQueueNoDuplicates(t *testing.T) {
	s := New(10, nil)

	a := newShareAlert(0, 1, 100)
	s.Append(a)
	s.Updated(a)
	s.Updated(a)

	got := s.PullNotify()
	if len(got) != 1 {
		t.Fatalf("expected 1 notify entry, got %d", len(got))
	}
	if got[0] != a {
		t.Error("notify entry is not the appended alert")
	}
	if !a.Flushed() {
		t.Error("pulled alert should be flushed")
	}

	// After the drain the alert notifies again on update.
	s.Updated(a)
	if n := s.NotifyPending(); n != 1 {
		t.Errorf("expected 1 pending notify after update, got %d", n)
	}
}

func TestStore_ScanUnflushedStopsAtFlushed(t *testing.T) {
	s := New(10, nil)

	a := newShareAlert(0, 1, 100)
	s.Append(a)
	s.PullNotify() // a is now flushed

	b := newShareAlert(0, 1, 200)
	s.Append(b)

	var seen []*alert.Alert
	s.ScanUnflushed(func(x *alert.Alert) bool {
		seen = append(seen, x)
		return false
	})
	if len(seen) != 1 || seen[0] != b {
		t.Errorf("expected scan to visit only the unflushed alert, visited %d", len(seen))
	}
}

func TestStore_MarkSeenAllPersists(t *testing.T) {
	p := newFakePersister()
	s := New(10, p)

	s.Append(newShareAlert(0, 1, 100))
	s.Append(newShareAlert(0, 2, 200))
	p.puts = make(map[uint32][]byte)

	s.MarkSeenAll()

	for _, a := range s.Alerts() {
		if !a.Seen {
			t.Errorf("alert %d not marked seen", a.ID)
		}
		if _, ok := p.puts[a.ID]; !ok {
			t.Errorf("alert %d seen flag not re-persisted", a.ID)
		}
	}

	// A second call has nothing left to persist.
	p.puts = make(map[uint32][]byte)
	s.MarkSeenAll()
	if len(p.puts) != 0 {
		t.Errorf("expected no writes on second MarkSeenAll, got %d", len(p.puts))
	}
}

func TestStore_RemoveMatching(t *testing.T) {
	p := newFakePersister()
	s := New(10, p)

	a := newShareAlert(0, 1, 100)
	b := newShareAlert(0, 2, 200)
	s.Append(a)
	s.Append(b)
	s.PullNotify()

	s.RemoveMatching(func(x *alert.Alert) bool { return x.User == 1 })

	if s.Len() != 1 {
		t.Fatalf("expected len=1, got %d", s.Len())
	}
	if s.Alerts()[0] != b {
		t.Error("wrong alert removed")
	}
	if !a.Removed() {
		t.Error("removed alert should carry the removed marker")
	}
	if len(p.deletes) != 1 || p.deletes[0] != a.ID {
		t.Errorf("expected persisted delete of id %d, got %v", a.ID, p.deletes)
	}
	if s.NotifyPending() != 1 {
		t.Errorf("expected removal to enqueue notify, pending=%d", s.NotifyPending())
	}
}

func TestStore_LoadAdvancesIDCounter(t *testing.T) {
	s := New(10, nil)

	restored := []*alert.Alert{
		newShareAlert(3, 1, 100),
		newShareAlert(7, 2, 200),
	}
	s.Load(restored)

	if s.Len() != 2 {
		t.Fatalf("expected len=2, got %d", s.Len())
	}
	if s.NotifyPending() != 0 {
		t.Error("restored alerts must not be enqueued for notification")
	}
	if id := s.NextID(); id != 8 {
		t.Errorf("expected next id=8 after restoring max id 7, got %d", id)
	}
}

func TestStore_LoadedAlertsAreFlushed(t *testing.T) {
	s := New(10, nil)

	s.Load([]*alert.Alert{newShareAlert(1, 1, 100)})

	visited := 0
	s.ScanUnflushed(func(a *alert.Alert) bool {
		visited++
		return false
	})
	if visited != 0 {
		t.Errorf("restored history must not be a merge surface, scan visited %d", visited)
	}
}

func TestStore_Clear(t *testing.T) {
	s := New(10, nil)
	s.Append(newShareAlert(0, 1, 100))
	s.Clear()

	if s.Len() != 0 || s.NotifyPending() != 0 {
		t.Error("clear should empty the log and notify queue")
	}
	if id := s.NextID(); id != 1 {
		t.Errorf("expected id counter reset, got %d", id)
	}
}
