package engine

import (
	"testing"

	"github.com/skyvault/alertfeed/internal/alert"
)

// fakeClientState answers the object-existence checks from fixed sets.
type fakeClientState struct {
	contacts map[alert.Handle]bool
	requests map[alert.Handle]bool
	shares   map[alert.Handle]bool
}

func (s *fakeClientState) ContactVisible(u alert.Handle) bool       { return s.contacts[u] }
func (s *fakeClientState) PendingRequestExists(p alert.Handle) bool { return s.requests[p] }
func (s *fakeClientState) ShareExists(n alert.Handle) bool          { return s.shares[n] }

func TestProvisional_BufferedAlertsInvisible(t *testing.T) {
	e, st := newTestEngine(t)

	e.StartProvisional()
	e.Add(e.NewAlert(7, "", 100, &alert.NewShare{Folder: 60}))

	if !e.ProvisionalMode() {
		t.Error("expected buffering mode active")
	}
	if e.ProvisionalCount() != 1 {
		t.Fatalf("expected 1 buffered alert, got %d", e.ProvisionalCount())
	}
	if st.Len() != 0 || st.NotifyPending() != 0 {
		t.Error("buffered alerts must not be visible in the log or notify queue")
	}
}

func TestProvisional_ValidAlertCommitsOnEval(t *testing.T) {
	e, st := newTestEngine(t)

	e.StartProvisional()
	e.Add(e.NewAlert(7, "", 100, &alert.NewShare{Folder: 60}))
	e.EvalProvisional(1, &fakeClientState{shares: map[alert.Handle]bool{60: true}})

	if e.ProvisionalMode() || e.ProvisionalCount() != 0 {
		t.Error("eval should end buffering and drain the buffer")
	}
	if st.Len() != 1 {
		t.Fatalf("expected the validated alert committed, got %d", st.Len())
	}
}

func TestProvisional_StaleShareDiscarded(t *testing.T) {
	e, st := newTestEngine(t)

	e.StartProvisional()
	e.Add(e.NewAlert(7, "", 100, &alert.NewShare{Folder: 60}))
	e.EvalProvisional(1, &fakeClientState{shares: map[alert.Handle]bool{}})

	if st.Len() != 0 || st.NotifyPending() != 0 {
		t.Error("an alert for a share that no longer exists must vanish without trace")
	}
	if e.Stats().Discarded != 1 {
		t.Errorf("expected 1 discarded alert, got %d", e.Stats().Discarded)
	}
}

func TestProvisional_SelfContactChangeIsStaleEcho(t *testing.T) {
	e, st := newTestEngine(t)

	e.StartProvisional()
	e.Add(e.NewAlert(1, "", 100, &alert.ContactChange{Action: alert.ContactChangeBlockedYou}))
	e.EvalProvisional(1, nil)

	if st.Len() != 0 {
		t.Error("a contact change attributed to the caller itself must be discarded")
	}
}

func TestProvisional_ContactEstablishedRequiresVisibility(t *testing.T) {
	e, st := newTestEngine(t)

	e.StartProvisional()
	e.Add(e.NewAlert(7, "", 100, &alert.ContactChange{Action: alert.ContactChangeEstablished}))
	e.Add(e.NewAlert(8, "", 100, &alert.ContactChange{Action: alert.ContactChangeEstablished}))
	e.EvalProvisional(1, &fakeClientState{contacts: map[alert.Handle]bool{7: true}})

	if st.Len() != 1 {
		t.Fatalf("expected only the visible contact's alert, got %d", st.Len())
	}
	if st.Alerts()[0].User != 7 {
		t.Errorf("wrong survivor: user %d", st.Alerts()[0].User)
	}
}

func TestProvisional_DeletedPendingContactAlwaysValid(t *testing.T) {
	e, st := newTestEngine(t)

	e.StartProvisional()
	e.Add(e.NewAlert(7, "", 100, &alert.IncomingPendingContact{RequestHandle: 5, DeletedTS: 90}))
	// The request itself is gone from state, but the deletion is history.
	e.EvalProvisional(1, &fakeClientState{requests: map[alert.Handle]bool{}})

	if st.Len() != 1 {
		t.Errorf("deletion record must survive validation, got %d alerts", st.Len())
	}
}

func TestProvisional_LivePendingContactNeedsRequest(t *testing.T) {
	e, st := newTestEngine(t)

	e.StartProvisional()
	e.Add(e.NewAlert(7, "", 100, &alert.IncomingPendingContact{RequestHandle: 5}))
	e.EvalProvisional(1, &fakeClientState{requests: map[alert.Handle]bool{}})

	if st.Len() != 0 {
		t.Errorf("a live request that no longer exists must be discarded, got %d alerts", st.Len())
	}
}

func TestProvisional_MergeStillAppliesOnEval(t *testing.T) {
	e, st := newTestEngine(t)

	e.Add(e.NewAlert(7, "", 100, &alert.NewSharedNodes{Parent: 50, Files: []alert.Handle{1}}))

	e.StartProvisional()
	e.Add(e.NewAlert(7, "", 200, &alert.NewSharedNodes{Parent: 50, Files: []alert.Handle{2}}))
	e.EvalProvisional(1, nil)

	if st.Len() != 1 {
		t.Fatalf("validated alert should merge into the unflushed one, got %d", st.Len())
	}
	p := st.Alerts()[0].Payload.(*alert.NewSharedNodes)
	if len(p.Files) != 2 {
		t.Errorf("expected merged handle set, got %v", p.Files)
	}
}

func TestProvisional_ClearDropsBufferWithoutTrace(t *testing.T) {
	e, st := newTestEngine(t)

	e.StartProvisional()
	e.Add(e.NewAlert(7, "", 100, &alert.NewShare{Folder: 60}))
	e.Clear()

	if e.ProvisionalMode() || e.ProvisionalCount() != 0 {
		t.Error("clear should drop buffering state")
	}
	if st.Len() != 0 {
		t.Error("clear should leave no trace of buffered alerts")
	}
}
