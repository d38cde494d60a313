package engine

import (
	"sort"

	"github.com/skyvault/alertfeed/internal/alert"
)

// Node-level events arrive one at a time but must surface as one alert per
// (originating user, parent folder). The engine aggregates them in the
// "noted" map while a noting window is open and converts them to alerts at
// an explicit boundary. Deletions observed while converting for a different
// user are diverted to the stash and converted later under their own user.

// notedKey identifies one aggregation bucket.
type notedKey struct {
	user   alert.Handle
	parent alert.Handle
}

// notedEntry accumulates node handles for one bucket since the last
// conversion, split by node category. The mapped kind records how each node
// should surface: removal or update.
type notedEntry struct {
	timestamp int64
	files     map[alert.Handle]alert.Kind
	folders   map[alert.Handle]alert.Kind
}

func newNotedEntry() *notedEntry {
	return &notedEntry{
		files:   make(map[alert.Handle]alert.Kind),
		folders: make(map[alert.Handle]alert.Kind),
	}
}

func (n *notedEntry) empty() bool { return len(n.files) == 0 && len(n.folders) == 0 }

// handlesByKind returns the sorted handles of one category noted under the
// given kind. Sorting keeps conversion deterministic regardless of event
// interleaving.
func handlesByKind(m map[alert.Handle]alert.Kind, kind alert.Kind) []alert.Handle {
	var hs []alert.Handle
	for h, k := range m {
		if k == kind {
			hs = append(hs, h)
		}
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// allHandles returns the sorted handles of one category regardless of kind.
func allHandles(m map[alert.Handle]alert.Kind) []alert.Handle {
	hs := make([]alert.Handle, 0, len(m))
	for h := range m {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// merge folds other into n, keeping the later timestamp.
func (n *notedEntry) merge(other *notedEntry) {
	for h, k := range other.files {
		n.files[h] = k
	}
	for h, k := range other.folders {
		n.folders[h] = k
	}
	if other.timestamp > n.timestamp {
		n.timestamp = other.timestamp
	}
}

// BeginNoting opens an aggregation window. Any leftover live entries from
// an abandoned window are discarded.
func (e *Engine) BeginNoting() {
	e.noting = true
	e.noted = make(map[notedKey]*notedEntry)
}

// Noting reports whether an aggregation window is open.
func (e *Engine) Noting() bool { return e.noting }

// IgnoreNextUnder excludes nodes under the given ancestor from the current
// window. Used when the subtree root itself is newly noted, so its children
// would only duplicate the notification.
func (e *Engine) IgnoreNextUnder(h alert.Handle) {
	e.ignoreUnder = h
}

// Note records a node-level event into the live map for (user, parent of
// node). alertType states how the node should surface on a removal
// conversion: KindRemovedSharedNode or KindUpdatedSharedNode. Outside an
// open window the event is dropped.
func (e *Engine) Note(user alert.Handle, timestamp int64, n alert.Node, alertType alert.Kind) {
	if !e.noting {
		return
	}
	if e.ignoreUnder != alert.UndefHandle && (n.Parent == e.ignoreUnder || n.Handle == e.ignoreUnder) {
		e.log.Debug("node under ignored subtree", "node", n.Handle, "under", e.ignoreUnder)
		return
	}

	key := notedKey{user: user, parent: n.Parent}
	entry, ok := e.noted[key]
	if !ok {
		entry = newNotedEntry()
		e.noted[key] = entry
	}
	if timestamp > entry.timestamp {
		entry.timestamp = timestamp
	}
	if n.Type == alert.NodeFolder {
		entry.folders[n.Handle] = alertType
	} else {
		entry.files[n.Handle] = alertType
	}
}

// ConvertNoted closes the window and emits alerts for the accumulated
// entries. added selects between NewSharedNodes conversion and the
// removal/update conversion with ghost suppression. On a removal
// conversion, entries belonging to a different user than originatingUser
// are stashed for a later ConvertStashed under their own user.
func (e *Engine) ConvertNoted(added bool, originatingUser alert.Handle) {
	e.noting = false
	e.ignoreUnder = alert.UndefHandle

	if !added && originatingUser != alert.UndefHandle {
		e.stashForeignDeletions(originatingUser)
	}

	for _, key := range sortedNotedKeys(e.noted) {
		entry := e.noted[key]
		if added {
			e.convertAdded(key, entry)
		} else {
			e.convertRemoved(key, entry)
		}
	}
	e.noted = make(map[notedKey]*notedEntry)
}

// ConvertStashed converts the stashed deletions, each under its own user
// context. Called once the originating users have been resolved.
func (e *Engine) ConvertStashed() {
	for _, key := range sortedNotedKeys(e.stash) {
		e.convertRemoved(key, e.stash[key])
	}
	e.stash = make(map[notedKey]*notedEntry)
}

// StashedDeletionsEmpty reports whether any deletions await conversion.
func (e *Engine) StashedDeletionsEmpty() bool { return len(e.stash) == 0 }

// stashForeignDeletions moves live entries whose user differs from
// originatingUser into the stash. An entry key lives in exactly one of the
// two maps, so entries are merged if the key was stashed before.
func (e *Engine) stashForeignDeletions(originatingUser alert.Handle) {
	for key, entry := range e.noted {
		if key.user == originatingUser {
			continue
		}
		if stashed, ok := e.stash[key]; ok {
			stashed.merge(entry)
		} else {
			e.stash[key] = entry
		}
		delete(e.noted, key)
	}
}

// convertAdded emits or merges one NewSharedNodes alert for a bucket.
func (e *Engine) convertAdded(key notedKey, entry *notedEntry) {
	if entry.empty() {
		return
	}
	cand := e.NewAlert(key.user, "", entry.timestamp, &alert.NewSharedNodes{
		Parent:  key.parent,
		Files:   allHandles(entry.files),
		Folders: allHandles(entry.folders),
	})
	e.Add(cand)
}

// convertRemoved emits or merges removal and update alerts for a bucket,
// after ghost suppression: a handle that was added and removed within the
// same unflushed window never surfaces at all.
func (e *Engine) convertRemoved(key notedKey, entry *notedEntry) {
	var removed []alert.Handle
	for _, h := range append(handlesByKind(entry.files, alert.KindRemovedSharedNode),
		handlesByKind(entry.folders, alert.KindRemovedSharedNode)...) {
		if e.eraseNodeFromAlerts(h, false) {
			// Added and removed before ever being surfaced: no net alert.
			e.stats.Suppressed++
			e.log.Debug("ghost removal suppressed", "node", h)
			continue
		}
		removed = append(removed, h)
	}

	updated := append(handlesByKind(entry.files, alert.KindUpdatedSharedNode),
		handlesByKind(entry.folders, alert.KindUpdatedSharedNode)...)

	if len(removed) > 0 {
		e.Add(e.NewAlert(key.user, "", entry.timestamp, &alert.RemovedSharedNode{Nodes: removed}))
	}
	if len(updated) > 0 {
		e.Add(e.NewAlert(key.user, "", entry.timestamp, &alert.UpdatedSharedNode{Nodes: updated}))
	}
}

// eraseNodeFromAlerts searches alerts for the handle and erases it from
// NewSharedNodes and RemovedSharedNode payloads. It reports true when the
// handle was erased from a NewSharedNodes alert, in which case the pending
// removal must be suppressed. An alert whose payload becomes empty is
// removed outright.
//
// With includeFlushed false, alerts already drained to the application are
// out of bounds: once the user saw "file added", a later deletion must
// surface as a removal alert, not silently rewrite the shown notification.
// Only the full node purge passes true.
func (e *Engine) eraseNodeFromAlerts(h alert.Handle, includeFlushed bool) bool {
	suppress := false
	var emptied []*alert.Alert

	for _, a := range e.store.Alerts() {
		if a.Flushed() && !includeFlushed {
			continue
		}
		switch p := a.Payload.(type) {
		case *alert.NewSharedNodes:
			erased := false
			if files, ok := alert.RemoveHandle(p.Files, h); ok {
				p.Files = files
				erased = true
			}
			if folders, ok := alert.RemoveHandle(p.Folders, h); ok {
				p.Folders = folders
				erased = true
			}
			if erased {
				suppress = true
				if p.Empty() {
					emptied = append(emptied, a)
				} else {
					e.store.Updated(a)
				}
			}
		case *alert.RemovedSharedNode:
			if nodes, ok := alert.RemoveHandle(p.Nodes, h); ok {
				p.Nodes = nodes
				if len(p.Nodes) == 0 {
					emptied = append(emptied, a)
				} else {
					e.store.Updated(a)
				}
			}
		}
	}

	for _, a := range emptied {
		target := a
		e.store.RemoveMatching(func(b *alert.Alert) bool { return b == target })
	}
	return suppress
}

// =============================================================================
// Node lifecycle hooks
// =============================================================================

// RemoveNodeAlerts purges every trace of a node that ceased to exist: its
// handle disappears from the live map, the stash and committed alerts.
func (e *Engine) RemoveNodeAlerts(n alert.Node) {
	removeNotedHandle(e.noted, n.Handle)
	removeNotedHandle(e.stash, n.Handle)
	e.eraseNodeFromAlerts(n.Handle, true)
}

// SetNodeAlertToUpdate reclassifies a noted node so a pending removal
// conversion surfaces it as an update instead.
func (e *Engine) SetNodeAlertToUpdate(n alert.Node) {
	for _, m := range []map[notedKey]*notedEntry{e.noted, e.stash} {
		for _, entry := range m {
			if _, ok := entry.files[n.Handle]; ok {
				entry.files[n.Handle] = alert.KindUpdatedSharedNode
			}
			if _, ok := entry.folders[n.Handle]; ok {
				entry.folders[n.Handle] = alert.KindUpdatedSharedNode
			}
		}
	}
}

// IsHandleInAlertsAsRemoved reports whether the handle appears in a
// committed RemovedSharedNode alert or is noted for removal.
func (e *Engine) IsHandleInAlertsAsRemoved(h alert.Handle) bool {
	for _, a := range e.store.Alerts() {
		if p, ok := a.Payload.(*alert.RemovedSharedNode); ok && alert.ContainsHandle(p.Nodes, h) {
			return true
		}
	}
	return notedAsRemoved(e.noted, h) || notedAsRemoved(e.stash, h)
}

func notedAsRemoved(m map[notedKey]*notedEntry, h alert.Handle) bool {
	for _, entry := range m {
		if entry.files[h] == alert.KindRemovedSharedNode || entry.folders[h] == alert.KindRemovedSharedNode {
			return true
		}
	}
	return false
}

func removeNotedHandle(m map[notedKey]*notedEntry, h alert.Handle) {
	for key, entry := range m {
		delete(entry.files, h)
		delete(entry.folders, h)
		if entry.empty() {
			delete(m, key)
		}
	}
}

func (e *Engine) clearNoted() {
	e.noted = make(map[notedKey]*notedEntry)
	e.stash = make(map[notedKey]*notedEntry)
	e.noting = false
	e.ignoreUnder = alert.UndefHandle
}

// sortedNotedKeys returns the map keys ordered by (user, parent) so that
// conversion emits alerts in a deterministic order.
func sortedNotedKeys(m map[notedKey]*notedEntry) []notedKey {
	keys := make([]notedKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].user != keys[j].user {
			return keys[i].user < keys[j].user
		}
		return keys[i].parent < keys[j].parent
	})
	return keys
}
