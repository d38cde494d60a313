package engine

import (
	"github.com/skyvault/alertfeed/internal/alert"
)

// Bursts of individually delivered change events must collapse into one
// user-facing notification: ten files added to one shared folder are one
// alert, not ten. The merger searches backward from the tail of the log,
// over alerts the application has not flushed yet, for an alert with the
// same kind, same originating user and the same per-kind merge key. A
// match absorbs the candidate; its id is skipped.

// tryMerge attempts to fold the candidate into an existing unflushed alert.
// It reports whether a merge happened. Merge-target-not-found is never an
// error: the caller appends the candidate as new.
func (e *Engine) tryMerge(cand *alert.Alert) bool {
	var target *alert.Alert
	e.store.ScanUnflushed(func(b *alert.Alert) bool {
		if b.Removed() || b.Kind() != cand.Kind() || b.User != cand.User {
			return false
		}
		if !mergeKeyMatch(cand, b) {
			return false
		}
		target = b
		return true
	})
	if target == nil {
		return false
	}

	combine(target, cand)
	e.store.Updated(target)
	return true
}

// mergeKeyMatch applies the per-kind merge key. Kinds without an entry are
// never merged.
func mergeKeyMatch(cand, b *alert.Alert) bool {
	switch cp := cand.Payload.(type) {
	case *alert.NewSharedNodes:
		return cp.Parent == b.Payload.(*alert.NewSharedNodes).Parent
	case *alert.RemovedSharedNode, *alert.UpdatedSharedNode:
		// Same user and kind is the whole key; removals and updates are not
		// scoped to a parent folder.
		return true
	case *alert.Payment:
		return cp.Plan == b.Payload.(*alert.Payment).Plan
	case *alert.UpdatedScheduledMeeting:
		return cp.Meeting == b.Payload.(*alert.UpdatedScheduledMeeting).Meeting
	default:
		return false
	}
}

// combine folds the candidate into the target: handle sets are unioned
// without duplicates, the timestamp advances to the later of the two, and
// kind-specific payload state is reconciled.
func combine(target, cand *alert.Alert) {
	switch tp := target.Payload.(type) {
	case *alert.NewSharedNodes:
		cp := cand.Payload.(*alert.NewSharedNodes)
		tp.Files = alert.MergeHandles(tp.Files, cp.Files)
		tp.Folders = alert.MergeHandles(tp.Folders, cp.Folders)
	case *alert.RemovedSharedNode:
		cp := cand.Payload.(*alert.RemovedSharedNode)
		tp.Nodes = alert.MergeHandles(tp.Nodes, cp.Nodes)
	case *alert.UpdatedSharedNode:
		cp := cand.Payload.(*alert.UpdatedSharedNode)
		tp.Nodes = alert.MergeHandles(tp.Nodes, cp.Nodes)
	case *alert.Payment:
		// Latest outcome wins for the same plan.
		cp := cand.Payload.(*alert.Payment)
		tp.Success = cp.Success
	case *alert.UpdatedScheduledMeeting:
		cp := cand.Payload.(*alert.UpdatedScheduledMeeting)
		mergeChangesets(&tp.Changes, &cp.Changes)
	}

	if cand.Timestamp > target.Timestamp {
		target.Timestamp = cand.Timestamp
	}
	if cand.Email != "" && target.Email == "" {
		target.Email = cand.Email
	}
}

// mergeChangesets unions the changed-field flags. For the title, the newest
// new-value wins while the oldest old-value is kept, so the pair spans the
// whole merged update.
func mergeChangesets(dst, src *alert.Changeset) {
	for ct := 0; ct < alert.ChangeTypeCount; ct++ {
		if !src.HasChanged(ct) {
			continue
		}
		if ct != alert.ChangeTypeTitle {
			dst.AddChange(ct, "", "")
			continue
		}
		oldValue := src.UpdatedTitle().Old
		if prev := dst.UpdatedTitle(); prev != nil {
			oldValue = prev.Old
		}
		dst.AddChange(ct, oldValue, src.UpdatedTitle().New)
	}
}
