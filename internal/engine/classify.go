package engine

import (
	"github.com/skyvault/alertfeed/internal/alert"
	"github.com/skyvault/alertfeed/internal/raw"
)

// Catch-up replies deliver alerts "raw": a type code plus a field bag.
// Classification turns each record into an alert candidate; a record with
// an unrecognized type code yields no alert and no further signal.

// ProcessCatchupReply classifies and adds every record of the catch-up
// reply, then marks the catch-up done and remembers the newest timestamp
// seen, which the host uses to gate its initial display.
func (e *Engine) ProcessCatchupReply(records []raw.Record) {
	for _, r := range records {
		e.AddRaw(r)
	}
	e.catchupDone = true
	for _, a := range e.store.Alerts() {
		if a.Timestamp > e.catchupLastTS {
			e.catchupLastTS = a.Timestamp
		}
	}
	e.log.Info("catch-up processed", "records", len(records), "alerts", e.store.Len())
}

// AddRaw classifies one raw record and offers the result to the engine.
// Unknown type codes are dropped silently.
func (e *Engine) AddRaw(r raw.Record) {
	a := e.classify(r)
	if a == nil {
		e.stats.EventsIn++
		e.log.Debug("unclassifiable record", "type", string(r.Type()))
		return
	}
	e.Add(a)
}

// classify builds an alert candidate from a raw record, id still unset;
// Add decides whether the candidate is accepted and takes an id.
func (e *Engine) classify(r raw.Record) *alert.Alert {
	user := r.Handle(raw.FieldUser, alert.UndefHandle)
	email := r.String(raw.FieldEmail, "")
	ts := r.Int64(raw.FieldTimestamp, 0)

	var p alert.Payload
	switch r.Type() {
	case raw.TypeIncomingPendingContact:
		p = &alert.IncomingPendingContact{
			RequestHandle: r.Handle(raw.FieldRequest, alert.UndefHandle),
			DeletedTS:     r.Int64(raw.FieldDeletedTS, 0),
			RemindedTS:    r.Int64(raw.FieldRemindedTS, 0),
		}
	case raw.TypeContactChange:
		p = &alert.ContactChange{Action: r.Int(raw.FieldAction, 0)}
	case raw.TypeUpdatedPendingIncoming:
		p = &alert.UpdatedPendingContactIncoming{Action: r.Int(raw.FieldStatus, 0)}
	case raw.TypeUpdatedPendingOutgoing:
		p = &alert.UpdatedPendingContactOutgoing{Action: r.Int(raw.FieldStatus, 0)}
	case raw.TypeNewShare:
		p = &alert.NewShare{Folder: r.Handle(raw.FieldNode, alert.UndefHandle)}
	case raw.TypeDeletedShare:
		p = &alert.DeletedShare{
			Folder: r.Handle(raw.FieldNode, alert.UndefHandle),
			Owner:  r.Handle(raw.FieldOwner, alert.UndefHandle),
		}
	case raw.TypeNewSharedNodes:
		files, folders := splitNodeArray(r)
		p = &alert.NewSharedNodes{
			Parent:  r.Handle(raw.FieldNode, alert.UndefHandle),
			Files:   files,
			Folders: folders,
		}
	case raw.TypeRemovedSharedNode:
		p = &alert.RemovedSharedNode{Nodes: nodeHandles(r)}
	case raw.TypeUpdatedSharedNode:
		p = &alert.UpdatedSharedNode{Nodes: nodeHandles(r)}
	case raw.TypePayment:
		p = &alert.Payment{
			Success: r.String(raw.FieldResult, "") == "s",
			Plan:    r.Int(raw.FieldPlan, 0),
		}
	case raw.TypePaymentReminder:
		p = &alert.PaymentReminder{Expiry: r.Int64(raw.FieldExpiry, ts)}
	case raw.TypeTakedown:
		down := r.Int(raw.FieldTakedown, -1)
		p = &alert.Takedown{
			Down:      down == 1,
			Reinstate: down == 0,
			Node:      r.Handle(raw.FieldNode, alert.UndefHandle),
		}
	case raw.TypeScheduledMeetingNew:
		p = classifyScheduledMeeting(r)
	case raw.TypeScheduledMeetingDel:
		p = &alert.DeletedScheduledMeeting{
			Meeting: r.Handle(raw.FieldMeeting, alert.UndefHandle),
		}
	default:
		return nil
	}

	return e.NewAlert(user, email, ts, p)
}

// classifyScheduledMeeting distinguishes a creation from an update: only
// updates carry the changed-field bitmask.
func classifyScheduledMeeting(r raw.Record) alert.Payload {
	meeting := r.Handle(raw.FieldMeeting, alert.UndefHandle)
	parent := r.Handle(raw.FieldParent, alert.UndefHandle)

	if !r.Has(raw.FieldChanges) {
		return &alert.NewScheduledMeeting{Meeting: meeting, Parent: parent}
	}

	p := &alert.UpdatedScheduledMeeting{Meeting: meeting, Parent: parent}
	bits := r.Int64(raw.FieldChanges, 0)
	for ct := 0; ct < alert.ChangeTypeCount; ct++ {
		if bits&(1<<uint(ct)) == 0 {
			continue
		}
		if ct == alert.ChangeTypeTitle {
			p.Changes.AddChange(ct, r.String(raw.FieldTitleOld, ""), r.String(raw.FieldTitleNew, ""))
		} else {
			p.Changes.AddChange(ct, "", "")
		}
	}
	return p
}

// splitNodeArray partitions the record's node array into files and folders.
func splitNodeArray(r raw.Record) (files, folders []alert.Handle) {
	pairs, ok := r.HandleTypes(raw.FieldNodes)
	if !ok {
		return nil, nil
	}
	for _, ht := range pairs {
		if ht.Type == alert.NodeFolder {
			if !alert.ContainsHandle(folders, ht.Handle) {
				folders = append(folders, ht.Handle)
			}
		} else {
			if !alert.ContainsHandle(files, ht.Handle) {
				files = append(files, ht.Handle)
			}
		}
	}
	return files, folders
}

// nodeHandles extracts unique node handles from either the node array field
// or the single node field.
func nodeHandles(r raw.Record) []alert.Handle {
	if pairs, ok := r.HandleTypes(raw.FieldNodes); ok {
		var hs []alert.Handle
		for _, ht := range pairs {
			if !alert.ContainsHandle(hs, ht.Handle) {
				hs = append(hs, ht.Handle)
			}
		}
		return hs
	}
	if h := r.Handle(raw.FieldNode, alert.UndefHandle); h != alert.UndefHandle {
		return []alert.Handle{h}
	}
	return nil
}
