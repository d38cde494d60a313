package alert

// Scheduled-meeting fields that an update alert can flag as changed. The set
// is closed; ChangeTypeCount bounds the flag array and the persisted bitmask.
const (
	ChangeTypeTitle = iota
	ChangeTypeDescription
	ChangeTypeCancelled
	ChangeTypeTimezone
	ChangeTypeStartDate
	ChangeTypeEndDate
	ChangeTypeRules

	ChangeTypeCount
)

// TitleChange holds the old and new meeting title for a title change.
type TitleChange struct {
	Old string
	New string
}

// Changeset records which fields of a scheduled meeting changed. Invariant:
// if the title flag is set, the title old/new pair is present.
type Changeset struct {
	changed [ChangeTypeCount]bool
	title   *TitleChange
}

// AddChange flags changeType as changed. For ChangeTypeTitle the old and new
// values are recorded. An out-of-range changeType is refused without mutating
// the set; the return value reports whether the flag was applied.
func (c *Changeset) AddChange(changeType int, oldValue, newValue string) bool {
	if !validChangeType(changeType) {
		return false
	}
	c.changed[changeType] = true
	if changeType == ChangeTypeTitle {
		c.title = &TitleChange{Old: oldValue, New: newValue}
	}
	return true
}

// HasChanged reports whether changeType is flagged. Out-of-range indexes
// report false.
func (c *Changeset) HasChanged(changeType int) bool {
	if !validChangeType(changeType) {
		return false
	}
	return c.changed[changeType]
}

// UpdatedTitle returns the title pair, or nil if the title did not change.
func (c *Changeset) UpdatedTitle() *TitleChange { return c.title }

// Changes returns the flag set packed as a bitmask, bit i = change type i.
func (c *Changeset) Changes() uint64 {
	var bits uint64
	for i, set := range c.changed {
		if set {
			bits |= 1 << uint(i)
		}
	}
	return bits
}

// Empty reports whether no field is flagged.
func (c *Changeset) Empty() bool {
	for _, set := range c.changed {
		if set {
			return false
		}
	}
	return true
}

// ChangeTypeName returns a stable name for a change type, for logging.
func ChangeTypeName(changeType int) string {
	switch changeType {
	case ChangeTypeTitle:
		return "title"
	case ChangeTypeDescription:
		return "description"
	case ChangeTypeCancelled:
		return "cancelled"
	case ChangeTypeTimezone:
		return "timezone"
	case ChangeTypeStartDate:
		return "start_date"
	case ChangeTypeEndDate:
		return "end_date"
	case ChangeTypeRules:
		return "rules"
	default:
		return "unknown"
	}
}

func validChangeType(changeType int) bool {
	return changeType >= 0 && changeType < ChangeTypeCount
}
