package alert

import "testing"

func TestChangeset_AddChange(t *testing.T) {
	var cs Changeset

	if !cs.AddChange(ChangeTypeTimezone, "", "") {
		t.Error("in-range change should be accepted")
	}
	if !cs.HasChanged(ChangeTypeTimezone) {
		t.Error("timezone flag should be set")
	}
	if cs.HasChanged(ChangeTypeTitle) {
		t.Error("title flag should not be set")
	}
}

func TestChangeset_TitlePairInvariant(t *testing.T) {
	var cs Changeset

	if cs.UpdatedTitle() != nil {
		t.Error("empty changeset should have no title pair")
	}

	cs.AddChange(ChangeTypeTitle, "old name", "new name")
	title := cs.UpdatedTitle()
	if title == nil {
		t.Fatal("title flag set but no title pair present")
	}
	if title.Old != "old name" || title.New != "new name" {
		t.Errorf("expected old/new pair, got %q/%q", title.Old, title.New)
	}
}

func TestChangeset_OutOfRangeRefused(t *testing.T) {
	var cs Changeset

	if cs.AddChange(ChangeTypeCount, "", "") {
		t.Error("out-of-range change type should be refused")
	}
	if cs.AddChange(-1, "", "") {
		t.Error("negative change type should be refused")
	}
	if !cs.Empty() {
		t.Error("refused changes must not mutate the set")
	}
	if cs.HasChanged(ChangeTypeCount) || cs.HasChanged(-1) {
		t.Error("out-of-range query should report false")
	}
}

func TestChangeset_Bitmask(t *testing.T) {
	var cs Changeset
	cs.AddChange(ChangeTypeTitle, "a", "b")
	cs.AddChange(ChangeTypeRules, "", "")

	want := uint64(1<<ChangeTypeTitle | 1<<ChangeTypeRules)
	if got := cs.Changes(); got != want {
		t.Errorf("expected bitmask %#x, got %#x", want, got)
	}
}
