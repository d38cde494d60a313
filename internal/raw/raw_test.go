package raw

import (
	"testing"

	"github.com/skyvault/alertfeed/internal/alert"
)

func TestMapRecord_TypedGetters(t *testing.T) {
	r := &MapRecord{
		T: TypeNewSharedNodes,
		Fields: map[Field]any{
			FieldUser:      alert.Handle(7),
			FieldOwner:     uint64(8),
			FieldTimestamp: int64(1234),
			FieldPlan:      4,
			FieldResult:    "s",
			FieldNodes: []HandleType{
				{Handle: 1, Type: alert.NodeFile},
			},
		},
	}

	if r.Type() != TypeNewSharedNodes {
		t.Errorf("expected type %q, got %q", TypeNewSharedNodes, r.Type())
	}
	if got := r.Handle(FieldUser, alert.UndefHandle); got != 7 {
		t.Errorf("expected handle 7, got %d", got)
	}
	if got := r.Handle(FieldOwner, alert.UndefHandle); got != 8 {
		t.Errorf("expected uint64 coerced to handle 8, got %d", got)
	}
	if got := r.Int64(FieldTimestamp, 0); got != 1234 {
		t.Errorf("expected timestamp 1234, got %d", got)
	}
	if got := r.Int(FieldPlan, -1); got != 4 {
		t.Errorf("expected plan 4, got %d", got)
	}
	if got := r.String(FieldResult, ""); got != "s" {
		t.Errorf("expected result %q, got %q", "s", got)
	}
	pairs, ok := r.HandleTypes(FieldNodes)
	if !ok || len(pairs) != 1 || pairs[0].Handle != 1 {
		t.Errorf("expected one (handle, type) pair, got %v ok=%v", pairs, ok)
	}
}

func TestMapRecord_IntCrossCoercion(t *testing.T) {
	r := &MapRecord{Fields: map[Field]any{
		FieldPlan:      int64(4),
		FieldTimestamp: 1234,
	}}

	if got := r.Int(FieldPlan, -1); got != 4 {
		t.Errorf("int64 field read as int: expected 4, got %d", got)
	}
	if got := r.Int64(FieldTimestamp, -1); got != 1234 {
		t.Errorf("int field read as int64: expected 1234, got %d", got)
	}
}

func TestMapRecord_AbsentOrMistypedYieldsDefault(t *testing.T) {
	r := &MapRecord{Fields: map[Field]any{
		FieldEmail: 42, // wrong type on purpose
	}}

	if r.Has(FieldUser) {
		t.Error("absent field reported as present")
	}
	if got := r.Handle(FieldUser, alert.UndefHandle); got != alert.UndefHandle {
		t.Errorf("expected default handle, got %d", got)
	}
	if got := r.Int(FieldPlan, -1); got != -1 {
		t.Errorf("expected default int, got %d", got)
	}
	if got := r.String(FieldEmail, "fallback"); got != "fallback" {
		t.Errorf("mistyped field must yield the default, got %q", got)
	}
	if _, ok := r.HandleTypes(FieldNodes); ok {
		t.Error("absent node array reported ok")
	}
}
