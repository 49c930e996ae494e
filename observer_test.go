package hxbus

import (
	"context"
	"testing"
)

func collect(o *Observer) []EventDescriptor {
	var out []EventDescriptor
	for d := range o.Registrations() {
		out = append(out, d)
	}
	return out
}

func TestObserverGroup(t *testing.T) {
	o := NewObserver("")
	if o.Group() != DefaultGroup {
		t.Errorf("Group() = %q, want %q", o.Group(), DefaultGroup)
	}
	o.SetGroup("orders")
	if o.Group() != "orders" {
		t.Errorf("Group() = %q", o.Group())
	}
	if o.IsImmediate() {
		t.Error("observers are not immediate by default")
	}
	if !o.Immediate(true).IsImmediate() {
		t.Error("Immediate(true) not applied")
	}
}

func TestRegistrationsOrderAndDuplicates(t *testing.T) {
	o := NewObserver("g1")
	o.AddRegistration(NewEventDescriptor("a", nil, nil))
	o.AddRegistration(NewEventDescriptor("b", nil, nil))
	o.AddRegistration(NewEventDescriptor("a", nil, nil))

	got := collect(o)
	if len(got) != 3 || got[0].Event != "a" || got[1].Event != "b" || got[2].Event != "a" {
		t.Errorf("Registrations() = %v", got)
	}

	// The sequence can be ranged over again.
	if again := collect(o); len(again) != 3 {
		t.Errorf("second iteration yielded %d descriptors", len(again))
	}

	// Early exit.
	n := 0
	for range o.Registrations() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("break after first yield visited %d", n)
	}
}

func TestBeginPassResetsTable(t *testing.T) {
	o := NewObserver("g1")
	o.AddRegistration(NewEventDescriptor("stale", nil, nil))
	o.BeginPass()
	if got := collect(o); len(got) != 0 {
		t.Errorf("after BeginPass Registrations() = %v", got)
	}
}

func TestApplyOnlyInRenderResponse(t *testing.T) {
	o := NewObserver("g1").On(OnEvent{Event: "saved"}, OnEvent{Event: "deleted"})

	for _, phase := range []Phase{0, PhaseRestoreView, PhaseApplyRequestValues, PhaseInvokeApplication} {
		ctx := WithPhase(context.Background(), phase)
		if err := o.Apply(ctx, nil); err != nil {
			t.Fatal(err)
		}
		if got := collect(o); len(got) != 0 {
			t.Errorf("Apply in %s registered %v", phase, got)
		}
	}

	ctx := WithPhase(context.Background(), PhaseRenderResponse)
	if err := o.Apply(ctx, nil); err != nil {
		t.Fatal(err)
	}
	got := collect(o)
	if len(got) != 2 || got[0].Event != "saved" || got[1].Event != "deleted" {
		t.Errorf("Registrations() = %v", got)
	}
}

func TestApplyStopsAtInvalidDeclaration(t *testing.T) {
	o := NewObserver("g1").On(OnEvent{Event: "ok"}, OnEvent{})
	err := o.Apply(WithPhase(context.Background(), PhaseRenderResponse), nil)
	if !IsInvalidDeclaration(err) {
		t.Errorf("Apply() error = %v, want ErrInvalidDeclaration", err)
	}
}

func TestObserverDurableState(t *testing.T) {
	o := NewObserver("orders").Immediate(true)
	o.AddRegistration(NewEventDescriptor("saved", nil, nil))

	state := o.HXEncode()
	if len(state) != 2 {
		t.Errorf("HXEncode() = %v, registrations must not be persisted", state)
	}

	restored := NewObserver("")
	if err := restored.HXDecode(state); err != nil {
		t.Fatal(err)
	}
	if restored.Group() != "orders" || !restored.IsImmediate() {
		t.Errorf("restored = %q / %v", restored.Group(), restored.IsImmediate())
	}
	if got := collect(restored); len(got) != 0 {
		t.Errorf("restored registrations = %v", got)
	}
}

func TestPhaseString(t *testing.T) {
	tests := map[Phase]string{
		PhaseRestoreView:        "restore-view",
		PhaseApplyRequestValues: "apply-request-values",
		PhaseInvokeApplication:  "invoke-application",
		PhaseRenderResponse:     "render-response",
		Phase(0):                "unknown",
	}
	for p, want := range tests {
		if p.String() != want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(p), p.String(), want)
		}
	}
	if CurrentPhase(context.Background()) != 0 {
		t.Error("CurrentPhase without phase should be 0")
	}
}
