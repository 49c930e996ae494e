package hxbus

import (
	"errors"
	"testing"
)

func TestSnapshotRestore(t *testing.T) {
	root, obs0, obs1 := fixture(t)
	obs1.Observer.Immediate(true)
	btn := root.Lookup("form:btn1")
	btn.Producers = []Producer{NewProducer("click", "saved").InGroup("g1")}

	codec, err := NewCodec([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	token, err := codec.Encode(snapshot(root), false)
	if err != nil {
		t.Fatal(err)
	}

	fresh, _, freshObs1 := fixture(t)
	state, err := codec.Decode(token, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := restore(fresh, state); err != nil {
		t.Fatal(err)
	}

	if !freshObs1.Observer.IsImmediate() || freshObs1.Observer.Group() != "g1" {
		t.Errorf("obs1 = group %q immediate %v", freshObs1.Observer.Group(), freshObs1.Observer.IsImmediate())
	}
	ps := fresh.Lookup("form:btn1").Producers
	if len(ps) != 1 || ps[0] != btn.Producers[0] {
		t.Errorf("producers = %v", ps)
	}
	if _, ok := snapshot(root)[obs0.ClientID()]; !ok {
		t.Error("snapshot skipped obs0")
	}
	if _, ok := snapshot(root)["header"]; ok {
		t.Error("snapshot holds an element without durable state")
	}
}

func TestRestoreMalformed(t *testing.T) {
	root, _, _ := fixture(t)
	tests := []struct {
		name  string
		state map[string]any
	}{
		{"entry is not a map", map[string]any{"form:obs1": "x"}},
		{"producer is not a map", map[string]any{"form:btn1": map[string]any{"p": []any{1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := restore(root, tt.state); !errors.Is(err, ErrInvalidState) {
				t.Errorf("restore() error = %v, want ErrInvalidState", err)
			}
		})
	}
}

func TestPageStateCodec(t *testing.T) {
	root, _, obs1 := fixture(t)
	obs1.Observer.SetGroup("g2")

	codec, err := NewCodec([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	for _, sensitive := range []bool{false, true} {
		token, err := codec.EncodeValue(pageState{root: root}, sensitive)
		if err != nil {
			t.Fatal(err)
		}

		fresh, _, freshObs1 := fixture(t)
		if err := codec.DecodeValue(token, sensitive, pageState{root: fresh}); err != nil {
			t.Fatalf("DecodeValue(sensitive=%v) = %v", sensitive, err)
		}
		if got := freshObs1.Observer.Group(); got != "g2" {
			t.Errorf("sensitive=%v: group = %q, want g2", sensitive, got)
		}
	}

	token, err := codec.Encode(map[string]any{"form:obs1": "x"}, false)
	if err != nil {
		t.Fatal(err)
	}
	err = wrapStateError(codec.DecodeValue(token, false, pageState{root: root}))
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("malformed entry: error = %v, want ErrInvalidState", err)
	}
}
