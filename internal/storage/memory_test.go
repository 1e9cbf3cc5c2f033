package storage

import (
	"context"
	"testing"
	"time"
)

func run(t *testing.T, b Backend, cmds ...Command) []Response {
	t.Helper()
	out, err := b.RunCommands(context.Background(), cmds)
	if err != nil {
		t.Fatalf("RunCommands failed: %v", err)
	}
	return out
}

func TestEditLog_AppendAndRead(t *testing.T) {
	m := NewInMemory()

	run(t, m, WriteEdit{Data: "a"}, WriteEdit{Data: "b"}, WriteEdit{Data: "c"})

	out := run(t, m, ReadEditLogLength{})
	if n := out[0].(NumberOfEdits).Count; n != 3 {
		t.Errorf("log length = %d, want 3", n)
	}

	out = run(t, m, ReadEdits{From: 0, Until: 3})
	if len(out) != 3 {
		t.Fatalf("ReadEdits returned %d responses, want 3", len(out))
	}
	want := []string{"a", "b", "c"}
	for i, r := range out {
		e := r.(Edit)
		if e.Index != int64(i) || e.Data != want[i] {
			t.Errorf("edit %d = (%d, %q), want (%d, %q)", i, e.Index, e.Data, i, want[i])
		}
	}

	// Out-of-range reads clamp instead of failing.
	out = run(t, m, ReadEdits{From: 2, Until: 10})
	if len(out) != 1 || out[0].(Edit).Data != "c" {
		t.Errorf("clamped read = %v, want single edit c", out)
	}
}

func TestHighestUnusedElementID_NeverDecreases(t *testing.T) {
	m := NewInMemory()

	out := run(t, m, ReadHighestUnusedElementID{})
	if id := out[0].(HighestUnusedElementID).ID; id != 0 {
		t.Errorf("fresh animation watermark = %d, want 0", id)
	}

	run(t, m, WriteElement{ID: 7, Data: "x"})
	run(t, m, DeleteElement{ID: 7})

	out = run(t, m, ReadHighestUnusedElementID{})
	if id := out[0].(HighestUnusedElementID).ID; id != 8 {
		t.Errorf("watermark after delete = %d, want 8", id)
	}
}

func TestElement_WriteReadDelete(t *testing.T) {
	m := NewInMemory()

	run(t, m, WriteElement{ID: 1, Data: "one"})

	out := run(t, m, ReadElement{ID: 1})
	if e := out[0].(Element); e.Data != "one" {
		t.Errorf("element data = %q, want one", e.Data)
	}

	run(t, m, DeleteElement{ID: 1})
	out = run(t, m, ReadElement{ID: 1})
	if _, ok := out[0].(NotFound); !ok {
		t.Errorf("read after delete = %v, want NotFound", out[0])
	}
}

func TestLayers_AddReadDelete(t *testing.T) {
	m := NewInMemory()

	run(t, m, AddLayer{ID: 2, Properties: "two"}, AddLayer{ID: 1, Properties: "one"})

	out := run(t, m, ReadLayers{})
	if len(out) != 2 {
		t.Fatalf("ReadLayers returned %d responses, want 2", len(out))
	}
	if out[0].(LayerProperties).ID != 1 || out[1].(LayerProperties).ID != 2 {
		t.Errorf("layers not ordered by id: %v", out)
	}

	out = run(t, m, WriteLayerProperties{ID: 1, Properties: "renamed"}, ReadLayerProperties{ID: 1})
	if p := out[1].(LayerProperties); p.Properties != "renamed" {
		t.Errorf("layer properties = %q, want renamed", p.Properties)
	}

	out = run(t, m, DeleteLayer{ID: 1}, ReadLayerProperties{ID: 1})
	if _, ok := out[1].(NotFound); !ok {
		t.Errorf("read after delete = %v, want NotFound", out[1])
	}
}

func TestKeyFrames_RangesAndContainment(t *testing.T) {
	m := NewInMemory()
	run(t, m, AddLayer{ID: 1, Properties: ""})
	run(t, m, AddKeyFrame{Layer: 1, When: 0}, AddKeyFrame{Layer: 1, When: 500 * time.Millisecond})

	out := run(t, m, ReadKeyFrames{Layer: 1, From: 0, Until: time.Second})
	if len(out) != 2 {
		t.Fatalf("ReadKeyFrames returned %d responses, want 2", len(out))
	}
	first := out[0].(KeyFrame)
	if first.Start != 0 || first.End != 500*time.Millisecond {
		t.Errorf("first frame = %v, want [0, 500ms)", first)
	}
	second := out[1].(KeyFrame)
	if second.Start != 500*time.Millisecond || second.End != MaxDuration {
		t.Errorf("second frame = %v, want [500ms, max)", second)
	}
}

func TestKeyFrames_NotInAFrame(t *testing.T) {
	m := NewInMemory()
	run(t, m, AddLayer{ID: 1, Properties: ""})
	run(t, m, AddKeyFrame{Layer: 1, When: time.Second})

	out := run(t, m, ReadKeyFrames{Layer: 1, From: 0, Until: 100 * time.Millisecond})
	nif, ok := out[0].(NotInAFrame)
	if !ok {
		t.Fatalf("response = %v, want NotInAFrame", out[0])
	}
	if nif.Next != time.Second {
		t.Errorf("next frame = %v, want 1s", nif.Next)
	}
}

func TestAttachments_OrderAndDetach(t *testing.T) {
	m := NewInMemory()
	run(t, m,
		AddLayer{ID: 1, Properties: ""},
		AddKeyFrame{Layer: 1, When: 0},
		WriteElement{ID: 10, Data: "ten"},
		WriteElement{ID: 11, Data: "eleven"},
		AttachElementToLayer{Layer: 1, Element: 10, When: 442 * time.Millisecond},
		AttachElementToLayer{Layer: 1, Element: 11, When: 442 * time.Millisecond},
	)

	// Both attach to the keyframe at 0, in attach order.
	out := run(t, m, ReadElementsForKeyFrame{Layer: 1, When: 442 * time.Millisecond})
	if len(out) != 2 || out[0].(Element).ID != 10 || out[1].(Element).ID != 11 {
		t.Errorf("elements for keyframe = %v, want [10 11]", out)
	}

	out = run(t, m, ReadElementAttachments{Element: 10})
	att := out[0].(ElementAttachments)
	if len(att.Attached) != 1 || att.Attached[0] != (Attachment{Layer: 1, When: 0}) {
		t.Errorf("attachments = %v, want [{1 0}]", att.Attached)
	}

	run(t, m, DetachElementFromLayer{Element: 10})
	out = run(t, m, ReadElementsForKeyFrame{Layer: 1, When: 0})
	if len(out) != 1 || out[0].(Element).ID != 11 {
		t.Errorf("elements after detach = %v, want [11]", out)
	}
}

func TestAttach_BeforeAnyKeyFrame(t *testing.T) {
	m := NewInMemory()
	run(t, m, AddLayer{ID: 1, Properties: ""}, AddKeyFrame{Layer: 1, When: time.Second})

	out := run(t, m, AttachElementToLayer{Layer: 1, Element: 5, When: 0})
	if _, ok := out[0].(NotFound); !ok {
		t.Errorf("attach before first keyframe = %v, want NotFound", out[0])
	}
}
