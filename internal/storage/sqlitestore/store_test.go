package sqlitestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/flipbook/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "animation.flipbook"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func run(t *testing.T, s *Store, cmds ...storage.Command) []storage.Response {
	t.Helper()
	out, err := s.RunCommands(context.Background(), cmds)
	if err != nil {
		t.Fatalf("RunCommands failed: %v", err)
	}
	return out
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "animation.flipbook")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "animation.flipbook")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestEditLog_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "animation.flipbook")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	run(t, s1, storage.WriteEdit{Data: "first"}, storage.WriteEdit{Data: "second"})
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	out := run(t, s2, storage.ReadEditLogLength{}, storage.ReadEdits{From: 0, Until: 2})
	if n := out[0].(storage.NumberOfEdits).Count; n != 2 {
		t.Errorf("log length = %d, want 2", n)
	}
	if e := out[1].(storage.Edit); e.Index != 0 || e.Data != "first" {
		t.Errorf("edit 0 = %+v, want (0, first)", e)
	}
	if e := out[2].(storage.Edit); e.Index != 1 || e.Data != "second" {
		t.Errorf("edit 1 = %+v, want (1, second)", e)
	}
}

func TestElementWatermark_PersistsAcrossDelete(t *testing.T) {
	s := openTestStore(t)

	run(t, s, storage.WriteElement{ID: 41, Data: "x"}, storage.DeleteElement{ID: 41})

	out := run(t, s, storage.ReadHighestUnusedElementID{})
	if id := out[0].(storage.HighestUnusedElementID).ID; id != 42 {
		t.Errorf("watermark = %d, want 42", id)
	}
}

func TestKeyFramesAndAttachments(t *testing.T) {
	s := openTestStore(t)

	run(t, s,
		storage.AddLayer{ID: 2, Properties: "props"},
		storage.AddKeyFrame{Layer: 2, When: 0},
		storage.WriteElement{ID: 1, Data: "brush"},
		storage.WriteElement{ID: 2, Data: "stroke"},
		storage.AttachElementToLayer{Layer: 2, Element: 1, When: 442 * time.Millisecond},
		storage.AttachElementToLayer{Layer: 2, Element: 2, When: 442 * time.Millisecond},
	)

	out := run(t, s, storage.ReadElementsForKeyFrame{Layer: 2, When: 442 * time.Millisecond})
	if len(out) != 2 {
		t.Fatalf("elements for keyframe = %d responses, want 2", len(out))
	}
	if out[0].(storage.Element).ID != 1 || out[1].(storage.Element).ID != 2 {
		t.Errorf("attach order not preserved: %v", out)
	}

	out = run(t, s, storage.ReadKeyFrames{Layer: 2, From: 0, Until: time.Second})
	kf := out[0].(storage.KeyFrame)
	if kf.Start != 0 || kf.End != storage.MaxDuration {
		t.Errorf("keyframe = %+v, want [0, max)", kf)
	}
}

func TestDeleteLayer_CascadesToKeyFrames(t *testing.T) {
	s := openTestStore(t)

	run(t, s,
		storage.AddLayer{ID: 1, Properties: ""},
		storage.AddKeyFrame{Layer: 1, When: 0},
		storage.WriteElement{ID: 9, Data: "el"},
		storage.AttachElementToLayer{Layer: 1, Element: 9, When: 0},
		storage.DeleteLayer{ID: 1},
	)

	out := run(t, s, storage.ReadKeyFrames{Layer: 1, From: 0, Until: time.Second})
	if _, ok := out[0].(storage.NotFound); !ok {
		t.Errorf("keyframes after layer delete = %v, want NotFound", out[0])
	}

	// The element record itself survives: only the layer's structures go.
	out = run(t, s, storage.ReadElement{ID: 9})
	if _, ok := out[0].(storage.Element); !ok {
		t.Errorf("element after layer delete = %v, want Element", out[0])
	}
}

func TestBatch_ResponsesStayOrdered(t *testing.T) {
	s := openTestStore(t)

	out := run(t, s,
		storage.WriteEdit{Data: "a"},
		storage.ReadEditLogLength{},
		storage.WriteEdit{Data: "b"},
		storage.ReadEditLogLength{},
	)
	if len(out) != 4 {
		t.Fatalf("got %d responses, want 4", len(out))
	}
	if n := out[1].(storage.NumberOfEdits).Count; n != 1 {
		t.Errorf("mid-batch length = %d, want 1", n)
	}
	if n := out[3].(storage.NumberOfEdits).Count; n != 2 {
		t.Errorf("end-batch length = %d, want 2", n)
	}
}
