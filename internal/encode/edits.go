package encode

import (
	"github.com/roach88/flipbook/internal/edit"
)

// Edit encodes a single animation edit.
//
// The mapping from edit variant to tag is total: adding a new variant to the
// edit package makes writeEdit's type switch fall through to the final panic
// in tests, forcing both an encode and a decode implementation.
func Edit(e edit.AnimationEdit) string {
	t := NewTarget()
	writeEdit(t, e)
	return t.String()
}

// DecodeEdit decodes a single animation edit. It returns ok == false for
// malformed or truncated input and for input with trailing garbage.
func DecodeEdit(s string) (edit.AnimationEdit, bool) {
	src := NewSource(s)
	e := readEdit(src)
	if !src.Done() {
		return nil, false
	}
	return e, true
}

// EditBatch encodes an ordered batch of edits as one record.
func EditBatch(batch []edit.AnimationEdit) string {
	t := NewTarget()
	writeEditBatch(t, batch)
	return t.String()
}

// DecodeEditBatch decodes a batch record.
func DecodeEditBatch(s string) ([]edit.AnimationEdit, bool) {
	src := NewSource(s)
	batch := readEditBatch(src)
	if !src.Done() {
		return nil, false
	}
	return batch, true
}

// Equal reports whether two edits encode identically. Encoded equality is
// the comparison used throughout the undo protocol: it is exactly the
// equivalence the log itself preserves.
func Equal(a, b edit.AnimationEdit) bool {
	return Edit(a) == Edit(b)
}

// BatchEqual reports whether two edit batches encode identically, element by
// element.
func BatchEqual(a, b []edit.AnimationEdit) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func writeEdit(t *Target, e edit.AnimationEdit) {
	switch v := e.(type) {
	case edit.SetSize:
		t.Tag('S')
		t.Float(v.Width)
		t.Float(v.Height)

	case edit.SetFrameLength:
		t.Tag('f')
		t.Duration(v.Length)

	case edit.SetLength:
		t.Tag('l')
		t.Duration(v.Length)

	case edit.AddNewLayer:
		t.Tag('+')
		t.Uint(v.LayerID)

	case edit.RemoveLayer:
		t.Tag('-')
		t.Uint(v.LayerID)

	case edit.Layer:
		t.Tag('L')
		t.Uint(v.LayerID)
		writeLayerEdit(t, v.Edit)

	case edit.Element:
		t.Tag('E')
		t.Int(int64(len(v.Elements)))
		for _, id := range v.Elements {
			t.ID(id)
		}
		writeElementEdit(t, v.Edit)

	case edit.Motion:
		t.Tag('M')
		t.ID(v.Target)
		writeMotionEdit(t, v.Edit)

	case edit.Undo:
		t.Tag('U')
		writeUndoEdit(t, v.Edit)
	}
}

func readEdit(s *Source) edit.AnimationEdit {
	switch s.Tag() {
	case 'S':
		return edit.SetSize{Width: s.Float(), Height: s.Float()}
	case 'f':
		return edit.SetFrameLength{Length: s.Duration()}
	case 'l':
		return edit.SetLength{Length: s.Duration()}
	case '+':
		return edit.AddNewLayer{LayerID: s.Uint()}
	case '-':
		return edit.RemoveLayer{LayerID: s.Uint()}
	case 'L':
		layerID := s.Uint()
		return edit.Layer{LayerID: layerID, Edit: readLayerEdit(s)}
	case 'E':
		n := s.Count()
		ids := make([]edit.ElementID, 0, n)
		for i := 0; i < n; i++ {
			ids = append(ids, s.ID())
		}
		return edit.Element{Elements: ids, Edit: readElementEdit(s)}
	case 'M':
		target := s.ID()
		return edit.Motion{Target: target, Edit: readMotionEdit(s)}
	case 'U':
		return edit.Undo{Edit: readUndoEdit(s)}
	default:
		s.fail()
		return nil
	}
}

func writeLayerEdit(t *Target, e edit.LayerEdit) {
	switch v := e.(type) {
	case edit.AddKeyFrame:
		t.Tag('K')
		t.Duration(v.When)
	case edit.RemoveKeyFrame:
		t.Tag('k')
		t.Duration(v.When)
	case edit.SetLayerName:
		t.Tag('N')
		t.Str(v.Name)
	case edit.SetLayerOrdering:
		t.Tag('O')
		t.Uint(v.Ordering)
	case edit.Paint:
		t.Tag('P')
		t.Duration(v.When)
		writePaintEdit(t, v.Edit)
	case edit.Path:
		t.Tag('p')
		t.Duration(v.When)
		writePathEdit(t, v.Edit)
	}
}

func readLayerEdit(s *Source) edit.LayerEdit {
	switch s.Tag() {
	case 'K':
		return edit.AddKeyFrame{When: s.Duration()}
	case 'k':
		return edit.RemoveKeyFrame{When: s.Duration()}
	case 'N':
		return edit.SetLayerName{Name: s.Str()}
	case 'O':
		return edit.SetLayerOrdering{Ordering: s.Uint()}
	case 'P':
		when := s.Duration()
		return edit.Paint{When: when, Edit: readPaintEdit(s)}
	case 'p':
		when := s.Duration()
		return edit.Path{When: when, Edit: readPathEdit(s)}
	default:
		s.fail()
		return nil
	}
}

func writePaintEdit(t *Target, e edit.PaintEdit) {
	switch v := e.(type) {
	case edit.SelectBrush:
		t.Tag('B')
		t.ID(v.Element)
		writeBrushDefinition(t, v.Definition)
		writeDrawingStyle(t, v.Style)
	case edit.SetBrushProperties:
		t.Tag('R')
		t.ID(v.Element)
		writeBrushProperties(t, v.Properties)
	case edit.BrushStroke:
		t.Tag('s')
		t.ID(v.Element)
		writeRawPoints(t, v.Points)
	}
}

func readPaintEdit(s *Source) edit.PaintEdit {
	switch s.Tag() {
	case 'B':
		id := s.ID()
		return edit.SelectBrush{Element: id, Definition: readBrushDefinition(s), Style: readDrawingStyle(s)}
	case 'R':
		id := s.ID()
		return edit.SetBrushProperties{Element: id, Properties: readBrushProperties(s)}
	case 's':
		id := s.ID()
		return edit.BrushStroke{Element: id, Points: readRawPoints(s)}
	default:
		s.fail()
		return nil
	}
}

func writePathEdit(t *Target, e edit.PathEdit) {
	switch v := e.(type) {
	case edit.CreatePath:
		t.Tag('C')
		t.ID(v.Element)
		writePathComponents(t, v.Components)
	case edit.SelectPathBrush:
		t.Tag('b')
		t.ID(v.Element)
		writeBrushDefinition(t, v.Definition)
		writeDrawingStyle(t, v.Style)
	case edit.SetPathBrushProperties:
		t.Tag('r')
		t.ID(v.Element)
		writeBrushProperties(t, v.Properties)
	}
}

func readPathEdit(s *Source) edit.PathEdit {
	switch s.Tag() {
	case 'C':
		id := s.ID()
		return edit.CreatePath{Element: id, Components: readPathComponents(s)}
	case 'b':
		id := s.ID()
		return edit.SelectPathBrush{Element: id, Definition: readBrushDefinition(s), Style: readDrawingStyle(s)}
	case 'r':
		id := s.ID()
		return edit.SetPathBrushProperties{Element: id, Properties: readBrushProperties(s)}
	default:
		s.fail()
		return nil
	}
}

func writeElementEdit(t *Target, e edit.ElementEdit) {
	switch v := e.(type) {
	case edit.DeleteElements:
		t.Tag('D')
	case edit.AddAttachment:
		t.Tag('a')
		t.ID(v.Attachment)
	case edit.RemoveAttachment:
		t.Tag('d')
		t.ID(v.Attachment)
	case edit.OrderElements:
		t.Tag('o')
		t.Int(int64(v.Ordering))
	}
}

func readElementEdit(s *Source) edit.ElementEdit {
	switch s.Tag() {
	case 'D':
		return edit.DeleteElements{}
	case 'a':
		return edit.AddAttachment{Attachment: s.ID()}
	case 'd':
		return edit.RemoveAttachment{Attachment: s.ID()}
	case 'o':
		ordering := edit.ElementOrdering(s.Int())
		if ordering < edit.OrderInFront || ordering > edit.OrderToBottom {
			s.fail()
			return nil
		}
		return edit.OrderElements{Ordering: ordering}
	default:
		s.fail()
		return nil
	}
}

func writeMotionEdit(t *Target, e edit.MotionEdit) {
	switch v := e.(type) {
	case edit.CreateMotion:
		t.Tag('C')
	case edit.DeleteMotion:
		t.Tag('D')
	case edit.SetMotionOrigin:
		t.Tag('O')
		t.Float(v.X)
		t.Float(v.Y)
	case edit.SetMotionPath:
		t.Tag('P')
		writeTimePoints(t, v.Points)
	}
}

func readMotionEdit(s *Source) edit.MotionEdit {
	switch s.Tag() {
	case 'C':
		return edit.CreateMotion{}
	case 'D':
		return edit.DeleteMotion{}
	case 'O':
		return edit.SetMotionOrigin{X: s.Float(), Y: s.Float()}
	case 'P':
		return edit.SetMotionPath{Points: readTimePoints(s)}
	default:
		s.fail()
		return nil
	}
}

func writeUndoEdit(t *Target, e edit.UndoEdit) {
	switch v := e.(type) {
	case edit.PrepareToUndo:
		t.Tag('?')
		t.Str(v.Name)
	case edit.BeginAction:
		t.Tag('b')
	case edit.FinishAction:
		t.Tag('-')
	case edit.PerformUndo:
		t.Tag('P')
		writeEditBatch(t, v.Original)
		writeEditBatch(t, v.Inverse)
	case edit.CompletedUndo:
		t.Tag('C')
		writeEditBatch(t, v.Edits)
	case edit.FailedUndo:
		t.Tag('F')
		t.Int(int64(v.Reason))
	}
}

func readUndoEdit(s *Source) edit.UndoEdit {
	switch s.Tag() {
	case '?':
		return edit.PrepareToUndo{Name: s.Str()}
	case 'b':
		return edit.BeginAction{}
	case '-':
		return edit.FinishAction{}
	case 'P':
		original := readEditBatch(s)
		return edit.PerformUndo{Original: original, Inverse: readEditBatch(s)}
	case 'C':
		return edit.CompletedUndo{Edits: readEditBatch(s)}
	case 'F':
		reason := edit.UndoFailureReason(s.Int())
		return edit.FailedUndo{Reason: reason}
	default:
		s.fail()
		return nil
	}
}

func writeEditBatch(t *Target, batch []edit.AnimationEdit) {
	t.Int(int64(len(batch)))
	for _, e := range batch {
		writeEdit(t, e)
	}
}

func readEditBatch(s *Source) []edit.AnimationEdit {
	n := s.Count()
	if !s.Ok() {
		return nil
	}
	batch := make([]edit.AnimationEdit, 0, n)
	for i := 0; i < n; i++ {
		e := readEdit(s)
		if !s.Ok() {
			return nil
		}
		batch = append(batch, e)
	}
	return batch
}
