package editlog

import (
	"errors"

	"github.com/roach88/flipbook/internal/edit"
	"github.com/roach88/flipbook/internal/encode"
)

// errMalformed reports an entry whose shape does not match any known tag.
// The log wraps it with the entry's index as a ProtocolViolation.
var errMalformed = errors.New("malformed edit log entry")

// auxRecord is a bulky payload stored outside the log entry itself. Aux
// records live in the element table under ids burned off the element-id
// counter, so an entry stays a short fixed-shape row and a damaged payload
// only degrades the one edit that references it.
type auxRecord struct {
	id   int64
	data string
}

// encodeEntry normalizes an edit into its storage form, splitting bulky
// payloads (brush definitions, point lists, element lists) into aux records.
// Only persisted edits have an entry form; passing an unpersisted undo edit
// is a programming error.
func encodeEntry(e edit.AnimationEdit, alloc func() int64) (string, []auxRecord) {
	w := &entryWriter{t: encode.NewTarget(), alloc: alloc}
	w.edit(e)
	return w.t.String(), w.aux
}

type entryWriter struct {
	t     *encode.Target
	alloc func() int64
	aux   []auxRecord
}

// ref stores a payload as an aux record and writes its id into the entry.
func (w *entryWriter) ref(data string) {
	id := w.alloc()
	w.aux = append(w.aux, auxRecord{id: id, data: data})
	w.t.Int(id)
}

func (w *entryWriter) edit(e edit.AnimationEdit) {
	switch v := e.(type) {
	case edit.SetSize:
		w.t.Tag('S')
		w.t.Float(v.Width)
		w.t.Float(v.Height)
	case edit.SetFrameLength:
		w.t.Tag('f')
		w.t.Duration(v.Length)
	case edit.SetLength:
		w.t.Tag('l')
		w.t.Duration(v.Length)
	case edit.AddNewLayer:
		w.t.Tag('+')
		w.t.Uint(v.LayerID)
	case edit.RemoveLayer:
		w.t.Tag('-')
		w.t.Uint(v.LayerID)
	case edit.Layer:
		w.t.Tag('L')
		w.t.Uint(v.LayerID)
		w.layerEdit(v.Edit)
	case edit.Element:
		w.t.Tag('E')
		w.ref(encode.ElementList(v.Elements))
		w.elementEdit(v.Edit)
	case edit.Motion:
		w.t.Tag('M')
		w.t.ID(v.Target)
		w.motionEdit(v.Edit)
	case edit.Undo:
		if _, ok := v.Edit.(edit.FinishAction); !ok {
			panic("editlog: only FinishAction undo edits are persisted")
		}
		w.t.Tag('U')
		w.t.Tag('-')
	}
}

func (w *entryWriter) layerEdit(e edit.LayerEdit) {
	switch v := e.(type) {
	case edit.AddKeyFrame:
		w.t.Tag('K')
		w.t.Duration(v.When)
	case edit.RemoveKeyFrame:
		w.t.Tag('k')
		w.t.Duration(v.When)
	case edit.SetLayerName:
		w.t.Tag('N')
		w.t.Str(v.Name)
	case edit.SetLayerOrdering:
		w.t.Tag('O')
		w.t.Uint(v.Ordering)
	case edit.Paint:
		w.t.Tag('P')
		w.t.Duration(v.When)
		w.paintEdit(v.Edit)
	case edit.Path:
		w.t.Tag('p')
		w.t.Duration(v.When)
		w.pathEdit(v.Edit)
	}
}

func (w *entryWriter) paintEdit(e edit.PaintEdit) {
	switch v := e.(type) {
	case edit.SelectBrush:
		w.t.Tag('B')
		w.t.ID(v.Element)
		w.ref(encode.BrushDefinition(v.Definition, v.Style))
	case edit.SetBrushProperties:
		w.t.Tag('R')
		w.t.ID(v.Element)
		w.ref(encode.BrushProperties(v.Properties))
	case edit.BrushStroke:
		w.t.Tag('s')
		w.t.ID(v.Element)
		w.ref(encode.RawPoints(v.Points))
	}
}

func (w *entryWriter) pathEdit(e edit.PathEdit) {
	switch v := e.(type) {
	case edit.CreatePath:
		w.t.Tag('C')
		w.t.ID(v.Element)
		w.ref(encode.PathComponents(v.Components))
	case edit.SelectPathBrush:
		w.t.Tag('b')
		w.t.ID(v.Element)
		w.ref(encode.BrushDefinition(v.Definition, v.Style))
	case edit.SetPathBrushProperties:
		w.t.Tag('r')
		w.t.ID(v.Element)
		w.ref(encode.BrushProperties(v.Properties))
	}
}

func (w *entryWriter) elementEdit(e edit.ElementEdit) {
	switch v := e.(type) {
	case edit.DeleteElements:
		w.t.Tag('D')
	case edit.AddAttachment:
		w.t.Tag('a')
		w.t.ID(v.Attachment)
	case edit.RemoveAttachment:
		w.t.Tag('d')
		w.t.ID(v.Attachment)
	case edit.OrderElements:
		w.t.Tag('o')
		w.t.Int(int64(v.Ordering))
	}
}

func (w *entryWriter) motionEdit(e edit.MotionEdit) {
	switch v := e.(type) {
	case edit.CreateMotion:
		w.t.Tag('C')
	case edit.DeleteMotion:
		w.t.Tag('D')
	case edit.SetMotionOrigin:
		w.t.Tag('O')
		w.t.Float(v.X)
		w.t.Float(v.Y)
	case edit.SetMotionPath:
		w.t.Tag('P')
		w.ref(encode.TimePoints(v.Points))
	}
}

// decodeEntry rebuilds an edit from its normalized form. Aux records are
// fetched through resolve; a missing or mangled record substitutes a safe
// default and bumps the decoder's default count instead of failing the read.
// Unknown tags and shape mismatches return errMalformed.
func decodeEntry(data string, resolve func(int64) (string, bool)) (edit.AnimationEdit, int, error) {
	d := &entryDecoder{s: encode.NewSource(data), resolve: resolve}
	e := d.edit()
	if e == nil || !d.s.Done() {
		return nil, d.defaults, errMalformed
	}
	return e, d.defaults, nil
}

type entryDecoder struct {
	s        *encode.Source
	resolve  func(int64) (string, bool)
	defaults int
}

func (d *entryDecoder) edit() edit.AnimationEdit {
	switch d.s.Tag() {
	case 'S':
		return edit.SetSize{Width: d.s.Float(), Height: d.s.Float()}
	case 'f':
		return edit.SetFrameLength{Length: d.s.Duration()}
	case 'l':
		return edit.SetLength{Length: d.s.Duration()}
	case '+':
		return edit.AddNewLayer{LayerID: d.s.Uint()}
	case '-':
		return edit.RemoveLayer{LayerID: d.s.Uint()}
	case 'L':
		layerID := d.s.Uint()
		sub := d.layerEdit()
		if sub == nil {
			return nil
		}
		return edit.Layer{LayerID: layerID, Edit: sub}
	case 'E':
		elements := d.elementList(d.s.Int())
		sub := d.elementEdit()
		if sub == nil {
			return nil
		}
		return edit.Element{Elements: elements, Edit: sub}
	case 'M':
		target := d.s.ID()
		sub := d.motionEdit()
		if sub == nil {
			return nil
		}
		return edit.Motion{Target: target, Edit: sub}
	case 'U':
		if d.s.Tag() != '-' {
			return nil
		}
		return edit.Undo{Edit: edit.FinishAction{}}
	default:
		return nil
	}
}

func (d *entryDecoder) layerEdit() edit.LayerEdit {
	switch d.s.Tag() {
	case 'K':
		return edit.AddKeyFrame{When: d.s.Duration()}
	case 'k':
		return edit.RemoveKeyFrame{When: d.s.Duration()}
	case 'N':
		return edit.SetLayerName{Name: d.s.Str()}
	case 'O':
		return edit.SetLayerOrdering{Ordering: d.s.Uint()}
	case 'P':
		when := d.s.Duration()
		sub := d.paintEdit()
		if sub == nil {
			return nil
		}
		return edit.Paint{When: when, Edit: sub}
	case 'p':
		when := d.s.Duration()
		sub := d.pathEdit()
		if sub == nil {
			return nil
		}
		return edit.Path{When: when, Edit: sub}
	default:
		return nil
	}
}

func (d *entryDecoder) paintEdit() edit.PaintEdit {
	switch d.s.Tag() {
	case 'B':
		id := d.s.ID()
		def, style := d.brushDefinition(d.s.Int())
		return edit.SelectBrush{Element: id, Definition: def, Style: style}
	case 'R':
		id := d.s.ID()
		return edit.SetBrushProperties{Element: id, Properties: d.brushProperties(d.s.Int())}
	case 's':
		id := d.s.ID()
		return edit.BrushStroke{Element: id, Points: d.rawPoints(d.s.Int())}
	default:
		return nil
	}
}

func (d *entryDecoder) pathEdit() edit.PathEdit {
	switch d.s.Tag() {
	case 'C':
		id := d.s.ID()
		return edit.CreatePath{Element: id, Components: d.pathComponents(d.s.Int())}
	case 'b':
		id := d.s.ID()
		def, style := d.brushDefinition(d.s.Int())
		return edit.SelectPathBrush{Element: id, Definition: def, Style: style}
	case 'r':
		id := d.s.ID()
		return edit.SetPathBrushProperties{Element: id, Properties: d.brushProperties(d.s.Int())}
	default:
		return nil
	}
}

func (d *entryDecoder) elementEdit() edit.ElementEdit {
	switch d.s.Tag() {
	case 'D':
		return edit.DeleteElements{}
	case 'a':
		return edit.AddAttachment{Attachment: d.s.ID()}
	case 'd':
		return edit.RemoveAttachment{Attachment: d.s.ID()}
	case 'o':
		ordering := edit.ElementOrdering(d.s.Int())
		if ordering < edit.OrderInFront || ordering > edit.OrderToBottom {
			return nil
		}
		return edit.OrderElements{Ordering: ordering}
	default:
		return nil
	}
}

func (d *entryDecoder) motionEdit() edit.MotionEdit {
	switch d.s.Tag() {
	case 'C':
		return edit.CreateMotion{}
	case 'D':
		return edit.DeleteMotion{}
	case 'O':
		return edit.SetMotionOrigin{X: d.s.Float(), Y: d.s.Float()}
	case 'P':
		return edit.SetMotionPath{Points: d.timePoints(d.s.Int())}
	default:
		return nil
	}
}

func (d *entryDecoder) brushDefinition(id int64) (edit.BrushDefinition, edit.DrawingStyle) {
	if data, ok := d.resolve(id); ok {
		if def, style, ok := encode.DecodeBrushDefinition(data); ok {
			return def, style
		}
	}
	d.defaults++
	return edit.SimplestBrush(), edit.StyleDraw
}

func (d *entryDecoder) brushProperties(id int64) edit.BrushProperties {
	if data, ok := d.resolve(id); ok {
		if props, ok := encode.DecodeBrushProperties(data); ok {
			return props
		}
	}
	d.defaults++
	return edit.DefaultBrushProperties()
}

func (d *entryDecoder) rawPoints(id int64) []edit.RawPoint {
	if data, ok := d.resolve(id); ok {
		if points, ok := encode.DecodeRawPoints(data); ok {
			return points
		}
	}
	d.defaults++
	return nil
}

func (d *entryDecoder) pathComponents(id int64) []edit.PathComponent {
	if data, ok := d.resolve(id); ok {
		if components, ok := encode.DecodePathComponents(data); ok {
			return components
		}
	}
	d.defaults++
	return nil
}

func (d *entryDecoder) elementList(id int64) []edit.ElementID {
	if data, ok := d.resolve(id); ok {
		if ids, ok := encode.DecodeElementList(data); ok {
			return ids
		}
	}
	d.defaults++
	return nil
}

func (d *entryDecoder) timePoints(id int64) []edit.TimePoint {
	if data, ok := d.resolve(id); ok {
		if points, ok := encode.DecodeTimePoints(data); ok {
			return points
		}
	}
	d.defaults++
	return nil
}
