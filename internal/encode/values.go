package encode

import (
	"github.com/roach88/flipbook/internal/edit"
)

// Value-level encoders shared between the edit table and the edit log's
// auxiliary records.

func writeBrushDefinition(t *Target, d edit.BrushDefinition) {
	switch d.Kind {
	case edit.BrushInk:
		t.Tag('i')
		t.Float(d.Ink.MinWidth)
		t.Float(d.Ink.MaxWidth)
		t.Float(d.Ink.ScaleUpDistance)
	default:
		t.Tag('s')
	}
}

func readBrushDefinition(s *Source) edit.BrushDefinition {
	switch s.Tag() {
	case 's':
		return edit.BrushDefinition{Kind: edit.BrushSimple}
	case 'i':
		return edit.BrushDefinition{
			Kind: edit.BrushInk,
			Ink: edit.InkDefinition{
				MinWidth:        s.Float(),
				MaxWidth:        s.Float(),
				ScaleUpDistance: s.Float(),
			},
		}
	default:
		s.fail()
		return edit.BrushDefinition{}
	}
}

func writeDrawingStyle(t *Target, style edit.DrawingStyle) {
	if style == edit.StyleErase {
		t.Tag('E')
		return
	}
	t.Tag('D')
}

func readDrawingStyle(s *Source) edit.DrawingStyle {
	switch s.Tag() {
	case 'D':
		return edit.StyleDraw
	case 'E':
		return edit.StyleErase
	default:
		s.fail()
		return 0
	}
}

func writeBrushProperties(t *Target, p edit.BrushProperties) {
	t.Float(p.Size)
	t.Float(p.Opacity)
	t.Float(p.Color.R)
	t.Float(p.Color.G)
	t.Float(p.Color.B)
	t.Float(p.Color.A)
}

func readBrushProperties(s *Source) edit.BrushProperties {
	return edit.BrushProperties{
		Size:    s.Float(),
		Opacity: s.Float(),
		Color: edit.Color{
			R: s.Float(),
			G: s.Float(),
			B: s.Float(),
			A: s.Float(),
		},
	}
}

func writeRawPoints(t *Target, points []edit.RawPoint) {
	t.Int(int64(len(points)))
	for _, p := range points {
		t.Float(p.X)
		t.Float(p.Y)
		t.Float(p.Pressure)
	}
}

func readRawPoints(s *Source) []edit.RawPoint {
	n := s.Count()
	if !s.Ok() {
		return nil
	}
	points := make([]edit.RawPoint, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, edit.RawPoint{
			X:        s.Float(),
			Y:        s.Float(),
			Pressure: s.Float(),
		})
	}
	if !s.Ok() {
		return nil
	}
	return points
}

func writePathComponents(t *Target, components []edit.PathComponent) {
	t.Int(int64(len(components)))
	for _, c := range components {
		switch c.Kind {
		case edit.PathMove:
			t.Tag('m')
			t.Float(c.P1.X)
			t.Float(c.P1.Y)
		case edit.PathLine:
			t.Tag('l')
			t.Float(c.P1.X)
			t.Float(c.P1.Y)
		case edit.PathBezier:
			t.Tag('c')
			t.Float(c.P1.X)
			t.Float(c.P1.Y)
			t.Float(c.P2.X)
			t.Float(c.P2.Y)
			t.Float(c.P3.X)
			t.Float(c.P3.Y)
		case edit.PathClose:
			t.Tag('z')
		}
	}
}

func readPathComponents(s *Source) []edit.PathComponent {
	n := s.Count()
	if !s.Ok() {
		return nil
	}
	components := make([]edit.PathComponent, 0, n)
	for i := 0; i < n; i++ {
		var c edit.PathComponent
		switch s.Tag() {
		case 'm':
			c = edit.PathComponent{Kind: edit.PathMove, P1: readPathPoint(s)}
		case 'l':
			c = edit.PathComponent{Kind: edit.PathLine, P1: readPathPoint(s)}
		case 'c':
			c = edit.PathComponent{
				Kind: edit.PathBezier,
				P1:   readPathPoint(s),
				P2:   readPathPoint(s),
				P3:   readPathPoint(s),
			}
		case 'z':
			c = edit.PathComponent{Kind: edit.PathClose}
		default:
			s.fail()
			return nil
		}
		components = append(components, c)
	}
	if !s.Ok() {
		return nil
	}
	return components
}

func readPathPoint(s *Source) edit.PathPoint {
	return edit.PathPoint{X: s.Float(), Y: s.Float()}
}

func writeTimePoints(t *Target, points []edit.TimePoint) {
	t.Int(int64(len(points)))
	for _, p := range points {
		t.Float(p.X)
		t.Float(p.Y)
		t.Duration(p.At)
	}
}

func readTimePoints(s *Source) []edit.TimePoint {
	n := s.Count()
	if !s.Ok() {
		return nil
	}
	points := make([]edit.TimePoint, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, edit.TimePoint{
			X:  s.Float(),
			Y:  s.Float(),
			At: s.Duration(),
		})
	}
	if !s.Ok() {
		return nil
	}
	return points
}

// BrushDefinition encodes a brush definition as a standalone record.
func BrushDefinition(d edit.BrushDefinition, style edit.DrawingStyle) string {
	t := NewTarget()
	writeBrushDefinition(t, d)
	writeDrawingStyle(t, style)
	return t.String()
}

// DecodeBrushDefinition decodes a standalone brush definition record.
func DecodeBrushDefinition(s string) (edit.BrushDefinition, edit.DrawingStyle, bool) {
	src := NewSource(s)
	d := readBrushDefinition(src)
	style := readDrawingStyle(src)
	if !src.Done() {
		return edit.BrushDefinition{}, 0, false
	}
	return d, style, true
}

// BrushProperties encodes brush properties as a standalone record.
func BrushProperties(p edit.BrushProperties) string {
	t := NewTarget()
	writeBrushProperties(t, p)
	return t.String()
}

// DecodeBrushProperties decodes a standalone brush properties record.
func DecodeBrushProperties(s string) (edit.BrushProperties, bool) {
	src := NewSource(s)
	p := readBrushProperties(src)
	if !src.Done() {
		return edit.BrushProperties{}, false
	}
	return p, true
}

// RawPoints encodes a stroke's point list as a standalone record.
func RawPoints(points []edit.RawPoint) string {
	t := NewTarget()
	writeRawPoints(t, points)
	return t.String()
}

// DecodeRawPoints decodes a standalone point list record.
func DecodeRawPoints(s string) ([]edit.RawPoint, bool) {
	src := NewSource(s)
	points := readRawPoints(src)
	if !src.Done() {
		return nil, false
	}
	return points, true
}

// PathComponents encodes a path's component list as a standalone record.
func PathComponents(components []edit.PathComponent) string {
	t := NewTarget()
	writePathComponents(t, components)
	return t.String()
}

// DecodePathComponents decodes a standalone path component record.
func DecodePathComponents(s string) ([]edit.PathComponent, bool) {
	src := NewSource(s)
	components := readPathComponents(src)
	if !src.Done() {
		return nil, false
	}
	return components, true
}

// ElementList encodes a list of assigned element IDs as a standalone record.
func ElementList(ids []edit.ElementID) string {
	t := NewTarget()
	t.Int(int64(len(ids)))
	for _, id := range ids {
		t.ID(id)
	}
	return t.String()
}

// DecodeElementList decodes a standalone element list record.
func DecodeElementList(s string) ([]edit.ElementID, bool) {
	src := NewSource(s)
	n := src.Count()
	if !src.Ok() {
		return nil, false
	}
	ids := make([]edit.ElementID, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, src.ID())
	}
	if !src.Done() {
		return nil, false
	}
	return ids, true
}

// TimePoints encodes a motion path's time points as a standalone record.
func TimePoints(points []edit.TimePoint) string {
	t := NewTarget()
	writeTimePoints(t, points)
	return t.String()
}

// DecodeTimePoints decodes a standalone time point record.
func DecodeTimePoints(s string) ([]edit.TimePoint, bool) {
	src := NewSource(s)
	points := readTimePoints(src)
	if !src.Done() {
		return nil, false
	}
	return points, true
}
