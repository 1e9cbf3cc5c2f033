package edit

import "time"

// DrawingStyle selects how a brush combines with existing content.
type DrawingStyle int

const (
	// StyleDraw lays paint down on top of existing content.
	StyleDraw DrawingStyle = iota + 1
	// StyleErase removes existing content along the stroke.
	StyleErase
)

// BrushKind names a brush algorithm.
type BrushKind int

const (
	// BrushSimple is a fixed-width brush with no pressure response. It is
	// also the safe default substituted when a persisted brush definition
	// cannot be read back.
	BrushSimple BrushKind = iota + 1
	// BrushInk varies stroke width with input pressure.
	BrushInk
)

// BrushDefinition describes a brush algorithm and its parameters.
type BrushDefinition struct {
	Kind BrushKind
	// Ink carries the parameters for BrushInk; it is ignored for other kinds.
	Ink InkDefinition
}

// SimplestBrush returns the default brush definition used when a persisted
// definition is missing or unreadable.
func SimplestBrush() BrushDefinition {
	return BrushDefinition{Kind: BrushSimple}
}

// InkDefinition parameterises the pressure-sensitive ink brush.
type InkDefinition struct {
	MinWidth        float64
	MaxWidth        float64
	ScaleUpDistance float64
}

// BrushProperties are the per-stroke settings applied on top of a brush
// definition.
type BrushProperties struct {
	Size    float64
	Opacity float64
	Color   Color
}

// DefaultBrushProperties returns the properties substituted when a persisted
// properties record is missing or unreadable.
func DefaultBrushProperties() BrushProperties {
	return BrushProperties{Size: 5.0, Opacity: 1.0, Color: Color{A: 1.0}}
}

// Color is an RGBA colour with components in [0, 1].
type Color struct {
	R float64
	G float64
	B float64
	A float64
}

// RawPoint is one sample of raw input for a brush stroke.
type RawPoint struct {
	X        float64
	Y        float64
	Pressure float64
}

// PathComponentKind names one drawing instruction in a vector path.
type PathComponentKind int

const (
	PathMove PathComponentKind = iota + 1
	PathLine
	PathBezier
	PathClose
)

// PathPoint is a 2D coordinate in a vector path.
type PathPoint struct {
	X float64
	Y float64
}

// PathComponent is one instruction in a vector path. Move and Line use P1;
// Bezier uses P1 as the target and P2/P3 as control points; Close uses no
// points.
type PathComponent struct {
	Kind PathComponentKind
	P1   PathPoint
	P2   PathPoint
	P3   PathPoint
}

// TimePoint is a position on a motion path at a moment in time.
type TimePoint struct {
	X  float64
	Y  float64
	At time.Duration
}
