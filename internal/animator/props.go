package animator

import (
	"time"

	"github.com/roach88/flipbook/internal/encode"
)

// animationProperties is the animation-wide state persisted as one storage
// record.
type animationProperties struct {
	width       float64
	height      float64
	frameLength time.Duration
	duration    time.Duration
}

// defaultAnimationProperties matches what a brand-new animation looks like
// before any SetSize/SetFrameLength/SetLength edit.
func defaultAnimationProperties() animationProperties {
	return animationProperties{
		width:       1920,
		height:      1080,
		frameLength: time.Second / 30,
		duration:    2 * time.Minute,
	}
}

func encodeAnimationProperties(p animationProperties) string {
	t := encode.NewTarget()
	t.Float(p.width)
	t.Float(p.height)
	t.Duration(p.frameLength)
	t.Duration(p.duration)
	return t.String()
}

func decodeAnimationProperties(data string) (animationProperties, bool) {
	s := encode.NewSource(data)
	p := animationProperties{
		width:       s.Float(),
		height:      s.Float(),
		frameLength: s.Duration(),
		duration:    s.Duration(),
	}
	if !s.Done() {
		return animationProperties{}, false
	}
	return p, true
}

// layerProperties is one layer's persistent state.
type layerProperties struct {
	name     string
	ordering uint64
}

func encodeLayerProperties(p layerProperties) string {
	t := encode.NewTarget()
	t.Str(p.name)
	t.Uint(p.ordering)
	return t.String()
}

func decodeLayerProperties(data string) (layerProperties, bool) {
	s := encode.NewSource(data)
	p := layerProperties{
		name:     s.Str(),
		ordering: s.Uint(),
	}
	if !s.Done() {
		return layerProperties{}, false
	}
	return p, true
}
