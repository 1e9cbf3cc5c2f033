package animator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/flipbook/internal/edit"
	"github.com/roach88/flipbook/internal/encode"
	"github.com/roach88/flipbook/internal/storage"
)

// Frame is the visible content of one layer at one point in time.
type Frame struct {
	Layer    uint64
	Time     time.Duration
	Keyframe time.Duration
	InFrame  bool
	Elements []FrameElement
}

// FrameElement is one element visible in a frame. Since is the moment within
// the timeline the element first appears; Edits is the batch that recreates
// it.
type FrameElement struct {
	ID    edit.ElementID
	Since time.Duration
	Edits []edit.AnimationEdit
}

// GetFrameAtTime returns the elements of a layer visible at the given time:
// the elements attached to the keyframe containing that time whose
// appearance moment has been reached, in commit order. A time before the
// layer's first keyframe yields an empty frame with InFrame false.
func (a *Animation) GetFrameAtTime(ctx context.Context, layer uint64, when time.Duration) (Frame, error) {
	var (
		frame Frame
		err   error
	)
	doErr := a.do(ctx, func() { frame, err = a.frameAtTime(context.Background(), layer, when) })
	if doErr != nil {
		return Frame{}, doErr
	}
	return frame, err
}

func (a *Animation) frameAtTime(ctx context.Context, layer uint64, when time.Duration) (Frame, error) {
	frame := Frame{Layer: layer, Time: when}

	frames, err := a.layerKeyframes(ctx, layer)
	if err != nil {
		return Frame{}, err
	}
	keyframe, ok := frameBefore(frames, when)
	if !ok {
		return frame, nil
	}
	frame.Keyframe = keyframe
	frame.InFrame = true

	out, err := a.backend.RunCommands(ctx, []storage.Command{
		storage.ReadElementsForKeyFrame{Layer: layer, When: keyframe},
	})
	if err != nil {
		return Frame{}, fmt.Errorf("read frame elements: %w", err)
	}

	for _, r := range out {
		el, ok := r.(storage.Element)
		if !ok {
			continue
		}
		record, ok := encode.DecodeEditBatch(el.Data)
		if !ok {
			slog.Debug("element record is damaged", "element", el.ID)
			continue
		}
		since := appearanceTime(record)
		if since > when {
			continue
		}
		frame.Elements = append(frame.Elements, FrameElement{
			ID:    edit.Assigned(el.ID),
			Since: since,
			Edits: record,
		})
	}
	return frame, nil
}

// frameBefore returns the greatest keyframe at or before when.
func frameBefore(frames []time.Duration, when time.Duration) (time.Duration, bool) {
	found := false
	var best time.Duration
	for _, f := range frames {
		if f <= when && (!found || f > best) {
			best = f
			found = true
		}
	}
	return best, found
}

// appearanceTime extracts the moment an element's creating edit places it on
// the timeline.
func appearanceTime(record []edit.AnimationEdit) time.Duration {
	for _, e := range record {
		layer, ok := e.(edit.Layer)
		if !ok {
			continue
		}
		switch v := layer.Edit.(type) {
		case edit.Paint:
			return v.When
		case edit.Path:
			return v.When
		}
	}
	return 0
}
