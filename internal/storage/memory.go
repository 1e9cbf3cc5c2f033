package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemory is a Backend holding everything in process memory. It backs
// scratch animations and most tests.
type InMemory struct {
	mu sync.Mutex

	animationProperties *string
	editLog             []string
	elements            map[int64]string
	highestUnused       int64
	layers              map[uint64]*memoryLayer
}

type memoryLayer struct {
	properties string
	keyframes  []time.Duration           // sorted ascending
	attached   map[time.Duration][]int64 // keyframe -> elements in attach order
}

// NewInMemory returns an empty in-memory backend.
func NewInMemory() *InMemory {
	return &InMemory{
		elements: make(map[int64]string),
		layers:   make(map[uint64]*memoryLayer),
	}
}

// RunCommands executes the batch. In-memory execution cannot fail, so the
// error is always nil.
func (m *InMemory) RunCommands(_ context.Context, cmds []Command) ([]Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Response
	for _, cmd := range cmds {
		out = m.run(out, cmd)
	}
	return out, nil
}

// Close releases nothing; it exists to satisfy Backend.
func (m *InMemory) Close() error {
	return nil
}

func (m *InMemory) run(out []Response, cmd Command) []Response {
	switch c := cmd.(type) {
	case WriteAnimationProperties:
		data := c.Data
		m.animationProperties = &data
		return append(out, Updated{})

	case ReadAnimationProperties:
		if m.animationProperties == nil {
			return append(out, NotFound{})
		}
		return append(out, AnimationProperties{Data: *m.animationProperties})

	case WriteEdit:
		m.editLog = append(m.editLog, c.Data)
		return append(out, Updated{})

	case ReadEdits:
		from, until := c.From, c.Until
		if from < 0 {
			from = 0
		}
		if until > int64(len(m.editLog)) {
			until = int64(len(m.editLog))
		}
		for i := from; i < until; i++ {
			out = append(out, Edit{Index: i, Data: m.editLog[i]})
		}
		return out

	case ReadEditLogLength:
		return append(out, NumberOfEdits{Count: int64(len(m.editLog))})

	case ReadHighestUnusedElementID:
		return append(out, HighestUnusedElementID{ID: m.highestUnused})

	case WriteElement:
		m.elements[c.ID] = c.Data
		if c.ID >= m.highestUnused {
			m.highestUnused = c.ID + 1
		}
		return append(out, Updated{})

	case ReadElement:
		data, ok := m.elements[c.ID]
		if !ok {
			return append(out, NotFound{})
		}
		return append(out, Element{ID: c.ID, Data: data})

	case DeleteElement:
		delete(m.elements, c.ID)
		for _, layer := range m.layers {
			layer.detach(c.ID)
		}
		return append(out, Updated{})

	case AddLayer:
		m.layers[c.ID] = &memoryLayer{
			properties: c.Properties,
			attached:   make(map[time.Duration][]int64),
		}
		return append(out, Updated{})

	case DeleteLayer:
		if _, ok := m.layers[c.ID]; !ok {
			return append(out, NotFound{})
		}
		delete(m.layers, c.ID)
		return append(out, Updated{})

	case ReadLayers:
		ids := make([]uint64, 0, len(m.layers))
		for id := range m.layers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			out = append(out, LayerProperties{ID: id, Properties: m.layers[id].properties})
		}
		return out

	case WriteLayerProperties:
		layer, ok := m.layers[c.ID]
		if !ok {
			return append(out, NotFound{})
		}
		layer.properties = c.Properties
		return append(out, Updated{})

	case ReadLayerProperties:
		layer, ok := m.layers[c.ID]
		if !ok {
			return append(out, NotFound{})
		}
		return append(out, LayerProperties{ID: c.ID, Properties: layer.properties})

	case AddKeyFrame:
		layer, ok := m.layers[c.Layer]
		if !ok {
			return append(out, NotFound{})
		}
		layer.addKeyFrame(c.When)
		return append(out, Updated{})

	case DeleteKeyFrame:
		layer, ok := m.layers[c.Layer]
		if !ok {
			return append(out, NotFound{})
		}
		if !layer.deleteKeyFrame(c.When) {
			return append(out, NotFound{})
		}
		return append(out, Updated{})

	case ReadKeyFrames:
		layer, ok := m.layers[c.Layer]
		if !ok {
			return append(out, NotFound{})
		}
		return layer.readKeyFrames(out, c.From, c.Until)

	case AttachElementToLayer:
		layer, ok := m.layers[c.Layer]
		if !ok {
			return append(out, NotFound{})
		}
		frame, ok := layer.frameContaining(c.When)
		if !ok {
			return append(out, NotFound{})
		}
		layer.attached[frame] = append(layer.attached[frame], c.Element)
		return append(out, Updated{})

	case DetachElementFromLayer:
		for _, layer := range m.layers {
			layer.detach(c.Element)
		}
		return append(out, Updated{})

	case ReadElementAttachments:
		resp := ElementAttachments{Element: c.Element}
		ids := make([]uint64, 0, len(m.layers))
		for id := range m.layers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			layer := m.layers[id]
			for _, frame := range layer.keyframes {
				for _, el := range layer.attached[frame] {
					if el == c.Element {
						resp.Attached = append(resp.Attached, Attachment{Layer: id, When: frame})
						break
					}
				}
			}
		}
		return append(out, resp)

	case ReadElementsForKeyFrame:
		layer, ok := m.layers[c.Layer]
		if !ok {
			return append(out, NotFound{})
		}
		frame, ok := layer.frameContaining(c.When)
		if !ok {
			return append(out, NotFound{})
		}
		for _, el := range layer.attached[frame] {
			if data, ok := m.elements[el]; ok {
				out = append(out, Element{ID: el, Data: data})
			}
		}
		return out
	}

	return out
}

func (l *memoryLayer) addKeyFrame(when time.Duration) {
	i := sort.Search(len(l.keyframes), func(i int) bool { return l.keyframes[i] >= when })
	if i < len(l.keyframes) && l.keyframes[i] == when {
		return
	}
	l.keyframes = append(l.keyframes, 0)
	copy(l.keyframes[i+1:], l.keyframes[i:])
	l.keyframes[i] = when
}

func (l *memoryLayer) deleteKeyFrame(when time.Duration) bool {
	i := sort.Search(len(l.keyframes), func(i int) bool { return l.keyframes[i] >= when })
	if i >= len(l.keyframes) || l.keyframes[i] != when {
		return false
	}
	l.keyframes = append(l.keyframes[:i], l.keyframes[i+1:]...)
	delete(l.attached, when)
	return true
}

// frameContaining returns the keyframe whose frame covers the given time:
// the greatest keyframe at or before it.
func (l *memoryLayer) frameContaining(when time.Duration) (time.Duration, bool) {
	i := sort.Search(len(l.keyframes), func(i int) bool { return l.keyframes[i] > when })
	if i == 0 {
		return 0, false
	}
	return l.keyframes[i-1], true
}

func (l *memoryLayer) readKeyFrames(out []Response, from, until time.Duration) []Response {
	found := false
	for i, start := range l.keyframes {
		end := MaxDuration
		if i+1 < len(l.keyframes) {
			end = l.keyframes[i+1]
		}
		if end <= from || start >= until {
			continue
		}
		out = append(out, KeyFrame{Start: start, End: end})
		found = true
	}
	if !found {
		next := MaxDuration
		for _, start := range l.keyframes {
			if start >= until {
				next = start
				break
			}
		}
		out = append(out, NotInAFrame{Next: next})
	}
	return out
}

func (l *memoryLayer) detach(element int64) {
	for frame, els := range l.attached {
		kept := els[:0]
		for _, el := range els {
			if el != element {
				kept = append(kept, el)
			}
		}
		if len(kept) == 0 {
			delete(l.attached, frame)
		} else {
			l.attached[frame] = kept
		}
	}
}
