package animator

import (
	"context"
	"sync"

	"github.com/roach88/flipbook/internal/edit"
)

// publisher fans retired batches out to subscribers. Every subscriber gets
// every batch, in retirement order, through its own unbounded queue: a slow
// consumer delays nobody.
type publisher struct {
	mu   sync.Mutex
	subs []*Subscription
}

func (p *publisher) subscribe() *Subscription {
	s := &Subscription{signal: make(chan struct{}, 1)}
	s.unsubscribe = func() { p.remove(s) }

	p.mu.Lock()
	p.subs = append(p.subs, s)
	p.mu.Unlock()
	return s
}

func (p *publisher) publish(r edit.RetiredEdit) {
	p.mu.Lock()
	subs := make([]*Subscription, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, s := range subs {
		s.push(r)
	}
}

func (p *publisher) remove(target *Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subs {
		if s == target {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			return
		}
	}
}

// closeAll closes every subscription; used when the animation shuts down.
func (p *publisher) closeAll() {
	p.mu.Lock()
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()

	for _, s := range subs {
		s.finish()
	}
}

// Subscription is one consumer's view of the retirement stream. Batches
// arrive in exact retirement order and are never dropped.
type Subscription struct {
	unsubscribe func()

	mu     sync.Mutex
	items  []edit.RetiredEdit
	closed bool
	signal chan struct{}
}

// Next returns the next retired batch. ok is false once the subscription is
// closed and drained.
func (s *Subscription) Next(ctx context.Context) (edit.RetiredEdit, bool, error) {
	for {
		s.mu.Lock()
		if len(s.items) > 0 {
			r := s.items[0]
			s.items[0] = edit.RetiredEdit{}
			s.items = s.items[1:]
			s.mu.Unlock()
			return r, true, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return edit.RetiredEdit{}, false, nil
		}

		select {
		case <-s.signal:
		case <-ctx.Done():
			return edit.RetiredEdit{}, false, ctx.Err()
		}
	}
}

// Close detaches the subscription from the publisher. Buffered batches are
// still readable; Next reports done once they are drained.
func (s *Subscription) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.finish()
}

func (s *Subscription) push(r edit.RetiredEdit) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items, r)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) finish() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}
