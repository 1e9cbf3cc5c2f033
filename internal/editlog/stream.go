package editlog

import (
	"context"
	"sync"

	"github.com/roach88/flipbook/internal/edit"
)

// streamBuffer is the look-ahead capacity of a Stream in decoded edits.
const streamBuffer = 100

// Stream is a lazy, finite, non-restartable reader over a log index range.
//
// It keeps a look-ahead buffer that is opportunistically refilled whenever
// it drops below capacity and more of the range remains; refills run as
// background units on the schedule the stream was created with, so consuming
// buffered items and fetching the next page overlap. Output order matches
// log order exactly. Closing the stream stops further refills; reads have no
// side effects, so nothing else needs unwinding. A Stream is intended for a
// single consumer.
type Stream struct {
	log      *Log
	schedule func(func()) bool

	mu      sync.Mutex
	buf     []edit.AnimationEdit
	next    int64 // next log index to fetch
	until   int64
	filling bool
	closed  bool
	err     error
	wake    chan struct{}
}

// Stream returns a reader over the entries with indices in [from, until).
// Refill work is submitted through schedule, which must run functions
// serially with respect to the log's other storage access and report false
// once it stops accepting work; the stream then ends instead of waiting for
// a refill that will never run.
func (l *Log) Stream(from, until int64, schedule func(func()) bool) *Stream {
	if from < 0 {
		from = 0
	}
	s := &Stream{
		log:      l,
		schedule: schedule,
		next:     from,
		until:    until,
		wake:     make(chan struct{}, 1),
	}
	s.mu.Lock()
	s.fillLocked()
	s.mu.Unlock()
	return s
}

// Next returns the next edit in the range. It suspends the caller while the
// buffer is empty and a refill is in flight. ok is false once the range is
// exhausted, the stream is closed, or an error occurred.
func (s *Stream) Next(ctx context.Context) (e edit.AnimationEdit, ok bool, err error) {
	for {
		s.mu.Lock()
		if len(s.buf) > 0 {
			e = s.buf[0]
			s.buf = s.buf[1:]
			s.fillLocked()
			s.mu.Unlock()
			return e, true, nil
		}
		if s.err != nil {
			err = s.err
			s.mu.Unlock()
			return nil, false, err
		}
		if s.closed || (s.next >= s.until && !s.filling) {
			s.mu.Unlock()
			return nil, false, nil
		}
		s.fillLocked()
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// Close stops further refill work. Items already buffered are discarded.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.buf = nil
	s.mu.Unlock()
	s.signal()
}

// fillLocked schedules a background refill when the buffer has room, more of
// the range remains, and no refill is already in flight.
func (s *Stream) fillLocked() {
	if s.filling || s.closed || s.err != nil || s.next >= s.until {
		return
	}
	room := streamBuffer - len(s.buf)
	if room <= 0 {
		return
	}
	from := s.next
	until := from + int64(room)
	if until > s.until {
		until = s.until
	}
	s.filling = true
	s.next = until

	accepted := s.schedule(func() {
		edits, err := s.log.Read(context.Background(), from, until)

		s.mu.Lock()
		s.filling = false
		if s.closed {
			s.mu.Unlock()
			return
		}
		if err != nil {
			s.err = err
		} else {
			s.buf = append(s.buf, edits...)
			s.fillLocked()
		}
		s.mu.Unlock()
		s.signal()
	})
	if !accepted {
		s.filling = false
		s.closed = true
		s.signal()
	}
}

func (s *Stream) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
