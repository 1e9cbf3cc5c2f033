package undo

import (
	"context"
	"sync"
)

// SizeFollower delivers snapshots of the stack depths as they change. It is
// latest-value-wins: a slow reader sees the newest snapshot, not every
// intermediate one.
type SizeFollower struct {
	mu     sync.Mutex
	latest Sizes
	fresh  bool
	done   bool
	signal chan struct{}
}

// FollowSizes starts following the stack depths. The current depths are
// delivered immediately as the first snapshot.
func (a *Animation) FollowSizes() *SizeFollower {
	f := &SizeFollower{signal: make(chan struct{}, 1)}
	a.mu.Lock()
	a.followers = append(a.followers, f)
	f.push(Sizes{Undo: len(a.undoStack), Redo: len(a.redoStack)})
	a.mu.Unlock()
	return f
}

// Next blocks until the depths change (or for the initial snapshot) and
// returns the newest value. ok is false once the engine has shut down and no
// unseen snapshot remains.
func (f *SizeFollower) Next(ctx context.Context) (s Sizes, ok bool, err error) {
	for {
		f.mu.Lock()
		if f.fresh {
			f.fresh = false
			s := f.latest
			f.mu.Unlock()
			return s, true, nil
		}
		if f.done {
			f.mu.Unlock()
			return Sizes{}, false, nil
		}
		f.mu.Unlock()

		select {
		case <-f.signal:
		case <-ctx.Done():
			return Sizes{}, false, ctx.Err()
		}
	}
}

func (f *SizeFollower) push(s Sizes) {
	f.mu.Lock()
	f.latest = s
	f.fresh = true
	f.mu.Unlock()
	f.wake()
}

func (f *SizeFollower) finish() {
	f.mu.Lock()
	f.done = true
	f.mu.Unlock()
	f.wake()
}

func (f *SizeFollower) wake() {
	select {
	case f.signal <- struct{}{}:
	default:
	}
}
