package session

import (
	"log/slog"

	"wandermap/pkg/metrics"
	"wandermap/pkg/render"
)

// subscriptionBuffer bounds how far a subscriber may fall behind before its
// queue is replaced by a single full frame.
const subscriptionBuffer = 64

// Subscription receives the batches a session broadcasts. C is closed when
// the subscription is released or the session closes.
type Subscription struct {
	C <-chan Batch

	ch      chan Batch
	s       *Session
	last    uint64
	closed  bool
	resyncs int
}

// Subscribe registers a new subscriber. The first batch it receives is the
// current full frame. Subscribing to a closed session yields a closed channel.
func (s *Session) Subscribe() *Subscription {
	ch := make(chan Batch, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, s: s}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sub.closeLocked()
		return sub
	}
	s.subs[sub] = struct{}{}
	sub.deliverLocked(s.liveBatchLocked())
	return sub
}

// Release unregisters the subscription and closes C.
func (sub *Subscription) Release() {
	sub.s.mu.Lock()
	defer sub.s.mu.Unlock()
	delete(sub.s.subs, sub)
	sub.closeLocked()
}

func (sub *Subscription) closeLocked() {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

// deliverLocked hands b to the subscriber without blocking. Batches older
// than what the subscriber already has are dropped; a full queue is drained
// and replaced by a fresh full frame.
func (sub *Subscription) deliverLocked(b Batch) {
	if sub.closed || b.Revision < sub.last {
		return
	}
	select {
	case sub.ch <- b:
		sub.last = b.Revision
		return
	default:
	}

	for drained := false; !drained; {
		select {
		case <-sub.ch:
		default:
			drained = true
		}
	}
	full := sub.s.liveBatchLocked()
	sub.ch <- full
	sub.last = full.Revision
	sub.resyncs++
	metrics.ResyncsTotal.Inc()
	slog.Warn("Session: subscriber lagging, resynced", "session", sub.s.id, "revision", full.Revision)
}

func (s *Session) broadcastLocked(b Batch) {
	for sub := range s.subs {
		sub.deliverLocked(b)
	}
}

func (s *Session) broadcastFullLocked() {
	if len(s.subs) == 0 {
		return
	}
	s.broadcastLocked(s.liveBatchLocked())
}

func (s *Session) broadcastPatchLocked(cmds []render.Command) {
	if len(cmds) == 0 {
		return
	}
	s.broadcastLocked(Batch{Revision: s.store.Snapshot().Revision(), Commands: cmds})
}
