// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcq

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// consumerRecord tracks one consumer's completed-position head within a
// stream (spec.md §3 "each consumer within a stream owns a
// consumer_head"). head is the consumer's own committed position, not its
// claim: it only advances once the consumer has finished the item, which
// is what makes min_tail accounting safe against overwriting a cell a
// slow consumer is still viewing (spec.md §4.F "In-place viewing
// contract").
type consumerRecord struct {
	head atomix.Uint64
}

// streamRecord is one broadcast stream: a claim dispenser shared by every
// consumer registered on it, plus the list of those consumers' completed
// heads (spec.md §4.D).
type streamRecord struct {
	claim atomix.Uint64 // next position to hand to a claiming consumer

	mu        sync.RWMutex
	consumers []*consumerRecord
}

func newStreamRecord(startPos uint64) *streamRecord {
	s := &streamRecord{}
	s.claim.StoreRelaxed(startPos)
	return s
}

// addConsumer registers a new consumer on the stream, starting its head
// at the stream's current claim position (the next position not yet
// handed to any consumer), so it never reports a head behind positions
// already claimed by its siblings.
func (s *streamRecord) addConsumer() *consumerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &consumerRecord{}
	c.head.StoreRelaxed(s.claim.LoadAcquire())
	s.consumers = append(s.consumers, c)
	return c
}

// removeConsumer drops c from the stream. Reports whether the stream now
// has zero consumers and should itself be removed from the registry.
func (s *streamRecord) removeConsumer(c *consumerRecord) (empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.consumers {
		if rec == c {
			s.consumers = append(s.consumers[:i], s.consumers[i+1:]...)
			break
		}
	}
	return len(s.consumers) == 0
}

func (s *streamRecord) consumerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.consumers)
}

// minHead is the minimum completed head over every live consumer of the
// stream, i.e. the stream's effective head (spec.md §3).
func (s *streamRecord) minHead() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.consumers) == 0 {
		return 0, false
	}
	min := s.consumers[0].head.LoadAcquire()
	for _, c := range s.consumers[1:] {
		h := c.head.LoadAcquire()
		if h < min {
			min = h
		}
	}
	return min, true
}

// registry is the broadcast stream bookkeeping of spec.md §4.D: a list of
// stream records, each owning a list of consumer records. Structural
// mutation (adding/removing a stream) takes the write lock for a short
// critical section; minTail computation takes only the read lock.
type registry struct {
	mu      sync.RWMutex
	streams []*streamRecord
}

// addStream registers a new stream starting at startPos and returns it
// together with its first (bootstrap) consumer record.
func (reg *registry) addStream(startPos uint64) (*streamRecord, *consumerRecord) {
	s := newStreamRecord(startPos)
	c := s.addConsumer()
	reg.mu.Lock()
	reg.streams = append(reg.streams, s)
	reg.mu.Unlock()
	return s, c
}

// removeStream drops s from the registry (called once its last consumer
// has unsubscribed).
func (reg *registry) removeStream(s *streamRecord) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for i, rec := range reg.streams {
		if rec == s {
			reg.streams = append(reg.streams[:i], reg.streams[i+1:]...)
			return
		}
	}
}

// streamCount reports how many streams are currently registered. Used to
// detect "last stream removed" for the Disconnected transition (spec.md
// §4.G).
func (reg *registry) streamCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.streams)
}

// minTail aggregates the minimum stream head across every registered
// stream (spec.md §3 "min_tail: aggregate minimum over ... all stream
// heads"). A queue with zero streams has nothing to protect and reports
// ok=false; the caller (BroadcastSender.TrySend in broadcast.go) treats
// that as Disconnected, not as
// "infinite room".
func (reg *registry) minTail() (tail uint64, ok bool) {
	reg.mu.RLock()
	streams := reg.streams
	reg.mu.RUnlock()

	if len(streams) == 0 {
		return 0, false
	}
	min, any := uint64(0), false
	for _, s := range streams {
		h, has := s.minHead()
		if !has {
			continue
		}
		if !any || h < min {
			min, any = h, true
		}
	}
	if !any {
		return 0, false
	}
	return min, true
}

// Stats is an approximate, cheap snapshot of a broadcast queue's cursor
// state. It is intentionally not an exact count (spec.md §1 "No mechanism
// reports which stream is lagging most"; types.go in the teacher makes
// the same stance for its own queues: "accurate counts in lock-free
// algorithms require expensive cross-core synchronization"). Values are
// read without coordination and may be stale by the time the caller
// observes them.
type Stats struct {
	WriteCursor uint64
	Streams     int
}
