// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcq

import (
	"context"
	"iter"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// broadcastCore is the broadcast-delivery engine (spec.md §4.D, §4.F
// "Broadcast stream"). Every enqueued item is delivered to every
// registered stream; a stream's consumers divide its items among
// themselves via a CAS-claimed shared head.
type broadcastCore[T any] struct {
	ring *ring[T]

	_    pad
	tail atomix.Uint64 // write_cursor
	_    pad
	cachedMinTail atomix.Uint64
	_             pad

	roomWait *waitSet // producers park here
	dataWait *waitSet // stream consumers park here

	senders *handleGroup // onClose: terminate dataWait
	reg     *registry
}

// BroadcastSender is the producer handle for a broadcast queue.
type BroadcastSender[T any] struct {
	core *broadcastCore[T]
}

// BroadcastReceiver is a consumer handle attached to one stream of a
// broadcast queue. Multiple BroadcastReceiver handles may share a stream
// (via Clone), in which case they divide that stream's items among
// themselves; AddStream creates an independent stream instead.
type BroadcastReceiver[T any] struct {
	core     *broadcastCore[T]
	stream   *streamRecord
	consumer *consumerRecord
}

// NewBroadcastQueue creates a broadcast queue with the default wait
// strategy. The returned receiver is the bootstrap consumer of the
// queue's first stream (spec.md §4.D "Unsubscribe").
func NewBroadcastQueue[T any](capacity int) (*BroadcastSender[T], *BroadcastReceiver[T]) {
	return NewBroadcastQueueWith[T](capacity, 0, 0)
}

// NewBroadcastQueueWith creates a broadcast queue with an explicit
// [WaitStrategy] (try_spins, yield_spins in spec.md §6).
func NewBroadcastQueueWith[T any](capacity, trySpins, yieldSpins int) (*BroadcastSender[T], *BroadcastReceiver[T]) {
	ws := WithSpins(trySpins, yieldSpins)
	c := &broadcastCore[T]{ring: newRing[T](capacity), reg: &registry{}}
	c.roomWait = newWaitSet(ws)
	c.dataWait = newWaitSet(ws)
	c.senders = newHandleGroup(c.dataWait)
	s, rec := c.reg.addStream(0)
	return &BroadcastSender[T]{core: c}, &BroadcastReceiver[T]{core: c, stream: s, consumer: rec}
}

// Cap returns the queue's usable capacity.
func (s *BroadcastSender[T]) Cap() int { return int(s.core.ring.capacity) }

// Clone returns another sender handle sharing this queue.
func (s *BroadcastSender[T]) Clone() *BroadcastSender[T] {
	s.core.senders.clone()
	return &BroadcastSender[T]{core: s.core}
}

// Close drops this sender handle. Once every sender handle has closed,
// every stream observes Disconnected after draining.
func (s *BroadcastSender[T]) Close() error {
	s.core.senders.close()
	return nil
}

// Stats returns an approximate snapshot of the queue's cursor state. See
// [Stats] for the accuracy caveat.
func (s *BroadcastSender[T]) Stats() Stats {
	return Stats{WriteCursor: s.core.tail.LoadAcquire(), Streams: s.core.reg.streamCount()}
}

// TrySend clones elem into every registered stream without blocking
// (spec.md §4.E). Returns ErrFull if the slowest stream hasn't made
// enough room, or ErrDisconnected if no stream remains.
func (s *BroadcastSender[T]) TrySend(elem *T) error {
	c := s.core
	for {
		if c.reg.streamCount() == 0 {
			return ErrDisconnected
		}

		tail := c.tail.LoadAcquire()
		cached := c.cachedMinTail.LoadAcquire()

		if tail-cached >= c.ring.capacity {
			minTail, ok := c.reg.minTail()
			if !ok {
				return ErrDisconnected
			}
			c.cachedMinTail.StoreRelease(minTail)
			if tail-minTail >= c.ring.capacity {
				return ErrFull
			}
		}

		if c.senders.isSingle() {
			c.tail.StoreRelaxed(tail + 1)
		} else if !c.tail.CompareAndSwapAcqRel(tail, tail+1) {
			continue
		}

		cell := c.ring.at(tail)
		cell.value = *elem
		cell.writeCount.StoreRelease(c.ring.expectedWriteLap(tail))
		c.dataWait.wake()
		return nil
	}
}

// Send blocks until room is available in every stream, the queue
// disconnects, or ctx is done.
func (s *BroadcastSender[T]) Send(ctx context.Context, elem *T) error {
	c := s.core
	for {
		err := s.TrySend(elem)
		if err == nil || IsDisconnected(err) {
			return err
		}
		ok := c.roomWait.wait(ctx, func() bool {
			tail := c.tail.LoadAcquire()
			minTail, hasStreams := c.reg.minTail()
			if !hasStreams {
				return true // will observe Disconnected on retry
			}
			return tail-minTail < c.ring.capacity
		})
		if !ok {
			if ctx != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrDisconnected
		}
	}
}

// Cap returns the queue's usable capacity.
func (r *BroadcastReceiver[T]) Cap() int { return int(r.core.ring.capacity) }

// Clone returns another consumer handle on the same stream; the two
// handles divide that stream's items between themselves (spec.md §4.G
// "Receiver clone within stream").
func (r *BroadcastReceiver[T]) Clone() *BroadcastReceiver[T] {
	c := r.stream.addConsumer()
	return &BroadcastReceiver[T]{core: r.core, stream: r.stream, consumer: c}
}

// AddStream registers a new, independent stream starting at the queue's
// current write position and returns its bootstrap consumer (spec.md
// §4.G). The new stream never observes items enqueued before this call.
func (r *BroadcastReceiver[T]) AddStream() *BroadcastReceiver[T] {
	w := r.core.tail.LoadAcquire()
	s, c := r.core.reg.addStream(w)
	return &BroadcastReceiver[T]{core: r.core, stream: s, consumer: c}
}

// Unsubscribe removes this handle's consumer record. If it was the last
// consumer of its stream, the stream itself is removed from the registry
// — including the bootstrap stream a fresh receiver from NewBroadcastQueue
// is attached to but never explicitly joined (spec.md §4.D).
func (r *BroadcastReceiver[T]) Unsubscribe() error {
	r.core.unsubscribe(r.stream, r.consumer)
	return nil
}

// Close is an alias for Unsubscribe, matching the Sender/Receiver Close
// naming used by shared-mode queues.
func (r *BroadcastReceiver[T]) Close() error { return r.Unsubscribe() }

func (c *broadcastCore[T]) unsubscribe(s *streamRecord, rec *consumerRecord) {
	if empty := s.removeConsumer(rec); empty {
		c.reg.removeStream(s)
	}
	c.roomWait.wake() // removing a consumer/stream can only ever free room
}

// TryRecv claims and returns the next item on this stream without
// blocking (spec.md §4.F "Broadcast stream"). Returns ErrEmpty or
// ErrDisconnected on failure.
func (r *BroadcastReceiver[T]) TryRecv() (T, error) {
	c := r.core
	for {
		w := c.tail.LoadAcquire()
		single := r.stream.consumerCount() == 1
		h := r.stream.claim.LoadAcquire()
		if h == w {
			var zero T
			if c.senders.isClosed() {
				return zero, ErrDisconnected
			}
			return zero, ErrEmpty
		}

		// claim always advances, even on the single-consumer fast path:
		// a consumer Clone()d onto this stream later reads claim as its
		// starting head, so a stale claim would hand the new consumer
		// positions this consumer already finished.
		if single {
			r.stream.claim.StoreRelaxed(h + 1)
		} else if !r.stream.claim.CompareAndSwapAcqRel(h, h+1) {
			continue
		}

		cell := c.ring.at(h)
		expected := c.ring.expectedWriteLap(h)
		sw := spin.Wait{}
		for cell.writeCount.LoadAcquire() != expected {
			sw.Once()
		}
		val := cell.value
		r.consumer.head.StoreRelease(h + 1)
		c.roomWait.wake()
		return val, nil
	}
}

// Recv blocks until this stream has an item, the queue disconnects, or
// ctx is done.
func (r *BroadcastReceiver[T]) Recv(ctx context.Context) (T, error) {
	c := r.core
	for {
		val, err := r.TryRecv()
		if err == nil || IsDisconnected(err) {
			return val, err
		}
		ok := c.dataWait.wait(ctx, func() bool {
			return r.consumer.head.LoadAcquire() != c.tail.LoadAcquire() || c.senders.isClosed()
		})
		if !ok {
			var zero T
			if ctx != nil && ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, ErrDisconnected
		}
	}
}

// IntoSingle promotes this handle into a [SingleStreamReceiver], which
// exposes an in-place view API instead of copying values out of the ring
// (spec.md §4.F "Promoting to single-consumer"). Fails with
// ErrMultipleConsumers if another consumer is registered on the same
// stream.
func (r *BroadcastReceiver[T]) IntoSingle() (*SingleStreamReceiver[T], error) {
	if r.stream.consumerCount() != 1 {
		return nil, ErrMultipleConsumers
	}
	return &SingleStreamReceiver[T]{core: r.core, stream: r.stream, consumer: r.consumer}, nil
}

// SingleStreamReceiver is a broadcast stream receiver known to have
// exactly one consumer. It exposes View, which borrows a pointer directly
// into the ring cell instead of copying the value out (spec.md §4.F,
// §9 "In-place borrow").
type SingleStreamReceiver[T any] struct {
	core     *broadcastCore[T]
	stream   *streamRecord
	consumer *consumerRecord
}

// Cap returns the queue's usable capacity.
func (r *SingleStreamReceiver[T]) Cap() int { return int(r.core.ring.capacity) }

// Unsubscribe removes this receiver, and its stream if it was the last
// consumer on it.
func (r *SingleStreamReceiver[T]) Unsubscribe() error {
	r.core.unsubscribe(r.stream, r.consumer)
	return nil
}

// Close is an alias for Unsubscribe.
func (r *SingleStreamReceiver[T]) Close() error { return r.Unsubscribe() }

// TryView claims the next item and returns a pointer into its ring cell,
// valid until the next TryView/View call on this receiver (spec.md §4.F
// "In-place viewing contract": the cell is not overwritten while the
// borrow is live because the stream's published head does not advance
// past it until then).
func (r *SingleStreamReceiver[T]) TryView() (*T, error) {
	c := r.core
	w := c.tail.LoadAcquire()
	h := r.consumer.head.LoadAcquire()
	if h == w {
		if c.senders.isClosed() {
			return nil, ErrDisconnected
		}
		return nil, ErrEmpty
	}

	cell := c.ring.at(h)
	expected := c.ring.expectedWriteLap(h)
	sw := spin.Wait{}
	for cell.writeCount.LoadAcquire() != expected {
		sw.Once()
	}
	r.consumer.head.StoreRelease(h + 1)
	c.roomWait.wake()
	return &cell.value, nil
}

// View blocks until an item is available and returns a borrowed pointer
// into its ring cell (see TryView).
func (r *SingleStreamReceiver[T]) View(ctx context.Context) (*T, error) {
	c := r.core
	for {
		v, err := r.TryView()
		if err == nil || IsDisconnected(err) {
			return v, err
		}
		ok := c.dataWait.wait(ctx, func() bool {
			return r.consumer.head.LoadAcquire() != c.tail.LoadAcquire() || c.senders.isClosed()
		})
		if !ok {
			if ctx != nil && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrDisconnected
		}
	}
}

// TryIterWith returns a single-use iterator that calls f with a borrowed
// pointer to each item already available on r, stopping at the first
// empty or disconnected read instead of blocking (spec.md §6
// "try_iter_with"). TryIterWith is a package-level function, not a
// method, because Go methods cannot introduce new type parameters: R is
// independent of r's element type T.
func TryIterWith[T, R any](r *SingleStreamReceiver[T], f func(*T) R) iter.Seq[R] {
	return func(yield func(R) bool) {
		for {
			v, err := r.TryView()
			if err != nil {
				return
			}
			if !yield(f(v)) {
				return
			}
		}
	}
}

// IterWith returns a single-use iterator that calls f with a borrowed
// pointer to each item on r, blocking (honoring ctx) when none is yet
// available, stopping only on disconnect or ctx cancellation (spec.md §6
// "iter_with").
func IterWith[T, R any](ctx context.Context, r *SingleStreamReceiver[T], f func(*T) R) iter.Seq[R] {
	return func(yield func(R) bool) {
		for {
			v, err := r.View(ctx)
			if err != nil {
				return
			}
			if !yield(f(v)) {
				return
			}
		}
	}
}
