// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcq

import (
	"context"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// sharedCore is the shared-delivery MPMC engine (spec.md §4.F "Shared
// MPMC"). Each logical position is delivered to exactly one consumer,
// selected by whichever consumer wins the read_cursor claim. Grounded on
// the teacher's mpmc_seq.go: a CAS-claimed tail/head pair over an n-slot
// ring with a per-slot sequence number, generalized from a tight
// spin-only retry loop to one that escalates through [WaitStrategy] when
// blocking operations are used.
type sharedCore[T any] struct {
	ring *ring[T]

	_    pad
	tail atomix.Uint64 // write_cursor
	_    pad
	head atomix.Uint64 // read_cursor
	_    pad

	roomWait *waitSet // producers park here
	dataWait *waitSet // consumers park here

	senders   *handleGroup // onClose: terminate dataWait
	receivers *handleGroup // onClose: terminate roomWait
}

// Sender is the producer handle for a shared MPMC queue.
type Sender[T any] struct {
	core *sharedCore[T]
}

// Receiver is the consumer handle for a shared MPMC queue.
type Receiver[T any] struct {
	core *sharedCore[T]
}

// NewQueue creates a shared-delivery MPMC queue with the default wait
// strategy (immediate parking, spec.md §4.C). Capacity rounds up to the
// next power of two.
func NewQueue[T any](capacity int) (*Sender[T], *Receiver[T]) {
	return NewQueueWith[T](capacity, WaitStrategy{})
}

// NewQueueWith creates a shared-delivery MPMC queue with a custom
// [WaitStrategy].
func NewQueueWith[T any](capacity int, ws WaitStrategy) (*Sender[T], *Receiver[T]) {
	c := &sharedCore[T]{ring: newRing[T](capacity)}
	c.roomWait = newWaitSet(ws)
	c.dataWait = newWaitSet(ws)
	c.senders = newHandleGroup(c.dataWait)
	c.receivers = newHandleGroup(c.roomWait)
	return &Sender[T]{core: c}, &Receiver[T]{core: c}
}

// Cap returns the queue's usable capacity.
func (s *Sender[T]) Cap() int { return int(s.core.ring.capacity) }

// Clone returns another sender handle sharing this queue (spec.md §4.G
// "Sender clone: increments producer count atomically").
func (s *Sender[T]) Clone() *Sender[T] {
	s.core.senders.clone()
	return &Sender[T]{core: s.core}
}

// Close drops this sender handle. Once every sender handle has closed,
// every consumer observes Disconnected after draining (spec.md §3
// Lifecycle).
func (s *Sender[T]) Close() error {
	s.core.senders.close()
	return nil
}

// TrySend adds elem to the queue without blocking (spec.md §4.E).
// Returns nil, ErrFull, or ErrDisconnected. elem is never modified or
// retained by the queue on a non-nil return.
func (s *Sender[T]) TrySend(elem *T) error {
	c := s.core
	for {
		if c.receivers.isClosed() {
			return ErrDisconnected
		}

		tail := c.tail.LoadAcquire()
		head := c.head.LoadAcquire()
		if tail-head >= c.ring.capacity {
			return ErrFull
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

// Send blocks, escalating through the queue's [WaitStrategy], until room
// is available, the queue disconnects, or ctx is done. A nil ctx blocks
// uncancellably.
func (s *Sender[T]) Send(ctx context.Context, elem *T) error {
	c := s.core
	for {
		err := s.TrySend(elem)
		if err == nil || IsDisconnected(err) {
			return err
		}
		ok := c.roomWait.wait(ctx, func() bool {
			tail := c.tail.LoadAcquire()
			head := c.head.LoadAcquire()
			return tail-head < c.ring.capacity || c.receivers.isClosed()
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
func (r *Receiver[T]) Cap() int { return int(r.core.ring.capacity) }

// Clone returns another consumer handle sharing this queue and its
// delivery pool (spec.md §4.G).
func (r *Receiver[T]) Clone() *Receiver[T] {
	r.core.receivers.clone()
	return &Receiver[T]{core: r.core}
}

// Close drops this receiver handle. Once every receiver handle has
// closed, every subsequent TrySend/Send returns ErrDisconnected.
func (r *Receiver[T]) Close() error {
	r.core.receivers.close()
	return nil
}

// TryRecv removes and returns an item without blocking (spec.md §4.F
// "Shared MPMC"). Returns ErrEmpty or ErrDisconnected on failure.
func (r *Receiver[T]) TryRecv() (T, error) {
	c := r.core
	for {
		head := c.head.LoadAcquire()
		tail := c.tail.LoadAcquire()
		if head == tail {
			var zero T
			if c.senders.isClosed() {
				return zero, ErrDisconnected
			}
			return zero, ErrEmpty
		}

		if c.receivers.isSingle() {
			c.head.StoreRelaxed(head + 1)
		} else if !c.head.CompareAndSwapAcqRel(head, head+1) {
			continue
		}

		cell := c.ring.at(head)
		expected := c.ring.expectedWriteLap(head)
		sw := spin.Wait{}
		for cell.writeCount.LoadAcquire() != expected {
			sw.Once()
		}
		val := cell.value
		var zero T
		cell.value = zero
		c.roomWait.wake()
		return val, nil
	}
}

// Recv blocks, escalating through the queue's [WaitStrategy], until an
// item is available, the queue disconnects, or ctx is done.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	c := r.core
	for {
		val, err := r.TryRecv()
		if err == nil || IsDisconnected(err) {
			return val, err
		}
		ok := c.dataWait.wait(ctx, func() bool {
			return c.head.LoadAcquire() != c.tail.LoadAcquire() || c.senders.isClosed()
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
