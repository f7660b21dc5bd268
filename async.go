// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcq

// This file is the task-runtime-compatible adapter of spec.md §4.H: a
// non-blocking poll over the same engines as mpmc.go/broadcast.go. When an
// operation would otherwise park, it instead registers the caller's wake
// callback on the same waitSet a synchronous Send/Recv parks on
// (wait.go's registerWaker), and returns immediately with done=false and a
// nil error so the calling task runtime can suspend the task itself instead of
// blocking an OS thread. Progress on the opposite side invokes the
// registered callback exactly like it signals a parked condvar waiter,
// satisfying spec.md §4.C/§4.H's "one waiter structure" requirement.
//
// Go has no task-runtime or Future type in the standard library, so the
// adapter is expressed the way this kind of bridge is written for
// callback-based runtimes generally: a Poll* method that returns
// (done bool, err error) and takes the wake callback explicitly, rather
// than a polymorphic Future/Waker type. Callers integrating with a
// specific async runtime supply that runtime's own wake primitive as wake.

// AsyncSender is the task-runtime-compatible adapter for a shared MPMC
// queue's producer side.
type AsyncSender[T any] struct {
	*Sender[T]
}

// NewAsyncQueue creates a shared MPMC queue and wraps both handles for
// non-blocking, wake-callback-driven use.
func NewAsyncQueue[T any](capacity int) (*AsyncSender[T], *AsyncReceiver[T]) {
	s, r := NewQueue[T](capacity)
	return &AsyncSender[T]{Sender: s}, &AsyncReceiver[T]{Receiver: r}
}

// Clone returns another async sender handle.
func (s *AsyncSender[T]) Clone() *AsyncSender[T] {
	return &AsyncSender[T]{Sender: s.Sender.Clone()}
}

// PollSend attempts TrySend. If the queue is full, it registers wake on
// the queue's room waiter set and returns (false, nil): the caller should
// suspend its task and expect wake to run once room might be available.
// wake may be invoked spuriously; the caller is expected to call PollSend
// again rather than assume success. Per spec.md §4.H, an async sender
// "parks" on full exactly this way, unlike a synchronous sender which
// always returns Full immediately.
func (s *AsyncSender[T]) PollSend(elem *T, wake func()) (done bool, err error) {
	err = s.TrySend(elem)
	switch {
	case err == nil:
		return true, nil
	case IsDisconnected(err):
		return true, err
	default: // ErrFull
		cancel := s.core.roomWait.registerWaker(wake)
		// Re-check after registering: room may have opened between the
		// failed TrySend and the registration above.
		if err2 := s.TrySend(elem); err2 == nil || IsDisconnected(err2) {
			cancel()
			return true, err2
		}
		return false, nil
	}
}

// AsyncReceiver is the task-runtime-compatible adapter for a shared MPMC
// queue's consumer side.
type AsyncReceiver[T any] struct {
	*Receiver[T]
}

// Clone returns another async receiver handle.
func (r *AsyncReceiver[T]) Clone() *AsyncReceiver[T] {
	return &AsyncReceiver[T]{Receiver: r.Receiver.Clone()}
}

// PollRecv attempts TryRecv. If the queue is empty, it registers wake on
// the queue's data waiter set and returns (false, zero, nil): the caller
// should suspend its task and expect wake to run once an item might be
// available.
func (r *AsyncReceiver[T]) PollRecv(wake func()) (done bool, val T, err error) {
	val, err = r.TryRecv()
	switch {
	case err == nil:
		return true, val, nil
	case IsDisconnected(err):
		return true, val, err
	default: // ErrEmpty
		cancel := r.core.dataWait.registerWaker(wake)
		if v2, err2 := r.TryRecv(); err2 == nil || IsDisconnected(err2) {
			cancel()
			return true, v2, err2
		}
		return false, val, nil
	}
}

// AsyncBroadcastSender is the task-runtime-compatible adapter for a
// broadcast queue's producer side.
type AsyncBroadcastSender[T any] struct {
	*BroadcastSender[T]
}

// NewAsyncBroadcastQueue creates a broadcast queue and wraps both handles
// for non-blocking, wake-callback-driven use.
func NewAsyncBroadcastQueue[T any](capacity int) (*AsyncBroadcastSender[T], *AsyncBroadcastReceiver[T]) {
	s, r := NewBroadcastQueue[T](capacity)
	return &AsyncBroadcastSender[T]{BroadcastSender: s}, &AsyncBroadcastReceiver[T]{BroadcastReceiver: r}
}

// Clone returns another async sender handle.
func (s *AsyncBroadcastSender[T]) Clone() *AsyncBroadcastSender[T] {
	return &AsyncBroadcastSender[T]{BroadcastSender: s.BroadcastSender.Clone()}
}

// PollSend mirrors AsyncSender.PollSend for broadcast mode: room is
// gated by the slowest stream rather than a single shared head.
func (s *AsyncBroadcastSender[T]) PollSend(elem *T, wake func()) (done bool, err error) {
	err = s.TrySend(elem)
	switch {
	case err == nil:
		return true, nil
	case IsDisconnected(err):
		return true, err
	default:
		cancel := s.core.roomWait.registerWaker(wake)
		if err2 := s.TrySend(elem); err2 == nil || IsDisconnected(err2) {
			cancel()
			return true, err2
		}
		return false, nil
	}
}

// AsyncBroadcastReceiver is the task-runtime-compatible adapter for one
// stream of a broadcast queue.
type AsyncBroadcastReceiver[T any] struct {
	*BroadcastReceiver[T]
}

// Clone returns another async receiver handle on the same stream.
func (r *AsyncBroadcastReceiver[T]) Clone() *AsyncBroadcastReceiver[T] {
	return &AsyncBroadcastReceiver[T]{BroadcastReceiver: r.BroadcastReceiver.Clone()}
}

// AddStream registers a new independent stream and returns its async
// bootstrap receiver.
func (r *AsyncBroadcastReceiver[T]) AddStream() *AsyncBroadcastReceiver[T] {
	return &AsyncBroadcastReceiver[T]{BroadcastReceiver: r.BroadcastReceiver.AddStream()}
}

// PollRecv mirrors AsyncReceiver.PollRecv for one broadcast stream.
func (r *AsyncBroadcastReceiver[T]) PollRecv(wake func()) (done bool, val T, err error) {
	val, err = r.TryRecv()
	switch {
	case err == nil:
		return true, val, nil
	case IsDisconnected(err):
		return true, val, err
	default:
		cancel := r.core.dataWait.registerWaker(wake)
		if v2, err2 := r.TryRecv(); err2 == nil || IsDisconnected(err2) {
			cancel()
			return true, v2, err2
		}
		return false, val, nil
	}
}
