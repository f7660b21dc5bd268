// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcq

import (
	"context"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// WaitStrategy configures the escalation a blocked Send/Recv goes through
// when it cannot make progress (spec.md §4.C): up to TrySpins tight
// re-reads of the blocking cursor, then up to YieldSpins cooperative CPU
// yields between re-reads, then parking on a condition variable.
//
// The zero value parks immediately, matching spec.md's documented
// default ("The default constructor sets both spin thresholds to zero,
// yielding immediate parking — CPU-economical"). Grounded on the
// teacher's options.go Builder, generalized from queue-algorithm
// selection to wait-policy selection.
type WaitStrategy struct {
	TrySpins   int
	YieldSpins int
}

// WithSpins returns a WaitStrategy with the given thresholds. (∞, 0) in
// spec.md terms is expressed as a very large TrySpins; there is no
// dedicated infinite-spin mode because Go has no sentinel "never park"
// value that survives a context cancellation check.
func WithSpins(trySpins, yieldSpins int) WaitStrategy {
	return WaitStrategy{TrySpins: trySpins, YieldSpins: yieldSpins}
}

// waitSet is one side's (producer side or consumer side) wait/wake
// channel. It unifies synchronous condvar parking and asynchronous task
// wake callbacks behind one notification path (spec.md §9 Open Question):
// a progressing party on the opposite side calls wake(), which both
// signals every parked goroutine and invokes every registered async
// waker, so a synchronous producer always wakes an async consumer task
// and vice versa.
type waitSet struct {
	strategy WaitStrategy

	mu      sync.Mutex
	cond    sync.Cond
	waiters atomix.Int64 // count of parked goroutines, read on the hot path

	asyncMu sync.Mutex
	wakers  map[uint64]func()
	nextID  uint64

	terminated atomix.Bool
}

func newWaitSet(strategy WaitStrategy) *waitSet {
	w := &waitSet{strategy: strategy}
	w.cond.L = &w.mu
	return w
}

// terminate flips the termination flag and wakes everyone; a parked
// waiter re-checks its condition and, finding it still unmet, returns
// ErrDisconnected instead of continuing to wait (spec.md §4.C
// Cancellation).
func (w *waitSet) terminate() {
	w.terminated.StoreRelease(true)
	w.wake()
}

func (w *waitSet) isTerminated() bool {
	return w.terminated.LoadAcquire()
}

// wake signals parked goroutines and invokes registered async wakers.
// wake checks waiters > 0 before taking the mutex (spec.md §4.C:
// "A progressing party ... inspects the waiter counter; if non-zero it
// acquires the mutex and signals all waiters on that side"), but async
// wakers are always invoked since registering one is cheap and rare
// relative to the hot path.
func (w *waitSet) wake() {
	if w.waiters.LoadAcquire() > 0 {
		w.mu.Lock()
		w.cond.Broadcast()
		w.mu.Unlock()
	}
	w.asyncMu.Lock()
	wakers := w.wakers
	w.asyncMu.Unlock()
	for _, fn := range wakers {
		fn()
	}
}

// registerWaker stores an async task's wake callback and returns a
// deregistration function. Used by the §4.H adapter when a poll would
// otherwise block.
func (w *waitSet) registerWaker(fn func()) (cancel func()) {
	w.asyncMu.Lock()
	if w.wakers == nil {
		w.wakers = make(map[uint64]func())
	}
	id := w.nextID
	w.nextID++
	w.wakers[id] = fn
	w.asyncMu.Unlock()
	return func() {
		w.asyncMu.Lock()
		delete(w.wakers, id)
		w.asyncMu.Unlock()
	}
}

// wait blocks until progress is possible (done() returns true), the
// opposite side terminates, or ctx is cancelled. It returns true if done()
// became true, false on termination or cancellation.
func (w *waitSet) wait(ctx context.Context, done func() bool) bool {
	sw := spin.Wait{}
	for i := 0; w.strategy.TrySpins > 0 && i < w.strategy.TrySpins; i++ {
		if done() {
			return true
		}
		if w.isTerminated() {
			return false
		}
		sw.Once()
	}
	for i := 0; w.strategy.YieldSpins > 0 && i < w.strategy.YieldSpins; i++ {
		if done() {
			return true
		}
		if w.isTerminated() {
			return false
		}
		sw.Once()
	}

	w.waiters.AddAcqRel(1)
	defer w.waiters.AddAcqRel(-1)

	w.mu.Lock()
	defer w.mu.Unlock()

	if ctx != nil {
		// context.AfterFunc runs (in its own goroutine) once ctx is
		// cancelled, broadcasting the condvar so a parked Wait() re-checks
		// its loop condition instead of blocking past cancellation.
		stop := context.AfterFunc(ctx, func() {
			w.mu.Lock()
			w.cond.Broadcast()
			w.mu.Unlock()
		})
		defer stop()
	}

	for !done() {
		if w.isTerminated() {
			return false
		}
		if ctx != nil && ctx.Err() != nil {
			return false
		}
		w.cond.Wait()
	}
	return true
}
