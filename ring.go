// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcq

import "code.hybscloud.com/atomix"

// pad is cache line padding to prevent false sharing, carried from the
// teacher's options.go unchanged.
type pad [64]byte

// cell is one ring slot. writeCount equal to a reader's expected lap
// (expectedWriteLap) means the item for that lap has been published; any
// other value means it has not (spec.md §3, §4.A).
//
// Unlike the teacher's mpmcSeqSlot (code.hybscloud.com/lfq, mpmc_seq.go),
// a cell has no notion of "consumed" tied to a single reader: in
// broadcast mode many streams read the same cell independently, so
// writeCount only ever advances on a write, never on a read. Readers
// compare it against their own derived expected lap instead of CASing it.
type cell[T any] struct {
	writeCount atomix.Uint64
	value      T
	_          pad
}

// ring is the fixed-capacity power-of-two storage array (spec.md §4.A).
// capacity n is rounded up to the next power of two; mask is n-1.
type ring[T any] struct {
	cells    []cell[T]
	mask     uint64
	capacity uint64
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		panic("mcq: capacity must be >= 1")
	}
	n := uint64(roundToPow2(capacity))
	r := &ring[T]{
		cells:    make([]cell[T], n),
		mask:     n - 1,
		capacity: n,
	}
	// Every cell starts at writeCount 0, which matches no position's
	// expectedWriteLap (always >= 1), so the very first reader of a cell
	// waits for the first publish exactly like every subsequent lap.
	for i := range r.cells {
		r.cells[i].writeCount.StoreRelaxed(0)
	}
	return r
}

func (r *ring[T]) at(pos uint64) *cell[T] {
	return &r.cells[pos&r.mask]
}

// expectedWriteLap is the write-count value a cell must show once the
// item written at logical position pos has been published. A producer
// owns a position exclusively from the moment it wins the cursor
// CAS/increment (ring.go has no "claimed but unpublished" state to
// expose to readers because nothing but the owning producer ever
// observes a cell between claim and publish — unlike the teacher's
// FAA-based SCQ algorithms (mpmc.go, spmc.go), this design claims a
// position with a CAS that already implies "I will publish this",
// mirroring mpmc_seq.go's sequence-number discipline rather than SCQ's
// blind-FAA-plus-repair discipline.
func (r *ring[T]) expectedWriteLap(pos uint64) uint64 {
	return pos/r.capacity + 1
}

// roundToPow2 rounds n up to the next power of two, grounded on
// options.go's identical helper in the teacher.
func roundToPow2(n int) int {
	if n < 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
