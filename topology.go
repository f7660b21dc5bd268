// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcq

import "code.hybscloud.com/atomix"

// handleGroup is a reference-counted set of handles on one side of a
// queue (spec.md §4.G "Topology management"). Cloning a handle adds a
// reference; Close removes one. When the count reaches zero the group is
// marked closed and, if onClose is set, wakes the opposite side so a
// parked Send/Recv re-checks its condition and observes the transition.
//
// Used directly for the sender side of both queue modes (a flat
// reference count is all spec.md asks for there) and for the receiver
// side of shared MPMC mode. Broadcast mode's receiver side is tracked by
// registry.go instead, because a stream's consumer count and the set of
// live streams both matter there, not just a single flat count.
type handleGroup struct {
	count   atomix.Int64
	closed  atomix.Bool
	onClose *waitSet
}

func newHandleGroup(onClose *waitSet) *handleGroup {
	g := &handleGroup{onClose: onClose}
	g.count.StoreRelaxed(1)
	return g
}

// clone adds a reference and returns the new count.
func (g *handleGroup) clone() int64 {
	return g.count.AddAcqRel(1)
}

// close removes a reference. Reports whether this call closed the group.
func (g *handleGroup) close() bool {
	if g.count.AddAcqRel(-1) == 0 {
		g.closed.StoreRelease(true)
		if g.onClose != nil {
			g.onClose.terminate()
		}
		return true
	}
	return false
}

// isSingle reports whether exactly one handle is live. The sender and
// receiver engines read this on every operation to select the CAS path
// (multiple handles) or the plain-store path (exactly one) — spec.md §4.B
// "Runtime detection of single vs multi producer/consumer ... selects
// between a CAS-based and a plain-store advance; the decision is made
// per-operation, so handle cloning is immediately observed by subsequent
// operations".
func (g *handleGroup) isSingle() bool {
	return g.count.LoadAcquire() == 1
}

func (g *handleGroup) isClosed() bool {
	return g.closed.LoadAcquire()
}
