// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrFull indicates TrySend/Send cannot proceed because the queue has no
// free slot for the caller's producer position. Transient: a subsequent
// TryRecv/Recv by the consumers of every stream may clear it.
var ErrFull = errors.New("mcq: full")

// ErrEmpty indicates TryRecv/Recv cannot proceed because no item is
// available at the caller's head. Transient: a subsequent TrySend/Send may
// clear it.
var ErrEmpty = errors.New("mcq: empty")

// ErrDisconnected is terminal. For a sender it means the last stream (or,
// in shared mode, the last receiver) has closed and no further sends will
// ever succeed. For a receiver it means the last sender has closed and
// every item produced before that closure has already been drained.
var ErrDisconnected = errors.New("mcq: disconnected")

// ErrMultipleConsumers is returned by IntoSingle when the target stream
// has more than one live consumer.
var ErrMultipleConsumers = errors.New("mcq: stream has multiple consumers")

// IsFull reports whether err is (or wraps) ErrFull.
func IsFull(err error) bool {
	return errors.Is(err, ErrFull)
}

// IsEmpty reports whether err is (or wraps) ErrEmpty.
func IsEmpty(err error) bool {
	return errors.Is(err, ErrEmpty)
}

// IsDisconnected reports whether err is (or wraps) ErrDisconnected.
func IsDisconnected(err error) bool {
	return errors.Is(err, ErrDisconnected)
}

// IsWouldBlock reports whether err is a transient, retryable signal
// (ErrFull or ErrEmpty) rather than the terminal ErrDisconnected.
func IsWouldBlock(err error) bool {
	return IsFull(err) || IsEmpty(err)
}

// IsSemantic reports whether err is a control flow signal, not a failure.
// True for ErrFull, ErrEmpty, and ErrDisconnected, or anything [iox.IsSemantic]
// already recognizes.
func IsSemantic(err error) bool {
	return IsFull(err) || IsEmpty(err) || IsDisconnected(err) || iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil, ErrFull, or ErrEmpty (ErrDisconnected is terminal
// and is not a non-failure), or anything [iox.IsNonFailure] recognizes.
func IsNonFailure(err error) bool {
	return err == nil || IsWouldBlock(err) || iox.IsNonFailure(err)
}
