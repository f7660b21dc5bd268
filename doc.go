// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mcq provides a bounded, lock-free-fast-path multi-producer
// multi-consumer queue with an optional broadcast mode.
//
// In shared mode each enqueued item is delivered to exactly one consumer,
// same as [code.hybscloud.com/lfq]'s MPMC queue. In broadcast mode every
// enqueued item is delivered to each of an arbitrary number of independent
// streams; a stream may itself be serviced by several cooperating
// consumers that divide the stream's items among themselves.
//
// # Quick Start
//
// Shared MPMC:
//
//	tx, rx := mcq.NewQueue[Event](1024)
//	defer tx.Close()
//	defer rx.Close()
//
//	v := Event{ID: 1}
//	if err := tx.TrySend(&v); err != nil {
//	    // mcq.ErrFull or mcq.ErrDisconnected
//	}
//
//	ev, err := rx.TryRecv()
//	if err != nil {
//	    // mcq.ErrEmpty or mcq.ErrDisconnected
//	}
//
// Broadcast:
//
//	tx, rx := mcq.NewBroadcastQueue[Event](1024)
//	second := rx.AddStream() // a second, independent stream
//
//	v := Event{ID: 1}
//	_ = tx.TrySend(&v)
//
//	a, _ := rx.TryRecv()     // stream 1 sees the item
//	b, _ := second.TryRecv() // stream 2 sees the same item too
//
// # Blocking operations
//
// TrySend/TryRecv never block, matching the teacher library's
// never-block-on-Enqueue stance. Send/Recv block using the escalating
// try-spin / yield-spin / park strategy from [WaitStrategy], honoring
// ctx cancellation.
//
// # Disconnection
//
// A queue with zero live senders is drained, then every blocked and every
// subsequent Recv/TryRecv returns [ErrDisconnected]. A broadcast queue
// with zero streams causes every subsequent Send/TrySend to return
// [ErrDisconnected]. Handles are reference counted; Clone adds a
// reference, Close removes one.
//
// # Async adapter
//
// [AsyncSender] and [AsyncReceiver] expose PollSend/PollRecv for
// integration with task-based runtimes that cannot block a worker
// goroutine: see async.go.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic cursor and
// write-count fields with explicit memory ordering, [code.hybscloud.com/spin]
// for the try-spin stage of [WaitStrategy], and [code.hybscloud.com/iox]
// for semantic error classification — the same stack as
// [code.hybscloud.com/lfq], its sibling single-delivery queue library.
package mcq
