// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcq_test

import (
	"context"
	"testing"

	"code.hybscloud.com/mcq"
)

// TestQueueBasic fills a shared MPMC queue to capacity, drains it in
// order, and checks the Full/Empty boundary errors.
func TestQueueBasic(t *testing.T) {
	tx, rx := mcq.NewQueue[int](3)
	defer tx.Close()
	defer rx.Close()

	if got, want := tx.Cap(), 4; got != want {
		t.Fatalf("Cap: got %d, want %d", got, want)
	}

	for i := range 4 {
		v := i + 100
		if err := tx.TrySend(&v); err != nil {
			t.Fatalf("TrySend(%d): %v", i, err)
		}
	}

	v := 999
	if err := tx.TrySend(&v); !mcq.IsFull(err) {
		t.Fatalf("TrySend on full: got %v, want ErrFull", err)
	}

	for i := range 4 {
		val, err := rx.TryRecv()
		if err != nil {
			t.Fatalf("TryRecv(%d): %v", i, err)
		}
		if val != i+100 {
			t.Fatalf("TryRecv(%d): got %d, want %d", i, val, i+100)
		}
	}

	if _, err := rx.TryRecv(); !mcq.IsEmpty(err) {
		t.Fatalf("TryRecv on empty: got %v, want ErrEmpty", err)
	}
}

// TestQueueCapacityOne exercises the single-slot boundary: one producer,
// one consumer, strict alternation.
func TestQueueCapacityOne(t *testing.T) {
	tx, rx := mcq.NewQueue[int](1)
	defer tx.Close()
	defer rx.Close()

	if got, want := tx.Cap(), 1; got != want {
		t.Fatalf("Cap: got %d, want %d", got, want)
	}

	for i := range 10 {
		v := i
		if err := tx.TrySend(&v); err != nil {
			t.Fatalf("TrySend(%d): %v", i, err)
		}
		if err := tx.TrySend(&v); !mcq.IsFull(err) {
			t.Fatalf("TrySend while full: got %v, want ErrFull", err)
		}
		got, err := rx.TryRecv()
		if err != nil {
			t.Fatalf("TryRecv(%d): %v", i, err)
		}
		if got != i {
			t.Fatalf("TryRecv(%d): got %d, want %d", i, got, i)
		}
	}
}

// TestQueueDisconnectOnSenderClose verifies that closing every sender
// handle leaves already-enqueued items drainable, then reports
// Disconnected once the queue is empty.
func TestQueueDisconnectOnSenderClose(t *testing.T) {
	tx, rx := mcq.NewQueue[int](4)
	defer rx.Close()

	for i := range 2 {
		v := i
		if err := tx.TrySend(&v); err != nil {
			t.Fatalf("TrySend(%d): %v", i, err)
		}
	}
	if err := tx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for i := range 2 {
		val, err := rx.TryRecv()
		if err != nil {
			t.Fatalf("drain(%d): %v", i, err)
		}
		if val != i {
			t.Fatalf("drain(%d): got %d, want %d", i, val, i)
		}
	}

	if _, err := rx.TryRecv(); !mcq.IsDisconnected(err) {
		t.Fatalf("TryRecv after drain: got %v, want ErrDisconnected", err)
	}
}

// TestQueueDisconnectOnReceiverClose verifies a full queue whose last
// receiver closes reports Disconnected to the producer instead of Full.
func TestQueueDisconnectOnReceiverClose(t *testing.T) {
	tx, rx := mcq.NewQueue[int](1)
	defer tx.Close()

	v := 1
	if err := tx.TrySend(&v); err != nil {
		t.Fatalf("TrySend: %v", err)
	}
	if err := rx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := tx.TrySend(&v); !mcq.IsDisconnected(err) {
		t.Fatalf("TrySend after last receiver closed: got %v, want ErrDisconnected", err)
	}
}

// TestQueueSendRecvBlocking exercises the blocking Send/Recv path across
// goroutines, including honoring ctx cancellation on Recv against an
// empty, still-connected queue.
func TestQueueSendRecvBlocking(t *testing.T) {
	tx, rx := mcq.NewQueue[int](1)
	defer tx.Close()
	defer rx.Close()

	v := 1
	if err := tx.Send(context.Background(), &v); err != nil {
		t.Fatalf("Send: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		v2 := 2
		// blocks until the queued item above is drained
		if err := tx.Send(context.Background(), &v2); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	got, err := rx.Recv(context.Background())
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got != 1 {
		t.Fatalf("Recv: got %d, want 1", got)
	}
	<-done

	got, err = rx.Recv(context.Background())
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got != 2 {
		t.Fatalf("Recv: got %d, want 2", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rx.Recv(ctx); err != ctx.Err() {
		t.Fatalf("Recv with cancelled ctx: got %v, want %v", err, ctx.Err())
	}
}

// TestQueueCloneSenders verifies that cloned sender handles share the
// same underlying queue and that Disconnected is only observed once
// every clone has closed.
func TestQueueCloneSenders(t *testing.T) {
	tx, rx := mcq.NewQueue[int](4)
	defer rx.Close()

	tx2 := tx.Clone()
	v := 1
	if err := tx.TrySend(&v); err != nil {
		t.Fatalf("TrySend via tx: %v", err)
	}
	if err := tx2.TrySend(&v); err != nil {
		t.Fatalf("TrySend via tx2: %v", err)
	}
	if err := tx.Close(); err != nil {
		t.Fatalf("Close tx: %v", err)
	}

	// tx2 is still live: draining and re-filling must still work.
	if _, err := rx.TryRecv(); err != nil {
		t.Fatalf("TryRecv: %v", err)
	}
	if err := tx2.TrySend(&v); err != nil {
		t.Fatalf("TrySend via tx2 after tx closed: %v", err)
	}

	if err := tx2.Close(); err != nil {
		t.Fatalf("Close tx2: %v", err)
	}

	for {
		if _, err := rx.TryRecv(); mcq.IsDisconnected(err) {
			break
		} else if err != nil {
			t.Fatalf("TryRecv while draining: %v", err)
		}
	}
}
