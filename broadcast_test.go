// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcq_test

import (
	"context"
	"testing"

	"code.hybscloud.com/mcq"
)

// TestBroadcastTwoStreams verifies that every stream observes every
// item, independent of the other stream's read progress.
func TestBroadcastTwoStreams(t *testing.T) {
	tx, rx1 := mcq.NewBroadcastQueue[int](4)
	rx2 := rx1.AddStream()
	defer tx.Close()
	defer rx1.Close()
	defer rx2.Close()

	for i := range 3 {
		v := i + 10
		if err := tx.TrySend(&v); err != nil {
			t.Fatalf("TrySend(%d): %v", i, err)
		}
	}

	for i := range 3 {
		v, err := rx1.TryRecv()
		if err != nil {
			t.Fatalf("rx1 TryRecv(%d): %v", i, err)
		}
		if v != i+10 {
			t.Fatalf("rx1 TryRecv(%d): got %d, want %d", i, v, i+10)
		}
	}

	// rx2 has not read anything yet: it must still see all three items,
	// in order, even though rx1 already drained them.
	for i := range 3 {
		v, err := rx2.TryRecv()
		if err != nil {
			t.Fatalf("rx2 TryRecv(%d): %v", i, err)
		}
		if v != i+10 {
			t.Fatalf("rx2 TryRecv(%d): got %d, want %d", i, v, i+10)
		}
	}
}

// TestBroadcastAddStreamVisibility verifies that a stream added after
// some items were already sent never observes those earlier items.
func TestBroadcastAddStreamVisibility(t *testing.T) {
	tx, rx1 := mcq.NewBroadcastQueue[int](8)
	defer tx.Close()
	defer rx1.Close()

	for _, v := range []int{1, 2} {
		v := v
		if err := tx.TrySend(&v); err != nil {
			t.Fatalf("TrySend(%d): %v", v, err)
		}
	}

	rx2 := rx1.AddStream()
	defer rx2.Close()

	for _, v := range []int{3, 4} {
		v := v
		if err := tx.TrySend(&v); err != nil {
			t.Fatalf("TrySend(%d): %v", v, err)
		}
	}

	// rx1 sees everything sent since it joined: 1,2,3,4.
	for _, want := range []int{1, 2, 3, 4} {
		got, err := rx1.TryRecv()
		if err != nil {
			t.Fatalf("rx1 TryRecv: %v", err)
		}
		if got != want {
			t.Fatalf("rx1 TryRecv: got %d, want %d", got, want)
		}
	}

	// rx2 only sees items sent after AddStream: 3,4.
	for _, want := range []int{3, 4} {
		got, err := rx2.TryRecv()
		if err != nil {
			t.Fatalf("rx2 TryRecv: %v", err)
		}
		if got != want {
			t.Fatalf("rx2 TryRecv: got %d, want %d", got, want)
		}
	}
	if _, err := rx2.TryRecv(); !mcq.IsEmpty(err) {
		t.Fatalf("rx2 TryRecv past end: got %v, want ErrEmpty", err)
	}
}

// TestBroadcastFullGatedBySlowestStream verifies that a producer sees
// Full once the slowest stream, not the fastest, would be overwritten.
func TestBroadcastFullGatedBySlowestStream(t *testing.T) {
	tx, rx1 := mcq.NewBroadcastQueue[int](2)
	rx2 := rx1.AddStream()
	defer tx.Close()
	defer rx1.Close()
	defer rx2.Close()

	for i := range 2 {
		v := i
		if err := tx.TrySend(&v); err != nil {
			t.Fatalf("TrySend(%d): %v", i, err)
		}
	}

	// rx1 drains both slots, but rx2 (the slowest stream) has read
	// nothing: the producer must still see Full.
	for range 2 {
		if _, err := rx1.TryRecv(); err != nil {
			t.Fatalf("rx1 TryRecv: %v", err)
		}
	}
	v := 99
	if err := tx.TrySend(&v); !mcq.IsFull(err) {
		t.Fatalf("TrySend while rx2 lags: got %v, want ErrFull", err)
	}

	// Once rx2 catches up, room opens back up.
	for range 2 {
		if _, err := rx2.TryRecv(); err != nil {
			t.Fatalf("rx2 TryRecv: %v", err)
		}
	}
	if err := tx.TrySend(&v); err != nil {
		t.Fatalf("TrySend after rx2 caught up: %v", err)
	}
}

// TestBroadcastUnsubscribeLastConsumerRemovesStream verifies that
// unsubscribing a stream's only consumer removes the stream entirely, so
// it no longer gates producer room, and that unsubscribing the very last
// stream disconnects the producer.
func TestBroadcastUnsubscribeLastConsumerRemovesStream(t *testing.T) {
	tx, rx1 := mcq.NewBroadcastQueue[int](2)
	rx2 := rx1.AddStream()
	defer tx.Close()
	defer rx1.Close()

	for i := range 2 {
		v := i
		if err := tx.TrySend(&v); err != nil {
			t.Fatalf("TrySend(%d): %v", i, err)
		}
	}

	// rx2 never reads; unsubscribing it should stop it gating room.
	if err := rx2.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe rx2: %v", err)
	}

	// rx1 still gates the ring at its own head: drain it before the send
	// below, or it would correctly observe ErrFull instead.
	for range 2 {
		if _, err := rx1.TryRecv(); err != nil {
			t.Fatalf("rx1 TryRecv: %v", err)
		}
	}

	v := 99
	if err := tx.TrySend(&v); err != nil {
		t.Fatalf("TrySend after rx2 unsubscribed: %v", err)
	}

	if err := rx1.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe rx1: %v", err)
	}
	if err := tx.TrySend(&v); !mcq.IsDisconnected(err) {
		t.Fatalf("TrySend after last stream removed: got %v, want ErrDisconnected", err)
	}
}

// TestBroadcastIntoSingleRequiresExclusiveStream verifies that IntoSingle
// fails while a stream has more than one consumer and succeeds once it
// is exclusive again.
func TestBroadcastIntoSingleRequiresExclusiveStream(t *testing.T) {
	tx, rx1 := mcq.NewBroadcastQueue[int](4)
	defer tx.Close()

	rx1b := rx1.Clone()

	if _, err := rx1.IntoSingle(); err != mcq.ErrMultipleConsumers {
		t.Fatalf("IntoSingle with two consumers: got %v, want ErrMultipleConsumers", err)
	}

	if err := rx1b.Close(); err != nil {
		t.Fatalf("Close rx1b: %v", err)
	}

	single, err := rx1.IntoSingle()
	if err != nil {
		t.Fatalf("IntoSingle after sole consumer remains: %v", err)
	}
	defer single.Close()

	v := 7
	if err := tx.TrySend(&v); err != nil {
		t.Fatalf("TrySend: %v", err)
	}
	got, err := single.TryView()
	if err != nil {
		t.Fatalf("TryView: %v", err)
	}
	if *got != 7 {
		t.Fatalf("TryView: got %d, want 7", *got)
	}
}

// TestIterWith verifies that the package-level IterWith iterator yields
// a transformation of every item in order and stops on disconnect.
func TestIterWith(t *testing.T) {
	tx, rx := mcq.NewBroadcastQueue[int](8)
	single, err := rx.IntoSingle()
	if err != nil {
		t.Fatalf("IntoSingle: %v", err)
	}

	for _, v := range []int{1, 2, 3} {
		v := v
		if err := tx.TrySend(&v); err != nil {
			t.Fatalf("TrySend(%d): %v", v, err)
		}
	}
	if err := tx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var got []int
	for r := range mcq.IterWith(context.Background(), single, func(v *int) int { return *v * 10 }) {
		got = append(got, r)
	}
	defer single.Close()

	want := []int{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("IterWith: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("IterWith[%d]: got %d, want %d", i, got[i], want[i])
		}
	}
}

// TestTryIterWithStopsAtEmpty verifies that TryIterWith drains exactly
// what is already available and stops without blocking on a still-open
// queue.
func TestTryIterWithStopsAtEmpty(t *testing.T) {
	tx, rx := mcq.NewBroadcastQueue[int](8)
	defer tx.Close()
	single, err := rx.IntoSingle()
	if err != nil {
		t.Fatalf("IntoSingle: %v", err)
	}
	defer single.Close()

	for _, v := range []int{1, 2} {
		v := v
		if err := tx.TrySend(&v); err != nil {
			t.Fatalf("TrySend(%d): %v", v, err)
		}
	}

	var got []int
	for r := range mcq.TryIterWith(single, func(v *int) int { return *v }) {
		got = append(got, r)
	}

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("TryIterWith: got %v, want [1 2]", got)
	}
}
