package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushDrainPreservesOrder(t *testing.T) {
	q := New(1, 1<<20)
	q.Push(NewAsyncElement(ActionAdd, "id2entry", []byte("a"), nil, 1))
	q.Push(NewAsyncElement(ActionAdd, "id2entry", []byte("b"), nil, 1))
	q.Push(NewAsyncElement(ActionAdd, "id2entry", []byte("c"), nil, 1))

	batch := q.Drain()
	require.Len(t, batch, 3)
	for i, want := range []string{"a", "b", "c"} {
		require.Equal(t, want, string(batch[i].Key), "batch[%d].Key", i)
	}
}

// TestPushBlocksAtMaxWeight checks spec.md invariant I5 / property P5: a
// non-sync push never returns while weightIn-weightOut >= MAX_WEIGHT.
func TestPushBlocksAtMaxWeight(t *testing.T) {
	q := New(1, 2)
	q.Push(NewAsyncElement(ActionAdd, "x", nil, nil, 2))

	pushed := make(chan struct{})
	go func() {
		q.Push(NewAsyncElement(ActionAdd, "x", nil, nil, 1))
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("push should have blocked: depth already at MAX_WEIGHT")
	case <-time.After(50 * time.Millisecond):
	}

	// Draining resets weightOut to weightIn, relieving backpressure.
	q.Drain()

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("push never unblocked after Drain relieved backpressure")
	}
}

func TestSyncPushInsertsAtHeadAndSetsFlush(t *testing.T) {
	q := New(1000, 1000)
	q.Push(NewAsyncElement(ActionAdd, "x", []byte("async1"), nil, 1))
	sync := NewSyncElement(ActionAdd, "x", []byte("sync1"), nil, 1)
	q.Push(sync)

	batch := q.Drain()
	require.Len(t, batch, 2)
	require.True(t, batch[0].IsSync(), "batch[0] should be the sync op at the head")
	require.Equal(t, "sync1", string(batch[0].Key))
}

// TestSyncOpsSerialize checks I4: a second sync push blocks until the
// first sync op's reply has been released.
func TestSyncOpsSerialize(t *testing.T) {
	q := New(1000, 1000)
	first := NewSyncElement(ActionAdd, "x", []byte("first"), nil, 1)
	q.Push(first)

	secondPushed := make(chan struct{})
	go func() {
		q.Push(NewSyncElement(ActionAdd, "x", []byte("second"), nil, 1))
		close(secondPushed)
	}()

	select {
	case <-secondPushed:
		t.Fatal("second sync push should block while first sync op is live")
	case <-time.After(50 * time.Millisecond):
	}

	batch := q.Drain()
	require.Len(t, batch, 1)
	require.Equal(t, "first", string(batch[0].Key))
	batch[0].Complete(0)
	q.ReleaseSync()

	select {
	case <-secondPushed:
	case <-time.After(time.Second):
		t.Fatal("second sync push never unblocked after ReleaseSync")
	}
}

func TestReplyDeliversRC(t *testing.T) {
	el := NewSyncElement(ActionAdd, "x", nil, nil, 1)
	go el.Complete(0)
	require.Equal(t, 0, el.Reply())
}

// TestAbortFreesSyncWaiters checks property P6: abort wakes blocked sync
// callers with rc=-1 instead of leaking them.
func TestAbortFreesSyncWaiters(t *testing.T) {
	q := New(1000, 1000)
	el := NewSyncElement(ActionAdd, "x", nil, nil, 1)

	rc := make(chan int, 1)
	go func() {
		q.Push(el)
		rc <- el.Reply()
	}()

	// Give the push a moment to land before aborting (best-effort, but
	// Abort handles both interleavings since it marks aborted first).
	time.Sleep(20 * time.Millisecond)
	q.Abort()

	select {
	case got := <-rc:
		require.Equal(t, -1, got, "rc after abort")
	case <-time.After(time.Second):
		t.Fatal("sync caller never woke after Abort")
	}
}

func TestAbortDiscardsAsyncPush(t *testing.T) {
	q := New(1000, 1000)
	q.Abort()
	q.Push(NewAsyncElement(ActionAdd, "x", nil, nil, 1))
	require.Equal(t, int64(0), q.Depth(), "Depth() after push on an aborted queue")
}

func TestProgressSnapshot(t *testing.T) {
	q := New(1, 1000)
	q.Push(NewAsyncElement(ActionAdd, "x", nil, nil, 5))
	q.Push(NewAsyncElement(ActionAdd, "x", nil, nil, 7))
	q.Drain()
	out, in := q.Progress()
	require.Equal(t, in, out)
	require.Equal(t, int64(12), out)
}
