package fifo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oba-ldap/obacore/internal/importer/entry"
)

func mkEntry(id uint32, dn string) *entry.Entry {
	return &entry.Entry{ID: id, DN: dn}
}

func TestRingPushFetchOrder(t *testing.T) {
	r := New(4, 1<<20, 1<<20)
	ctx := context.Background()

	for i := uint32(1); i <= 3; i++ {
		e := mkEntry(i, "dn")
		e.SetRefcount(1)
		require.NoError(t, r.Push(ctx, e), "push %d", i)
	}

	for i := uint32(1); i <= 3; i++ {
		got, err := r.Fetch(ctx, i, false)
		require.NoError(t, err, "fetch %d", i)
		assert.Equal(t, i, got.ID, "fetch %d returned a different entry", i)
	}
}

func TestRingFetchForWorkerWaitsForReady(t *testing.T) {
	r := New(4, 1<<20, 1<<20)
	ctx := context.Background()

	e := mkEntry(1, "dn")
	e.SetRefcount(1)
	require.NoError(t, r.Push(ctx, e))

	done := make(chan *entry.Entry, 1)
	go func() {
		got, err := r.Fetch(ctx, 1, true)
		assert.NoError(t, err)
		if err == nil {
			done <- got
		}
	}()

	select {
	case <-done:
		t.Fatal("worker fetch returned before foreman advanced readyID")
	case <-time.After(50 * time.Millisecond):
	}

	r.AdvanceReady(1)

	select {
	case got := <-done:
		assert.Equal(t, uint32(1), got.ID)
	case <-time.After(time.Second):
		t.Fatal("worker fetch never unblocked after AdvanceReady")
	}
}

// TestRingSlotRecyclingRespectsI2 checks spec.md invariant I2 / property
// P2: a slot is only reused once the prior occupant's refcount is zero
// and its ID is behind readyID.
func TestRingSlotRecyclingRespectsI2(t *testing.T) {
	r := New(1, 64, 64)
	ctx := context.Background()

	e1 := mkEntry(1, "dn1")
	e1.SetRefcount(1)
	require.NoError(t, r.Push(ctx, e1), "push e1")

	pushed := make(chan error, 1)
	go func() {
		e2 := mkEntry(2, "dn2")
		e2.SetRefcount(1)
		pushed <- r.Push(ctx, e2)
	}()

	select {
	case <-pushed:
		t.Fatal("push of e2 should block: e1 still has a nonzero refcount")
	case <-time.After(50 * time.Millisecond):
	}

	// Refcount still nonzero: advancing readyID alone must not be enough.
	r.AdvanceReady(1)
	select {
	case <-pushed:
		t.Fatal("push of e2 should still block: e1's refcount has not reached zero")
	case <-time.After(50 * time.Millisecond):
	}

	e1.Release()
	r.AdvanceReady(1) // re-signal after the refcount change

	select {
	case err := <-pushed:
		require.NoError(t, err, "push e2")
	case <-time.After(time.Second):
		t.Fatal("push of e2 never unblocked after e1 became recyclable")
	}
}

func TestRingFitOrExpandTooLarge(t *testing.T) {
	r := New(2, 16, 32)
	ctx := context.Background()
	e := mkEntry(1, "")
	e.Attrs = []entry.RawAttribute{{Name: "x", Values: []string{string(make([]byte, 64))}}}
	err := r.Push(ctx, e)
	require.Error(t, err)
	_, ok := err.(*ErrTooLarge)
	assert.Truef(t, ok, "expected ErrTooLarge, got %T: %v", err, err)
}

func TestRingFetchContextCancel(t *testing.T) {
	r := New(2, 1<<10, 1<<10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Fetch(ctx, 1, false)
	require.Error(t, err)
}
