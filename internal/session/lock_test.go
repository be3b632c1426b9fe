package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockTableSerializesSameSessionID(t *testing.T) {
	table := NewLockTable(time.Second)

	release, err := table.Acquire(context.Background(), "sid-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := table.Acquire(context.Background(), "sid-1")
		require.NoError(t, err)
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire returned before the first was released")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire never completed after release")
	}
}

func TestLockTableAllowsDifferentSessionIDsConcurrently(t *testing.T) {
	table := NewLockTable(time.Second)

	release1, err := table.Acquire(context.Background(), "sid-1")
	require.NoError(t, err)
	defer release1()

	done := make(chan struct{})
	go func() {
		release2, err := table.Acquire(context.Background(), "sid-2")
		require.NoError(t, err)
		release2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring a different session id blocked unexpectedly")
	}
}

func TestLockTableReturnsSessionBusyAfterBoundedWait(t *testing.T) {
	table := NewLockTable(30 * time.Millisecond)

	release, err := table.Acquire(context.Background(), "sid-1")
	require.NoError(t, err)
	defer release()

	_, err = table.Acquire(context.Background(), "sid-1")
	assert.ErrorIs(t, err, ErrSessionBusy)
}

func TestLockTableEntryReclaimedAfterRelease(t *testing.T) {
	table := NewLockTable(time.Second)

	release, err := table.Acquire(context.Background(), "sid-1")
	require.NoError(t, err)
	release()

	table.mu.Lock()
	_, stillPresent := table.entries["sid-1"]
	table.mu.Unlock()
	assert.False(t, stillPresent)
}
