package cotask

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStackProtect_WaitReturnsImmediatelyWhenUnarmed(t *testing.T) {
	sp := newStackProtect()
	done := make(chan struct{})
	go func() {
		sp.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on an unarmed stackProtect")
	}
}

func TestStackProtect_ArmBlocksWaitUntilRelease(t *testing.T) {
	sp := newStackProtect()
	owner := &Task{name: "owner"}
	sp.Arm(owner)

	done := make(chan struct{})
	go func() {
		sp.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned while still armed")
	case <-time.After(20 * time.Millisecond):
	}

	sp.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Release")
	}
}

func TestStackProtect_WaitForMatchesSpecificOwner(t *testing.T) {
	sp := newStackProtect()
	owner := &Task{name: "owner"}
	other := &Task{name: "other"}
	sp.Arm(owner)

	// WaitFor a task that isn't the current owner returns immediately.
	done := make(chan struct{})
	go func() {
		sp.WaitFor(other)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitFor blocked on an unrelated owner")
	}

	// WaitFor the actual owner blocks until Release.
	done2 := make(chan struct{})
	go func() {
		sp.WaitFor(owner)
		close(done2)
	}()
	select {
	case <-done2:
		t.Fatal("WaitFor returned before the armed owner released")
	case <-time.After(20 * time.Millisecond):
	}
	sp.Release()
	select {
	case <-done2:
	case <-time.After(time.Second):
		t.Fatal("WaitFor did not unblock after Release")
	}
}

func TestStackProtect_ReleaseIsIdempotentNoOwner(t *testing.T) {
	sp := newStackProtect()
	require.NotPanics(t, func() {
		sp.Release()
		sp.Release()
	})
}
