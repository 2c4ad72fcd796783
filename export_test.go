package cotask

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// exportTable's rendezvous machinery suspends the importing task
// cooperatively (sched.go suspendAndEnqueue) and therefore requires a real
// *Task driven by a scheduler goroutine; these tests exercise it only
// through the Runtime's public Export/Import, not the table directly.

func TestRuntime_Export_DoubleExportIsBusy(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	_, err = rt.Spawn(rt.Root(), "owner", func(*Task) {
		require.NoError(t, rt.Export("name", 1))
		errCh <- rt.Export("name", 2)
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrBusy)
	case <-time.After(2 * time.Second):
		t.Fatal("owner never attempted the double export")
	}
}

func TestRuntime_Import_NonBlockingAgainThenSucceeds(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	owner, err := rt.Spawn(rt.Root(), "owner", func(*Task) {
		require.ErrorIs(t, rt.Yield(), ErrIntr) // let importer's first (non-blocking) probe run first
		require.NoError(t, rt.Export("answer", 7))
	})
	require.NoError(t, err)

	result := make(chan any, 1)
	_, err = rt.Spawn(rt.Root(), "importer", func(*Task) {
		_, err := rt.Import(owner.ID(), "answer", false)
		require.ErrorIs(t, err, ErrAgain)

		v, err := rt.Import(owner.ID(), "answer", true)
		require.NoError(t, err)
		result <- v
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case v := <-result:
		require.Equal(t, 7, v)
	case <-time.After(2 * time.Second):
		t.Fatal("importer never observed the export")
	}
}

func TestRuntime_Import_SelfUndefinedIsDeadlk(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	task, err := rt.Spawn(rt.Root(), "solo", func(self *Task) {
		_, err := rt.Import(self.ID(), "nobody-will-ever-export-this", true)
		errCh <- err
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrDeadlk)
	case <-time.After(2 * time.Second):
		t.Fatal("self-import never returned")
	}
	<-task.Done()
}

func TestRuntime_Import_OwnerExitCancelsWaiter(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	owner, err := rt.Spawn(rt.Root(), "owner", func(*Task) {
		require.ErrorIs(t, rt.Yield(), ErrIntr) // let the importer register first
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	_, err = rt.Spawn(rt.Root(), "importer", func(*Task) {
		_, err := rt.Import(owner.ID(), "never", true)
		errCh <- err
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrCanceled)
	case <-time.After(2 * time.Second):
		t.Fatal("owner exit never canceled the waiting importer")
	}
}

// TestRuntime_Import_SameDomainBlocksUntilExport is scenario S4: a
// blocking Import under the *same* scheduler as its not-yet-published
// owner must not deadlock that scheduler — the importer suspends
// cooperatively (suspend_and_enqueue) rather than blocking its goroutine
// outright, so the owner still gets to run and publish.
func TestRuntime_Import_SameDomainBlocksUntilExport(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	owner, err := rt.Spawn(rt.Root(), "owner", func(*Task) {
		require.ErrorIs(t, rt.Yield(), ErrIntr) // let both importers register first
		require.NoError(t, rt.Export("answer", 99))
	})
	require.NoError(t, err)

	result := make(chan any, 2)
	for i := 0; i < 2; i++ {
		_, err = rt.Spawn(rt.Root(), "importer", func(*Task) {
			v, err := rt.Import(owner.ID(), "answer", true)
			require.NoError(t, err)
			result <- v
		})
		require.NoError(t, err)
	}

	go rt.Run()

	for i := 0; i < 2; i++ {
		select {
		case v := <-result:
			require.Equal(t, 99, v)
		case <-time.After(2 * time.Second):
			t.Fatal("same-domain import/export rendezvous never completed")
		}
	}
}
