package cotask

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRuntime_SpawnYieldExit(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	var yielded int32
	task, err := rt.Spawn(rt.Root(), "worker", func(*Task) {
		require.NoError(t, rt.Yield())
		atomic.AddInt32(&yielded, 1)
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not complete")
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&yielded))
	require.Equal(t, StateExiting, task.State())
}

func TestRuntime_SleepWakeup(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	woke := make(chan struct{})
	sleeper, err := rt.Spawn(rt.Root(), "sleeper", func(*Task) {
		require.NoError(t, rt.Sleep())
		close(woke)
	})
	require.NoError(t, err)

	_, err = rt.Spawn(rt.Root(), "waker", func(*Task) {
		// yield once so sleeper (enqueued first) gets a turn and parks
		// before waker tries to wake it.
		require.NoError(t, rt.Yield())
		require.NoError(t, rt.Wakeup(sleeper))
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("sleeper was never woken")
	}
}

func TestRuntime_ExportImportSameDomainPrePublished(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	owner, err := rt.Spawn(rt.Root(), "owner", func(*Task) {
		require.NoError(t, rt.Export("answer", 42))
	})
	require.NoError(t, err)

	result := make(chan any, 1)
	_, err = rt.Spawn(rt.Root(), "importer", func(*Task) {
		v, err := rt.Import(owner.ID(), "answer", true)
		require.NoError(t, err)
		result <- v
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case v := <-result:
		require.Equal(t, 42, v)
	case <-time.After(2 * time.Second):
		t.Fatal("importer never received the exported value")
	}
}

// Import suspends the calling task cooperatively (suspend_and_enqueue,
// sched.go) rather than blocking its goroutine outright, so it makes
// progress whether the exporter lives under the same scheduler (see
// export_test.go's same-domain case, scenario S4) or an independent one,
// as exercised here.
func TestRuntime_ImportBlocksAcrossDomainsUntilExport(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	ownerSched, err := rt.NewScheduler(rt.Root(), "ownerSched")
	require.NoError(t, err)

	owner, err := rt.Spawn(ownerSched, "owner", func(*Task) {
		time.Sleep(20 * time.Millisecond) // let importer register as a waiter first
		require.NoError(t, rt.Export("answer", "late"))
	})
	require.NoError(t, err)

	result := make(chan any, 1)
	_, err = rt.Spawn(rt.Root(), "importer", func(*Task) {
		v, err := rt.Import(owner.ID(), "answer", true)
		require.NoError(t, err)
		result <- v
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case v := <-result:
		require.Equal(t, "late", v)
	case <-time.After(2 * time.Second):
		t.Fatal("importer never observed the cross-domain export")
	}
}

func TestRuntime_CoupleDecoupleRoundTrip(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	childRan := make(chan struct{})
	parent, err := rt.Spawn(rt.Root(), "parent", func(self *Task) {
		require.NoError(t, rt.Couple())
		require.True(t, self.IsScheduler())

		child, err := rt.Spawn(self, "child", func(*Task) {
			close(childRan)
		})
		require.NoError(t, err)

		for {
			select {
			case <-child.Done():
				require.NoError(t, rt.Decouple())
				return
			default:
				require.ErrorIs(t, rt.Yield(), ErrIntr)
			}
		}
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case <-parent.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("parent never completed its couple/decouple cycle")
	}
	select {
	case <-childRan:
	default:
		t.Fatal("child never ran under the coupled parent")
	}
}

func TestRuntime_TaskSelfNilOutsideTaskGoroutine(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)
	require.Nil(t, rt.TaskSelf())

	err = rt.Yield()
	require.ErrorIs(t, err, ErrPerm)
}

func TestRuntime_SetGetSyncModeFromWithinTask(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	done := make(chan SyncMode, 1)
	task, err := rt.Spawn(rt.Root(), "worker", func(*Task) {
		require.NoError(t, rt.SetSyncMode(SyncBusyWait))
		mode, err := rt.GetSyncMode()
		require.NoError(t, err)
		done <- mode
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case mode := <-done:
		require.Equal(t, SyncBusyWait, mode)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never reported its sync mode")
	}
	<-task.Done()
}

func TestRuntime_SchedDomainAndCountRunnable(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	task, err := rt.Spawn(rt.Root(), "idle", func(*Task) {
		require.NoError(t, rt.Sleep())
	})
	require.NoError(t, err)

	sched, err := rt.SchedDomain(task)
	require.NoError(t, err)
	require.Same(t, rt.Root(), sched)

	n, err := rt.CountRunnable(rt.Root())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRuntime_TaskByID_NoEntForUnknownID(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	_, err = rt.TaskByID(TaskID(9999))
	require.ErrorIs(t, err, ErrNoEnt)
}

func TestRuntime_OverflowArenaCapacity(t *testing.T) {
	rt, err := NewRuntime(nil, WithArenaCapacity(1))
	require.NoError(t, err) // root consumes the single slot

	_, err = rt.Spawn(rt.Root(), "overflow", func(*Task) {})
	require.ErrorIs(t, err, ErrOverflow)
}

func TestRuntime_Resume_SelfIsNoop(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	task, err := rt.Spawn(rt.Root(), "solo", func(self *Task) {
		errCh <- rt.Resume(self, nil)
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case resumeErr := <-errCh:
		require.NoError(t, resumeErr)
	case <-time.After(2 * time.Second):
		t.Fatal("self-resume never returned")
	}
	<-task.Done()
}

func TestRuntime_Resume_RunningTaskIsPerm(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	// root is RUNNING throughout (it is driving its own scheduler loop), so
	// resuming it from a child task must hit the SUSPENDED check and fail.
	_, err = rt.Spawn(rt.Root(), "child", func(*Task) {
		errCh <- rt.Resume(rt.Root(), nil)
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case resumeErr := <-errCh:
		require.ErrorIs(t, resumeErr, ErrPerm)
	case <-time.After(2 * time.Second):
		t.Fatal("resume of a running task never returned")
	}
}

// TestRuntime_Resume_CrossDomainTransfersRefcount is scenario S3: an
// explicit sched argument migrates a SUSPENDED task to a new scheduling
// domain, decrementing the prior scheduler's refcount rather than the
// new one's, and leaves Sched() pointing at the new domain.
func TestRuntime_Resume_CrossDomainTransfersRefcount(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	s1, err := rt.NewScheduler(rt.Root(), "s1")
	require.NoError(t, err)
	s2, err := rt.NewScheduler(rt.Root(), "s2")
	require.NoError(t, err)

	ready := make(chan struct{})
	slept := make(chan struct{})
	sleeper, err := rt.Spawn(s1, "sleeper", func(*Task) {
		close(ready)
		require.NoError(t, rt.Sleep())
		close(slept)
	})
	require.NoError(t, err)

	<-ready
	require.Eventually(t, func() bool {
		return sleeper.State() == StateSuspended
	}, 2*time.Second, 5*time.Millisecond)
	require.EqualValues(t, 1, s1.Refcount())

	_, err = rt.Spawn(rt.Root(), "driver", func(*Task) {
		require.NoError(t, rt.Resume(sleeper, s2))
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case <-slept:
	case <-time.After(2 * time.Second):
		t.Fatal("sleeper never resumed under its new scheduler")
	}
	require.Same(t, s2, sleeper.Sched())
	require.EqualValues(t, 0, s1.Refcount())
}

// TestRuntime_YieldTo_PingPong is scenario S1: two tasks hand control
// directly back and forth via YieldTo (not the normal FIFO dispatch
// order), each resuming exactly where its own last YieldTo call left off.
func TestRuntime_YieldTo_PingPong(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	const rounds = 5
	var pingTask, pongTask *Task
	var pingCount, pongCount int
	pingDone := make(chan struct{})
	pongDone := make(chan struct{})

	pingTask, err = rt.Spawn(rt.Root(), "ping", func(*Task) {
		for i := 0; i < rounds; i++ {
			pingCount++
			require.NoError(t, rt.YieldTo(pongTask))
		}
		close(pingDone)
	})
	require.NoError(t, err)

	pongTask, err = rt.Spawn(rt.Root(), "pong", func(*Task) {
		for i := 0; i < rounds; i++ {
			pongCount++
			require.NoError(t, rt.YieldTo(pingTask))
		}
		close(pongDone)
	})
	require.NoError(t, err)

	go rt.Run()

	for _, ch := range []chan struct{}{pingDone, pongDone} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("ping/pong never completed")
		}
	}
	require.Equal(t, rounds, pingCount)
	require.Equal(t, rounds, pongCount)
}

// TestRuntime_DequeueAndResumeN_BulkResume is scenario S2: eight tasks
// suspend themselves onto a shared queue; a bulk resume drains a prefix
// of it in FIFO order, leaving the remainder queued and the scheduler's
// refcount reflecting only what is still actually suspended.
func TestRuntime_DequeueAndResumeN_BulkResume(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)

	q := NewTaskQueue(true)
	var mu sync.Mutex
	var resumedOrder []int

	for i := 0; i < 8; i++ {
		i := i
		_, err := rt.Spawn(rt.Root(), "waiter", func(self *Task) {
			rt.suspendAndEnqueue(self, q, true, nil, nil)
			mu.Lock()
			resumedOrder = append(resumedOrder, i)
			mu.Unlock()
		})
		require.NoError(t, err)
	}

	bulkDone := make(chan struct{})
	var resumedN int
	_, err = rt.Spawn(rt.Root(), "resumer", func(*Task) {
		n, err := rt.DequeueAndResumeN(q, rt.Root(), 5)
		require.NoError(t, err)
		resumedN = n
		close(bulkDone)
	})
	require.NoError(t, err)

	go rt.Run()

	select {
	case <-bulkDone:
	case <-time.After(2 * time.Second):
		t.Fatal("bulk resume never ran")
	}
	require.Equal(t, 5, resumedN)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(resumedOrder) == 5
	}, 2*time.Second, 5*time.Millisecond)

	q.Lock()
	qLen := q.Len()
	q.Unlock()
	require.Equal(t, 3, qLen)
	require.EqualValues(t, 3, rt.Root().Refcount())

	mu.Lock()
	require.Equal(t, []int{0, 1, 2, 3, 4}, resumedOrder)
	mu.Unlock()
}
