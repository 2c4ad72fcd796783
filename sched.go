package cotask

import (
	"runtime"
	"time"
)

// schedulerLoop is the goroutine body for any task acting as a scheduler
// (the root, or a task that called Couple, or one created via
// NewScheduler). It repeatedly drains the OOD inbox into the runnable
// queue, hands control to the head of that queue, and waits for it to be
// handed back — implementing the single-active-task-per-domain invariant
// of spec.md §4 without a shared lock: only one goroutine is ever
// runnable "as of right" within a domain, because every other task in
// that domain is parked on its own resumeCh.
func (rt *Runtime) schedulerLoop(sched *Task) {
	rt.gids.bind(sched)
	if sched.body == nil {
		// A bare scheduler (root, NewScheduler) starts RUNNING here. A task
		// that called Couple keeps the SUSPENDED state couple gave it until
		// this loop's first dispatch of it.
		sched.state.Store(StateRunning)
	}

	autoRounds := 0
	for {
		rt.takeinOOD(sched)

		next, ok := sched.schedq.DequeueLocked()
		if !ok {
			if sched.flagExit.Load() && sched.refcount.Load() == 0 {
				rt.logger().Trace().Str("event", "scheduler_drained").Str("sched", sched.String()).Log("scheduler has no remaining work, stopping")
				return
			}
			rt.noteParkedRound()
			autoRounds = rt.doSleep(sched, autoRounds)
			continue
		}

		autoRounds = 0
		rt.noteRunnable()
		rt.dispatchTo(sched, next)
		<-sched.controlCh
	}
}

// dispatchTo hands control to next on sched's behalf: it accounts for the
// SUSPENDED -> RUNNING transition against sched's refcount (spec.md §5
// refcount discipline), arms any deferred termination sched's own most
// recent doExit call stashed for whichever task runs next, and sends on
// next's resumeCh. The CAS is a no-op when next was already marked RUNNING
// by a prior call to Resume (public.go) — that path decrements the
// (possibly different) prior scheduler's refcount itself, so this must
// not double-count.
func (rt *Runtime) dispatchTo(sched, next *Task) {
	if next.state.TryTransition(StateSuspended, StateRunning) {
		sched.refcount.Add(-1)
	}
	next.flagWakeup.Store(false)
	if pred := sched.exitHandoff.Swap(nil); pred != nil {
		next.wakeupDeferred.Store(pred)
	}
	next.resumeCh <- struct{}{}
}

// takeinOOD moves every task currently parked in sched's OOD inbox onto
// its runnable queue (spec.md "takein_ood"). Tasks land in the OOD inbox
// when Resume targets a scheduler that is not the caller's own — the
// cross-domain handoff spec.md's invariants require — and on every Wakeup.
func (rt *Runtime) takeinOOD(sched *Task) {
	for {
		t, ok := sched.oodq.DequeueLocked()
		if !ok {
			return
		}
		sched.schedq.EnqueueLocked(t)
	}
}

// doSleep parks sched's own goroutine until more work might be available,
// per its latched SyncMode (spec.md §4.2). It returns the updated
// auto-mode round counter.
func (rt *Runtime) doSleep(sched *Task, autoRounds int) int {
	mode := sched.SyncMode()
	if mode == SyncAuto {
		if autoRounds < rt.cfg.AutoYieldRounds {
			runtime.Gosched()
			if sched.spinGuard == nil {
				sched.spinGuard = newRateGuard(autoSpinWindow, autoSpinBudget)
			}
			if !sched.spinGuard.Tick(sched.id) {
				rt.logger().Warning().Str("event", "livelock_suspected").Str("sched", sched.String()).Log("scheduler spinning faster than its spin budget")
			}
			return autoRounds + 1
		}
		mode = SyncBlocking
	}

	switch mode {
	case SyncBusyWait:
		return autoRounds
	case SyncYield:
		runtime.Gosched()
		return autoRounds
	case SyncBlocking:
		if sched.sem == nil {
			sem, err := newSemaphore()
			if err != nil {
				// No OS wait primitive available; degrade to yielding
				// rather than fail a task that merely wanted to park.
				runtime.Gosched()
				return autoRounds
			}
			sched.sem = sem
		}
		_ = sched.sem.Wait()
		return autoRounds
	default:
		return autoRounds
	}
}

const (
	autoSpinWindow = 10 * time.Millisecond
	autoSpinBudget = 10000 // spins tolerated per window before flagging livelock
)

// wakeScheduler posts sched's sleep semaphore, if any, so a scheduler
// currently parked in SyncBlocking reevaluates its schedq/oodq/refcount
// promptly instead of waiting out whatever spin/yield window it is in.
func (rt *Runtime) wakeScheduler(sched *Task) {
	if sched.sem != nil {
		_ = sched.sem.Post()
	}
}

// wakeup delivers a deferred wakeup to t: it coalesces into the single
// pending-wakeup slot described in spec.md §3 (flag_wakeup) and
// OOD-enqueues t into its scheduler's inbox. Unlike Resume (public.go),
// the caller need not itself be a task — this backs Sleep/Wakeup, a
// simpler pairing than the full resume(r, s) protocol, usable from
// outside the task model entirely (e.g. an external event delivering a
// wakeup to a parked task).
func (rt *Runtime) wakeup(t *Task) {
	if !t.flagWakeup.CompareAndSwap(false, true) {
		return // already a pending wakeup for t; idempotent per spec.md §3
	}
	sched := t.sched.Load()
	sched.oodq.EnqueueLocked(t)
	rt.wakeScheduler(sched)
}

// suspendAndEnqueue implements spec.md §4.4 suspend_and_enqueue: t moves
// RUNNING -> SUSPENDED, contributes one obligation to its own scheduler's
// refcount, is linked onto q (taking q's own lock first when useLock is
// set), and hands control back to its scheduler. There is no separate
// successor argument: handing control back over controlCh and letting the
// scheduler's own next dispatch run is exactly the swap(t, n) step the
// spec describes, whichever task (if any) that dispatch happens to pick.
//
// If non-nil, cb is invoked with cbarg after t is linked into q but before
// q's lock (if useLock) is released, e.g. to release an external lock
// (a named-export bucket mutex, a user queue's own lock) atomically with
// the link, per spec.md §4.1's enqueue-callback mechanism.
func (rt *Runtime) suspendAndEnqueue(t *Task, q *TaskQueue, useLock bool, cb func(arg any), cbarg any) {
	sched := t.sched.Load()
	t.state.Store(StateSuspended)
	sched.refcount.Add(1)

	if useLock {
		q.Lock()
	}
	q.Enqueue(t, cb, cbarg)
	if useLock {
		q.Unlock()
	}

	sched.controlCh <- struct{}{}
	<-t.resumeCh
	rt.dischargeDeferred(t)
	t.state.Store(StateRunning)
}

// doYield implements the cooperative Yield primitive: t re-enqueues
// itself at the tail of its own scheduler's runnable queue, hands control
// back to that scheduler's loop, and blocks until resumed again.
func (rt *Runtime) doYield(t *Task) {
	sched := t.sched.Load()
	rt.suspendAndEnqueue(t, sched.schedq, true, nil, nil)
}

// yieldTo implements yield_to(target) (spec.md §4.4): target, which must
// already be linked into sched's own schedq, is pulled out of FIFO order
// and dispatched directly; t takes target's old place by enqueueing
// itself at the tail. Unlike doYield, control is handed directly to
// target rather than to whatever schedulerLoop's own dispatch would have
// picked — but target's own eventual suspension still hands control back
// over sched.controlCh exactly as any other task's would, so sched's
// dispatch loop (parked in <-sched.controlCh since it last ran t) does
// not need to know a direct switch happened.
func (rt *Runtime) yieldTo(t, target, sched *Task) error {
	sched.schedq.Lock()
	var linked bool
	sched.schedq.Foreach(func(c *Task) bool {
		if c == target {
			linked = true
			return false
		}
		return true
	})
	if !linked {
		sched.schedq.Unlock()
		return newErr("YieldTo", KindINVAL)
	}
	sched.schedq.Remove(target)
	t.state.Store(StateSuspended)
	sched.refcount.Add(1)
	sched.schedq.Enqueue(t, nil, nil)
	sched.schedq.Unlock()

	rt.dispatchTo(sched, target)

	<-t.resumeCh
	rt.dischargeDeferred(t)
	t.state.Store(StateRunning)
	return nil
}

// doParkUntilWoken implements Sleep: unlike Yield, t is not re-enqueued
// anywhere; it only becomes runnable again once some other task calls
// Wakeup(t) (or Resume(t)). It still counts as a SUSPENDED task against
// its scheduler's refcount for the duration of the park.
func (rt *Runtime) doParkUntilWoken(t *Task) {
	sched := t.sched.Load()
	t.state.Store(StateSuspended)
	sched.refcount.Add(1)
	sched.controlCh <- struct{}{}
	<-t.resumeCh
	rt.dischargeDeferred(t)
	t.state.Store(StateRunning)
}

// doExit runs the termination protocol of spec.md §4.4/§4.5. If a
// successor is already waiting in schedq, full teardown is deferred onto
// it via wakeupDeferred (so terminate_task only runs once that successor
// has actually executed at least once, per scenario S6) and this
// goroutine hands back control one last time without tearing down.
// Otherwise teardown runs immediately, on this goroutine.
func (rt *Runtime) doExit(t *Task) {
	t.flagExit.Store(true)
	t.state.Store(StateExiting)

	sched := t.sched.Load()
	rt.takeinOOD(sched)

	sched.schedq.Lock()
	hasSuccessor := !sched.schedq.IsEmpty()
	sched.schedq.Unlock()

	if hasSuccessor {
		sched.exitHandoff.Store(t)
		rt.gids.unbind(getGoroutineID())
		rt.logger().Trace().Str("event", "exit_deferred").Str("task", t.String()).Log("deferring final teardown to next scheduled peer")
		sched.controlCh <- struct{}{}
		return
	}

	rt.terminateTask(t)
	rt.gids.unbind(getGoroutineID())
	sched.controlCh <- struct{}{}
}

// terminateTask runs t's final teardown: its export table is closed (so
// any still-blocked Import calls observe ErrCanceled), its id is retired
// back to the arena, exitedCh is closed so Task.Done callers unblock, and
// every task parked in Wait(t) (wait.go, spec.md §12 pip_wait) is resumed
// with t's ExitCode. May run on a different task's goroutine than t's
// own, when doExit deferred it via wakeupDeferred.
func (rt *Runtime) terminateTask(t *Task) {
	t.exptab.closeAll()

	t.waitMu.Lock()
	t.terminated = true
	var waiters []*Task
	for {
		w, ok := t.waiters.Dequeue()
		if !ok {
			break
		}
		waiters = append(waiters, w)
	}
	t.waitMu.Unlock()

	rt.logger().Trace().Str("event", "exit").Str("task", t.String()).Log("task exited")
	rt.arena.retire(t)
	close(t.exitedCh)

	for _, w := range waiters {
		_ = rt.Resume(w, nil)
	}
}

// dischargeDeferred completes the termination of whichever predecessor
// deferred its teardown onto t via doExit (spec.md §4.4 wakeup_deferred),
// if any, now that t has safely resumed. Every site that receives from
// t.resumeCh must call this immediately afterward.
func (rt *Runtime) dischargeDeferred(t *Task) {
	if pred := t.wakeupDeferred.Swap(nil); pred != nil {
		rt.terminateTask(pred)
	}
}
