package cotask

// Context-switch primitives (spec.md §4.4): couple and decouple. In this
// port, "switching context" means handing the scheduling baton between
// goroutines over controlCh/resumeCh rather than restoring a saved
// register file; see runtime.go (runTaskBody) and sched.go (schedulerLoop)
// for the handoff itself. couple and decouple only change *who* a task's next
// handoff goes through.

// Couple makes the calling task t act as its own scheduler: subsequent
// tasks Spawned with t as the target scheduler are scheduled by t
// directly, instead of by whatever scheduler t was previously running
// under. The prior scheduler is stashed and restored by Decouple.
//
// Must be called from within t's own goroutine (i.e. t must be the
// currently running task); callers should use Couple(), the public
// wrapper in public.go, which resolves t via TaskSelf.
func (rt *Runtime) couple(t *Task) error {
	if t.sched.Load() == t {
		return newErr("couple", KindBUSY)
	}
	prior := t.sched.Load()
	t.coupledSched.Store(prior)
	t.sched.Store(t)
	// No refcount adjustment here: t is RUNNING (it is the caller), so it
	// was never counted toward prior.refcount in the first place (spec.md
	// §5 refcount discipline counts only SUSPENDED tasks).

	// t is now its own scheduler; a dedicated goroutine drives its
	// scheduling loop from here on. Arm t's stack-protect before handing
	// off: prior is suspending in favour of a successor (the new
	// schedulerLoop goroutine driving t) that has not started running
	// yet (spec.md §4.3). The calling goroutine (t's own) hands control
	// back to prior's loop — which is waiting for exactly that — and
	// OOD-enqueues t into its own brand-new inbox, so the new loop's
	// first takeinOOD makes t runnable under itself and immediately
	// resumes this same goroutine, which then Releases the guard.
	t.stackProt.Arm(prior)
	go rt.schedulerLoop(t)

	t.state.Store(StateSuspended)
	t.refcount.Add(1) // t is about to be SUSPENDED under its own new domain (t.sched == t); balanced by the CAS-gated decrement in the new schedulerLoop's first dispatch of t
	t.oodq.EnqueueLocked(t)
	prior.controlCh <- struct{}{}
	<-t.resumeCh
	rt.dischargeDeferred(t)
	t.stackProt.Release()
	t.state.Store(StateRunning)

	rt.logger().Trace().Str("event", "couple").Str("task", t.String()).Log("task coupled to itself")

	return nil
}

// Decouple reverses Couple: t stops acting as its own scheduler and
// reverts to whichever scheduler it was coupled from. Any task still
// enqueued on t's schedq/oodq when Decouple runs is handed over to the
// restored scheduler's oodq, so it is not stranded.
func (rt *Runtime) decouple(t *Task) error {
	prior := t.coupledSched.Load()
	if prior == nil || t.sched.Load() != t {
		return newErr("decouple", KindINVAL)
	}

	t.flagExit.Store(true) // tells t's own schedulerLoop goroutine to stop once its queues drain

	move := func(q *TaskQueue) {
		for {
			next, ok := q.DequeueLocked()
			if !ok {
				return
			}
			// Only a task still SUSPENDED was actually counted against
			// t.refcount (spec.md §5): a task already marked RUNNING here
			// is one Resume moved into t's oodq mid-transit, between its
			// own sched update and its dispatch, and never contributed to
			// either scheduler's refcount.
			if next.state.Load() == StateSuspended {
				t.refcount.Add(-1)
				prior.refcount.Add(1)
			}
			next.sched.Store(prior)
			prior.oodq.EnqueueLocked(next)
		}
	}
	move(t.schedq)
	move(t.oodq)

	t.coupledSched.Store(nil)
	t.sched.Store(prior)
	// No refcount adjustment for t itself here: t is RUNNING (it is the
	// caller of decouple), so it is not counted toward prior.refcount until
	// it next genuinely suspends under prior.

	// Release the dedicated scheduler-loop goroutine spawned by couple: it
	// is currently parked waiting for the task it just resumed (t itself,
	// the caller of decouple) to hand control back. With schedq/oodq
	// drained and flagExit set, its next iteration finds nothing left to
	// do and returns.
	t.controlCh <- struct{}{}

	rt.logger().Trace().Str("event", "decouple").Str("task", t.String()).Log("task decoupled")

	return nil
}
