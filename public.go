package cotask

import "runtime"

// TaskSelf resolves the calling goroutine to the Task it is currently
// running as. It returns nil if called from a goroutine that is not
// presently executing as any task's active context (e.g. a goroutine the
// caller started independently of this package).
func (rt *Runtime) TaskSelf() *Task {
	return rt.gids.self()
}

// mustSelf resolves the calling task or returns a PERM error: most of the
// public API below is only meaningful when called from within a task's
// own goroutine (spec.md §4.6).
func (rt *Runtime) mustSelf(op string) (*Task, error) {
	t := rt.TaskSelf()
	if t == nil {
		return nil, newErr(op, KindPERM)
	}
	return t, nil
}

// YieldFlag selects what Yield actually does (spec.md §4.4 yield(flags)).
type YieldFlag uint8

const (
	// YieldSystem invokes a system-level yield (runtime.Gosched) regardless
	// of whether a user-level switch also happens.
	YieldSystem YieldFlag = 1 << iota
	// YieldUser requests the cooperative user-level switch: intake OOD,
	// and if the scheduler's runnable queue is non-empty, append self to
	// the tail and switch to the head.
	YieldUser
)

// Yield suspends the calling task and hands control to another runnable
// peer under the same scheduler, per the requested flags. With no flags
// given, it defaults to YieldUser (the prior, unconditional behavior).
//
// Yield returns ErrIntr if and only if an actual user-level switch
// happened (spec.md §4.4); a nil error means either no YieldUser flag was
// requested, or the runnable queue was empty and there was no peer to
// switch to.
func (rt *Runtime) Yield(flags ...YieldFlag) error {
	t, err := rt.mustSelf("Yield")
	if err != nil {
		return err
	}

	var f YieldFlag
	if len(flags) == 0 {
		f = YieldUser
	}
	for _, x := range flags {
		f |= x
	}

	if f&YieldSystem != 0 {
		runtime.Gosched()
	}
	if f&YieldUser == 0 {
		return nil
	}

	sched := t.sched.Load()
	rt.takeinOOD(sched)

	sched.schedq.Lock()
	empty := sched.schedq.IsEmpty()
	sched.schedq.Unlock()
	if empty {
		return nil
	}

	rt.doYield(t)
	return newErr("Yield", KindINTR)
}

// YieldTo switches control directly to target, skipping the normal FIFO
// dispatch order, if target shares the calling task's scheduling domain
// (spec.md §4.4 yield_to). Cross-domain yield_to is disallowed (EPERM).
func (rt *Runtime) YieldTo(target *Task) error {
	t, err := rt.mustSelf("YieldTo")
	if err != nil {
		return err
	}
	if target == nil {
		return newErr("YieldTo", KindINVAL)
	}
	if target == t {
		return nil
	}
	sched := t.sched.Load()
	if target.sched.Load() != sched {
		return newErr("YieldTo", KindPERM)
	}
	return rt.yieldTo(t, target, sched)
}

// Sleep suspends the calling task until some other task calls Wakeup (or
// Resume) on it. Unlike Yield, a sleeping task is not on any runnable
// queue in the interim.
func (rt *Runtime) Sleep() error {
	t, err := rt.mustSelf("Sleep")
	if err != nil {
		return err
	}
	rt.doParkUntilWoken(t)
	return nil
}

// Wakeup schedules t to run again. Safe to call for a task that is not
// currently parked (the wakeup is deferred into a single pending slot and
// consumed the next time t would otherwise block) and safe to call
// concurrently from any goroutine, including one not itself a task.
func (rt *Runtime) Wakeup(t *Task) error {
	if t == nil {
		return newErr("Wakeup", KindINVAL)
	}
	rt.wakeup(t)
	return nil
}

// Resume implements spec.md §4.4 resume(r, s), in order:
//   - the caller must itself be a task (PERM otherwise);
//   - resuming self is a no-op success, even though r would otherwise
//     fail the next rule (matches the testable property in spec.md §8
//     over the literal rule order in §4.4, which would make self-resume
//     unreachable);
//   - r must be SUSPENDED, or PERM;
//   - if sched is given and sched.flagExit is set, BUSY;
//   - r is marked RUNNING and moved under sched (or, if sched is nil, r's
//     own current scheduler), either appended to that scheduler's schedq
//     (same-domain) or OOD-routed into it (cross-domain, waking that
//     scheduler if it was parked); finally r's prior scheduler's refcount
//     is decremented and, if now eligible to terminate, woken.
func (rt *Runtime) Resume(r *Task, sched *Task) error {
	caller, err := rt.mustSelf("Resume")
	if err != nil {
		return err
	}
	if r == nil {
		return newErr("Resume", KindINVAL)
	}
	if r == caller {
		return nil
	}
	if r.state.Load() != StateSuspended {
		return newErr("Resume", KindPERM)
	}
	if sched != nil && sched.flagExit.Load() {
		return newErr("Resume", KindBUSY)
	}
	if !r.state.TryTransition(StateSuspended, StateRunning) {
		return newErr("Resume", KindPERM)
	}

	prior := r.sched.Load()
	newSched := sched
	if newSched == nil {
		newSched = prior
	}
	r.flagWakeup.Store(false)
	r.sched.Store(newSched)

	if newSched == caller.sched.Load() {
		newSched.schedq.EnqueueLocked(r)
	} else {
		newSched.oodq.Lock()
		wasEmpty := newSched.oodq.IsEmpty()
		newSched.oodq.Enqueue(r, nil, nil)
		newSched.oodq.Unlock()
		if wasEmpty {
			rt.wakeScheduler(newSched)
		}
	}

	prior.refcount.Add(-1)
	rt.wakeScheduler(prior)

	return nil
}

// DequeueAndResumeN pops up to n tasks (all of them, if n < 0) from q in
// FIFO order and Resumes each under sched (spec.md §4.4
// dequeue_and_resume_N, scenario S2). q's own lock is held only long
// enough to drain the batch; Resume itself never runs while holding it.
// Returns how many tasks were resumed.
func (rt *Runtime) DequeueAndResumeN(q *TaskQueue, sched *Task, n int) (int, error) {
	if q == nil {
		return 0, newErr("DequeueAndResumeN", KindINVAL)
	}
	if _, err := rt.mustSelf("DequeueAndResumeN"); err != nil {
		return 0, err
	}

	var batch []*Task
	q.Lock()
	for n < 0 || len(batch) < n {
		t, ok := q.Dequeue()
		if !ok {
			break
		}
		batch = append(batch, t)
	}
	q.Unlock()

	resumed := 0
	for _, t := range batch {
		if err := rt.Resume(t, sched); err != nil {
			return resumed, err
		}
		resumed++
	}
	return resumed, nil
}

// Couple makes the calling task act as its own scheduler. See
// (*Runtime).couple for the mechanics.
func (rt *Runtime) Couple() error {
	t, err := rt.mustSelf("Couple")
	if err != nil {
		return err
	}
	return rt.couple(t)
}

// Decouple reverts a prior Couple. See (*Runtime).decouple.
func (rt *Runtime) Decouple() error {
	t, err := rt.mustSelf("Decouple")
	if err != nil {
		return err
	}
	return rt.decouple(t)
}

// Exit terminates the calling task immediately with the given code: body
// is abandoned at the call site (Exit does not return), and the
// termination protocol of spec.md §4.5 runs exactly as it would after
// body returns normally. code becomes visible to Wait/TryWait callers as
// the terminated task's ExitCode (spec.md §12 pip_exit/pip_wait).
//
// Exit is implemented as a panic/recover unwind rather than an os.Exit
// style call, so deferred cleanup in the task's own body still runs.
func (rt *Runtime) Exit(code int) {
	t, err := rt.mustSelf("Exit")
	if err != nil {
		return
	}
	t.exitCode.Store(int32(code))
	panic(taskExitSignal{t: t})
}

type taskExitSignal struct{ t *Task }

// SetSyncMode overrides the calling task's latched sync discipline,
// effective the next time it acts as a scheduler (spec.md §4.6
// set_sync_flags).
func (rt *Runtime) SetSyncMode(mode SyncMode) error {
	if !mode.valid() {
		return newErr("SetSyncMode", KindINVAL)
	}
	t, err := rt.mustSelf("SetSyncMode")
	if err != nil {
		return err
	}
	t.optsSync.Store(uint32(mode))
	return nil
}

// GetSyncMode returns the calling task's latched sync discipline.
func (rt *Runtime) GetSyncMode() (SyncMode, error) {
	t, err := rt.mustSelf("GetSyncMode")
	if err != nil {
		return 0, err
	}
	return t.SyncMode(), nil
}

// SchedDomain returns the task currently responsible for scheduling t
// (spec.md §4.6 get_sched_domain).
func (rt *Runtime) SchedDomain(t *Task) (*Task, error) {
	if t == nil {
		return nil, newErr("SchedDomain", KindINVAL)
	}
	return t.Sched(), nil
}

// CountRunnable reports how many tasks are currently enqueued on sched's
// runnable queue (spec.md §4.6 count_runnable). It does not include the
// OOD inbox, which may still hold tasks not yet taken in.
func (rt *Runtime) CountRunnable(sched *Task) (int, error) {
	if sched == nil {
		return 0, newErr("CountRunnable", KindINVAL)
	}
	return sched.SchedQLen(), nil
}

// TaskByID looks up a task by its dense id, returning ErrNoEnt if id is
// out of range or currently retired. IDMyself resolves to the calling task.
func (rt *Runtime) TaskByID(id TaskID) (*Task, error) {
	if id == IDMyself {
		if self := rt.TaskSelf(); self != nil {
			return self, nil
		}
	}
	t := rt.arena.lookup(id)
	if t == nil {
		return nil, newErr("TaskByID", KindNOENT)
	}
	return t, nil
}
