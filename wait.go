package cotask

// Wait and TryWait supplement spec.md's core model with PiP's pip_wait/
// pip_trywait (original_source/include/pip.h, original_source/bin/pip-exec.c,
// original_source/test/ulp/suspend.c's collection loop over every spawned
// task's status). Unlike the original's pipid-indexed wait, these take a
// *Task directly: arena.go recycles a terminated task's TaskID immediately
// on retire, so waiting by id alone would risk observing a different,
// later task that happened to reuse the same slot.

// Wait blocks the calling task until target has fully terminated
// (terminate_task has run), returning the ExitCode target's Exit call (or
// a normal body return, which leaves it 0) produced. If target has
// already terminated, Wait returns immediately.
func (rt *Runtime) Wait(target *Task) (int, error) {
	t, err := rt.mustSelf("Wait")
	if err != nil {
		return 0, err
	}
	if target == nil {
		return 0, newErr("Wait", KindINVAL)
	}

	target.waitMu.Lock()
	if target.terminated {
		target.waitMu.Unlock()
		return target.ExitCode(), nil
	}
	rt.suspendAndEnqueue(t, target.waiters, false, func(any) { target.waitMu.Unlock() }, nil)
	return target.ExitCode(), nil
}

// TryWait is Wait's non-blocking counterpart (pip_trywait): it returns
// ErrAgain if target has not yet terminated, instead of suspending.
func (rt *Runtime) TryWait(target *Task) (int, error) {
	if _, err := rt.mustSelf("TryWait"); err != nil {
		return 0, err
	}
	if target == nil {
		return 0, newErr("TryWait", KindINVAL)
	}

	target.waitMu.Lock()
	defer target.waitMu.Unlock()
	if !target.terminated {
		return 0, newErr("TryWait", KindAGAIN)
	}
	return target.ExitCode(), nil
}
