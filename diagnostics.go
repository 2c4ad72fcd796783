// Livelock/deadlock diagnostics. A scheduler spinning through SyncBusyWait
// or SyncYield with nothing to do is indistinguishable, from the inside,
// from one genuinely about to receive work; rateGuard borrows
// github.com/joeycumines/go-catrate's sliding-window limiter to flag the
// former without adding any false-positive latency to the happy path.
package cotask

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// rateGuard wraps a catrate.Limiter scoped to a single task's spin loop.
// Each SyncAuto yield round in do_sleep calls Tick; once the configured
// rate is exceeded, Tick returns false and the caller logs a livelock
// warning for that round.
type rateGuard struct {
	limiter *catrate.Limiter
}

// newRateGuard builds a rateGuard that tolerates up to maxSpins busy
// rounds per window before flagging suspected livelock.
func newRateGuard(window time.Duration, maxSpins int) *rateGuard {
	return &rateGuard{
		limiter: catrate.NewLimiter(map[time.Duration]int{window: maxSpins}),
	}
}

// Tick registers one spin round for category (normally the task itself).
// It reports false once the configured rate is exceeded.
func (g *rateGuard) Tick(category any) bool {
	_, ok := g.limiter.Allow(category)
	return ok
}

// deadlockRounds counts the parked rounds (a scheduler loop iteration that
// found nothing runnable) of every scheduler in a Runtime since any
// scheduler last dispatched a task. It is a simple
// atomic counter rather than a rateGuard: the condition it detects
// (global standstill) has no legitimate "bursty but fine" shape the way a
// single task's spin does.
func (rt *Runtime) noteParkedRound() {
	rt.deadlockRounds.Add(1)
}

func (rt *Runtime) noteRunnable() {
	rt.deadlockRounds.Store(0)
}

// DeadlockSuspected reports whether the runtime has counted at least
// cfg.DeadlockThreshold parked scheduler rounds, summed over all
// schedulers, since any scheduler last dispatched a task.
func (rt *Runtime) DeadlockSuspected() bool {
	return rt.deadlockRounds.Load() >= rt.cfg.DeadlockThreshold
}
