package cotask

// semaphore is the sleep_sem primitive (spec.md §3): a binary-style
// counting semaphore used only by SyncBlocking and the SyncAuto fallback.
// It is backed by a real OS wait primitive (newWakeFD), not a bare Go
// channel, so a blocked scheduler genuinely yields its OS thread rather
// than spinning — see SPEC_FULL.md §11.
type semaphore struct {
	readFD, writeFD int
}

func newSemaphore() (*semaphore, error) {
	r, w, err := newWakeFD()
	if err != nil {
		return nil, err
	}
	return &semaphore{readFD: r, writeFD: w}, nil
}

// Post wakes one waiter. Safe to call when nobody is waiting; the unit is
// retained for the next Wait (do_sleep's idempotent wakeup rule, see
// Runtime.wakeup in sched.go, is enforced a layer up via flag_wakeup, not here).
func (s *semaphore) Post() error {
	return postWakeFD(s.writeFD)
}

// Wait blocks until a unit posted by Post is observed, then consumes all
// currently-pending units.
func (s *semaphore) Wait() error {
	return waitWakeFD(s.readFD)
}

// Drain discards any pending units without blocking.
func (s *semaphore) Drain() {
	drainWakeFDNonBlocking(s.readFD)
}

func (s *semaphore) Close() {
	closeWakeFD(s.readFD, s.writeFD)
}
