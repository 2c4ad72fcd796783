package cotask

import "sync"

// stackProtect implements the two-slot handshake of spec.md §4.3, one
// instance per task. In the C original this prevents a predecessor's
// raw stack from being reused before the successor has left its frame; in
// this Go port (SPEC_FULL.md §1a) a parked goroutine's stack is already
// safe, so what stackProtect actually guards is the predecessor's arena
// slot — its dense id must not be handed to a newly spawned task until the
// successor confirms it has left the predecessor's context.
type stackProtect struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner *Task // set by Arm; cleared by Release
}

func newStackProtect() *stackProtect {
	sp := &stackProtect{}
	sp.cond = sync.NewCond(&sp.mu)
	return sp
}

// Arm records that predecessor is suspending in favour of a successor that
// has not yet started running. Called by the predecessor immediately
// before the context switch (spec.md §4.3: "t writes itself into
// stk_owner and sets stk_flag").
func (sp *stackProtect) Arm(predecessor *Task) {
	sp.mu.Lock()
	sp.owner = predecessor
	sp.mu.Unlock()
}

// Release is called by the successor as soon as it is executing on its
// own stack (in this port: in couple, as soon as the coupling task's
// goroutine resumes past its channel receive). It clears stk_flag and wakes
// any waiter blocked in Wait.
func (sp *stackProtect) Release() {
	sp.mu.Lock()
	sp.owner = nil
	sp.cond.Broadcast()
	sp.mu.Unlock()
}

// Wait blocks until no predecessor is currently armed, i.e. until the most
// recent Arm has been matched by a Release. A task about to free or reuse
// a retired id calls this first (spec.md §4.3: "a task attempting to free
// or re-enter its stack first waits on stk_flag").
func (sp *stackProtect) Wait() {
	sp.mu.Lock()
	for sp.owner != nil {
		sp.cond.Wait()
	}
	sp.mu.Unlock()
}

// WaitFor blocks while the armed owner is specifically t; it returns at
// once if nobody is armed or a different task is. No code in this package
// calls it outside its tests.
func (sp *stackProtect) WaitFor(t *Task) {
	sp.mu.Lock()
	for sp.owner == t {
		sp.cond.Wait()
	}
	sp.mu.Unlock()
}
