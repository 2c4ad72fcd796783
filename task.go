package cotask

import (
	"sync"
	"sync/atomic"
)

// TaskID is a small dense integer identity (spec.md §3). Spawned tasks get
// ids from the runtime's arena (arena.go); three additional values are
// reserved as argument-only sentinels and are never assigned to a real
// task.
type TaskID int64

const (
	// IDRoot identifies the root task: the bootstrap task that seeds the
	// runtime, and (as an API argument) "the root scheduler" regardless of
	// its concrete id.
	IDRoot TaskID = 0
	// IDAny is an argument sentinel reserved for APIs that accept "any
	// task"; no operation in this package currently interprets it, but it
	// is retained so callers matching against spec.md's three sentinel
	// ids compile against a stable set of constants.
	IDAny TaskID = -1
	// IDMyself, as an API argument, means "the calling task" — resolved
	// via TaskSelf.
	IDMyself TaskID = -2
)

// Task is the run-unit: identity, state, saved context, scheduler
// back-pointer, and the per-task annex (OOD inbox, sleep primitives, named
// export table) described in spec.md §3.
//
// In this Go port a Task's "machine context" and "stack" are its
// goroutine: resumeCh is the channel a successor sends on to make this
// task's goroutine the active one again (see SPEC_FULL.md §1a).
type Task struct {
	id   TaskID
	rt   *Runtime
	name string

	state *taskState

	sched        atomic.Pointer[Task] // scheduler currently responsible for this task
	coupledSched atomic.Pointer[Task] // stashed prior scheduler, set by couple(), restored by decouple()

	// The following are allocated for every task, regardless of whether it
	// is currently acting as a scheduler, since couple() can make any task
	// a scheduler at runtime (spec.md §4.4 "couple"). Both queues are
	// lock-protected: schedq is normally only touched by its owner's own
	// sleep loop, but a cross-domain Spawn or a resume racing a concurrent
	// dequeue can append to it from another goroutine.
	schedq    *TaskQueue // this task's runnable queue, when acting as a scheduler
	oodq      *TaskQueue // the OOD inbox, mutated by any scheduler resuming into this domain
	stackProt *stackProtect
	sem       *semaphore // sleep_sem; created lazily on first SyncBlocking/SyncAuto park.
	// Lazy creation is safe without extra locking: sem is only ever read
	// or written from this task's own goroutine, inside do_sleep.
	spinGuard *rateGuard // soft livelock detector (diagnostics.go), created lazily

	refcount atomic.Int64 // count of suspended tasks whose sched points here

	// flagWakeup is CAS'd from wakeup() (any goroutine) and read/cleared by
	// this task's own scheduler on every resume; the padding after it keeps
	// flagExit/optsSync below off its cache line, so a hot wakeup CAS doesn't
	// bounce the line those fields sit on (sizeof.go). refcount, declared
	// just above, is not padded off.
	flagWakeup atomic.Bool
	_          [sizeOfCacheLine - sizeOfAtomicUint32]byte
	flagExit   atomic.Bool

	optsSync atomic.Uint32 // SyncMode, latched by do_sleep on each entry

	wakeupDeferred atomic.Pointer[Task] // single-slot deferred wakeup (spec.md §4.4)
	// exitHandoff is meaningful only while this task acts as a scheduler: an
	// exiting task with a runnable successor stashes itself here so the
	// scheduler's own dispatch step can arm the successor's wakeupDeferred
	// (sched.go schedulerLoop/doExit), rather than tearing itself down on
	// its own goroutine.
	exitHandoff atomic.Pointer[Task]

	// importOutcome is the single in-flight "wait slot" of spec.md §4.7: set
	// by whichever task resumes this one out of a named-export wait queue
	// (export.go), read back immediately after resuming.
	importOutcome atomic.Pointer[importOutcome]

	resumeCh chan struct{} // sent to by this task's scheduler loop to hand it control
	controlCh chan struct{} // meaningful only while acting as scheduler: sent to by whichever task it just handed control to, to hand control back
	exitedCh chan struct{}  // closed once terminate_task completes

	aux atomic.Pointer[any] // opaque user pointer (set_aux/get_aux)

	exptab *exportTable // named export/import table (export.go)

	exitCode atomic.Int32 // set by Exit, or left 0 when body returns normally

	// waitMu guards terminated and waiters, the bookkeeping behind Wait/
	// TryWait (wait.go, spec.md §12 pip_wait/pip_trywait): any task
	// blocked on this one's termination parks here until terminateTask
	// drains it.
	waitMu     sync.Mutex
	terminated bool
	waiters    *TaskQueue

	qnext, qprev *Task // intrusive TaskQueue links (queue.go)

	body func(*Task) // task body; nil for a bare scheduler (e.g. root)
}

// ID returns the task's dense integer identity.
func (t *Task) ID() TaskID { return t.id }

// Name returns the task's diagnostic name, if any.
func (t *Task) Name() string { return t.name }

// State returns the task's current TaskState.
func (t *Task) State() TaskState { return t.state.Load() }

// Sched returns the task currently responsible for scheduling this task.
func (t *Task) Sched() *Task { return t.sched.Load() }

// Runtime returns the Runtime that owns this task.
func (t *Task) Runtime() *Runtime { return t.rt }

// Done returns a channel closed once this task has fully exited (after
// terminate_task completes), suitable for a select alongside a timeout or
// a cancellation signal.
func (t *Task) Done() <-chan struct{} { return t.exitedCh }

// IsScheduler reports whether t is currently its own scheduler (the root,
// a task created by NewScheduler, or a task that has called Couple), i.e.
// whether t is presently acting as a scheduler.
func (t *Task) IsScheduler() bool {
	return t.sched.Load() == t
}

// SchedQLen returns the current length of this task's runnable queue.
func (t *Task) SchedQLen() int {
	t.schedq.Lock()
	defer t.schedq.Unlock()
	return t.schedq.Len()
}

// OODQLen returns the current length of this task's OOD inbox.
func (t *Task) OODQLen() int {
	t.oodq.Lock()
	defer t.oodq.Unlock()
	return t.oodq.Len()
}

// Refcount returns the number of outstanding obligations preventing this
// scheduler from terminating (spec.md §3 invariant 3).
func (t *Task) Refcount() int64 { return t.refcount.Load() }

// ExitCode returns the value passed to Exit, or 0 if the task's body
// returned normally or has not yet terminated (spec.md §12 pip_wait).
func (t *Task) ExitCode() int { return int(t.exitCode.Load()) }

// Aux returns the opaque user pointer last set via SetAux.
func (t *Task) Aux() any {
	p := t.aux.Load()
	if p == nil {
		return nil
	}
	return *p
}

// SetAux stores an opaque user pointer, retrievable via Aux.
func (t *Task) SetAux(v any) {
	t.aux.Store(&v)
}

// SyncMode returns the task's latched sync discipline.
func (t *Task) SyncMode() SyncMode { return SyncMode(t.optsSync.Load()) }

// SetSyncMode overrides t's latched sync discipline directly, without
// requiring the caller to be t itself. Most callers sleeping/scheduling
// under their own sync discipline should use Runtime.SetSyncMode instead;
// this variant exists for setup code (e.g. a CLI driver) that configures a
// freshly spawned scheduler before it has run at all.
func (t *Task) SetSyncMode(mode SyncMode) error {
	if !mode.valid() {
		return newErr("SetSyncMode", KindINVAL)
	}
	t.optsSync.Store(uint32(mode))
	return nil
}

func (t *Task) String() string {
	if t.name != "" {
		return t.name
	}
	return "task#" + itoa(int64(t.id))
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
