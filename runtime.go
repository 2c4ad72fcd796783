package cotask

import (
	"sync/atomic"
)

// Runtime is the top-level handle: it owns the id arena, the goroutine-id
// registry backing TaskSelf, and the distinguished root scheduler. Callers
// typically construct exactly one per process and call Run on it from the
// goroutine that should become the root scheduler's goroutine.
type Runtime struct {
	cfg Config

	arena *arena
	gids  *gidRegistry

	root *Task

	deadlockRounds atomic.Int64
}

// NewRuntime constructs a Runtime and its root task, applying opts over
// base (DefaultConfig if base is nil). The root task is available via Root
// so callers can Spawn its first children before calling Run.
func NewRuntime(base *Config, opts ...RuntimeOption) (*Runtime, error) {
	if base == nil {
		base = DefaultConfig()
	}
	cfg, err := resolveRuntimeOptions(base, opts)
	if err != nil {
		return nil, wrapErr("NewRuntime", KindINVAL, err)
	}

	rt := &Runtime{
		cfg:   *cfg,
		arena: newArena(cfg.ArenaCapacity),
		gids:  newGIDRegistry(),
	}

	root, err := rt.newTask("root", nil)
	if err != nil {
		return nil, err
	}
	root.sched.Store(root) // the root is its own scheduler
	rt.root = root

	rt.logger().Debug().Str("event", "runtime_init").Str("config", cfg.describe()).Log("runtime initialized")

	return rt, nil
}

// Root returns the runtime's distinguished root task.
func (rt *Runtime) Root() *Task { return rt.root }

// Run drives the root scheduler's loop on the calling goroutine until the
// root has no remaining work and Exit has been called on it (or the
// process is killed out from under it). Most programs call Run from
// main, in its own goroutine, and use task completion signals (Task.Done)
// to decide when to stop waiting.
func (rt *Runtime) Run() {
	rt.schedulerLoop(rt.root)
}

// newTask allocates an id and constructs (but does not schedule) a Task.
func (rt *Runtime) newTask(name string, body func(*Task)) (*Task, error) {
	id, err := rt.arena.reserve()
	if err != nil {
		return nil, wrapErr("Spawn", KindOVERFLOW, err)
	}

	t := &Task{
		id:         id,
		rt:         rt,
		name:       name,
		state:      newTaskState(StateSuspended),
		schedq:     NewTaskQueue(true),
		oodq:       NewTaskQueue(true),
		stackProt:  newStackProtect(),
		resumeCh:   make(chan struct{}),
		controlCh:  make(chan struct{}),
		exitedCh:   make(chan struct{}),
		exptab:     newExportTable(rt),
		waiters:    NewTaskQueue(false),
		body:       body,
	}
	t.optsSync.Store(uint32(rt.cfg.DefaultSyncMode))
	rt.arena.install(t)
	return t, nil
}

// Spawn creates a new task under sched and enqueues it onto sched's
// runnable queue. body runs on a dedicated goroutine once the task is
// first resumed by sched's scheduling loop; it is never invoked directly
// by Spawn's caller's goroutine.
func (rt *Runtime) Spawn(sched *Task, name string, body func(*Task)) (*Task, error) {
	if sched == nil {
		return nil, newErr("Spawn", KindINVAL)
	}
	if body == nil {
		return nil, newErr("Spawn", KindINVAL)
	}

	t, err := rt.newTask(name, body)
	if err != nil {
		return nil, err
	}
	t.sched.Store(sched)
	sched.refcount.Add(1)

	sched.schedq.EnqueueLocked(t)

	go rt.runTaskBody(t)

	rt.logger().Trace().Str("event", "spawn").Str("task", t.String()).Str("sched", sched.String()).Log("task spawned")

	return t, nil
}

// NewScheduler spawns a task that, instead of running body directly, acts
// as an independent scheduler: a dedicated goroutine runs its scheduling
// loop, consuming its own schedq/oodq exactly like the root. Per
// spec.md, multiple schedulers may coexist and run on separate OS
// threads; here that maps to one goroutine per scheduler.
func (rt *Runtime) NewScheduler(parent *Task, name string) (*Task, error) {
	if parent == nil {
		return nil, newErr("NewScheduler", KindINVAL)
	}
	t, err := rt.newTask(name, nil)
	if err != nil {
		return nil, err
	}
	t.sched.Store(t) // self-scheduling: a scheduler is its own sched
	t.coupledSched.Store(parent)

	go rt.schedulerLoop(t)

	rt.logger().Debug().Str("event", "new_scheduler").Str("task", t.String()).Log("scheduler spawned")

	return t, nil
}

// runTaskBody is the goroutine entry point for an ordinary (non-scheduler)
// task: it waits to be handed control the first time, runs body, then
// runs the termination protocol.
func (rt *Runtime) runTaskBody(t *Task) {
	rt.gids.bind(t)
	<-t.resumeCh
	rt.dischargeDeferred(t)
	t.state.Store(StateRunning)

	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(taskExitSignal); ok {
					return // deliberate Exit() call, not a real panic
				}
				rt.logger().Err().Str("task", t.String()).Any("panic", r).Log("task body panicked")
			}
		}()
		t.body(t)
	}()

	rt.doExit(t)
}

// Stats is a point-in-time snapshot of runtime load, useful for tests and
// operational diagnostics (SPEC_FULL.md §12).
type Stats struct {
	LiveTasks         int
	DeadlockSuspected bool
}

// Stats reports a snapshot of runtime-wide counters.
func (rt *Runtime) Stats() Stats {
	return Stats{
		LiveTasks:         rt.arena.len(),
		DeadlockSuspected: rt.DeadlockSuspected(),
	}
}

// Close logs a runtime_close event. It does not stop, terminate or unpark
// any task or scheduler, does not run the cooperative termination
// protocol, and leaves every live task's exitedCh unclosed.
func (rt *Runtime) Close() {
	rt.logger().Debug().Str("event", "runtime_close").Log("runtime closing")
}

// killPeersBestEffort is invoked by fatalInvariant just before it panics,
// so that sibling schedulers are not left waiting forever on a task that
// will never resume them. It does not attempt to unwind or join any
// goroutine; it only sets flagExit on every known task and posts a
// best-effort wakeup to it, so a SyncBlocking park doesn't hang the
// process after the panic propagates.
func (rt *Runtime) killPeersBestEffort() {
	for id := TaskID(0); int(id) < rt.arena.capacity; id++ {
		if t := rt.arena.lookup(id); t != nil {
			t.flagExit.Store(true)
			rt.wakeScheduler(t)
		}
	}
}
