// Package cotask implements a cooperative, user-level task scheduling
// runtime: tasks are run-units multiplexed onto one or more schedulers
// without preemption, using explicit context-switch primitives (swap,
// couple, decouple) instead of OS-level thread scheduling.
//
// # Architecture
//
// A [Runtime] owns a dense-id arena of [Task] values and a distinguished
// root scheduler. Every task carries its own runnable queue (schedq) and
// out-of-domain inbox (oodq, see [Task.OODQLen]), so any task can act as a
// scheduler for others via [Runtime.Couple]; [Runtime.Decouple] restores
// the prior arrangement. A task parked by [Runtime.Yield] or
// [Runtime.Sleep] is represented, in this port, by a goroutine blocked on
// a private rendezvous channel rather than by a saved CPU register file —
// see SPEC_FULL.md §1a for the full rationale. [Task.SyncMode] selects
// how a scheduler with an empty runnable queue waits for work: busy-spin,
// cooperative-yield, OS-level block, or an adaptive mix of the two.
//
// # Termination
//
// [Runtime.Exit], like a normal return from a task body, runs the
// termination protocol: if the task's scheduler still has runnable tasks
// queued, the exiting task's final teardown is handed to the next task
// that scheduler dispatches (through a single deferred-wakeup slot) and
// runs as soon as that task resumes; otherwise the teardown runs at once.
// A scheduler loop stops once its exit flag is set, its refcount is zero
// and its queues are empty.
//
// # Rendezvous
//
// [Runtime.Export] and [Runtime.Import] implement named, per-task
// publish/subscribe slots: a value exported under a name unblocks any
// task already waiting to import it, and vice versa, without the two
// tasks needing to already know about each other.
//
// # Errors
//
// Failures are reported as a [*Error] carrying one of the [Kind] values
// (PERM, INVAL, BUSY, AGAIN, DEADLK, CANCELED, NOENT, ACCES, NOMEM,
// OVERFLOW); callers should prefer errors.Is against the Err* sentinels
// over switching on Kind directly.
package cotask
