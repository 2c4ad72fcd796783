package cotask

import "sync/atomic"

// TaskState is one of the three states a task occupies (spec.md §3).
type TaskState uint32

const (
	// StateRunning: the task is the one currently executing on its scheduler.
	StateRunning TaskState = iota
	// StateSuspended: the task is parked in some queue, OOD inbox, or sleep_sem.
	StateSuspended
	// StateExiting: transient state while the exit/termination protocol runs.
	StateExiting
)

func (s TaskState) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateSuspended:
		return "SUSPENDED"
	case StateExiting:
		return "EXITING"
	default:
		return "UNKNOWN"
	}
}

// taskState is a lock-free state cell, mirroring the CAS discipline used
// throughout the scheduler core: transitions are either a validated CAS
// (TryTransition) or an unconditional Store for states with only one
// possible predecessor in practice.
type taskState struct {
	v atomic.Uint32
}

func newTaskState(initial TaskState) *taskState {
	s := &taskState{}
	s.v.Store(uint32(initial))
	return s
}

func (s *taskState) Load() TaskState { return TaskState(s.v.Load()) }

func (s *taskState) Store(st TaskState) { s.v.Store(uint32(st)) }

func (s *taskState) TryTransition(from, to TaskState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// SyncMode selects the parking discipline do_sleep uses when a scheduler's
// schedq and oodq are both empty (spec.md §4.5).
type SyncMode uint8

const (
	// SyncAuto is the default: adaptive YIELD-then-BLOCKING.
	SyncAuto SyncMode = iota
	// SyncBusyWait re-checks the scheduler's OOD inbox and runnable queue in
	// a tight loop, with no CPU relaxation or yield between checks.
	SyncBusyWait
	// SyncYield calls runtime.Gosched between checks of the scheduler's OOD
	// inbox and runnable queue; there is no bounded run of relax-reads.
	SyncYield
	// SyncBlocking parks on a real OS wait primitive (sleep_sem).
	SyncBlocking
)

func (m SyncMode) String() string {
	switch m {
	case SyncAuto:
		return "AUTO"
	case SyncBusyWait:
		return "BUSYWAIT"
	case SyncYield:
		return "YIELD"
	case SyncBlocking:
		return "BLOCKING"
	default:
		return "UNKNOWN"
	}
}

func (m SyncMode) valid() bool {
	switch m {
	case SyncAuto, SyncBusyWait, SyncYield, SyncBlocking:
		return true
	default:
		return false
	}
}
