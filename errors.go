package cotask

import (
	"errors"
	"fmt"
)

// Kind classifies the domain-level errors the public API can return.
//
// See spec.md §7. LIBEXEC/LIBBAD/UNATCH/NOEXEC are retained as named
// constants for API completeness even though program loading is out of
// scope here (§1) — no operation in this package ever returns them.
type Kind uint8

const (
	// KindPERM means the operation was issued from a non-task, or violates
	// a task/scheduler role requirement.
	KindPERM Kind = iota + 1
	// KindINVAL means bad arguments, an unknown id, or invalid sync flags.
	KindINVAL
	// KindBUSY means a name is already exported, or a coupling target is exiting.
	KindBUSY
	// KindAGAIN means a non-blocking import found no value.
	KindAGAIN
	// KindDEADLK means a self-import of an undefined name.
	KindDEADLK
	// KindCANCELED means a waiter was resumed by finalize (export table close).
	KindCANCELED
	// KindINTR means an actual user-level switch happened (yield's
	// EINTR-equivalent, spec.md §4.4) — not itself an error condition.
	KindINTR
	// KindNOENT means dequeue from an empty queue.
	KindNOENT
	// KindACCES means the target task is not alive or has no export table.
	KindACCES
	// KindNOMEM means an allocation failure. A full arena is reported as
	// KindOVERFLOW, not KindNOMEM.
	KindNOMEM
	// KindOVERFLOW means too many tasks are live at once.
	KindOVERFLOW
	// KindLIBEXEC, KindLIBBAD, KindUNATCH, KindNOEXEC are program-load
	// validation kinds from the external loader. Never returned by this
	// package; out of scope per spec.md §1.
	KindLIBEXEC
	KindLIBBAD
	KindUNATCH
	KindNOEXEC
)

func (k Kind) String() string {
	switch k {
	case KindPERM:
		return "PERM"
	case KindINVAL:
		return "INVAL"
	case KindBUSY:
		return "BUSY"
	case KindAGAIN:
		return "AGAIN"
	case KindDEADLK:
		return "DEADLK"
	case KindCANCELED:
		return "CANCELED"
	case KindINTR:
		return "INTR"
	case KindNOENT:
		return "NOENT"
	case KindACCES:
		return "ACCES"
	case KindNOMEM:
		return "NOMEM"
	case KindOVERFLOW:
		return "OVERFLOW"
	case KindLIBEXEC:
		return "LIBEXEC"
	case KindLIBBAD:
		return "LIBBAD"
	case KindUNATCH:
		return "UNATCH"
	case KindNOEXEC:
		return "NOEXEC"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error type returned by the public API.
//
// Callers match on Kind via [errors.Is] against the sentinel values below
// (e.g. errors.Is(err, ErrAgain)), or by inspecting Kind directly.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cotask: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("cotask: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches by Kind, ignoring Op and Err, so errors.Is(err, ErrBusy) works
// regardless of which operation produced the error.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func newErr(op string, kind Kind) error {
	return &Error{Op: op, Kind: kind}
}

func wrapErr(op string, kind Kind, cause error) error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// Sentinel values for errors.Is matching, one per Kind.
var (
	ErrPerm     error = &Error{Kind: KindPERM}
	ErrInval    error = &Error{Kind: KindINVAL}
	ErrBusy     error = &Error{Kind: KindBUSY}
	ErrAgain    error = &Error{Kind: KindAGAIN}
	ErrDeadlk   error = &Error{Kind: KindDEADLK}
	ErrCanceled error = &Error{Kind: KindCANCELED}
	ErrIntr     error = &Error{Kind: KindINTR}
	ErrNoEnt    error = &Error{Kind: KindNOENT}
	ErrAcces    error = &Error{Kind: KindACCES}
	ErrNoMem    error = &Error{Kind: KindNOMEM}
	ErrOverflow error = &Error{Kind: KindOVERFLOW}
)

// fatalInvariant reports a scheduler-internal invariant violation.
//
// Per spec.md §7, these are not recoverable: the runtime best-effort kills
// peer tasks before aborting. Never called for caller-supplied bad
// arguments — those return a normal *Error instead.
func (rt *Runtime) fatalInvariant(op string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	rt.killPeersBestEffort()
	panic(fmt.Sprintf("cotask: fatal invariant violation in %s: %s", op, msg))
}
