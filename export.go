package cotask

import "sync"

// importOutcome is the value written into a waiting task's single wait
// slot (task.go importOutcome) by whichever call resumes it out of a
// named-export wait queue, and read back as soon as it resumes.
type importOutcome struct {
	val any
	err error
}

// exportEntry is one named bucket entry within a task's export table
// (spec.md §4.7). It is either Queried — installed by the first importer
// that found no value, with one or two wait queues for blocked
// importers — or Published, holding a value. A name may be Published at
// most once per task lifetime: re-exporting an already-published name is
// an error, not an overwrite.
type exportEntry struct {
	published bool
	value     any

	// ownerQueue holds the single importer that first installed this
	// queried entry (spec.md's owner_queue); othersQueue holds every
	// subsequent blocking importer that found the entry already queried
	// (others_queue). Both are nil until first needed.
	ownerQueue  *TaskQueue
	othersQueue *TaskQueue
}

// exportTable is the per-task hash table of named buckets backing Export
// and Import. A Go map under a single mutex stands in for the spec's
// open-addressed bucket array: the rendezvous traffic through one task's
// table is low enough that bucket-level striping would be premature.
type exportTable struct {
	rt *Runtime

	mu      sync.Mutex
	entries map[string]*exportEntry
	closed  bool
}

func newExportTable(rt *Runtime) *exportTable {
	return &exportTable{rt: rt, entries: make(map[string]*exportEntry)}
}

// drainTaskQueue pops every task out of q (if any), for use while still
// holding the bucket lock (spec.md §4.7 invariants: a queried entry's
// queues are only touched under that lock).
func drainTaskQueue(q *TaskQueue) []*Task {
	if q == nil {
		return nil
	}
	var out []*Task
	for {
		t, ok := q.Dequeue()
		if !ok {
			return out
		}
		out = append(out, t)
	}
}

// resumeImporter fills w's wait slot and resumes it. w is always
// SUSPENDED (it suspended itself onto the queue being drained), so Resume
// cannot fail here except via a genuine bug; the caller is always a task
// itself (Export/closeAll's own caller), satisfying Resume's PERM check.
func (et *exportTable) resumeImporter(w *Task, val any, err error) {
	w.importOutcome.Store(&importOutcome{val: val, err: err})
	_ = et.rt.Resume(w, nil)
}

// export publishes value under name. If a queried entry already existed,
// every importer parked on its owner/others queues is resumed with the
// newly published value (spec.md §4.7 export). Returns ErrBusy if name
// was already published.
func (et *exportTable) export(name string, value any) error {
	et.mu.Lock()
	if et.closed {
		et.mu.Unlock()
		return newErr("Export", KindCANCELED)
	}
	existing, existed := et.entries[name]
	if existed && existing.published {
		et.mu.Unlock()
		return newErr("Export", KindBUSY)
	}

	var owners, others []*Task
	if existed {
		owners = drainTaskQueue(existing.ownerQueue)
		others = drainTaskQueue(existing.othersQueue)
	}
	et.entries[name] = &exportEntry{published: true, value: value}
	et.mu.Unlock()

	for _, w := range owners {
		et.resumeImporter(w, value, nil)
	}
	for _, w := range others {
		et.resumeImporter(w, value, nil)
	}
	return nil
}

// importWait implements spec.md §4.7 import(owner_id, name, blocking?).
// t is the importing task; et is owner's own export table (owner may be
// t itself, for a self-import).
func (et *exportTable) importWait(t, owner *Task, name string, blocking bool) (any, error) {
	et.mu.Lock()
	if et.closed {
		et.mu.Unlock()
		return nil, newErr("Import", KindCANCELED)
	}

	e, existed := et.entries[name]
	if existed && e.published {
		v := e.value
		et.mu.Unlock()
		return v, nil
	}

	if existed {
		// Already queried by an earlier importer: join othersQueue.
		if !blocking {
			et.mu.Unlock()
			return nil, newErr("Import", KindAGAIN)
		}
		if e.othersQueue == nil {
			e.othersQueue = NewTaskQueue(false)
		}
		et.rt.suspendAndEnqueue(t, e.othersQueue, false, func(any) { et.mu.Unlock() }, nil)
		return et.resumeOutcome(t)
	}

	// No entry at all yet.
	if owner == t {
		// Blocking would wait on the caller's own future export of this
		// exact name, which can never happen while it is itself blocked.
		et.mu.Unlock()
		return nil, newErr("Import", KindDEADLK)
	}
	if !blocking {
		et.mu.Unlock()
		return nil, newErr("Import", KindAGAIN)
	}

	et.entries[name] = &exportEntry{ownerQueue: NewTaskQueue(false)}
	et.rt.suspendAndEnqueue(t, et.entries[name].ownerQueue, false, func(any) { et.mu.Unlock() }, nil)
	return et.resumeOutcome(t)
}

// resumeOutcome reads back t's single wait slot, filled by whoever
// resumed t out of a named-export wait queue.
func (et *exportTable) resumeOutcome(t *Task) (any, error) {
	outcome := t.importOutcome.Swap(nil)
	if outcome == nil {
		return nil, newErr("Import", KindCANCELED)
	}
	return outcome.val, outcome.err
}

// closeAll cancels every outstanding Import wait slot, called once by
// terminateTask (sched.go) so a task that exits without ever publishing a
// queried name doesn't strand its waiters forever.
func (et *exportTable) closeAll() {
	et.mu.Lock()
	if et.closed {
		et.mu.Unlock()
		return
	}
	et.closed = true
	var waiters []*Task
	for _, e := range et.entries {
		if e.published {
			continue
		}
		waiters = append(waiters, drainTaskQueue(e.ownerQueue)...)
		waiters = append(waiters, drainTaskQueue(e.othersQueue)...)
	}
	et.mu.Unlock()

	for _, w := range waiters {
		et.resumeImporter(w, nil, newErr("Import", KindCANCELED))
	}
}

// Export publishes value under name in the calling task's own export
// table. It is an error to Export the same name twice from the same task.
// Export never blocks the publisher (spec.md §5).
func (rt *Runtime) Export(name string, value any) error {
	t, err := rt.mustSelf("Export")
	if err != nil {
		return err
	}
	return t.exptab.export(name, value)
}

// Import returns the value owner has published under name.
//
// If blocking is false, Import returns immediately: ErrAgain if no value
// is available yet.
//
// If blocking is true, Import is a cooperative suspension point
// (spec.md §5): it suspends the calling task until owner exports name or
// exits (ErrCanceled) — except a self-import of a name owner has not
// published or queried at all returns ErrDeadlk immediately, since
// blocking would mean waiting on the caller's own future export.
func (rt *Runtime) Import(owner TaskID, name string, blocking bool) (any, error) {
	t, err := rt.mustSelf("Import")
	if err != nil {
		return nil, err
	}
	ownerTask, err := rt.TaskByID(owner)
	if err != nil {
		return nil, err
	}
	return ownerTask.exptab.importWait(t, ownerTask, name, blocking)
}
