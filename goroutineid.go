package cotask

import (
	"runtime"
	"sync"
)

// getGoroutineID returns the calling goroutine's runtime id, parsed out of
// the leading "goroutine N [...]" line runtime.Stack produces. It is the
// cheapest way to identify "am I currently running as task t's goroutine"
// without threading a context.Context or *Task through every call in the
// public API (TaskSelf uses it below).
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// gidRegistry maps goroutine ids to the Task currently running on them, so
// TaskSelf can resolve "the calling task" in O(1) instead of walking the
// arena. An entry is installed once, when a task's body goroutine or a
// scheduler loop goroutine starts, and a body goroutine's entry is removed
// when its task exits (doExit). A task that calls Couple gets a second
// entry, for the scheduler loop goroutine started on its behalf.
type gidRegistry struct {
	mu sync.RWMutex
	m  map[uint64]*Task
}

func newGIDRegistry() *gidRegistry {
	return &gidRegistry{m: make(map[uint64]*Task)}
}

func (r *gidRegistry) bind(t *Task) {
	gid := getGoroutineID()
	r.mu.Lock()
	r.m[gid] = t
	r.mu.Unlock()
}

func (r *gidRegistry) unbind(gid uint64) {
	r.mu.Lock()
	delete(r.m, gid)
	r.mu.Unlock()
}

func (r *gidRegistry) lookup(gid uint64) *Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.m[gid]
}

// self resolves the calling goroutine to its Task, or nil if the caller is
// not currently running as any task's active context.
func (r *gidRegistry) self() *Task {
	return r.lookup(getGoroutineID())
}
