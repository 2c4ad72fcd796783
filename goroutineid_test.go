package cotask

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetGoroutineID_StableWithinGoroutine(t *testing.T) {
	id1 := getGoroutineID()
	id2 := getGoroutineID()
	require.Equal(t, id1, id2)
}

func TestGetGoroutineID_DistinctAcrossGoroutines(t *testing.T) {
	var wg sync.WaitGroup
	ids := make(chan uint64, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			ids <- getGoroutineID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uint64]bool{}
	for id := range ids {
		seen[id] = true
	}
	require.Len(t, seen, 2)
}

func TestGIDRegistry_BindLookupUnbind(t *testing.T) {
	r := newGIDRegistry()
	task := &Task{name: "t"}

	done := make(chan uint64)
	go func() {
		r.bind(task)
		done <- getGoroutineID()
	}()
	gid := <-done

	require.Same(t, task, r.lookup(gid))
	r.unbind(gid)
	require.Nil(t, r.lookup(gid))
}

func TestGIDRegistry_SelfResolvesCallingGoroutine(t *testing.T) {
	r := newGIDRegistry()
	task := &Task{name: "self"}

	done := make(chan *Task, 1)
	go func() {
		r.bind(task)
		done <- r.self()
	}()
	require.Same(t, task, <-done)
}
