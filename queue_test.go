package cotask

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskQueue_EnqueueDequeue_FIFO(t *testing.T) {
	q := NewTaskQueue(false)
	a := &Task{name: "a"}
	b := &Task{name: "b"}
	c := &Task{name: "c"}

	q.Enqueue(a, nil, nil)
	q.Enqueue(b, nil, nil)
	q.Enqueue(c, nil, nil)
	require.Equal(t, 3, q.Len())

	got, ok := q.Dequeue()
	require.True(t, ok)
	require.Same(t, a, got)

	got, ok = q.Dequeue()
	require.True(t, ok)
	require.Same(t, b, got)

	got, ok = q.Dequeue()
	require.True(t, ok)
	require.Same(t, c, got)

	_, ok = q.Dequeue()
	require.False(t, ok)
	require.True(t, q.IsEmpty())
}

func TestTaskQueue_Remove_Middle(t *testing.T) {
	q := NewTaskQueue(false)
	a := &Task{name: "a"}
	b := &Task{name: "b"}
	c := &Task{name: "c"}
	q.Enqueue(a, nil, nil)
	q.Enqueue(b, nil, nil)
	q.Enqueue(c, nil, nil)

	q.Remove(b)
	require.Equal(t, 2, q.Len())

	var order []string
	q.Foreach(func(t *Task) bool {
		order = append(order, t.name)
		return true
	})
	require.Equal(t, []string{"a", "c"}, order)
}

func TestTaskQueue_Foreach_StopsEarly(t *testing.T) {
	q := NewTaskQueue(false)
	q.Enqueue(&Task{name: "a"}, nil, nil)
	q.Enqueue(&Task{name: "b"}, nil, nil)
	q.Enqueue(&Task{name: "c"}, nil, nil)

	var seen []string
	q.Foreach(func(t *Task) bool {
		seen = append(seen, t.name)
		return t.name != "b"
	})
	require.Equal(t, []string{"a", "b"}, seen)
}

func TestTaskQueue_Enqueue_PanicsOnDoubleLink(t *testing.T) {
	q := NewTaskQueue(false)
	a := &Task{name: "a"}
	q.Enqueue(a, nil, nil)
	require.Panics(t, func() {
		q.Enqueue(a, nil, nil)
	})
}

func TestTaskQueue_LockedVariants(t *testing.T) {
	q := NewTaskQueue(true)
	a := &Task{name: "a"}
	q.EnqueueLocked(a)
	got, ok := q.DequeueLocked()
	require.True(t, ok)
	require.Same(t, a, got)
}

func TestTaskQueue_UnlockedQueueLockIsNoop(t *testing.T) {
	q := NewTaskQueue(false)
	// Lock/Unlock must not deadlock or panic on an unlocked queue.
	q.Lock()
	q.Unlock()
}
