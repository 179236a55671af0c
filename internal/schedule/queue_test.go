package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()
	var order []int

	for i := 1; i <= 3; i++ {
		i := i
		require.True(t, q.Enqueue(&pending{task: func() error {
			order = append(order, i)
			return nil
		}}))
	}
	assert.Equal(t, 3, q.Len())

	for {
		p, ok := q.TryDequeue()
		if !ok {
			break
		}
		require.NoError(t, p.task())
	}

	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, q.Len())
}

func TestTaskQueue_TryDequeue_Empty(t *testing.T) {
	q := newTaskQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestTaskQueue_Close(t *testing.T) {
	q := newTaskQueue()
	q.Close()
	q.Close() // idempotent

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(&pending{task: func() error { return nil }}))

	// Wait channel is closed, so receiving does not block.
	_, open := <-q.Wait()
	assert.False(t, open)
}

func TestPending_ClaimOnce(t *testing.T) {
	p := &pending{task: func() error { return nil }}

	assert.True(t, p.claim())
	assert.False(t, p.claim(), "a task can only be claimed once")
}
