package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := New[string]()
	assert.Equal(t, 0, q.Len())

	q.Push("a")
	q.Push("b", "c")
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, []string{"a", "b", "c"}, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())
}

func TestQueueConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(n)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1000, q.Len())
}

func TestMailboxLatestWins(t *testing.T) {
	var m Mailbox[int]

	_, ok := m.Take()
	assert.False(t, ok)

	assert.False(t, m.Put(1))
	assert.True(t, m.Put(2))
	assert.True(t, m.Put(3))

	v, ok := m.Take()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = m.Take()
	assert.False(t, ok)
}

func TestMailboxPutAfterTake(t *testing.T) {
	var m Mailbox[string]

	m.Put("x")
	m.Take()

	assert.False(t, m.Put("y"))
	v, ok := m.Take()
	require.True(t, ok)
	assert.Equal(t, "y", v)
}
