package mailbox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueIdempotent(t *testing.T) {
	m := New[string]()
	m.Enqueue("a")
	m.Enqueue("a")
	m.Enqueue("b")

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"a", "b"}, m.DrainAll())
	assert.Empty(t, m.DrainAll())
}

func TestEnqueueAfterDrain(t *testing.T) {
	m := New[int]()
	m.Enqueue(1)
	require.Equal(t, []int{1}, m.DrainAll())

	m.Enqueue(1)
	assert.Equal(t, []int{1}, m.DrainAll())
}

func TestConcurrentEnqueueNothingLost(t *testing.T) {
	const producers, perProducer = 8, 500

	m := New[int]()
	seen := make(map[int]bool)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				m.Enqueue(p*perProducer + i)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	drain := func() {
		for _, v := range m.DrainAll() {
			seen[v] = true
		}
	}
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			drain()
		}
	}
	drain()

	assert.Len(t, seen, producers*perProducer)
}
