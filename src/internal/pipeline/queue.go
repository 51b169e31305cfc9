// FILE: src/internal/pipeline/queue.go
package pipeline

import (
	"sync"

	"emulog/src/internal/core"
)

// queue is the bounded buffer between producers and the consumer.
// senders counts producers that obtained this queue and may still send on it;
// the queue is only closed once it has been swapped out and senders is zero.
type queue struct {
	items   chan core.LogEntry
	senders sync.WaitGroup
}

func newQueue(capacity int) *queue {
	return &queue{items: make(chan core.LogEntry, capacity)}
}

// retire closes the queue once every producer holding it has finished sending.
func (q *queue) retire() {
	go func() {
		q.senders.Wait()
		close(q.items)
	}()
}
