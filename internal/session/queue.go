package session

import (
	"sync"

	"github.com/notewell/miccap/internal/chunk"
)

// deliveryQueue is an unbounded FIFO between the rotation path and the
// dispatcher. Pushing never blocks, so rotation never waits on the
// consumer; popping blocks until a chunk arrives or the queue closes.
type deliveryQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []chunk.AudioChunk
	inFlight int
	closed   bool
}

func newDeliveryQueue() *deliveryQueue {
	q := &deliveryQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *deliveryQueue) push(ch chunk.AudioChunk) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, ch)
	q.cond.Broadcast()
}

// pop removes the oldest chunk, blocking while the queue is empty. The
// second return is false once the queue is closed and emptied.
func (q *deliveryQueue) pop() (chunk.AudioChunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return chunk.AudioChunk{}, false
	}

	ch := q.items[0]
	q.items = q.items[1:]
	q.inFlight++
	return ch, true
}

// markDone signals that the dispatcher finished handling the chunk it
// last popped.
func (q *deliveryQueue) markDone() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.inFlight--
	q.cond.Broadcast()
}

// drain blocks until every queued chunk has been handled.
func (q *deliveryQueue) drain() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) > 0 || q.inFlight > 0 {
		q.cond.Wait()
	}
}

func (q *deliveryQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}
