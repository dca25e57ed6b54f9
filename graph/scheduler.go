package graph

// readyQueue holds the node indices that are ready to run within the current
// turn, in FIFO order.
//
// The queue is deliberately not persisted. A turn always drains it to empty
// (or abandons it on a fault) before returning to the host, and the next turn
// starts from the node whose action just completed.
type readyQueue struct {
	items  []int
	queued map[int]bool
}

func newReadyQueue() *readyQueue {
	return &readyQueue{queued: make(map[int]bool)}
}

// push appends i unless it is already waiting. A node reached twice in the
// same turn, typically a Merge, runs once.
func (q *readyQueue) push(i int) bool {
	if q.queued[i] {
		return false
	}
	q.queued[i] = true
	q.items = append(q.items, i)
	return true
}

func (q *readyQueue) pop() (int, bool) {
	if len(q.items) == 0 {
		return -1, false
	}
	i := q.items[0]
	q.items = q.items[1:]
	delete(q.queued, i)
	return i, true
}

func (q *readyQueue) contains(i int) bool {
	return q.queued[i]
}

func (q *readyQueue) len() int {
	return len(q.items)
}

func (q *readyQueue) clear() {
	q.items = nil
	q.queued = make(map[int]bool)
}
