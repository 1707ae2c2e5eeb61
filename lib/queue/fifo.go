package queue

// fifo is the bounded queue of slots waiting for execution.
// Every slot in it is SlotQueued and appears at most once.
type fifo struct {
	items []*slot
	cap   int
}

func newFifo(capacity int) *fifo {
	return &fifo{items: make([]*slot, 0, capacity), cap: capacity}
}

// push appends s, returns false if the queue is full
func (q *fifo) push(s *slot) bool {
	if len(q.items) >= q.cap {
		return false
	}
	q.items = append(q.items, s)
	return true
}

// peek returns the head or nil
func (q *fifo) peek() *slot {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// remove deletes s from the queue keeping the order of the others
func (q *fifo) remove(s *slot) bool {
	for i, item := range q.items {
		if item == s {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}

func (q *fifo) len() int {
	return len(q.items)
}

func (q *fifo) free() int {
	return q.cap - len(q.items)
}

func (q *fifo) empty() bool {
	return len(q.items) == 0
}
