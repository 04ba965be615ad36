package main

// matchQueue is the ordered waiting set: strict FIFO, two popped at a time.
// It does not validate liveness; the matchmaking pass re-checks every popped
// id against the registry and either re-inserts or drops it.
type matchQueue struct {
	ids    []string
	queued map[string]bool
}

func newMatchQueue() *matchQueue {
	return &matchQueue{
		queued: make(map[string]bool),
	}
}

func (q *matchQueue) contains(id string) bool {
	return q.queued[id]
}

func (q *matchQueue) len() int {
	return len(q.ids)
}

func (q *matchQueue) enqueue(id string) error {
	if q.queued[id] {
		return errAlreadyQueued
	}

	q.ids = append(q.ids, id)
	q.queued[id] = true
	return nil
}

// requeueFront puts a still-valid id back at the head of the queue after its
// popped partner turned out to be dead, preserving longest-waiting-first
// ordering.
func (q *matchQueue) requeueFront(id string) {
	if q.queued[id] {
		return
	}

	q.ids = append([]string{id}, q.ids...)
	q.queued[id] = true
}

// popPair removes and returns the two longest-waiting ids. ok is false when
// fewer than two are queued.
func (q *matchQueue) popPair() (idA, idB string, ok bool) {
	if len(q.ids) < 2 {
		return "", "", false
	}

	idA, idB = q.ids[0], q.ids[1]
	q.ids = q.ids[2:]
	delete(q.queued, idA)
	delete(q.queued, idB)
	return idA, idB, true
}

// remove is idempotent; unknown ids are a no-op.
func (q *matchQueue) remove(id string) {
	if !q.queued[id] {
		return
	}

	dst := q.ids[:0]
	for _, queued := range q.ids {
		if queued == id {
			continue
		}
		dst = append(dst, queued)
	}
	q.ids = dst
	delete(q.queued, id)
}
