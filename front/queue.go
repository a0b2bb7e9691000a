package front

// BufferedQueue is a bounded instruction-queue model implementing the
// downstream queue contract: it accepts one bundle per tick while it has
// room, consumes every valid slot it accepts, and signals replay when it
// is full.
type BufferedQueue struct {
	bundles  []Bundle
	capacity int

	// Pushes and Replays count hand-off attempts.
	Pushes  uint64
	Replays uint64
}

// NewBufferedQueue creates a queue holding up to capacity bundles.
func NewBufferedQueue(capacity int) *BufferedQueue {
	if capacity <= 0 {
		capacity = 8
	}
	return &BufferedQueue{capacity: capacity}
}

// Ready reports whether the queue can accept a bundle this tick.
func (q *BufferedQueue) Ready() bool {
	return len(q.bundles) < q.capacity
}

// Push hands a bundle to the queue. A full queue bounces the bundle with
// a replay; an accepted bundle has all its valid slots consumed.
func (q *BufferedQueue) Push(b Bundle) PushResult {
	q.Pushes++
	if len(q.bundles) >= q.capacity {
		q.Replays++
		return PushResult{Replay: true}
	}

	q.bundles = append(q.bundles, b)
	consumed := make([]bool, len(b.Slots))
	for i, slot := range b.Slots {
		consumed[i] = slot.Valid
	}
	return PushResult{Accepted: true, Consumed: consumed}
}

// Pop removes and returns the oldest buffered bundle.
func (q *BufferedQueue) Pop() (Bundle, bool) {
	if len(q.bundles) == 0 {
		return Bundle{}, false
	}
	b := q.bundles[0]
	q.bundles = q.bundles[1:]
	return b, true
}

// Len returns the number of buffered bundles.
func (q *BufferedQueue) Len() int {
	return len(q.bundles)
}

// Reset empties the queue.
func (q *BufferedQueue) Reset() {
	q.bundles = nil
	q.Pushes = 0
	q.Replays = 0
}
