package feedback

// queue is a fixed-capacity FIFO of pending utterances. On overflow the
// oldest entry is overwritten.
// Not safe for concurrent use — caller must synchronize.
type queue struct {
	buf      []Utterance
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any utterance was dropped since last drain
}

func newQueue(capacity int) *queue {
	if capacity < 1 {
		capacity = 1
	}
	return &queue{
		buf:      make([]Utterance, capacity),
		capacity: capacity,
	}
}

// push appends u. It returns the evicted utterance when the queue was full.
func (q *queue) push(u Utterance) (Utterance, bool) {
	if q.count == q.capacity {
		q.overflow = true
		// head is already pointing at the oldest entry
		evicted := q.buf[q.head]
		q.buf[q.head] = u
		q.head = (q.head + 1) % q.capacity
		return evicted, true
	}
	q.buf[q.head] = u
	q.head = (q.head + 1) % q.capacity
	q.count++
	return Utterance{}, false
}

// pop removes and returns the oldest entry.
func (q *queue) pop() (Utterance, bool) {
	if q.count == 0 {
		return Utterance{}, false
	}
	start := (q.head - q.count + q.capacity) % q.capacity
	u := q.buf[start]
	q.buf[start] = Utterance{}
	q.count--
	if q.count == 0 {
		q.overflow = false
	}
	return u, true
}

func (q *queue) drainAll() []Utterance {
	if q.count == 0 {
		return nil
	}
	result := make([]Utterance, q.count)
	// Oldest item is at (head - count) mod capacity
	start := (q.head - q.count + q.capacity) % q.capacity
	for i := 0; i < q.count; i++ {
		result[i] = q.buf[(start+i)%q.capacity]
		q.buf[(start+i)%q.capacity] = Utterance{}
	}
	q.count = 0
	q.head = 0
	q.overflow = false
	return result
}

func (q *queue) len() int {
	return q.count
}
