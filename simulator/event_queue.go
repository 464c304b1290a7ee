package simulator

import "container/heap"

// recordEvent is one trace record queued for replay. The sequence number
// keeps the heap stable: records with equal timestamps come out in the order
// they were pushed, which is the arrival order in their trace stream.
type recordEvent struct {
	rec   Record
	trace Trace
	seq   int
}

// EventQueue merges the records of one or more traces into a single
// timestamp-ordered stream, ties broken by push order.
type EventQueue struct {
	events eventHeap
	seq    int
}

// NewEventQueue creates an empty event queue.
func NewEventQueue() *EventQueue {
	eq := &EventQueue{events: make(eventHeap, 0)}
	heap.Init(&eq.events)
	return eq
}

// Push adds a record to the queue.
func (eq *EventQueue) Push(rec Record, trace Trace) {
	heap.Push(&eq.events, recordEvent{rec: rec, trace: trace, seq: eq.seq})
	eq.seq++
}

// Pop removes and returns the next record and its originating trace.
// ok is false when the queue is empty.
func (eq *EventQueue) Pop() (rec Record, trace Trace, ok bool) {
	if eq.IsEmpty() {
		return Record{}, nil, false
	}
	ev := heap.Pop(&eq.events).(recordEvent)
	return ev.rec, ev.trace, true
}

// Peek returns the next record without removing it.
func (eq *EventQueue) Peek() (rec Record, ok bool) {
	if eq.IsEmpty() {
		return Record{}, false
	}
	return eq.events[0].rec, true
}

// IsEmpty returns true if the queue is empty.
func (eq *EventQueue) IsEmpty() bool {
	return eq.events.Len() == 0
}

// Len returns the number of queued records.
func (eq *EventQueue) Len() int {
	return eq.events.Len()
}

// Clear removes all queued records.
func (eq *EventQueue) Clear() {
	eq.events = make(eventHeap, 0)
	heap.Init(&eq.events)
	eq.seq = 0
}

// eventHeap implements heap.Interface for recordEvent.
type eventHeap []recordEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].rec.Timestamp != h[j].rec.Timestamp {
		return h[i].rec.Timestamp < h[j].rec.Timestamp
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(recordEvent))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}
