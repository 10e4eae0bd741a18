package testutil

import "sync"

// Event is one labelled step recorded by an EventLog.
type Event struct {
	Seq   int64
	Label string
}

// EventLog records labelled events in the order they happen, across
// goroutines. Concurrency tests use it to assert that one step happened
// before another.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type EventLog struct {
	mu     sync.Mutex
	seq    int64
	events []Event
}

// NewEventLog creates an empty log. The first recorded event gets Seq 1.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Record appends an event and returns its sequence number.
func (l *EventLog) Record(label string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.events = append(l.events, Event{Seq: l.seq, Label: label})
	return l.seq
}

// Current returns the sequence number of the last event, 0 if none.
func (l *EventLog) Current() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Labels returns the recorded labels in order.
func (l *EventLog) Labels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Label
	}
	return out
}

// SeqOf returns the sequence number of the first event with label.
func (l *EventLog) SeqOf(label string) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Label == label {
			return e.Seq, true
		}
	}
	return 0, false
}

// Reset clears the log. After Reset, the next event gets Seq 1.
func (l *EventLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq = 0
	l.events = nil
}
