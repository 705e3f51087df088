package upscale

import (
	"sync"
)

// State is a stage of the conversion state machine.
type State int

const (
	StateIdle State = iota
	StateDecoding
	StateResampling
	StateEncoding
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecoding:
		return "decoding"
	case StateResampling:
		return "resampling"
	case StateEncoding:
		return "encoding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Event is one progress message. Current and Total count frames when the
// event refers to a frame and are zero otherwise.
type Event struct {
	Stage   State
	Message string
	Current int
	Total   int

	// Terminal marks the final success or error summary of a run.
	Terminal bool
	Err      error
}

// Reporter receives progress events synchronously, in order.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// Recorder is a Reporter that keeps every event for later replay.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Messages returns the recorded messages in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]string, len(r.events))
	for i, e := range r.events {
		msgs[i] = e.Message
	}
	return msgs
}

// Replay sends the recorded events to dst in order.
func (r *Recorder) Replay(dst Reporter) {
	for _, e := range r.Events() {
		dst.Report(e)
	}
}
