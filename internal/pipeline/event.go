package pipeline

// EventType identifies what an Event reports.
type EventType string

const (
	EventState     EventType = "State"
	EventProgress  EventType = "Progress"
	EventSucceeded EventType = "Succeeded"
	EventFailed    EventType = "Failed"
	EventAborted   EventType = "Aborted"
)

// Event is a state change, a progress update or the terminal outcome of a
// run. Every run emits exactly one of EventSucceeded, EventFailed or
// EventAborted, and nothing after it.
type Event struct {
	Type EventType

	// EventState
	From State
	To   State

	// EventProgress
	Progress *Progress

	// EventFailed
	Reason string
}

// Progress reports the active batch in bytes. Total may grow while the
// batch discovers response sizes.
type Progress struct {
	Completed int64
	Total     int64
}

// IsTerminal reports whether the event ends the run.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case EventSucceeded, EventFailed, EventAborted:
		return true
	default:
		return false
	}
}

// Listener receives events on the run's control goroutine, in order.
// It must not block for long and must not call back into the pipeline
// except for Abort.
type Listener func(Event)
