package domain

// EventType discriminates progress events emitted during a review.
type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventFinal    EventType = "final"
)

// Event is one progress notification. Exactly the fields for its type are
// populated: status carries State+Message, progress carries Percent+Message,
// error carries Message, final carries Result.
type Event struct {
	Type    EventType       `json:"type"`
	State   string          `json:"state,omitempty"`
	Message string          `json:"message,omitempty"`
	Percent int             `json:"percent,omitempty"`
	Result  *ReviewResponse `json:"result,omitempty"`
}

// EventCallback receives progress events. A nil callback is always safe to
// pass; emitters must treat it as a no-op.
type EventCallback func(Event)

// Emit invokes the callback when set.
func (cb EventCallback) Emit(e Event) {
	if cb != nil {
		cb(e)
	}
}

// Status emits a status event.
func (cb EventCallback) Status(state, message string) {
	cb.Emit(Event{Type: EventStatus, State: state, Message: message})
}

// Progress emits a progress event.
func (cb EventCallback) Progress(percent int, message string) {
	cb.Emit(Event{Type: EventProgress, Percent: percent, Message: message})
}

// Error emits an error event.
func (cb EventCallback) Error(message string) {
	cb.Emit(Event{Type: EventError, Message: message})
}

// Final emits the terminal event carrying the review result.
func (cb EventCallback) Final(result *ReviewResponse) {
	cb.Emit(Event{Type: EventFinal, Result: result})
}
