package orchestrator

// Event describes an orchestrator lifecycle event.
// Minimal and stable: name + variant and optional fields via key/values.
type Event struct {
	Name    string
	Variant string
	Fields  map[string]any
}

// Event names published by the orchestrator.
const (
	EventPollOK            = "poll_ok"
	EventPollFailed        = "poll_failed"
	EventCommandDispatched = "command_dispatched"
	EventCommandFailed     = "command_failed"
	EventOverlayResolved   = "overlay_resolved"
	EventModelSelected     = "model_selected"
	EventSelectionCleared  = "selection_cleared"
)

// EventPublisher receives events from the orchestrator. Implementations
// should be lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
