package watch

import "github.com/tailored-agentic-units/propwatch/observability"

// Watcher event types.
const (
	EventCreate      observability.EventType = "watch.create"
	EventSubscribe   observability.EventType = "watch.subscribe"
	EventUnsubscribe observability.EventType = "watch.unsubscribe"
	EventObserve     observability.EventType = "watch.observe"
	EventDispatch    observability.EventType = "watch.dispatch"
	EventForward     observability.EventType = "watch.forward"
	EventClose       observability.EventType = "watch.close"
)
