package devicepool

// EventKind enumerates the pool event types broadcast on the fan-out
// channel.
type EventKind string

const (
	EventDeviceRegistered  EventKind = "device_registered"
	EventDeviceConnected   EventKind = "device_connected"
	EventDeviceDisconnected EventKind = "device_disconnected"
	EventAgentCreated      EventKind = "agent_created"
	EventAgentDestroyed    EventKind = "agent_destroyed"
	EventDeviceIdle        EventKind = "device_idle"
	EventTaskStarted       EventKind = "task_started"
	EventTaskCompleted     EventKind = "task_completed"
	EventTaskFailed        EventKind = "task_failed"
	EventError             EventKind = "error"
)

// Event is one broadcast notification.
type Event struct {
	Kind    EventKind
	Serial  string
	Message string
}

// eventChannelCapacity is the bounded fan-out channel size:
// slow subscribers may miss events, never reordered.
const eventChannelCapacity = 100

func (p *Pool) broadcast(ev Event) {
	select {
	case p.events <- ev:
	default:
		// Slow subscriber; drop rather than block the pool.
	}
}

// Subscribe returns a read-only channel of pool events. Only one
// subscriber is supported by this channel instance; callers needing
// fan-out to multiple listeners should relay from here.
func (p *Pool) Subscribe() <-chan Event {
	return p.events
}
