package events

// Channel names spoken with the simulator server.
const (
	Heartbeat      = "my event"
	Connection     = "connection"
	MyResponse     = "my response"
	RequestRecords = "floating info event"
	RecordsUpdated = "floating info response"
)

// Emitter sends a named event with a JSON-encodable payload to the server.
type Emitter interface {
	Emit(event string, payload any) error
}

// Mirror event types.
const (
	TypeSnapshot       = "snapshot"
	TypeCounterChanged = "counter_changed"
	TypeRecordsUpdated = "records_updated"
)

// Event is a local state change pushed to mirror clients.
type Event struct {
	Type    string `json:"type"`
	Counter *int   `json:"counter,omitempty"`
	Records *int   `json:"records,omitempty"`
}

// Broadcaster sends events to connected mirror clients.
// A nil Broadcaster is safe to use -- Broadcast becomes a no-op.
type Broadcaster interface {
	Broadcast(e Event)
}
