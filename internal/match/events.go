package match

// Event is a tagged, wire-shaped game event produced by a tick. The
// gateway merges Data into the outbound JSON envelope alongside "type",
// "roomCode", and "matchId" (spec.md §6.1).
type Event struct {
	Type string
	Data map[string]interface{}
}

func newEvent(eventType string, data map[string]interface{}) Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Event{Type: eventType, Data: data}
}
