package watcher

// EventType represents the type of file system event.
type EventType int

const (
	// EventAdded is emitted when a directory appears.
	EventAdded EventType = iota
	// EventRemoved is emitted when a path is gone and stays gone for the
	// settle delay. Renames away count as removals.
	EventRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents a file system event.
type Event struct {
	Type EventType
	Path string
}
