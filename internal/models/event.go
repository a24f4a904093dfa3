package models

import "time"

// EventType classifies a change notification from the discovery manager.
type EventType int

const (
	NeighborAdded EventType = iota
	NeighborUpdated
	NeighborRemoved
	CaptureError
)

func (t EventType) String() string {
	switch t {
	case NeighborAdded:
		return "neighbor-added"
	case NeighborUpdated:
		return "neighbor-updated"
	case NeighborRemoved:
		return "neighbor-removed"
	case CaptureError:
		return "capture-error"
	default:
		return "unknown"
	}
}

// Event is an immutable change notification. Record is a deep copy for
// added/updated events and nil otherwise. For removals Interface and DeviceID
// identify the evicted row; for capture errors Err carries the condition.
// Ordering is causal per interface only.
type Event struct {
	Type      EventType
	Time      time.Time
	Interface string
	DeviceID  string
	Record    *NeighborRecord
	Err       error
}
