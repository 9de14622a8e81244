package monitor

import "time"

// Event types reported by the gateway.
const (
	EventTask   = "TASK"
	EventResult = "RESULT"
	EventRead   = "READ"
)

// Event is one line of activity shown by a Monitor.
type Event struct {
	Timestamp time.Time
	Type      string // EventTask, EventResult or EventRead
	ChannelID string
	Username  string
	RequestID string
	Status    string // envelope status, results only
	Content   string
}

// Monitor observes every task flowing through the gateway.
type Monitor interface {
	Start() error
	Stop() error
	OnEvent(ev Event)
}
