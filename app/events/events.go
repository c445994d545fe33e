package events

import "time"

type Type string

const (
	TypeRefreshDone   Type = "refresh_done"
	TypeCleanupDone   Type = "cleanup_done"
	TypeSummarizeDone Type = "summarize_done"
	TypeFilterDone    Type = "filter_done"
)

// Event is one scheduler stage outcome.
type Event struct {
	Type     Type
	Count    int
	Filtered int
	Err      error
	At       time.Time
}

const subscriberBuffer = 16

// Bus broadcasts scheduler events to whoever cares to listen. Publishing
// never blocks: a subscriber that falls behind loses events rather than
// stalling the scheduler loop.
type Bus struct {
	ch chan Event
}

func NewBus() *Bus {
	return &Bus{ch: make(chan Event, subscriberBuffer)}
}

// Subscribe returns the bus channel. Events published before the first
// receive sit in the buffer.
func (b *Bus) Subscribe() <-chan Event {
	return b.ch
}

// Publish delivers an event if there is room and drops it otherwise.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case b.ch <- e:
	default:
	}
}
