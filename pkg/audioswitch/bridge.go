package audioswitch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// EventKind identifies what an Event carries
type EventKind int

const (
	// EventActivated carries the Outcome of a successful switch
	EventActivated EventKind = iota + 1

	// EventFailed carries the Outcome of a failed switch
	EventFailed

	// EventTrayClicked is raised by the tray's status item
	EventTrayClicked

	// EventMenuSelected carries a MenuSelection
	EventMenuSelected
)

func (k EventKind) String() string {
	switch k {
	case EventActivated:
		return "Activated"
	case EventFailed:
		return "Failed"
	case EventTrayClicked:
		return "TrayClicked"
	case EventMenuSelected:
		return "MenuSelected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Outcome is the result of a single switch attempt
type Outcome struct {
	// AttemptID correlates the listener's and the feedback sink's log lines
	AttemptID   string
	ProfileName string

	// Color is the profile's tray color, only set for successful switches
	Color string

	RollbackIncomplete bool
}

// MenuAction is a tray menu entry
type MenuAction int

const (
	MenuSwitchProfile MenuAction = iota + 1
	MenuEditConfig
	MenuDumpStack
	MenuQuit
)

// MenuSelection describes a clicked tray menu entry
type MenuSelection struct {
	Action MenuAction

	// ProfileIndex is only meaningful for MenuSwitchProfile
	ProfileIndex int
}

// Event is a message crossing from the listener or tray to the feedback sink
type Event struct {
	Kind    EventKind
	Outcome Outcome
	Menu    MenuSelection
}

func outcomeEvent(profile Profile, attemptID string, err error) Event {
	if err == nil {
		return Event{
			Kind: EventActivated,
			Outcome: Outcome{
				AttemptID:   attemptID,
				ProfileName: profile.Name,
				Color:       profile.Color,
			},
		}
	}

	ev := Event{
		Kind: EventFailed,
		Outcome: Outcome{
			AttemptID:   attemptID,
			ProfileName: profile.Name,
		},
	}

	if switchErr, ok := err.(*SwitchError); ok {
		ev.Outcome.RollbackIncomplete = switchErr.RollbackIncomplete
	}

	return ev
}

// EventBridge is an unbounded FIFO queue between any number of producers and a single
// consumer. Send never blocks and never drops, so events sent before the consumer starts
// are buffered until it does. Each event is handed out exactly once
type EventBridge struct {
	logger *zap.SugaredLogger

	mu     sync.Mutex
	queue  []Event
	closed bool

	// signalled (without blocking) whenever the queue grows; closed on Close
	ready chan struct{}
}

// NewEventBridge creates an empty, open bridge
func NewEventBridge(logger *zap.SugaredLogger) *EventBridge {
	return &EventBridge{
		logger: logger.Named("bridge"),
		ready:  make(chan struct{}, 1),
	}
}

// Send enqueues an event. It's safe to call from any goroutine
func (b *EventBridge) Send(ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBridgeClosed
	}

	b.queue = append(b.queue, ev)

	select {
	case b.ready <- struct{}{}:
	default:
		// consumer already has a pending wakeup
	}

	return nil
}

// Receive blocks until the oldest pending event is available and removes it from the queue.
// After Close, pending events are still drained before ErrBridgeClosed is returned
func (b *EventBridge) Receive(ctx context.Context) (Event, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue[0] = Event{}
			b.queue = b.queue[1:]
			b.mu.Unlock()

			return ev, nil
		}

		if b.closed {
			b.mu.Unlock()
			return Event{}, ErrBridgeClosed
		}
		b.mu.Unlock()

		select {
		case <-b.ready:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Len returns the number of events waiting for the consumer
func (b *EventBridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queue)
}

// Close stops accepting new events. It's safe to call more than once
func (b *EventBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.ready)

	b.logger.Debugw("Closed event bridge", "pending", len(b.queue))
}
