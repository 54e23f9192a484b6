package mqtt

import "sync"

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventMessage is an incoming publish on a topic subscribed via SubscribeEvents.
	EventMessage EventKind = iota

	// EventConnected is emitted on the initial connection and every reconnect.
	EventConnected

	// EventConnectionLost is emitted when the broker connection drops.
	// Err carries the reason. The client reconnects on its own.
	EventConnectionLost
)

// String returns a readable name for logging.
func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventConnected:
		return "connected"
	case EventConnectionLost:
		return "connection_lost"
	default:
		return "unknown"
	}
}

// Event is one item of the client's incoming event stream.
type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
	Err     error
}

// Events returns the ordered stream of incoming events. Messages arrive in
// the order paho delivered them. The channel is closed by Close.
//
// Only topics subscribed with SubscribeEvents produce EventMessage items.
func (c *Client) Events() <-chan Event {
	return c.events.out
}

// SubscribeEvents subscribes to topic and routes its messages into the
// Events stream instead of a callback.
func (c *Client) SubscribeEvents(topic string, qos byte) error {
	return c.Subscribe(topic, qos, func(t string, payload []byte) error {
		c.events.push(Event{Kind: EventMessage, Topic: t, Payload: payload})
		return nil
	})
}

// eventQueue is an unbounded FIFO between paho's callbacks and the Events
// channel. push never blocks, so a slow consumer cannot stall paho's
// router goroutine (and with it acknowledgements and keep-alives).
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
	out    chan Event
	done   chan struct{}
	once   sync.Once
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// push appends ev. Items pushed after close are dropped.
func (q *eventQueue) push(ev Event) {
	select {
	case <-q.done:
		return
	default:
	}

	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// close stops delivery and closes the output channel. Queued items that
// were not yet consumed are discarded.
func (q *eventQueue) close() {
	q.once.Do(func() {
		close(q.done)
	})
}

// run forwards queued items to out until close.
func (q *eventQueue) run() {
	defer close(q.out)

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-q.notify:
				continue
			case <-q.done:
				return
			}
		}
		ev := q.items[0]
		q.items[0] = Event{}
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- ev:
		case <-q.done:
			return
		}
	}
}
