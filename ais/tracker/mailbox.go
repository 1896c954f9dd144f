package tracker

import (
	"sync"

	"aistrack/ais/log"
	"aistrack/gogroup"
)

// mailbox is the unbounded queue in front of one subscriber. Pushing never
// blocks, so the tracker can post under its lock.
type mailbox struct {
	id  string
	sub Subscriber

	mu     sync.Mutex
	queue  []Event
	closed bool
	ready  chan struct{}
}

func newMailbox(id string, sub Subscriber) *mailbox {
	return &mailbox{
		id:    id,
		sub:   sub,
		ready: make(chan struct{}, 1),
	}
}

// push appends e. Returns false when the mailbox is closed.
func (m *mailbox) push(e Event) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, e)
	m.mu.Unlock()
	m.signal()
	return true
}

// close stops accepting events. Queued events are still delivered.
func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

func (m *mailbox) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() ([]Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := m.queue
	m.queue = nil
	return batch, m.closed
}

// run delivers events in order until the mailbox is closed and empty, or
// the group is canceled.
func (m *mailbox) run(g gogroup.GoGroup) error {
	for {
		batch, closed := m.take()
		for _, e := range batch {
			if g.Canceled() {
				return nil
			}
			m.deliver(e)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return nil
		}
		select {
		case <-m.ready:
		case <-g.Done():
			return nil
		}
	}
}

func (m *mailbox) deliver(e Event) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("Subscriber %v panicked on %v: %v", m.id, e.Name(), p)
		}
	}()
	m.sub.OnEvent(e)
}
