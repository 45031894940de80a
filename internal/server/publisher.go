package server

import (
	"encoding/json"
	"sync"

	"github.com/lawnchairsociety/towermaze/internal/maze"
	"github.com/lawnchairsociety/towermaze/internal/placement"
)

// Message types sent to subscribers.
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

// Envelope is the wire frame for every websocket message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Publication is one generated maze as seen by consumers.
type Publication struct {
	ID       int64           `json:"id,omitempty"`
	Snapshot maze.Snapshot   `json:"snapshot"`
	Plan     *placement.Plan `json:"plan,omitempty"`
}

// subscriberBuffer is the number of frames queued per subscriber before it
// is considered too slow and dropped.
const subscriberBuffer = 8

// Publisher holds the latest publication and fans it out to subscribers.
// The latest frame is encoded once and replaced whole, so readers never see
// a partially updated maze.
type Publisher struct {
	mu     sync.RWMutex
	latest *Publication
	frame  []byte

	subMu       sync.Mutex
	subscribers map[*subscriber]struct{}
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{subscribers: make(map[*subscriber]struct{})}
}

// Publish replaces the latest publication and sends it to every subscriber.
// Subscribers whose queues are full are disconnected.
func (p *Publisher) Publish(pub Publication) error {
	frame, err := encodeEnvelope(TypeSnapshot, pub)
	if err != nil {
		return err
	}

	// subMu is held across the swap so a concurrent subscribe sees either the
	// old frame plus the fan-out, or the new frame and no fan-out.
	p.subMu.Lock()
	defer p.subMu.Unlock()

	p.mu.Lock()
	p.latest = &pub
	p.frame = frame
	p.mu.Unlock()

	for sub := range p.subscribers {
		select {
		case sub.send <- frame:
		default:
			delete(p.subscribers, sub)
			close(sub.send)
		}
	}
	return nil
}

// Latest returns the most recent publication.
func (p *Publisher) Latest() (Publication, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return Publication{}, false
	}
	return *p.latest, true
}

// latestFrame returns the encoded latest publication, or nil.
func (p *Publisher) latestFrame() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame
}

// SubscriberCount returns the number of connected subscribers.
func (p *Publisher) SubscriberCount() int {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	return len(p.subscribers)
}

// subscribe registers sub and queues the latest frame for it.
func (p *Publisher) subscribe(sub *subscriber) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.subscribers[sub] = struct{}{}
	if frame := p.latestFrame(); frame != nil {
		sub.send <- frame
	}
}

// unsubscribe removes sub and closes its queue if it is still registered.
func (p *Publisher) unsubscribe(sub *subscriber) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if _, ok := p.subscribers[sub]; ok {
		delete(p.subscribers, sub)
		close(sub.send)
	}
}

// deliver queues a frame for one subscriber without blocking.
func (p *Publisher) deliver(sub *subscriber, frame []byte) bool {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if _, ok := p.subscribers[sub]; !ok {
		return false
	}
	select {
	case sub.send <- frame:
		return true
	default:
		return false
	}
}

// closeAll disconnects every subscriber.
func (p *Publisher) closeAll() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for sub := range p.subscribers {
		delete(p.subscribers, sub)
		close(sub.send)
	}
}

func encodeEnvelope(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: data})
}
