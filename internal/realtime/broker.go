// Package realtime distributes change events for backend tables to
// in-process subscribers. Events flow one way: a push channel or a
// gateway hook publishes, listeners classify and surface notifications.
package realtime

import (
	"encoding/json"
	"sync"
)

// ChangeEvent mirrors one row-level change on a backend table.
type ChangeEvent struct {
	Type  string          `json:"eventType"` // INSERT, UPDATE or DELETE
	Table string          `json:"table"`
	New   json.RawMessage `json:"new,omitempty"`
}

// Broker fans change events out to channel subscribers.
type Broker interface {
	Subscribe(channel string) chan ChangeEvent
	Unsubscribe(channel string, ch chan ChangeEvent)
	Publish(channel string, evt ChangeEvent)
}

// MemoryBroker is the in-process Broker. Slow subscribers drop events
// rather than block the publisher.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan ChangeEvent]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: map[string]map[chan ChangeEvent]struct{}{}}
}

func (b *MemoryBroker) Subscribe(channel string) chan ChangeEvent {
	ch := make(chan ChangeEvent, 8)
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = map[chan ChangeEvent]struct{}{}
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *MemoryBroker) Unsubscribe(channel string, ch chan ChangeEvent) {
	b.mu.Lock()
	if m := b.subs[channel]; m != nil {
		if _, ok := m[ch]; ok {
			delete(m, ch)
			close(ch)
		}
		if len(m) == 0 {
			delete(b.subs, channel)
		}
	}
	b.mu.Unlock()
}

func (b *MemoryBroker) Publish(channel string, evt ChangeEvent) {
	b.mu.Lock()
	for ch := range b.subs[channel] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
