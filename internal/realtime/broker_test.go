package realtime

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMemoryBrokerPublishSubscribe(t *testing.T) {
	b := NewMemoryBroker()
	ch := b.Subscribe(VehiclesChannel)

	evt := ChangeEvent{Type: EventInsert, Table: "vehicles", New: json.RawMessage(`{"id":"v1"}`)}
	b.Publish(VehiclesChannel, evt)

	select {
	case got := <-ch:
		if got.Type != EventInsert || got.Table != "vehicles" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(VehiclesChannel, ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestMemoryBrokerUnsubscribeRemovesChannel(t *testing.T) {
	b := NewMemoryBroker()
	ch := b.Subscribe(VehiclesChannel)
	b.Unsubscribe(VehiclesChannel, ch)

	b.mu.Lock()
	_, present := b.subs[VehiclesChannel]
	b.mu.Unlock()
	if present {
		t.Fatal("empty channel set should be dropped")
	}

	// a second unsubscribe and a publish into the empty channel are no-ops
	b.Unsubscribe(VehiclesChannel, ch)
	b.Publish(VehiclesChannel, ChangeEvent{Type: EventUpdate, Table: "vehicles"})
}

func TestMemoryBrokerSlowSubscriberDrops(t *testing.T) {
	b := NewMemoryBroker()
	ch := b.Subscribe(VehiclesChannel)
	for i := 0; i < 20; i++ {
		b.Publish(VehiclesChannel, ChangeEvent{Type: EventUpdate, Table: "vehicles"})
	}
	if n := len(ch); n != cap(ch) {
		t.Fatalf("expected a full buffer of %d, got %d", cap(ch), n)
	}
}

func TestMemoryBrokerChannelsAreIndependent(t *testing.T) {
	b := NewMemoryBroker()
	veh := b.Subscribe(VehiclesChannel)
	other := b.Subscribe("public:drivers")
	b.Publish("public:drivers", ChangeEvent{Type: EventDelete, Table: "drivers"})

	select {
	case got := <-other:
		if got.Table != "drivers" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	if len(veh) != 0 {
		t.Fatal("vehicles subscriber must not see driver events")
	}
}
