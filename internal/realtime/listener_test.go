package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"fleetsync/internal/metrics"
	"fleetsync/internal/model"
	"fleetsync/internal/remote"
)

type recordingNotifier struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	r.seen = append(r.seen, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) snapshot() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

func (r *recordingNotifier) waitFor(t *testing.T, n int) []Notification {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d notifications, have %d", n, len(r.snapshot()))
	return nil
}

func TestListenerClassifiesEvents(t *testing.T) {
	b := NewMemoryBroker()
	rec := &recordingNotifier{}
	l := NewListener(b, rec, nil)
	l.Start()
	defer l.Close()

	b.Publish(VehiclesChannel, ChangeEvent{Type: EventInsert, Table: "vehicles"})
	b.Publish(VehiclesChannel, ChangeEvent{Type: EventUpdate, Table: "vehicles"})
	b.Publish(VehiclesChannel, ChangeEvent{Type: EventDelete, Table: "vehicles"})

	got := rec.waitFor(t, 3)
	want := []Notification{
		{Kind: "success", Message: "Nuevo vehículo añadido"},
		{Kind: "info", Message: "Vehículo actualizado"},
		{Kind: "error", Message: "Vehículo eliminado"},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notification %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestListenerDropsUnknownTypes(t *testing.T) {
	b := NewMemoryBroker()
	rec := &recordingNotifier{}
	l := NewListener(b, rec, nil)
	l.Start()
	defer l.Close()

	unknownBefore := testutil.ToFloat64(metrics.RealtimeEvents.WithLabelValues("unknown"))
	b.Publish(VehiclesChannel, ChangeEvent{Type: "TRUNCATE", Table: "vehicles"})
	b.Publish(VehiclesChannel, ChangeEvent{Type: "garbage-from-the-wire", Table: "vehicles"})
	b.Publish(VehiclesChannel, ChangeEvent{Type: EventInsert, Table: "vehicles"})

	got := rec.waitFor(t, 1)
	if len(got) != 1 || got[0].Kind != "success" {
		t.Fatalf("unexpected notifications: %+v", got)
	}
	// raw wire types never become label values; both land under "unknown"
	if d := testutil.ToFloat64(metrics.RealtimeEvents.WithLabelValues("unknown")) - unknownBefore; d != 2 {
		t.Fatalf("unknown counter delta = %v, want 2", d)
	}
}

func TestListenerToleratesDuplicates(t *testing.T) {
	b := NewMemoryBroker()
	rec := &recordingNotifier{}
	l := NewListener(b, rec, nil)
	l.Start()
	defer l.Close()

	evt := ChangeEvent{Type: EventUpdate, Table: "vehicles"}
	b.Publish(VehiclesChannel, evt)
	b.Publish(VehiclesChannel, evt)

	got := rec.waitFor(t, 2)
	if got[0] != got[1] {
		t.Fatalf("duplicates must classify identically: %+v vs %+v", got[0], got[1])
	}
}

func TestListenerDoesNotRefetch(t *testing.T) {
	gw := remote.NewMemory()
	b := NewMemoryBroker()
	// wire gateway changes into the broker the way the composition root does
	gw.OnVehicleChange = func(eventType string, v model.Vehicle) {
		b.Publish(VehiclesChannel, ChangeEvent{Type: eventType, Table: "vehicles"})
	}

	rec := &recordingNotifier{}
	l := NewListener(b, rec, nil)
	l.Start()
	defer l.Close()

	if _, err := gw.CreateVehicle(context.Background(), model.Vehicle{Plate: "ABCD12", Model: "Volvo FH"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got := rec.waitFor(t, 1)
	if got[0].Message != "Nuevo vehículo añadido" {
		t.Fatalf("unexpected notification: %+v", got[0])
	}

	if n := gw.Calls("vehicles.getAll"); n != 0 {
		t.Fatalf("listener must not refetch, getAll called %d times", n)
	}
}

func TestListenerStartAndCloseIdempotent(t *testing.T) {
	b := NewMemoryBroker()
	rec := &recordingNotifier{}
	l := NewListener(b, rec, nil)
	l.Start()
	l.Start()

	b.Publish(VehiclesChannel, ChangeEvent{Type: EventInsert, Table: "vehicles"})
	rec.waitFor(t, 1)
	time.Sleep(20 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 1 {
		t.Fatalf("double Start must not double-subscribe: %+v", got)
	}

	l.Close()
	l.Close()
}

func TestListenerCloseBeforeStart(t *testing.T) {
	l := NewListener(NewMemoryBroker(), &recordingNotifier{}, nil)
	l.Close()
	l.Start() // must not resubscribe after Close
}
