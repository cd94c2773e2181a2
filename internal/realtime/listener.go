package realtime

import (
	"sync"

	"go.uber.org/zap"

	"fleetsync/internal/metrics"
)

// VehiclesChannel is the push channel carrying row changes on the
// vehicles table.
const VehiclesChannel = "public:vehicles"

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Notification is a transient user-facing message classified from a
// change event.
type Notification struct {
	Kind    string // success, info or error
	Message string
}

// Notifier receives classified notifications. Implementations decide
// how to surface them (toast, log line, webhook).
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Listener maintains one subscription to the vehicles channel and turns
// each event into a notification. It only notifies; any refetch is the
// consumer's decision, so the listener never touches the data gateway.
type Listener struct {
	broker   Broker
	notifier Notifier
	log      *zap.Logger

	startOnce sync.Once
	closeOnce sync.Once
	ch        chan ChangeEvent
	done      chan struct{}
}

func NewListener(broker Broker, notifier Notifier, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{broker: broker, notifier: notifier, log: log, done: make(chan struct{})}
}

// Start subscribes and begins dispatching. Subsequent calls are no-ops.
func (l *Listener) Start() {
	l.startOnce.Do(func() {
		l.ch = l.broker.Subscribe(VehiclesChannel)
		go l.run()
	})
}

func (l *Listener) run() {
	defer close(l.done)
	for evt := range l.ch {
		l.log.Debug("change received", zap.String("table", evt.Table), zap.String("type", evt.Type))
		n, ok := classify(evt)
		if !ok {
			// unvalidated wire value: count under a fixed label
			metrics.RealtimeEvents.WithLabelValues("unknown").Inc()
			continue
		}
		metrics.RealtimeEvents.WithLabelValues(evt.Type).Inc()
		l.notifier.Notify(n)
	}
}

// classify maps an event type to its notification. Duplicate and
// out-of-order events classify the same way; unknown types are dropped.
func classify(evt ChangeEvent) (Notification, bool) {
	switch evt.Type {
	case EventInsert:
		return Notification{Kind: "success", Message: "Nuevo vehículo añadido"}, true
	case EventUpdate:
		return Notification{Kind: "info", Message: "Vehículo actualizado"}, true
	case EventDelete:
		return Notification{Kind: "error", Message: "Vehículo eliminado"}, true
	}
	return Notification{}, false
}

// Close tears the subscription down exactly once and waits for the
// dispatch loop to drain. Safe to call before Start and repeatedly.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		// consume startOnce so a Start after Close cannot resubscribe
		l.startOnce.Do(func() { close(l.done) })
		if l.ch != nil {
			l.broker.Unsubscribe(VehiclesChannel, l.ch)
			<-l.done
		}
	})
}
