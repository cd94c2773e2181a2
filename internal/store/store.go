// Package store holds the client-side source of truth: the current view
// selection and the registered route collection. Every mutator is
// optimistic: it attempts the remote write, then applies the local
// mutation regardless of the outcome. Local state is the presentation
// truth; the remote store is reconciled on the next full LoadRoutes.
package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetsync/internal/metrics"
	"fleetsync/internal/model"
	"fleetsync/internal/remote"
)

const defaultSyncTimeout = 10 * time.Second

type Store struct {
	mu      sync.Mutex
	view    model.View
	loading bool
	routes  []model.Route // insertion order = display order, ids unique
	draft   *model.RouteDraft

	gw          remote.Gateway
	sink        Sink
	log         *zap.Logger
	syncTimeout time.Duration
	lastSyncErr error

	subs []chan struct{}
}

type Option func(*Store)

// WithSyncTimeout bounds each best-effort remote write.
func WithSyncTimeout(d time.Duration) Option {
	return func(s *Store) { s.syncTimeout = d }
}

// New builds a store and rehydrates it from the sink before any remote
// fetch, so a restart shows the last-known state instantly.
func New(gw remote.Gateway, sink Sink, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		view:        model.ViewHome,
		routes:      []model.Route{},
		gw:          gw,
		sink:        sink,
		log:         log,
		syncTimeout: defaultSyncTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	s.rehydrate()
	return s
}

// Subscribe returns a coalescing change signal for the view layer. The
// channel never blocks a mutator; a pending signal absorbs later ones.
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel obtained from Subscribe.
// Unknown channels are a no-op; exactly-once teardown per subscriber.
func (s *Store) Unsubscribe(ch <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subs {
		if s.subs[i] == ch {
			close(s.subs[i])
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// notify fires subscribers and persists the projection. Callers hold mu.
func (s *Store) notify() {
	s.persistLocked()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) View() model.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Store) SetView(v model.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
	s.notify()
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
	// loading is excluded from the persisted projection but subscribers
	// still need the signal
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Routes returns a copy of the registered route collection in display order.
func (s *Store) Routes() []model.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Route(nil), s.routes...)
}

// LastSyncErr reports the most recent swallowed remote-sync failure, or
// nil. It is informational; mutators never return sync failures.
func (s *Store) LastSyncErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSyncErr
}

// LoadRoutes replaces the collection with the remote one. On gateway
// failure the in-memory collection is left untouched; a transient
// network failure must not blank the UI.
func (s *Store) LoadRoutes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()
	start := time.Now()
	routes, err := s.gw.Routes(ctx)
	metrics.RemoteLatency.WithLabelValues("routes", "getAll").Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Warn("load routes failed, keeping local collection", zap.Error(err))
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = routes
	s.lastSyncErr = nil
	s.notify()
	return nil
}

// sync runs one best-effort remote write. Failures are logged, counted
// and retained on LastSyncErr, never returned past the mutator.
func (s *Store) sync(ctx context.Context, op string, fields []zap.Field, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	metrics.RemoteLatency.WithLabelValues("routes", op).Observe(time.Since(start).Seconds())
	s.mu.Lock()
	if err != nil {
		s.lastSyncErr = err
		metrics.SyncOutcomes.WithLabelValues(op, "failed").Inc()
	} else {
		s.lastSyncErr = nil
		metrics.SyncOutcomes.WithLabelValues(op, "ok").Inc()
	}
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("remote sync failed, applying locally anyway",
			append([]zap.Field{zap.String("op", op), zap.Error(err)}, fields...)...)
	}
}

// AddRoute registers a fully-formed Pending route. The remote create is
// attempted first; the route lands in memory exactly once either way,
// since a network blip must never silently drop the user's input.
func (s *Store) AddRoute(ctx context.Context, r model.Route) {
	s.sync(ctx, "create", []zap.Field{zap.String("routeId", r.ID)}, func(ctx context.Context) error {
		_, err := s.gw.CreateRoute(ctx, r)
		return err
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.routes {
		if s.routes[i].ID == r.ID {
			s.routes[i] = r // id already present: replace, never duplicate
			s.notify()
			return
		}
	}
	s.routes = append(s.routes, r)
	s.notify()
}

// RemoveRoute deletes by id remotely and locally. Removing an id that
// was never present is a no-op, not an error.
func (s *Store) RemoveRoute(ctx context.Context, id string) {
	s.sync(ctx, "delete", []zap.Field{zap.String("routeId", id)}, func(ctx context.Context) error {
		return s.gw.DeleteRoute(ctx, id)
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.routes {
		if s.routes[i].ID == id {
			s.routes = append(s.routes[:i], s.routes[i+1:]...)
			s.notify()
			return
		}
	}
}

// UpdateRouteStatus rewrites only the status of the matching route.
// No-op if the id is unknown or the transition would regress a
// Completed route.
func (s *Store) UpdateRouteStatus(ctx context.Context, id string, status model.RouteStatus) {
	s.mu.Lock()
	idx := -1
	for i := range s.routes {
		if s.routes[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 || !s.routes[idx].Status.CanTransition(status) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.sync(ctx, "updateStatus", []zap.Field{zap.String("routeId", id), zap.String("status", string(status))}, func(ctx context.Context) error {
		_, err := s.gw.UpdateRoute(ctx, id, remote.RoutePatch{Status: &status})
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.routes {
		if s.routes[i].ID == id {
			if s.routes[i].Status.CanTransition(status) {
				s.routes[i].Status = status
				s.notify()
			}
			return
		}
	}
}

// UpdateRouteWithProof attaches the delivery proof and forces the status
// to Completed in one step. Callers finishing a route with a signature
// use this path exclusively, never UpdateRouteStatus as well.
func (s *Store) UpdateRouteWithProof(ctx context.Context, id string, proof model.DeliveryProof) {
	s.sync(ctx, "updateProof", []zap.Field{zap.String("routeId", id)}, func(ctx context.Context) error {
		_, err := s.gw.UpdateRoute(ctx, id, remote.RoutePatch{Proof: &proof})
		return err
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.routes {
		if s.routes[i].ID == id {
			p := proof
			s.routes[i].Proof = &p
			s.routes[i].Status = model.StatusCompleted
			s.notify()
			return
		}
	}
}

// Draft staging: carries a quote-builder draft between two otherwise
// unconnected screens. At most one draft; never synced, never persisted.

func (s *Store) SetDraft(d model.RouteDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = &d
}

func (s *Store) Draft() (model.RouteDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return model.RouteDraft{}, false
	}
	return *s.draft, true
}

func (s *Store) ClearDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
}
