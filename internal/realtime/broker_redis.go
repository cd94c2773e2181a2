package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker implements Broker over Redis Pub/Sub so change events fan
// out across processes. Channel names are prefixed to keep the keyspace
// shared with other tenants clean.
type RedisBroker struct {
	rdb *redis.Client
	log *zap.Logger

	mu   sync.Mutex
	subs map[chan ChangeEvent]*redis.PubSub
}

func NewRedisBroker(redisURL string, log *zap.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBroker{rdb: redis.NewClient(opt), log: log, subs: map[chan ChangeEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) chanName(channel string) string { return "fleetsync:" + channel }

func (b *RedisBroker) Subscribe(channel string) chan ChangeEvent {
	ch := make(chan ChangeEvent, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(channel))
	// first Receive confirms the subscription before we hand out the channel
	_, _ = ps.Receive(ctx)
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.Warn("dropping undecodable change event", zap.Error(err))
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(channel string, ch chan ChangeEvent) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		// closing the PubSub ends ps.Channel, which closes ch in the reader
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(channel string, evt ChangeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(channel), data).Err(); err != nil {
		b.log.Warn("publish failed", zap.String("channel", channel), zap.Error(err))
	}
}

func (b *RedisBroker) Close() error { return b.rdb.Close() }
