package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSFeed connects to a websocket push endpoint that streams ChangeEvent
// JSON frames and republishes each frame into a Broker. Lost connections
// are redialed with a flat backoff until the context is cancelled.
type WSFeed struct {
	URL     string
	Broker  Broker
	Channel string
	Log     *zap.Logger

	// Backoff between redials. Zero means one second.
	Backoff time.Duration
}

func NewWSFeed(url string, broker Broker, channel string, log *zap.Logger) *WSFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSFeed{URL: url, Broker: broker, Channel: channel, Log: log, Backoff: time.Second}
}

// Run blocks, pumping frames into the broker until ctx is done.
func (f *WSFeed) Run(ctx context.Context) error {
	backoff := f.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	for {
		if err := f.pump(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.Log.Warn("realtime feed disconnected", zap.String("url", f.URL), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (f *WSFeed) pump(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	// close the socket when ctx ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	conn.SetReadLimit(1 << 20)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var evt ChangeEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.Log.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		f.Broker.Publish(f.Channel, evt)
	}
}
