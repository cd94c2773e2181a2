package remote

import (
	"context"

	"golang.org/x/time/rate"

	"fleetsync/internal/metrics"
	"fleetsync/internal/model"
)

// PingRecorder bounds the volume of gps_tracking inserts. Devices emit
// position samples faster than the backing store needs; pings beyond the
// configured rate are thinned out, not queued and not errors.
type PingRecorder struct {
	gw      Gateway
	limiter *rate.Limiter
}

// NewPingRecorder allows perSec sustained inserts with the given burst.
func NewPingRecorder(gw Gateway, perSec float64, burst int) *PingRecorder {
	return &PingRecorder{gw: gw, limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

// Record persists the ping unless the rate cap is hit. The second return
// reports whether the ping was stored.
func (r *PingRecorder) Record(ctx context.Context, p model.GPSPing) (model.GPSPing, bool, error) {
	if !r.limiter.Allow() {
		metrics.PingsDropped.Inc()
		return model.GPSPing{}, false, nil
	}
	stored, err := r.gw.RecordPing(ctx, p)
	if err != nil {
		return model.GPSPing{}, false, err
	}
	return stored, true, nil
}
