package quote

import "time"

// ledger is the sliding-window record of external request timestamps.
// Its length never exceeds the ceiling at the moment a request is
// admitted; entries older than the window are pruned on every check.
type ledger struct {
	stamps  []time.Time
	window  time.Duration
	ceiling int
}

func newLedger(window time.Duration, ceiling int) *ledger {
	return &ledger{window: window, ceiling: ceiling}
}

func (l *ledger) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	for len(l.stamps) > 0 && l.stamps[0].Before(cutoff) {
		l.stamps = l.stamps[1:]
	}
}

// admit records now and returns true, or returns false when the trailing
// window is already at the ceiling.
func (l *ledger) admit(now time.Time) bool {
	l.prune(now)
	if len(l.stamps) >= l.ceiling {
		return false
	}
	l.stamps = append(l.stamps, now)
	return true
}

func (l *ledger) len(now time.Time) int {
	l.prune(now)
	return len(l.stamps)
}
