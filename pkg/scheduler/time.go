package scheduler

import (
	"math"
	"sync/atomic"
	"time"
)

// timeSource provides the three time primitives the engine relies on
// pervasively. All methods are safe for concurrent use.
// timeFactor is stored as math.Float64bits behind an atomic so tests can
// swap the speed multiplier without taking a lock.
type timeSource struct {
	nowFn  func() time.Time
	factor atomic.Uint64
}

func newTimeSource() *timeSource {
	ts := &timeSource{nowFn: time.Now}
	ts.factor.Store(math.Float64bits(math.NaN()))
	return ts
}

func (ts *timeSource) now() time.Time {
	return ts.nowFn()
}

// timeFactor returns the current speed multiplier; NaN means real time.
func (ts *timeSource) timeFactor() float64 {
	return math.Float64frombits(ts.factor.Load())
}

// setTimeFactor is a testing hook; it is never exposed through the
// processing callback interface.
func (ts *timeSource) setTimeFactor(f float64) {
	ts.factor.Store(math.Float64bits(f))
}

func (ts *timeSource) setNowFn(fn func() time.Time) {
	ts.nowFn = fn
}

// gapVirtual returns the virtual-ms elapsed between two real timestamps.
// ceil((end-start) * factor), never zero unless the arguments are equal;
// negative deltas subtract one after ceil so the sign is preserved and
// the result stays non-zero.
func (ts *timeSource) gapVirtual(startReal, endReal time.Time) int64 {
	if startReal.Equal(endReal) {
		return 0
	}

	factor := ts.timeFactor()
	deltaMs := endReal.Sub(startReal).Seconds() * 1000
	if !math.IsNaN(factor) {
		deltaMs *= factor
	}

	if deltaMs >= 0 {
		v := int64(math.Ceil(deltaMs))
		if v == 0 {
			v = 1
		}
		return v
	}

	v := int64(math.Ceil(deltaMs)) - 1
	return v
}

// addVirtualToReal is the inverse of gapVirtual: it advances real by the
// real-time equivalent of virtualMs, always strictly later for a
// positive virtualMs.
func (ts *timeSource) addVirtualToReal(real time.Time, virtualMs int64) time.Time {
	if virtualMs == 0 {
		return real
	}

	factor := ts.timeFactor()
	realMs := float64(virtualMs)
	if !math.IsNaN(factor) && factor != 0 {
		realMs /= factor
	}

	d := time.Duration(realMs * float64(time.Millisecond))
	if virtualMs > 0 && d <= 0 {
		d = time.Nanosecond
	}
	return real.Add(d)
}

// realInterval converts a virtual-ms duration into the equivalent real
// time.Duration measured from now.
func (ts *timeSource) realInterval(virtualMs int64) time.Duration {
	now := ts.now()
	return ts.addVirtualToReal(now, virtualMs).Sub(now)
}
