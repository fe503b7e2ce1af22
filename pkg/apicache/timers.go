package apicache

import "time"

// MaxTimerDelay caps expiration timers at 2^31-1 milliseconds (about 24.8
// days). Entries with a longer TTL are evicted from the index at the cap.
const MaxTimerDelay = 2147483647 * time.Millisecond

// expiration is the timer registry handle of one key. Comparing handles
// tells a live timer from one that was replaced.
type expiration struct {
	timer *time.Timer
}

func timerDelay(ttl time.Duration) time.Duration {
	return min(ttl, MaxTimerDelay)
}

// arm replaces key's timer. Callers hold e.mu.
func (e *Engine) arm(key string, ttl time.Duration) *expiration {
	e.disarm(key)
	exp := &expiration{}
	exp.timer = time.AfterFunc(timerDelay(ttl), func() { e.expire(key, exp) })
	e.timers[key] = exp
	return exp
}

// disarm cancels key's timer. Callers hold e.mu.
func (e *Engine) disarm(key string) {
	if exp, ok := e.timers[key]; ok {
		exp.timer.Stop()
		delete(e.timers, key)
	}
}

// disarmAll cancels every timer. Callers hold e.mu.
func (e *Engine) disarmAll() {
	for key, exp := range e.timers {
		exp.timer.Stop()
		delete(e.timers, key)
	}
}
