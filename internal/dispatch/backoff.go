package dispatch

import "time"

// backoffDelay returns the exponential backoff delay before the given retry
// (1-based): base, base*2, base*4, ... capped at max.
func backoffDelay(base, max time.Duration, retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	delay := base
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
