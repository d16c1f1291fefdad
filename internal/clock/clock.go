// Package clock provides the monotonic timestamp source threaded through
// poll returns and message callbacks. It exists only so the reactor core
// never calls time.Now directly, keeping the one place that would need to
// change for a fake clock in tests isolated to a single function.
package clock

import "time"

// Now returns the current time, used to stamp Poller.Poll returns.
func Now() time.Time {
	return time.Now()
}
