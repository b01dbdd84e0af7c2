package lark

import "time"

// Backoff delays before each retry (0-indexed by retry number).
// Retry 1: +500ms, retry 2: +1.5s. Delivery runs inside the inbound
// request, so the table stays short.
var backoffDelays = [...]time.Duration{
	500 * time.Millisecond,
	1500 * time.Millisecond,
}

// maxAttempts is the initial attempt plus one retry per backoff slot.
const maxAttempts = len(backoffDelays) + 1

// backoffDelay returns the delay to wait before the given attempt
// (1-indexed; attempt 1 never waits).
func backoffDelay(attempt int) time.Duration {
	index := attempt - 2
	if index < 0 {
		return 0
	}
	if index >= len(backoffDelays) {
		index = len(backoffDelays) - 1
	}
	return backoffDelays[index]
}
