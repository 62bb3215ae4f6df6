package controller

import (
	"time"
)

// Action tells the controller what to do with a key after a reconcile
// attempt returns. The zero value means the object is settled: no further
// reconcile happens until the watch reports another change.
type Action struct {
	// Requeue schedules another attempt through the queue's rate limiter.
	// Ignored when RequeueAfter is set.
	Requeue bool

	// RequeueAfter schedules another attempt no earlier than this delay
	// after the current one returns. A fresh watch notification arriving
	// sooner triggers the next attempt earlier.
	RequeueAfter time.Duration
}

// Done reports the object as settled.
func Done() Action { return Action{} }

// Requeue schedules another attempt with rate-limited backoff.
func Requeue() Action { return Action{Requeue: true} }

// RequeueAfter schedules another attempt after d.
func RequeueAfter(d time.Duration) Action { return Action{RequeueAfter: d} }
