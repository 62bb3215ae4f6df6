package controller

import (
	"context"

	"k8s.io/apimachinery/pkg/runtime"
)

// Reconciler is the interface for reconciling objects of type T.
//
// Reconcile is called with the current best-known state of the object and
// should converge the world toward it in one idempotent step. It must
// tolerate stale snapshots: the watch only promises that a change
// eventually triggers a call, not that every call sees the latest version.
//
// The returned Action controls follow-up scheduling. A returned error is
// handed to the controller's ErrorPolicy; wrap it in PermanentError to
// stop retries for this attempt entirely.
//
// The controller never runs two Reconcile calls for the same key at once,
// so implementations need no per-object locking of their own.
type Reconciler[T runtime.Object] interface {
	Reconcile(ctx context.Context, obj T) (Action, error)
}

// ReconcilerFunc is an adapter to allow ordinary functions to be used as
// Reconcilers. If f is a function with the appropriate signature,
// ReconcilerFunc[T](f) is a Reconciler[T] that calls f.
type ReconcilerFunc[T runtime.Object] func(ctx context.Context, obj T) (Action, error)

// Reconcile calls f(ctx, obj).
func (f ReconcilerFunc[T]) Reconcile(ctx context.Context, obj T) (Action, error) {
	return f(ctx, obj)
}
