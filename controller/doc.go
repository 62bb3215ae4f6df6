// Package controller implements a level-triggered reconciliation loop for
// Kubernetes-style resources, built on the generic client from
// github.com/relevel/relevel/generic and client-go's workqueue.
//
// Watch events and periodic resyncs enqueue namespace/name keys; a bounded
// worker pool pops due keys, fetches the current object, and invokes a
// user-supplied Reconciler. Keys coalesce: events for a key whose reconcile
// is in flight produce exactly one follow-up invocation, and two reconciles
// for the same key never run concurrently.
//
// # Basic Usage
//
// To create a controller, you need a generic client and a reconciler:
//
//	client, _ := generic.NewClient[*corev1.Pod](config)
//
//	ctrl := controller.New(client, controller.ReconcilerFunc[*corev1.Pod](
//	    func(ctx context.Context, pod *corev1.Pod) (controller.Action, error) {
//	        if pod.Status.Phase == corev1.PodPending {
//	            // Check again shortly.
//	            return controller.RequeueAfter(30 * time.Second), nil
//	        }
//	        return controller.Done(), nil
//	    }), nil)
//
//	ctrl.Run(ctx)
//
// # Actions
//
// Reconcile returns an Action deciding what happens next for the key:
//
//	return controller.Done(), nil                 // settled until the next event
//	return controller.RequeueAfter(5*time.Second), nil // check again in 5s
//	return controller.Requeue(), nil              // retry with backoff
//
// A fresh watch event always wins over a pending delay: if the object
// changes before RequeueAfter elapses, the next reconcile runs early.
//
// # Error Handling
//
// A returned error never stops the loop. It is handed to the controller's
// ErrorPolicy, whose Action is honored exactly like a success Action.
// Policies compose:
//
//	controller.FixedBackoff(5 * time.Second)
//	controller.ExponentialBackoff(time.Second, 5*time.Minute)
//	controller.RetryLimited(controller.ExponentialBackoff(time.Second, time.Minute), 10)
//
// Wrap an error in PermanentError to settle the key without retrying.
//
// # Reconciler Contract
//
// Reconcile must be idempotent and tolerant of stale snapshots: delivery
// is at-least-once, and the snapshot may lag the latest write. Persisting
// changes is the reconciler's business, typically via
// generic.UpdateWithRetry or generic.UpdateStatusWithRetry.
//
// # Additional Watches
//
// ExtraSources feed the same queue from other resource types. Use
// MappedSource with OwnerKeys to reconcile an owner whenever one of its
// dependents changes.
package controller
