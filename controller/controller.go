package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/relevel/relevel/generic"
	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/util/workqueue"
)

const defaultDrainTimeout = 30 * time.Second

// Options configures a Controller.
type Options[T runtime.Object] struct {
	// Namespace limits the controller to a specific namespace.
	// If empty, the controller watches all namespaces.
	Namespace string

	// Concurrency is the number of concurrent reconcilers.
	// Defaults to 1 if not set. Reconciles for distinct keys run in
	// parallel up to this bound; a single key is always serialized.
	Concurrency int

	// ResyncPeriod is how often every known key is re-enqueued as if
	// changed, to heal drift the watch never reported.
	// Defaults to generic.DefaultResyncPeriod.
	ResyncPeriod time.Duration

	// DrainTimeout bounds how long shutdown waits for in-flight
	// reconciles after the context is canceled. Defaults to 30s.
	DrainTimeout time.Duration

	// ErrorPolicy maps failed reconcile attempts to follow-up Actions.
	// Defaults to DefaultErrorPolicy.
	ErrorPolicy ErrorPolicy

	// Queue is a custom workqueue for the controller.
	// If not provided, a default rate-limiting queue is used.
	Queue workqueue.TypedRateLimitingInterface[string]

	// Source overrides the informer-based watch built from the client.
	// Mainly useful for tests and non-informer ingestion.
	Source Source

	// ExtraSources are additional watches feeding the same queue, such as
	// MappedSource watches on dependent resource types.
	ExtraSources []Source

	// Fetch overrides how the current object snapshot is loaded for a
	// key. Defaults to a client Get.
	Fetch func(ctx context.Context, key string) (T, error)

	// OnSourceError is called when a watch source fails before the
	// context is canceled. If unset, a source failure shuts the
	// controller down and Run returns the error.
	OnSourceError func(err error)
}

// Controller drives the reconciliation loop for resources of type T:
// watch events and resyncs feed a rate-limiting workqueue, a bounded
// worker pool pops due keys, fetches the current snapshot, and invokes
// the Reconciler, scheduling whatever Action comes back.
//
// The queue coalesces: enqueuing a key already waiting is a no-op, and
// enqueuing a key currently being reconciled schedules exactly one
// immediate follow-up once the in-flight call returns, regardless of the
// delay that call asks for.
type Controller[T runtime.Object] struct {
	client        generic.Client[T]
	reconciler    Reconciler[T]
	queue         workqueue.TypedRateLimitingInterface[string]
	source        Source
	extraSources  []Source
	fetch         func(ctx context.Context, key string) (T, error)
	policy        ErrorPolicy
	concurrency   int
	drainTimeout  time.Duration
	onSourceError func(error)
	track         *tracker
}

// New creates a new Controller with the given client, reconciler, and options.
// The client may be nil when Options provides both Source and Fetch.
func New[T runtime.Object](client generic.Client[T], reconciler Reconciler[T], opts *Options[T]) *Controller[T] {
	// Apply defaults
	if opts == nil {
		opts = &Options[T]{}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	if opts.ErrorPolicy == nil {
		opts.ErrorPolicy = DefaultErrorPolicy()
	}
	if opts.Queue == nil {
		opts.Queue = workqueue.NewTypedRateLimitingQueue[string](workqueue.DefaultTypedControllerRateLimiter[string]())
	}
	if opts.Source == nil && client != nil {
		informOpts := &generic.InformOptions{}
		if opts.Namespace != "" {
			informOpts.ListOptions.FieldSelector = fmt.Sprintf("metadata.namespace=%s", opts.Namespace)
		}
		if opts.ResyncPeriod > 0 {
			resync := opts.ResyncPeriod
			informOpts.ResyncPeriod = &resync
		}
		opts.Source = InformerSource[T](client, informOpts)
	}
	if opts.Fetch == nil && client != nil {
		opts.Fetch = func(ctx context.Context, key string) (T, error) {
			var zero T
			namespace, name, err := cache.SplitMetaNamespaceKey(key)
			if err != nil {
				return zero, fmt.Errorf("invalid key format: %w", err)
			}
			return client.Get(ctx, namespace, name, nil)
		}
	}

	return &Controller[T]{
		client:        client,
		reconciler:    reconciler,
		queue:         opts.Queue,
		source:        opts.Source,
		extraSources:  opts.ExtraSources,
		fetch:         opts.Fetch,
		policy:        opts.ErrorPolicy,
		concurrency:   opts.Concurrency,
		drainTimeout:  opts.DrainTimeout,
		onSourceError: opts.OnSourceError,
		track:         newTracker(),
	}
}

// Run starts the watch sources and worker pool and blocks until the
// context is canceled or a source fails fatally. On cancellation it stops
// admitting work, lets in-flight reconciles finish, and gives up on them
// after the drain timeout.
func (c *Controller[T]) Run(ctx context.Context) error {
	if c.source == nil {
		return errors.New("controller has no watch source: pass a client or set Options.Source")
	}
	if c.fetch == nil {
		return errors.New("controller cannot fetch objects: pass a client or set Options.Fetch")
	}

	clog.InfoContext(ctx, "starting controller", "concurrency", c.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	enqueue := func(key string) { c.queue.Add(key) }
	for _, src := range append([]Source{c.source}, c.extraSources...) {
		g.Go(func() error {
			err := src.Run(gctx, enqueue)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if c.onSourceError != nil {
				clog.WarnContext(ctx, "watch source ended", "error", err)
				c.onSourceError(err)
				return nil
			}
			return fmt.Errorf("watch source failed: %w", err)
		})
	}

	// Workers get a context that survives cancellation so in-flight
	// reconciles can finish during the drain, and is cut only when the
	// drain deadline passes.
	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()

	var wg sync.WaitGroup
	for range c.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runWorker(workerCtx, gctx)
		}()
	}
	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	<-gctx.Done()
	clog.InfoContext(ctx, "shutting down controller")
	c.queue.ShutDown()

	select {
	case <-workersDone:
	case <-time.After(c.drainTimeout):
		clog.WarnContext(ctx, "drain timeout exceeded, abandoning in-flight reconciles", "timeout", c.drainTimeout)
		cancelWorkers()
	}
	return g.Wait()
}

// KeyStatus returns observability state for a key: consecutive failures,
// last error, and last reconcile time. The second return is false if the
// key has never been reconciled (or its object is gone).
func (c *Controller[T]) KeyStatus(key string) (KeyStatus, bool) {
	return c.track.status(key)
}

// Stats returns cumulative totals for the controller.
func (c *Controller[T]) Stats() Stats {
	return c.track.stats()
}

// runWorker processes items from the queue until it shuts down or the run
// context is canceled.
func (c *Controller[T]) runWorker(ctx, runCtx context.Context) {
	for c.processNextItem(ctx, runCtx) {
	}
}

// processNextItem processes one item from the queue.
func (c *Controller[T]) processNextItem(ctx, runCtx context.Context) bool {
	key, quit := c.queue.Get()
	if quit {
		return false
	}
	defer c.queue.Done(key)

	// Keys still queued at shutdown are dropped; only reconciles already
	// in flight get to finish during the drain.
	select {
	case <-runCtx.Done():
		return false
	default:
	}

	c.reconcileKey(ctx, key)
	return true
}

// reconcileKey fetches the object, calls the reconciler, and schedules the
// resulting Action.
func (c *Controller[T]) reconcileKey(ctx context.Context, key string) {
	obj, err := c.fetch(ctx, key)
	if err != nil {
		if apierrors.IsNotFound(err) {
			// The object is gone. Level-triggered: nothing to converge.
			clog.DebugContext(ctx, "object gone, settling key", "key", key)
			c.queue.Forget(key)
			c.track.forget(key)
			return
		}
		c.handleFailure(ctx, key, fmt.Errorf("failed to get object: %w", err))
		return
	}

	action, err := c.reconciler.Reconcile(ctx, obj)
	if err != nil {
		c.handleFailure(ctx, key, err)
		return
	}

	clog.DebugContext(ctx, "successfully reconciled", "key", key)
	c.track.observeSuccess(key)
	c.policy.Succeeded(key)
	c.queue.Forget(key)
	c.schedule(ctx, key, action)
}

// handleFailure routes a failed attempt through the error policy. Failures
// never terminate the loop.
func (c *Controller[T]) handleFailure(ctx context.Context, key string, err error) {
	c.track.observeFailure(key, err)

	if IsPermanentError(err) {
		clog.ErrorContext(ctx, "permanent error, not retrying", "key", key, "error", err)
		c.queue.Forget(key)
		return
	}

	clog.ErrorContext(ctx, "reconcile failed", "key", key, "error", err)
	c.schedule(ctx, key, c.policy.Failed(key, err))
}

// schedule enacts an Action for a key.
func (c *Controller[T]) schedule(ctx context.Context, key string, action Action) {
	switch {
	case action.RequeueAfter < 0:
		// Negative delays are treated as a plain rate-limited requeue.
		clog.WarnContext(ctx, "invalid requeue delay, using rate-limited requeue", "key", key, "delay", action.RequeueAfter)
		c.track.observeRequeue()
		c.queue.AddRateLimited(key)
	case action.RequeueAfter > 0:
		clog.DebugContext(ctx, "requeueing after delay", "key", key, "delay", action.RequeueAfter)
		c.track.observeRequeue()
		c.queue.AddAfter(key, action.RequeueAfter)
	case action.Requeue:
		clog.DebugContext(ctx, "requeueing with backoff", "key", key)
		c.track.observeRequeue()
		c.queue.AddRateLimited(key)
	}
}
