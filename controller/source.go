package controller

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/relevel/relevel/generic"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Source feeds reconcile requests into a controller. Run delivers keys to
// enqueue until ctx is canceled; a non-nil error before cancellation means
// the watch stream ended and the controller (or its OnSourceError hook)
// must decide what to do about it.
type Source interface {
	Run(ctx context.Context, enqueue func(key string)) error
}

// SourceFunc is an adapter to allow ordinary functions to be used as Sources.
type SourceFunc func(ctx context.Context, enqueue func(key string)) error

// Run calls f(ctx, enqueue).
func (f SourceFunc) Run(ctx context.Context, enqueue func(key string)) error {
	return f(ctx, enqueue)
}

// InformerSource watches objects of type T through the client's informer
// and enqueues their keys on every add, update, delete, and resync.
func InformerSource[T runtime.Object](c generic.Client[T], opts *generic.InformOptions) Source {
	return SourceFunc(func(ctx context.Context, enqueue func(string)) error {
		handler := generic.InformerHandler[T]{
			OnAdd: func(key string, _ T) {
				clog.DebugContext(ctx, "resource added", "key", key)
				enqueue(key)
			},
			OnUpdate: func(key string, _, _ T) {
				clog.DebugContext(ctx, "resource updated", "key", key)
				enqueue(key)
			},
			OnDelete: func(key string, _ T) {
				clog.DebugContext(ctx, "resource deleted", "key", key)
				enqueue(key)
			},
			OnError: func(obj any, err error) {
				clog.ErrorContext(ctx, "informer error", "error", err, "object", obj)
			},
		}
		if _, err := c.Inform(ctx, handler, opts); err != nil {
			return fmt.Errorf("starting informer: %w", err)
		}
		<-ctx.Done()
		return nil
	})
}

// MapFunc derives controller keys from an event about a related object.
type MapFunc[O runtime.Object] func(obj O) []string

// MappedSource watches objects of type O and enqueues the keys derived by
// fn. Updates map both the old and new object, so a key is enqueued even
// when the relationship itself changed.
func MappedSource[O runtime.Object](c generic.Client[O], opts *generic.InformOptions, fn MapFunc[O]) Source {
	return SourceFunc(func(ctx context.Context, enqueue func(string)) error {
		enqueueAll := func(obj O) {
			for _, key := range fn(obj) {
				clog.DebugContext(ctx, "enqueuing mapped key", "key", key)
				enqueue(key)
			}
		}
		handler := generic.InformerHandler[O]{
			OnAdd:    func(_ string, obj O) { enqueueAll(obj) },
			OnUpdate: func(_ string, oldObj, newObj O) { enqueueAll(oldObj); enqueueAll(newObj) },
			OnDelete: func(_ string, obj O) { enqueueAll(obj) },
			OnError: func(obj any, err error) {
				clog.ErrorContext(ctx, "mapped informer error", "error", err, "object", obj)
			},
		}
		if _, err := c.Inform(ctx, handler, opts); err != nil {
			return fmt.Errorf("starting mapped informer: %w", err)
		}
		<-ctx.Done()
		return nil
	})
}

// OwnerKeys returns a MapFunc that maps an object to the keys of its
// owners matching ownerGVK, so a controller for the owner type reconciles
// it whenever a dependent changes. With controllerOnly set, only owner
// references flagged as the managing controller are followed.
func OwnerKeys[O runtime.Object](ownerGVK schema.GroupVersionKind, controllerOnly bool) MapFunc[O] {
	return func(obj O) []string {
		accessor, err := objectMeta(obj)
		if err != nil {
			return nil
		}

		var keys []string
		for _, ref := range accessor.GetOwnerReferences() {
			gv, err := schema.ParseGroupVersion(ref.APIVersion)
			if err != nil {
				continue
			}
			if gv.Group != ownerGVK.Group || gv.Version != ownerGVK.Version || ref.Kind != ownerGVK.Kind {
				continue
			}
			if controllerOnly && (ref.Controller == nil || !*ref.Controller) {
				continue
			}
			// Owners live in the dependent's namespace; cluster-scoped
			// dependents have cluster-scoped owners.
			if ns := accessor.GetNamespace(); ns != "" {
				keys = append(keys, ns+"/"+ref.Name)
			} else {
				keys = append(keys, ref.Name)
			}
		}
		return keys
	}
}

// objectMeta extracts metav1.Object from a runtime.Object.
func objectMeta(obj runtime.Object) (metav1.Object, error) {
	if m, ok := obj.(metav1.Object); ok {
		return m, nil
	}
	accessor, err := meta.Accessor(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	return accessor, nil
}
