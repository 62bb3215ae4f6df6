package generic

import (
	"context"
	"errors"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/dynamic/dynamicinformer"
	"k8s.io/client-go/tools/cache"
)

// DefaultResyncPeriod is the informer resync interval used when
// InformOptions.ResyncPeriod is not set. Resync re-delivers every known
// object as an update, which heals drift the watch itself never reported.
const DefaultResyncPeriod = time.Hour

var errNotUnstructured = errors.New("event object is not *unstructured.Unstructured")

// InformerHandler receives typed informer events. Keys are in
// namespace/name form (or just name for cluster-scoped resources).
// Any callback may be nil.
type InformerHandler[T runtime.Object] struct {
	OnAdd    func(key string, obj T)
	OnUpdate func(key string, oldObj, newObj T)
	OnDelete func(key string, obj T)

	// OnError is called when an event cannot be delivered, for example
	// when an object fails conversion to T.
	OnError func(obj any, err error)
}

// InformOptions configures an informer started by Client.Inform.
type InformOptions struct {
	// ListOptions restricts the watch, e.g. by label or field selector.
	ListOptions metav1.ListOptions

	// ResyncPeriod overrides DefaultResyncPeriod. A zero duration disables
	// resync entirely.
	ResyncPeriod *time.Duration
}

func (c *client[T]) Inform(ctx context.Context, handler InformerHandler[T], opts *InformOptions) (cache.SharedIndexInformer, error) {
	if opts == nil {
		opts = &InformOptions{}
	}
	resync := DefaultResyncPeriod
	if opts.ResyncPeriod != nil {
		resync = *opts.ResyncPeriod
	}

	factory := dynamicinformer.NewFilteredDynamicSharedInformerFactory(c.dyn, resync, metav1.NamespaceAll, func(lo *metav1.ListOptions) {
		lo.LabelSelector = opts.ListOptions.LabelSelector
		lo.FieldSelector = opts.ListOptions.FieldSelector
	})
	inf := factory.ForResource(c.gvr).Informer()

	convert := func(obj any) (string, T, error) {
		var t T
		// Deleted objects may arrive wrapped in a tombstone.
		if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			obj = tomb.Obj
		}
		u, ok := obj.(*unstructured.Unstructured)
		if !ok {
			return "", t, errNotUnstructured
		}
		key, err := cache.MetaNamespaceKeyFunc(u)
		if err != nil {
			return "", t, err
		}
		t, err = fromUnstructured[T](u)
		return key, t, err
	}

	_, err := inf.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj any) {
			key, t, err := convert(obj)
			if err != nil {
				if handler.OnError != nil {
					handler.OnError(obj, err)
				}
				return
			}
			if handler.OnAdd != nil {
				handler.OnAdd(key, t)
			}
		},
		UpdateFunc: func(oldObj, newObj any) {
			key, newT, err := convert(newObj)
			if err != nil {
				if handler.OnError != nil {
					handler.OnError(newObj, err)
				}
				return
			}
			_, oldT, err := convert(oldObj)
			if err != nil {
				// The new object converted fine; deliver the update
				// with a zero old value rather than dropping the event.
				if handler.OnError != nil {
					handler.OnError(oldObj, err)
				}
				var zero T
				oldT = zero
			}
			if handler.OnUpdate != nil {
				handler.OnUpdate(key, oldT, newT)
			}
		},
		DeleteFunc: func(obj any) {
			key, t, err := convert(obj)
			if err != nil {
				if handler.OnError != nil {
					handler.OnError(obj, err)
				}
				return
			}
			if handler.OnDelete != nil {
				handler.OnDelete(key, t)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	go inf.Run(ctx.Done())
	if !cache.WaitForNamedCacheSync(c.gvr.String(), ctx.Done(), inf.HasSynced) {
		return nil, ctx.Err()
	}
	return inf, nil
}
