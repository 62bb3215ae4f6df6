package generic

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/tools/cache"
)

// Lister provides type-safe, cache-backed reads over an informer's store.
// Reads never hit the API server; they reflect the informer's last
// observed state, which may be slightly stale.
type Lister[T runtime.Object] struct {
	genericLister cache.GenericLister
}

// NamespaceLister is a Lister scoped to a single namespace.
type NamespaceLister[T runtime.Object] struct {
	genericNamespaceLister cache.GenericNamespaceLister
}

// NewLister creates a type-safe lister from an informer, typically the one
// returned by Client.Inform.
func NewLister[T runtime.Object](informer cache.SharedIndexInformer, resource schema.GroupResource) *Lister[T] {
	return &Lister[T]{
		genericLister: cache.NewGenericLister(informer.GetIndexer(), resource),
	}
}

// List returns all cached objects matching the selector.
func (l *Lister[T]) List(selector labels.Selector) ([]T, error) {
	objs, err := l.genericLister.List(selector)
	if err != nil {
		return nil, err
	}
	return convertAll[T](objs)
}

// Get returns the cached object with the given name.
// For namespaced resources, use ByNamespace(namespace).Get(name).
func (l *Lister[T]) Get(name string) (T, error) {
	var zero T
	obj, err := l.genericLister.Get(name)
	if err != nil {
		return zero, err
	}
	return convertOne[T](obj)
}

// GetByKey returns the cached object for a namespace/name key, as produced
// by informer handlers and consumed by controllers.
func (l *Lister[T]) GetByKey(key string) (T, error) {
	var zero T
	namespace, name, err := cache.SplitMetaNamespaceKey(key)
	if err != nil {
		return zero, err
	}
	if namespace == "" {
		return l.Get(name)
	}
	return l.ByNamespace(namespace).Get(name)
}

// ByNamespace returns a namespace-scoped lister.
func (l *Lister[T]) ByNamespace(namespace string) *NamespaceLister[T] {
	return &NamespaceLister[T]{
		genericNamespaceLister: l.genericLister.ByNamespace(namespace),
	}
}

// List returns all cached objects in the namespace matching the selector.
func (nl *NamespaceLister[T]) List(selector labels.Selector) ([]T, error) {
	objs, err := nl.genericNamespaceLister.List(selector)
	if err != nil {
		return nil, err
	}
	return convertAll[T](objs)
}

// Get returns the cached object with the given name in the namespace.
func (nl *NamespaceLister[T]) Get(name string) (T, error) {
	var zero T
	obj, err := nl.genericNamespaceLister.Get(name)
	if err != nil {
		return zero, err
	}
	return convertOne[T](obj)
}

// Dynamic informer caches hold *unstructured.Unstructured; typed informer
// caches hold T directly. Handle both.
func convertOne[T runtime.Object](obj runtime.Object) (T, error) {
	var zero T
	if typed, ok := obj.(T); ok {
		return typed, nil
	}
	if u, ok := obj.(*unstructured.Unstructured); ok {
		return fromUnstructured[T](u)
	}
	return zero, fmt.Errorf("cached object %T is not %T", obj, zero)
}

func convertAll[T runtime.Object](objs []runtime.Object) ([]T, error) {
	result := make([]T, 0, len(objs))
	for _, obj := range objs {
		typed, err := convertOne[T](obj)
		if err != nil {
			return nil, err
		}
		result = append(result, typed)
	}
	return result, nil
}
