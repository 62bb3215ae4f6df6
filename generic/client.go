package generic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/cache"
)

// Client is a type-safe Kubernetes client for resources of type T.
//
// All methods take an explicit namespace; pass "" for cluster-scoped
// resources. Options pointers may be nil, meaning defaults.
type Client[T runtime.Object] interface {
	Get(ctx context.Context, namespace, name string, opts *metav1.GetOptions) (T, error)
	List(ctx context.Context, namespace string, opts *metav1.ListOptions) ([]T, error)
	Create(ctx context.Context, namespace string, obj T, opts *metav1.CreateOptions) (T, error)
	Update(ctx context.Context, namespace string, obj T, opts *metav1.UpdateOptions) (T, error)
	UpdateStatus(ctx context.Context, namespace string, obj T, opts *metav1.UpdateOptions) (T, error)
	Delete(ctx context.Context, namespace, name string, opts *metav1.DeleteOptions) error
	Patch(ctx context.Context, namespace, name string, pt types.PatchType, data []byte, opts *metav1.PatchOptions) (T, error)

	// Inform starts an informer for T and delivers typed events to handler
	// until ctx is canceled. The returned informer can be used to build a
	// Lister over its cache.
	Inform(ctx context.Context, handler InformerHandler[T], opts *InformOptions) (cache.SharedIndexInformer, error)
}

// NewClient creates a new generic client by automatically inferring
// the GroupVersionResource from the type parameter T.
// This uses the global Kubernetes scheme to look up the GVK for the type,
// then uses discovery to map that to a GVR.
//
// Note: T must be a pointer type (e.g., *corev1.Pod) as required by runtime.Object.
func NewClient[T runtime.Object](config *rest.Config) (Client[T], error) {
	gvr, err := inferGVR[T](config)
	if err != nil {
		return nil, err
	}
	return NewClientGVR[T](gvr, config), nil
}

// NewClientGVR creates a new generic client with an explicit GroupVersionResource.
// This is useful when you need to specify a custom GVR or when the type isn't
// registered in the global scheme.
//
// Most users should prefer NewClient which automatically infers the GVR.
func NewClientGVR[T runtime.Object](gvr schema.GroupVersionResource, config *rest.Config) Client[T] {
	return &client[T]{
		gvr: gvr,
		dyn: dynamic.NewForConfigOrDie(config),
	}
}

// inferGVR attempts to determine the GroupVersionResource for a given type T
// by using the Kubernetes scheme and discovery client.
func inferGVR[T runtime.Object](config *rest.Config) (schema.GroupVersionResource, error) {
	// Create a zero-value instance of T to inspect
	var zero T
	typ := reflect.TypeOf(zero)

	// Require pointer types - Kubernetes objects should always be pointers
	if typ == nil || typ.Kind() != reflect.Ptr {
		return schema.GroupVersionResource{}, fmt.Errorf("type %T must be a pointer type (e.g., *corev1.Pod, not corev1.Pod)", zero)
	}

	instance := reflect.New(typ.Elem()).Interface()
	obj, ok := instance.(runtime.Object)
	if !ok {
		return schema.GroupVersionResource{}, fmt.Errorf("type %T does not implement runtime.Object", instance)
	}

	// Get the GVKs for this object from the scheme
	gvks, _, err := scheme.Scheme.ObjectKinds(obj)
	if err != nil {
		return schema.GroupVersionResource{}, fmt.Errorf("failed to get GVK for type %T: %w", zero, err)
	}
	if len(gvks) == 0 {
		return schema.GroupVersionResource{}, fmt.Errorf("no GVK registered for type %T", zero)
	}
	// If multiple match, return an error.
	if len(gvks) > 1 {
		return schema.GroupVersionResource{}, fmt.Errorf("multiple GVKs registered for type %T: %v", zero, gvks)
	}
	gvk := gvks[0]

	// Map the GVK to a resource via discovery.
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(config)
	if err != nil {
		return schema.GroupVersionResource{}, fmt.Errorf("failed to create discovery client: %w", err)
	}
	groupResources, err := restmapper.GetAPIGroupResources(discoveryClient)
	if err != nil {
		return schema.GroupVersionResource{}, fmt.Errorf("failed to get API group resources: %w", err)
	}
	mapping, err := restmapper.NewDiscoveryRESTMapper(groupResources).RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return schema.GroupVersionResource{}, fmt.Errorf("failed to get REST mapping for %v: %w", gvk, err)
	}
	return mapping.Resource, nil
}

type client[T runtime.Object] struct {
	gvr schema.GroupVersionResource
	dyn dynamic.Interface
}

func (c *client[T]) Get(ctx context.Context, namespace, name string, opts *metav1.GetOptions) (T, error) {
	var t T
	if opts == nil {
		opts = &metav1.GetOptions{}
	}
	u, err := c.dyn.Resource(c.gvr).Namespace(namespace).Get(ctx, name, *opts)
	if err != nil {
		return t, err
	}
	return fromUnstructured[T](u)
}

func (c *client[T]) List(ctx context.Context, namespace string, opts *metav1.ListOptions) ([]T, error) {
	if opts == nil {
		opts = &metav1.ListOptions{}
	}
	ul, err := c.dyn.Resource(c.gvr).Namespace(namespace).List(ctx, *opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(ul.Items))
	for i := range ul.Items {
		t, err := fromUnstructured[T](&ul.Items[i])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *client[T]) Create(ctx context.Context, namespace string, obj T, opts *metav1.CreateOptions) (T, error) {
	var t T
	if opts == nil {
		opts = &metav1.CreateOptions{}
	}
	u, err := toUnstructured(obj)
	if err != nil {
		return t, err
	}
	created, err := c.dyn.Resource(c.gvr).Namespace(namespace).Create(ctx, u, *opts)
	if err != nil {
		return t, err
	}
	return fromUnstructured[T](created)
}

func (c *client[T]) Update(ctx context.Context, namespace string, obj T, opts *metav1.UpdateOptions) (T, error) {
	var t T
	if opts == nil {
		opts = &metav1.UpdateOptions{}
	}
	u, err := toUnstructured(obj)
	if err != nil {
		return t, err
	}
	updated, err := c.dyn.Resource(c.gvr).Namespace(namespace).Update(ctx, u, *opts)
	if err != nil {
		return t, err
	}
	return fromUnstructured[T](updated)
}

func (c *client[T]) UpdateStatus(ctx context.Context, namespace string, obj T, opts *metav1.UpdateOptions) (T, error) {
	var t T
	if opts == nil {
		opts = &metav1.UpdateOptions{}
	}
	u, err := toUnstructured(obj)
	if err != nil {
		return t, err
	}
	updated, err := c.dyn.Resource(c.gvr).Namespace(namespace).UpdateStatus(ctx, u, *opts)
	if err != nil {
		return t, err
	}
	return fromUnstructured[T](updated)
}

func (c *client[T]) Delete(ctx context.Context, namespace, name string, opts *metav1.DeleteOptions) error {
	if opts == nil {
		opts = &metav1.DeleteOptions{}
	}
	return c.dyn.Resource(c.gvr).Namespace(namespace).Delete(ctx, name, *opts)
}

func (c *client[T]) Patch(ctx context.Context, namespace, name string, pt types.PatchType, data []byte, opts *metav1.PatchOptions) (T, error) {
	var t T
	if opts == nil {
		opts = &metav1.PatchOptions{}
	}
	patched, err := c.dyn.Resource(c.gvr).Namespace(namespace).Patch(ctx, name, pt, data, *opts)
	if err != nil {
		return t, err
	}
	return fromUnstructured[T](patched)
}

// JSON round-trip conversion between T and unstructured. Not the fastest
// possible conversion, but it works for any type with JSON tags.

func toUnstructured[T runtime.Object](obj T) (*unstructured.Unstructured, error) {
	m := map[string]interface{}{}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(obj); err != nil {
		return nil, err
	}
	if err := json.NewDecoder(&buf).Decode(&m); err != nil {
		return nil, err
	}
	return &unstructured.Unstructured{Object: m}, nil
}

func fromUnstructured[T runtime.Object](u *unstructured.Unstructured) (T, error) {
	var t T
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(u.Object); err != nil {
		return t, err
	}
	if err := json.NewDecoder(&buf).Decode(&t); err != nil {
		return t, err
	}
	return t, nil
}
