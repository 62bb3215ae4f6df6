package controller

import (
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// NewOwnerReference builds an owner reference to owner, resolving its
// GroupVersionKind through the scheme.
func NewOwnerReference[T runtime.Object](owner T, scheme *runtime.Scheme) (metav1.OwnerReference, error) {
	accessor, err := objectMeta(owner)
	if err != nil {
		return metav1.OwnerReference{}, err
	}

	gvks, _, err := scheme.ObjectKinds(owner)
	if err != nil {
		return metav1.OwnerReference{}, fmt.Errorf("could not get GVK for owner: %w", err)
	}
	if len(gvks) == 0 {
		return metav1.OwnerReference{}, fmt.Errorf("no GVK found for owner type")
	}
	gvk := gvks[0]

	return metav1.OwnerReference{
		APIVersion: gvk.GroupVersion().String(),
		Kind:       gvk.Kind,
		Name:       accessor.GetName(),
		UID:        accessor.GetUID(),
	}, nil
}

// SetOwnerReference adds or updates an owner reference on owned. With
// controller set, the reference is marked as the managing controller, which
// is what OwnerKeys follows in controllerOnly mode.
func SetOwnerReference[T runtime.Object](owned metav1.Object, owner T, scheme *runtime.Scheme, controller bool) error {
	ref, err := NewOwnerReference(owner, scheme)
	if err != nil {
		return err
	}
	if controller {
		t := true
		ref.Controller = &t
	}

	refs := owned.GetOwnerReferences()
	for i, existing := range refs {
		if existing.UID == ref.UID {
			refs[i] = ref
			owned.SetOwnerReferences(refs)
			return nil
		}
	}
	owned.SetOwnerReferences(append(refs, ref))
	return nil
}

// RemoveOwnerReference removes owner's reference from owned, if present.
func RemoveOwnerReference[T runtime.Object](owned metav1.Object, owner T) error {
	accessor, err := objectMeta(owner)
	if err != nil {
		return err
	}

	refs := owned.GetOwnerReferences()
	filtered := make([]metav1.OwnerReference, 0, len(refs))
	for _, ref := range refs {
		if ref.UID != accessor.GetUID() {
			filtered = append(filtered, ref)
		}
	}
	owned.SetOwnerReferences(filtered)
	return nil
}

// IsOwnedBy reports whether owned carries a reference to the given owner UID.
func IsOwnedBy(owned metav1.Object, ownerUID string) bool {
	for _, ref := range owned.GetOwnerReferences() {
		if string(ref.UID) == ownerUID {
			return true
		}
	}
	return false
}

// ControllerReference returns the owner reference flagged as the managing
// controller, or nil if there is none.
func ControllerReference(owned metav1.Object) *metav1.OwnerReference {
	for _, ref := range owned.GetOwnerReferences() {
		if ref.Controller != nil && *ref.Controller {
			return &ref
		}
	}
	return nil
}
