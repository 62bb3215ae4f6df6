package generic

import (
	"context"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/util/retry"
)

// UpdateWithRetry fetches the object, applies mutate to it, and writes it
// back, retrying the whole cycle on resource-version conflicts. The mutation
// must be repeatable: it may run several times against progressively newer
// versions of the object.
func UpdateWithRetry[T runtime.Object](ctx context.Context, c Client[T], namespace, name string, mutate func(T) error) (T, error) {
	var result T
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		latest, err := c.Get(ctx, namespace, name, nil)
		if err != nil {
			return err
		}
		if err := mutate(latest); err != nil {
			return err
		}
		result, err = c.Update(ctx, namespace, latest, nil)
		return err
	})
	return result, err
}

// UpdateStatusWithRetry is UpdateWithRetry against the status subresource.
func UpdateStatusWithRetry[T runtime.Object](ctx context.Context, c Client[T], namespace, name string, mutate func(T) error) (T, error) {
	var result T
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		latest, err := c.Get(ctx, namespace, name, nil)
		if err != nil {
			return err
		}
		if err := mutate(latest); err != nil {
			return err
		}
		result, err = c.UpdateStatus(ctx, namespace, latest, nil)
		return err
	})
	return result, err
}
