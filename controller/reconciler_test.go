package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// TestReconcilerFunc tests the ReconcilerFunc adapter.
func TestReconcilerFunc(t *testing.T) {
	called := false
	expectedErr := errors.New("test error")

	fn := ReconcilerFunc[*corev1.Pod](func(ctx context.Context, pod *corev1.Pod) (Action, error) {
		called = true
		if pod.Name != "test-pod" {
			t.Errorf("expected pod name test-pod, got %s", pod.Name)
		}
		return Requeue(), expectedErr
	})

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name: "test-pod",
		},
	}

	action, err := fn.Reconcile(context.Background(), pod)
	if !called {
		t.Error("reconciler function was not called")
	}
	if err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if !action.Requeue {
		t.Errorf("expected requeue action, got %+v", action)
	}
}

// TestReconcilerInterface tests a struct implementing Reconciler.
type testReconciler struct {
	called bool
}

func (r *testReconciler) Reconcile(ctx context.Context, pod *corev1.Pod) (Action, error) {
	r.called = true
	if pod.Status.Phase == corev1.PodPending {
		return RequeueAfter(30 * time.Second), nil
	}
	return Done(), nil
}

func TestReconcilerInterface(t *testing.T) {
	r := &testReconciler{}

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name: "test-pod",
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodPending,
		},
	}

	action, err := r.Reconcile(context.Background(), pod)
	if !r.called {
		t.Error("reconciler was not called")
	}
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if action.RequeueAfter != 30*time.Second {
		t.Errorf("expected 30s requeue for pending pod, got %+v", action)
	}
}
