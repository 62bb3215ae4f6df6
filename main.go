package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/relevel/relevel/controller"
	"github.com/relevel/relevel/generic"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/tools/clientcmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		clientcmd.NewDefaultClientConfigLoadingRules(),
		&clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		log.Fatalf("ClientConfig: %v", err)
	}

	// List pods in kube-system using automatic GVR inference.
	podClient, err := generic.NewClient[*corev1.Pod](config)
	if err != nil {
		log.Fatal("creating pod client:", err)
	}
	pods, err := podClient.List(ctx, "kube-system", nil)
	if err != nil {
		log.Fatal("listing pods:", err)
	}
	log.Println("LISTING PODS")
	for _, p := range pods {
		log.Println("-", p.Name)
	}

	// Run a ConfigMap controller that stamps every ConfigMap with an
	// annotation and re-checks it hourly.
	cmc, err := generic.NewClient[*corev1.ConfigMap](config)
	if err != nil {
		log.Fatal("creating configmap client:", err)
	}

	reconcile := controller.ReconcilerFunc[*corev1.ConfigMap](func(ctx context.Context, cm *corev1.ConfigMap) (controller.Action, error) {
		if cm.Annotations["relevel.dev/seen"] == "true" {
			return controller.RequeueAfter(time.Hour), nil
		}

		if _, err := generic.UpdateWithRetry(ctx, cmc, cm.Namespace, cm.Name, func(latest *corev1.ConfigMap) error {
			if latest.Annotations == nil {
				latest.Annotations = map[string]string{}
			}
			latest.Annotations["relevel.dev/seen"] = "true"
			return nil
		}); err != nil {
			return controller.Done(), err
		}

		log.Printf("stamped %s/%s", cm.Namespace, cm.Name)
		return controller.RequeueAfter(time.Hour), nil
	})

	ctrl := controller.New(cmc, reconcile, &controller.Options[*corev1.ConfigMap]{
		Namespace:   "default",
		Concurrency: 2,
		ErrorPolicy: controller.ExponentialBackoff(time.Second, 5*time.Minute),
	})

	if err := ctrl.Run(ctx); err != nil {
		log.Fatal("running controller:", err)
	}
}
