package controller

import (
	"context"
	"testing"
	"time"

	"github.com/relevel/relevel/generic"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/cache"
)

var configMapGVK = schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"}

func ownedSecret(namespace string, refs ...metav1.OwnerReference) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:            "owned-secret",
			Namespace:       namespace,
			OwnerReferences: refs,
		},
	}
}

func TestOwnerKeys(t *testing.T) {
	ctrlTrue := true
	ctrlFalse := false

	tests := []struct {
		name           string
		obj            *corev1.Secret
		controllerOnly bool
		expected       []string
	}{
		{
			name: "matching owner",
			obj: ownedSecret("default", metav1.OwnerReference{
				APIVersion: "v1", Kind: "ConfigMap", Name: "owner-cm",
			}),
			expected: []string{"default/owner-cm"},
		},
		{
			name: "kind mismatch",
			obj: ownedSecret("default", metav1.OwnerReference{
				APIVersion: "v1", Kind: "Secret", Name: "other",
			}),
			expected: nil,
		},
		{
			name: "group mismatch",
			obj: ownedSecret("default", metav1.OwnerReference{
				APIVersion: "apps/v1", Kind: "ConfigMap", Name: "other",
			}),
			expected: nil,
		},
		{
			name: "controller only skips non-controller refs",
			obj: ownedSecret("default", metav1.OwnerReference{
				APIVersion: "v1", Kind: "ConfigMap", Name: "owner-cm", Controller: &ctrlFalse,
			}),
			controllerOnly: true,
			expected:       nil,
		},
		{
			name: "controller only follows controller refs",
			obj: ownedSecret("default", metav1.OwnerReference{
				APIVersion: "v1", Kind: "ConfigMap", Name: "owner-cm", Controller: &ctrlTrue,
			}),
			controllerOnly: true,
			expected:       []string{"default/owner-cm"},
		},
		{
			name: "multiple owners",
			obj: ownedSecret("default",
				metav1.OwnerReference{APIVersion: "v1", Kind: "ConfigMap", Name: "owner-a"},
				metav1.OwnerReference{APIVersion: "v1", Kind: "ConfigMap", Name: "owner-b"},
			),
			expected: []string{"default/owner-a", "default/owner-b"},
		},
		{
			name: "cluster scoped dependent",
			obj: ownedSecret("", metav1.OwnerReference{
				APIVersion: "v1", Kind: "ConfigMap", Name: "owner-cm",
			}),
			expected: []string{"owner-cm"},
		},
		{
			name:     "no owners",
			obj:      ownedSecret("default"),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := OwnerKeys[*corev1.Secret](configMapGVK, tt.controllerOnly)
			got := fn(tt.obj)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected keys %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("expected keys %v, got %v", tt.expected, got)
				}
			}
		})
	}
}

type secretEvent struct {
	op       string
	old, obj *corev1.Secret
}

// fakeSecretWatch implements the Inform half of generic.Client, replaying
// scripted events into the handler.
type fakeSecretWatch struct {
	generic.Client[*corev1.Secret]
	events chan secretEvent
}

func (f *fakeSecretWatch) Inform(ctx context.Context, handler generic.InformerHandler[*corev1.Secret], _ *generic.InformOptions) (cache.SharedIndexInformer, error) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-f.events:
				key, err := cache.MetaNamespaceKeyFunc(ev.obj)
				if err != nil {
					handler.OnError(ev.obj, err)
					continue
				}
				switch ev.op {
				case "add":
					handler.OnAdd(key, ev.obj)
				case "update":
					handler.OnUpdate(key, ev.old, ev.obj)
				case "delete":
					handler.OnDelete(key, ev.obj)
				}
			}
		}
	}()
	return nil, nil
}

func TestMappedSourceMapsOldAndNew(t *testing.T) {
	events := make(chan secretEvent, 10)
	enqueued := make(chan string, 10)

	src := MappedSource(&fakeSecretWatch{events: events}, nil, OwnerKeys[*corev1.Secret](configMapGVK, false))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(key string) { enqueued <- key })
	}()

	expectKey := func(want string) {
		t.Helper()
		select {
		case got := <-enqueued:
			if got != want {
				t.Errorf("expected key %s, got %s", want, got)
			}
		case <-time.After(testTimeout):
			t.Fatalf("timeout waiting for key %s", want)
		}
	}

	owner := func(name string) metav1.OwnerReference {
		return metav1.OwnerReference{APIVersion: "v1", Kind: "ConfigMap", Name: name}
	}

	events <- secretEvent{op: "add", obj: ownedSecret("default", owner("owner-a"))}
	expectKey("default/owner-a")

	// The dependent changed hands: both the old and the new owner must be
	// reconciled, old first.
	events <- secretEvent{
		op:  "update",
		old: ownedSecret("default", owner("owner-a")),
		obj: ownedSecret("default", owner("owner-b")),
	}
	expectKey("default/owner-a")
	expectKey("default/owner-b")

	events <- secretEvent{op: "delete", obj: ownedSecret("default", owner("owner-b"))}
	expectKey("default/owner-b")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMappedSourceDrivesController(t *testing.T) {
	keys := make(chan string, 10)
	events := make(chan secretEvent, 10)
	calls := make(chan string, 10)

	ctrl := New[*corev1.ConfigMap](nil, ReconcilerFunc[*corev1.ConfigMap](func(_ context.Context, cm *corev1.ConfigMap) (Action, error) {
		calls <- cm.Name
		return Done(), nil
	}), &Options[*corev1.ConfigMap]{
		Source: chanSource(keys),
		ExtraSources: []Source{
			MappedSource(&fakeSecretWatch{events: events}, nil, OwnerKeys[*corev1.Secret](configMapGVK, false)),
		},
		Fetch: fetchFromKey,
	})
	stop := runController(t, ctrl)
	defer stop()

	events <- secretEvent{op: "add", obj: ownedSecret("default", metav1.OwnerReference{
		APIVersion: "v1", Kind: "ConfigMap", Name: "owner-cm",
	})}

	select {
	case got := <-calls:
		if got != "owner-cm" {
			t.Errorf("expected reconcile of owner-cm, got %s", got)
		}
	case <-time.After(testTimeout):
		t.Fatal("dependent event never reconciled the owner")
	}
}

func TestSetOwnerReference(t *testing.T) {
	owner := &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "ConfigMap",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      "owner-cm",
			Namespace: "default",
			UID:       "owner-uid",
		},
	}
	owned := ownedSecret("default")

	if err := SetOwnerReference(owned, owner, scheme.Scheme, false); err != nil {
		t.Fatalf("failed to set owner reference: %v", err)
	}

	refs := owned.GetOwnerReferences()
	if len(refs) != 1 {
		t.Fatalf("expected 1 owner reference, got %d", len(refs))
	}
	if refs[0].Controller != nil && *refs[0].Controller {
		t.Error("expected non-controller reference")
	}

	// Upgrading to a controller reference replaces, not appends.
	if err := SetOwnerReference(owned, owner, scheme.Scheme, true); err != nil {
		t.Fatalf("failed to set controller reference: %v", err)
	}
	refs = owned.GetOwnerReferences()
	if len(refs) != 1 {
		t.Fatalf("expected 1 owner reference, got %d", len(refs))
	}
	if refs[0].Controller == nil || !*refs[0].Controller {
		t.Error("expected controller reference")
	}

	if cr := ControllerReference(owned); cr == nil || cr.Name != "owner-cm" {
		t.Errorf("expected controller reference to owner-cm, got %+v", cr)
	}

	if !IsOwnedBy(owned, "owner-uid") {
		t.Error("expected object to be owned by owner-uid")
	}
	if IsOwnedBy(owned, "other-uid") {
		t.Error("did not expect ownership by other-uid")
	}

	if err := RemoveOwnerReference(owned, owner); err != nil {
		t.Fatalf("failed to remove owner reference: %v", err)
	}
	if len(owned.GetOwnerReferences()) != 0 {
		t.Error("expected owner reference removed")
	}
}
