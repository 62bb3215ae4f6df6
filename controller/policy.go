package controller

import (
	"sync"
	"time"

	"k8s.io/client-go/util/workqueue"
)

// ErrorPolicy decides what to do after a reconcile attempt fails.
//
// Failed is called exactly once per failed attempt and its Action is
// honored the same way a success Action would be. Succeeded is called
// after each successful attempt so stateful policies can reset per-key
// backoff.
type ErrorPolicy interface {
	Failed(key string, err error) Action
	Succeeded(key string)
}

// ErrorPolicyFunc is an adapter to allow ordinary functions to be used as
// stateless ErrorPolicies. Succeeded is a no-op.
type ErrorPolicyFunc func(key string, err error) Action

// Failed calls f(key, err).
func (f ErrorPolicyFunc) Failed(key string, err error) Action { return f(key, err) }

// Succeeded does nothing.
func (f ErrorPolicyFunc) Succeeded(string) {}

// DefaultErrorPolicy requeues failed keys through the workqueue's rate
// limiter, which backs off exponentially per key and resets when the
// controller forgets the key after a success.
func DefaultErrorPolicy() ErrorPolicy {
	return ErrorPolicyFunc(func(string, error) Action { return Requeue() })
}

// FixedBackoff retries every failed attempt after the same delay.
func FixedBackoff(d time.Duration) ErrorPolicy {
	return ErrorPolicyFunc(func(string, error) Action { return RequeueAfter(d) })
}

// ExponentialBackoff retries failed attempts with per-key delays growing
// from base up to max, resetting on the first success.
func ExponentialBackoff(base, max time.Duration) ErrorPolicy {
	return &exponentialBackoff{
		limiter: workqueue.NewTypedItemExponentialFailureRateLimiter[string](base, max),
	}
}

type exponentialBackoff struct {
	limiter workqueue.TypedRateLimiter[string]
}

func (p *exponentialBackoff) Failed(key string, _ error) Action {
	return RequeueAfter(p.limiter.When(key))
}

func (p *exponentialBackoff) Succeeded(key string) {
	p.limiter.Forget(key)
}

// RetryLimited wraps another policy and gives up on a key after max
// consecutive failures, settling it until the next watch notification.
func RetryLimited(inner ErrorPolicy, max int) ErrorPolicy {
	return &retryLimited{inner: inner, max: max, failures: map[string]int{}}
}

type retryLimited struct {
	inner ErrorPolicy
	max   int

	mu       sync.Mutex
	failures map[string]int
}

func (p *retryLimited) Failed(key string, err error) Action {
	p.mu.Lock()
	p.failures[key]++
	n := p.failures[key]
	p.mu.Unlock()

	if n >= p.max {
		return Done()
	}
	return p.inner.Failed(key, err)
}

func (p *retryLimited) Succeeded(key string) {
	p.mu.Lock()
	delete(p.failures, key)
	p.mu.Unlock()
	p.inner.Succeeded(key)
}
