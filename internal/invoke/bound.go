package invoke

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// boundedClient caps concurrent Invoke calls. The semaphore is shared
// across every client wrapping it, so one weighted semaphore bounds
// total in-flight requests regardless of how many endpoint clients a
// run builds.
type boundedClient struct {
	inner Client
	sem   *semaphore.Weighted
}

// Bound wraps c so that at most sem's weight of calls are in flight at
// once. Acquire is context-aware: a cancelled caller stops waiting and
// never holds a slot. A nil sem returns c unchanged.
func Bound(c Client, sem *semaphore.Weighted) Client {
	if sem == nil {
		return c
	}
	return &boundedClient{inner: c, sem: sem}
}

func (b *boundedClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)
	return b.inner.Invoke(ctx, req)
}
