package discovery

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned to a discovery whose result was overtaken by a
// newer request.
var ErrSuperseded = errors.New("discovery superseded by a newer request")

// Latest serializes discovery for one consumer, such as a screen or a user
// session: starting a run cancels the previous one, and only the most
// recently started run may apply its result.
type Latest struct {
	svc *Service

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewLatest wraps svc.
func NewLatest(svc *Service) *Latest {
	return &Latest{svc: svc}
}

// Run discovers venues for q and calls apply with the result, unless a newer
// Run or Stop happened in the meantime, in which case it returns
// ErrSuperseded and apply is not called. apply runs under the Latest lock, so
// results are applied in request order.
func (l *Latest) Run(ctx context.Context, q Query, apply func(Result)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	l.cancel = cancel
	l.mu.Unlock()

	res := l.svc.Discover(ctx, q)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		l.svc.metrics.DiscoveryRuns.WithLabelValues("superseded").Inc()
		return ErrSuperseded
	}
	l.cancel = nil
	if apply != nil {
		apply(res)
	}
	return nil
}

// Discover is Run returning the result directly.
func (l *Latest) Discover(ctx context.Context, q Query) (Result, error) {
	var out Result
	err := l.Run(ctx, q, func(r Result) { out = r })
	return out, err
}

// Stop cancels any in-flight run and prevents it from applying its result.
func (l *Latest) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}
