package service

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// runFlight is one shared find-matches execution. Its context is cancelled
// only when every caller waiting on it has gone away.
type runFlight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// runGroup coalesces concurrent runs with the same key. Unlike a bare
// singleflight.Group, a caller cancelling its own context does not cancel
// the run for the other callers sharing it.
type runGroup struct {
	sf      singleflight.Group
	mu      sync.Mutex
	flights map[string]*runFlight
}

// do runs fn once per key among concurrent callers. The map entry and the
// singleflight call are created and retired under mu, so a flight in the
// map is always the one fn is running with.
func (g *runGroup) do(ctx context.Context, key string, fn func(context.Context) (*Result, error)) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.flights == nil {
		g.flights = make(map[string]*runFlight)
	}
	f, ok := g.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &runFlight{ctx: fctx, cancel: cancel}
		g.flights[key] = f
	}
	f.waiters++
	ch := g.sf.DoChan(key, func() (any, error) {
		defer g.retire(key, f)
		return fn(f.ctx)
	})
	g.mu.Unlock()

	select {
	case r := <-ch:
		res, _ := r.Val.(*Result)
		return res, r.Err
	case <-ctx.Done():
	}

	g.mu.Lock()
	f.waiters--
	last := f.waiters == 0
	if last && g.flights[key] == f {
		// New callers must not join a run that is being cancelled.
		g.sf.Forget(key)
		delete(g.flights, key)
	}
	g.mu.Unlock()

	if !last {
		return nil, ctx.Err()
	}
	f.cancel()
	r := <-ch
	res, _ := r.Val.(*Result)
	if r.Err == nil {
		return res, ctx.Err()
	}
	return res, r.Err
}

func (g *runGroup) retire(key string, f *runFlight) {
	g.mu.Lock()
	if g.flights[key] == f {
		g.sf.Forget(key)
		delete(g.flights, key)
	}
	g.mu.Unlock()
	f.cancel()
}
