package loom

import "sync"

// OrphanCollector tracks promises that have settled but whose result was
// never retrieved by an Await/AwaitAll/AwaitFirst/AwaitOne call. A
// terminal, un-awaited promise stays visible via Task.Orphans
// instead of being silently dropped, and Task.Care lets a task claim (and
// thereby retrieve) one.
type OrphanCollector struct {
	mu    sync.Mutex
	order []PromiseID
	byID  map[PromiseID]*Promise
}

func newOrphanCollector() *OrphanCollector {
	return &OrphanCollector{byID: make(map[PromiseID]*Promise)}
}

// add registers p as orphaned. Called by finishTask immediately after a
// non-root promise settles; removed again the moment any Await* call
// retrieves it (executor.go).
func (c *OrphanCollector) add(p *Promise) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byID[p.id]; exists {
		return
	}
	c.byID[p.id] = p
	c.order = append(c.order, p.id)
}

// remove drops id from the orphan set, if present.
func (c *OrphanCollector) remove(id PromiseID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byID[id]; !exists {
		return
	}
	delete(c.byID, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Orphans returns every currently-orphaned promise, oldest first.
func (c *OrphanCollector) Orphans() []*Promise {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Promise, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Care claims the oldest orphan, removing it from the collector and
// returning its settled result. The ok result is false when there are no
// orphans.
func (c *OrphanCollector) Care() (result Result, ok bool) {
	c.mu.Lock()
	if len(c.order) == 0 {
		c.mu.Unlock()
		return Result{}, false
	}
	id := c.order[0]
	c.order = c.order[1:]
	p := c.byID[id]
	delete(c.byID, id)
	c.mu.Unlock()

	state, value, err := p.snapshot()
	return Result{State: state, Value: value, Err: err}, true
}
