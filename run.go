package loom

import (
	"context"
	"sync"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/google/uuid"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ygrebnov/loom/events"
	"github.com/ygrebnov/loom/metrics"
)

// scheduler is the live state of one Run invocation: its domains, the
// cross-domain dispatcher, and the single latch used to report an
// uncatchable fatal condition to Run's caller.
type scheduler struct {
	domains    []*domain
	dispatcher *dispatcher
	cfg        Config
	logger     Logger
	metrics    metrics.Provider
	orphans    *OrphanCollector
	runID      uuid.UUID
	counters   schedCounters

	fatalOnce sync.Once
	fatalErr  error
	fatalCh   chan struct{}

	wg sync.WaitGroup
}

// wrapFunc applies the configured EffectWrapper, if any, around fn. Used for
// the root function and every spawned child so a wrapper sees every task.
func (s *scheduler) wrapFunc(fn Func) Func {
	if s.cfg.EffectWrapper == nil {
		return fn
	}
	return s.cfg.EffectWrapper(fn)
}

func (s *scheduler) latchFatal(err error) {
	s.fatalOnce.Do(func() {
		s.fatalErr = err
		close(s.fatalCh)
		for _, d := range s.domains {
			d.provider.Interrupt()
		}
	})
}

// Run executes fn as the root task and blocks until it settles, returning
// its result. A fatal condition raised anywhere in the promise tree instead
// aborts Run early with that error. GOMAXPROCS and GOMEMLIMIT are tuned once
// for the process, here, before any domain starts, mirroring how a
// long-running server process configures itself at boot.
func Run(ctx context.Context, fn Func, opts ...Option) (any, error) {
	undoMaxprocs, _ := maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))
	defer undoMaxprocs()
	_, _ = memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(0.9))

	cfg, err := buildConfig(opts...)
	if err != nil {
		return nil, err
	}

	runID := uuid.New()
	logger := cfg.Logger
	if logger == nil {
		logger = newDefaultLogger()
	}

	s := &scheduler{
		cfg:        cfg,
		logger:     logger,
		metrics:    cfg.Metrics,
		orphans:    newOrphanCollector(),
		runID:      runID,
		dispatcher: newDispatcher(cfg.Seed),
		fatalCh:    make(chan struct{}),
	}
	if s.metrics == nil {
		s.metrics = metrics.NoopProvider{}
	}

	s.domains = make([]*domain, cfg.Domains)
	for i := range s.domains {
		id := DomainID(i)
		var provider events.Provider
		if cfg.EventsFactory != nil {
			provider = cfg.EventsFactory(uint32(id))
		} else {
			provider = events.NewNoopProvider()
		}
		s.domains[i] = newDomain(id, s, provider)
	}

	root := newPromise(s.domains[0].ids.allocPromise(), 0, nil)
	root.orphan = s.orphans
	rootTask := newTask(root, s.wrapFunc(fn), s)
	root.task = rootTask
	s.recordSpawn()

	s.logInfo().Int64(`domains`, int64(len(s.domains))).Log(`run started`)

	s.wg.Add(len(s.domains))
	for _, d := range s.domains {
		go s.runDomainExecutor(d)
	}
	s.domains[0].start(root)
	s.domains[0].provider.Interrupt()

	select {
	case <-root.doneCh:
	case <-s.fatalCh:
		s.logErr(s.fatalErr).Log(`run aborted by fatal condition`)
		s.teardown()
		return nil, s.fatalErr
	case <-ctx.Done():
		s.teardown()
		return nil, ctx.Err()
	}

	s.teardown()
	s.logInfo().Log(`run finished`)

	_, value, rerr := root.snapshot()
	if s.fatalErr != nil {
		return nil, s.fatalErr
	}
	return value, rerr
}

// teardown signals every domain executor to stop and waits for them to
// exit, so Run never returns while a domain goroutine is still running.
func (s *scheduler) teardown() {
	for _, d := range s.domains {
		stopDomain(d)
	}
	s.wg.Wait()
}

func stopDomain(d *domain) {
	select {
	case d.inbox <- inboxMsg{kind: inboxWake, wake: func() { d.stopped = true }}:
	default:
	}
	d.provider.Interrupt()
}
