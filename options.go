package planner

import (
	"time"

	"planner/distributor"
	"planner/job"
	"planner/workerpool"
)

var (
	defaultTick      = time.Second
	defaultSaveEvery = int64(60)
)

type FuncOption func(p *Planner)

// WithTick sets how often every committed job is evaluated, default is 1s.
func WithTick(d time.Duration) FuncOption {
	return func(p *Planner) {
		p.tick = d
	}
}

// WithDistributor enables schedule persistence.
func WithDistributor(d distributor.Distributor) FuncOption {
	return func(p *Planner) {
		p.distributor = d
	}
}

// WithSaveEvery saves the schedule in background every n ticks, default is 60.
// A value <= 0 only saves on exit.
func WithSaveEvery(n int64) FuncOption {
	return func(p *Planner) {
		p.saveEvery = n
	}
}

// WithRestore loads the stored schedule into the registry before the first tick.
func WithRestore(actions job.Actions) FuncOption {
	return func(p *Planner) {
		p.restore = actions
	}
}

// WithWorkers runs background saves on wp, the caller keeps ownership of it.
func WithWorkers(wp workerpool.WorkerPool) FuncOption {
	return func(p *Planner) {
		p.workers = wp
	}
}

// WithMaxBackoff bounds the number of save slots skipped after failures, default is 21.
func WithMaxBackoff(n int64) FuncOption {
	return func(p *Planner) {
		p.backoff.Max = n
	}
}
