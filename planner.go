package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"planner/distributor"
	"planner/job"
	"planner/utils"
	"planner/workerpool"

	"go.uber.org/zap"
)

var errSaveAborted = errors.New("planner: background save aborted")

var (
	ErrNoRegistry    = errors.New("planner: registry is required")
	ErrNoDistributor = errors.New("planner: no distributor configured")
	ErrInvalidTick   = errors.New("planner: tick must be positive")
)

// Planner is the driver loop of a job registry.
//
// Every tick it runs each committed job in turn and removes the jobs that
// ask to be cancelled. Jobs run sequentially on the loop goroutine, so an
// action that blocks delays every other job. An action error or panic is
// logged and does not stop the loop.
type Planner struct {
	sync.Mutex

	exit chan struct{}
	done chan struct{}

	// ctx is handed to actions and cancelled on exit.
	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger

	registry    *job.Registry
	distributor distributor.Distributor
	restore     job.Actions

	tick      time.Duration
	saveEvery int64
	ticks     int64

	workers    workerpool.WorkerPool
	ownWorkers bool

	// saving is true while a background save is in flight, inflight lets
	// shutdown wait for it.
	saving   bool
	inflight sync.WaitGroup
	backoff  utils.Backoff
}

// New return a Planner driving registry until exit is closed.
func New(exit chan struct{}, logger *zap.Logger, registry *job.Registry, options ...FuncOption) (*Planner, error) {
	if registry == nil {
		return nil, ErrNoRegistry
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Planner{
		exit:      exit,
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		registry:  registry,
		tick:      defaultTick,
		saveEvery: defaultSaveEvery,
		backoff:   utils.Backoff{Max: 21},
	}
	for _, option := range options {
		option(p)
	}
	if p.tick <= 0 {
		cancel()
		return nil, ErrInvalidTick
	}

	if p.restore != nil {
		jobs, err := p.Restore(ctx, p.restore)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("[Planner] restore schedule: %w", err)
		}
		p.logger.Info("[Planner] schedule restored", zap.Int("jobs", len(jobs)))
	}

	if p.workers == nil {
		p.workers = workerpool.NewPool(1, logger)
		p.ownWorkers = true
	}

	go p.start()
	return p, nil
}

// start ticks until exit is closed.
func (p *Planner) start() {
	p.logger.Info("[Planner] start", zap.Duration("tick", p.tick), zap.Int("jobs", p.registry.Len()))
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	defer close(p.done)

	for {
		select {
		case <-ticker.C:
			p.Tick(p.ctx)
			p.ticks++
			if p.saveEvery > 0 && p.ticks%p.saveEvery == 0 {
				p.saveAsync()
			}
		case <-p.exit:
			p.shutdown()
			return
		}
	}
}

// Tick runs every committed job once, in due order, and return how many
// jobs were removed on cancellation.
func (p *Planner) Tick(ctx context.Context) int {
	jobs := p.registry.Jobs()
	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].NextRun() < jobs[b].NextRun()
	})

	removed := 0
	for _, j := range jobs {
		if p.run(ctx, j) != job.Cancel {
			continue
		}
		if p.registry.Remove(j) {
			removed++
			p.logger.Info("[Planner] job cancelled", zap.String("job", j.ID()), zap.String("action", j.Action()))
		}
	}
	return removed
}

// run isolates a job failure from the rest of the tick.
func (p *Planner) run(ctx context.Context, j *job.Job) (outcome job.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("[Planner] job panic", zap.String("job", j.ID()), zap.Any("panic", r))
			outcome = job.Continue
		}
	}()

	outcome, err := j.Run(ctx)
	if err != nil {
		p.logger.Error("[Planner] job run", zap.String("job", j.ID()),
			zap.String("action", j.Action()), zap.Error(err))
	}
	return outcome
}

// saveAsync hands a save to the worker pool unless one is in flight or the
// previous failures still hold it back.
func (p *Planner) saveAsync() {
	if p.distributor == nil {
		return
	}

	p.Lock()
	if p.saving || !p.backoff.Ready() {
		p.Unlock()
		return
	}
	p.saving = true
	p.inflight.Add(1)
	p.Unlock()

	p.workers.ScheduleAlways(func() {
		defer p.inflight.Done()
		// a panicking distributor still counts as a failed save
		err := errSaveAborted
		defer func() { p.saved(err) }()

		ctx, cancel := context.WithTimeout(p.ctx, 3*time.Second)
		defer cancel()
		err = p.Save(ctx)
	})
}

// saved clears the in-flight flag and updates the backoff.
func (p *Planner) saved(err error) {
	p.Lock()
	defer p.Unlock()
	p.saving = false
	if err != nil {
		wait := p.backoff.Fail()
		p.logger.Error("[Planner] background save", zap.Error(err), zap.Int64("skip", wait))
		return
	}
	p.backoff.Reset()
}

// Save persists the committed jobs through the distributor.
func (p *Planner) Save(ctx context.Context) error {
	if p.distributor == nil {
		return ErrNoDistributor
	}
	return p.distributor.SaveSchedule(ctx, p.registry)
}

// Restore loads the stored jobs into the registry.
func (p *Planner) Restore(ctx context.Context, actions job.Actions) ([]*job.Job, error) {
	if p.distributor == nil {
		return nil, ErrNoDistributor
	}
	return p.distributor.GetSchedule(ctx, p.registry, actions)
}

// Done is closed once the loop exited and the final save completed.
func (p *Planner) Done() <-chan struct{} {
	return p.done
}

func (p *Planner) shutdown() {
	p.logger.Info("[Planner] exit, waiting for background work")
	if p.ownWorkers {
		p.workers.Close()
	}
	p.cancel()
	// an older snapshot must not land after the exit save
	p.inflight.Wait()

	if p.distributor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Save(ctx); err != nil {
		p.logger.Error("[Planner] exit save", zap.Error(err))
		return
	}
	p.logger.Info("[Planner] exit, schedule saved", zap.Int("jobs", p.registry.Len()))
}
