package workerpool

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// idleTimeout is how long a temp worker waits for more tasks before exiting.
var idleTimeout = time.Minute

// Pool is a bounded goroutine pool, workers receive tasks from the job channel.
type Pool struct {
	sync.RWMutex

	wg sync.WaitGroup

	job    chan func()
	worker chan struct{}

	closeOnce sync.Once

	// use for monitor pool status.
	uuid        string
	size        int
	currentSize int

	logger *zap.Logger
}

// NewPool create a new Pool with n workers.
func NewPool(n int, logger *zap.Logger) *Pool {
	if n <= 0 {
		n = 1
	}
	id := uuid.New().String()
	return &Pool{
		uuid:   id,
		job:    make(chan func()),
		worker: make(chan struct{}, n),
		size:   n,
		logger: logger.With(zap.String("pool", id)),
	}
}

// Schedule acquire a goroutine to execute task from Pool.
func (p *Pool) Schedule(task func()) {
	select {
	case p.job <- task:
	case p.worker <- struct{}{}:
		p.add(1)
		go p.spawnWorker(task)
	}
}

// ScheduleAlways acquire a goroutine to execute task from Pool.
// If Pool is overflow, Acquire a new temp goroutine for task.
func (p *Pool) ScheduleAlways(task func()) {
	select {
	case p.job <- task:
	case p.worker <- struct{}{}:
		p.add(1)
		go p.spawnWorker(task)
	default:
		p.add(1)
		go p.spawnTemp(task, idleTimeout)
	}
}

// spawnWorker runs task then keeps receiving from the job channel until Close.
func (p *Pool) spawnWorker(task func()) {
	defer func() {
		<-p.worker
		p.done()
	}()

	p.safe(task)
	for job := range p.job {
		p.safe(job)
	}
}

// spawnTemp runs task then waits up to timeout for another one.
func (p *Pool) spawnTemp(task func(), timeout time.Duration) {
	defer p.done()

	p.safe(task)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return
		case job, ok := <-p.job:
			if !ok {
				return
			}
			p.safe(job)

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(timeout)
		}
	}
}

// safe keeps a panicking task from killing its worker.
func (p *Pool) safe(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("[WorkerPool] task panic", zap.Any("panic", r),
				zap.Int("size", p.size), zap.Int("current", p.current()))
		}
	}()
	task()
}

// Close the job channel and waiting for all task finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.job)
	})
	p.wg.Wait()
	p.logger.Info("[WorkerPool] close", zap.Int("size", p.size), zap.Int("current", p.current()))
}

func (p *Pool) add(n int) {
	p.wg.Add(n)
	p.Lock()
	p.currentSize += n
	p.Unlock()
	p.logger.Debug("[WorkerPool] worker created", zap.Int("size", p.size), zap.Int("current", p.current()))
}

func (p *Pool) done() {
	p.Lock()
	p.currentSize--
	p.Unlock()
	p.logger.Debug("[WorkerPool] worker exit", zap.Int("size", p.size), zap.Int("current", p.current()))
	p.wg.Done()
}

func (p *Pool) current() int {
	p.RLock()
	defer p.RUnlock()
	return p.currentSize
}
