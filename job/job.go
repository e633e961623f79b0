package job

import (
	"context"
	"math"
	"reflect"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Job is one scheduled unit of work.
//
// A Job is built fluently from Registry.Every and becomes visible to the
// driver on Commit. Cadence, window and action may only change before the
// first Commit; tags may change at any time.
//
// The default unit qualifiers reproduce a compounding behaviour: each
// non-second qualifier multiplies interval while deltaTime accumulates, so
// Every(n).Minute().Minute() steps by 60n+3600n seconds. Use WithExactUnits
// on the registry to make qualifiers replace the cadence instead.
// Compounding grows fast: four chained Week calls exceed int64, in which
// case the qualifier sets ErrOverflow and Commit reports it.
type Job struct {
	mx sync.Mutex

	// Unique Id is used as persistence key.
	id string

	registry *Registry

	// base is the interval given to Every, unit-free.
	base int64
	// interval is rescaled by every non-second unit qualifier.
	interval int64
	// deltaTime is the step added to now to compute the next run, unit second.
	deltaTime int64

	lastRun int64
	ran     bool
	nextRun int64

	// optional active window, epoch seconds.
	start *int64
	stop  *int64

	fn     Func
	action string
	args   Args

	tags map[string]struct{}

	committed bool
	// err is a construction error, reported by Commit.
	err error
	// rejected records the last builder call refused after commit.
	rejected error
}

// New creates an uncommitted job bound to r.
func New(r *Registry, interval int) (*Job, error) {
	if r == nil || interval <= 0 {
		return nil, ErrInvalidArgument
	}
	return &Job{
		id:       "job-" + uuid.New().String(),
		registry: r,
		base:     int64(interval),
		interval: int64(interval),
		tags:     make(map[string]struct{}),
	}, nil
}

// mutable reports whether a cadence, window or action change is allowed.
// The caller must hold j.mx.
func (j *Job) mutable() bool {
	if j.err != nil {
		return false
	}
	if j.committed {
		j.rejected = ErrCommitted
		return false
	}
	return true
}

func (j *Job) unit(factor int64, rescale bool) *Job {
	j.mx.Lock()
	defer j.mx.Unlock()
	if !j.mutable() {
		return j
	}

	if j.registry.exact {
		step, ok := mul(j.base, factor)
		if !ok {
			j.err = ErrOverflow
			return j
		}
		j.interval = step
		j.deltaTime = step
		return j
	}

	step, ok := mul(j.interval, factor)
	if !ok || j.deltaTime > math.MaxInt64-step {
		j.err = ErrOverflow
		return j
	}
	j.deltaTime += step
	if rescale {
		j.interval = step
	}
	return j
}

// mul multiplies two positive values, ok is false on overflow.
func mul(a, b int64) (int64, bool) {
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

func (j *Job) Second() *Job { return j.unit(Second, false) }

// Seconds is an alias of Second.
func (j *Job) Seconds() *Job { return j.Second() }

func (j *Job) Minute() *Job { return j.unit(Minute, true) }

func (j *Job) Minutes() *Job { return j.Minute() }

func (j *Job) Hour() *Job { return j.unit(Hour, true) }

func (j *Job) Hours() *Job { return j.Hour() }

func (j *Job) Day() *Job { return j.unit(Day, true) }

func (j *Job) Days() *Job { return j.Day() }

func (j *Job) Week() *Job { return j.unit(Week, true) }

func (j *Job) Weeks() *Job { return j.Week() }

// StartingFrom keeps the job dormant before moment. A moment <= 0 clears it.
func (j *Job) StartingFrom(moment int64) *Job {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.mutable() {
		j.start = bound(moment)
	}
	return j
}

// StoppingAt expires the job after moment. A moment <= 0 clears it.
func (j *Job) StoppingAt(moment int64) *Job {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.mutable() {
		j.stop = bound(moment)
	}
	return j
}

func bound(moment int64) *int64 {
	if moment <= 0 {
		return nil
	}
	return &moment
}

// Tag adds labels to the job. Tags are never removed.
func (j *Job) Tag(tags ...string) *Job {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.tags == nil {
		j.tags = make(map[string]struct{})
	}
	for _, tag := range tags {
		j.tags[tag] = struct{}{}
	}
	return j
}

// Do binds fn and its positional arguments. fn is not invoked.
func (j *Job) Do(fn Func, args ...interface{}) *Job {
	return j.DoWith(fn, nil, args...)
}

// DoWith binds fn with positional and named arguments.
func (j *Job) DoWith(fn Func, kwargs Kwargs, args ...interface{}) *Job {
	j.mx.Lock()
	defer j.mx.Unlock()
	if !j.mutable() {
		return j
	}

	j.fn = fn
	j.action = funcName(fn)
	j.args = Args{Positional: append([]interface{}(nil), args...)}
	if kwargs != nil {
		j.args.Named = make(Kwargs, len(kwargs))
		for k, v := range kwargs {
			j.args.Named[k] = v
		}
	}
	return j
}

// Named overrides the action name recorded for persistence.
func (j *Job) Named(name string) *Job {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.mutable() {
		j.action = name
	}
	return j
}

func funcName(fn Func) string {
	if fn == nil {
		return ""
	}
	if f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()); f != nil {
		return f.Name()
	}
	return ""
}

// Commit computes the next run and inserts the job into its registry.
// Committing again reschedules the job from the current clock.
func (j *Job) Commit() error {
	j.mx.Lock()
	if j.err != nil {
		j.mx.Unlock()
		return j.err
	}
	if j.fn == nil {
		j.mx.Unlock()
		return ErrNoAction
	}
	now := j.registry.Now()
	if j.deltaTime > math.MaxInt64-now {
		j.mx.Unlock()
		return ErrOverflow
	}
	j.nextRun = now + j.deltaTime
	j.committed = true
	j.mx.Unlock()

	j.registry.add(j)
	return nil
}

// Run evaluates the job once against a single clock sample and invokes its
// action when due. An action error is returned as is and leaves the job due.
func (j *Job) Run(ctx context.Context) (Outcome, error) {
	j.mx.Lock()
	if !j.committed {
		j.mx.Unlock()
		return Continue, ErrNotCommitted
	}

	now := j.registry.Now()
	switch {
	case j.start != nil && now < *j.start:
		j.mx.Unlock()
		return Continue, nil
	case j.stop != nil && now > *j.stop:
		j.mx.Unlock()
		return Cancel, nil
	case now < j.nextRun:
		j.mx.Unlock()
		return Continue, nil
	}
	fn, args := j.fn, j.args
	// the action may use the job itself, e.g. to re-tag.
	j.mx.Unlock()

	outcome, err := fn(ctx, args)
	if err != nil {
		return Continue, err
	}
	if outcome == Cancel {
		return Cancel, nil
	}

	j.mx.Lock()
	j.nextRun = now + j.deltaTime
	j.lastRun = now
	j.ran = true
	j.mx.Unlock()
	return Continue, nil
}

func (j *Job) ID() string {
	return j.id
}

func (j *Job) Interval() int64 {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.interval
}

func (j *Job) DeltaTime() int64 {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.deltaTime
}

// LastRun return the last successful execution time, ok is false before the first run.
func (j *Job) LastRun() (int64, bool) {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.lastRun, j.ran
}

func (j *Job) NextRun() int64 {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.nextRun
}

func (j *Job) Start() (int64, bool) {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.start == nil {
		return 0, false
	}
	return *j.start, true
}

func (j *Job) Stop() (int64, bool) {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.stop == nil {
		return 0, false
	}
	return *j.stop, true
}

// Tags return the sorted labels of the job.
func (j *Job) Tags() []string {
	j.mx.Lock()
	defer j.mx.Unlock()
	tags := make([]string, 0, len(j.tags))
	for tag := range j.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func (j *Job) HasTag(tag string) bool {
	j.mx.Lock()
	defer j.mx.Unlock()
	_, ok := j.tags[tag]
	return ok
}

func (j *Job) Committed() bool {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.committed
}

// Action return the name recorded for the bound action.
func (j *Job) Action() string {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.action
}

// Err return the construction error, or ErrCommitted when a builder call
// was refused after commit.
func (j *Job) Err() error {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.err != nil {
		return j.err
	}
	return j.rejected
}
