package job

import (
	"sync"
	"time"
)

// Registry is the collection of committed jobs and the factory for new ones.
//
// Jobs are keyed by identity. The registry is safe for concurrent use so a
// schedule can be saved from another goroutine while the driver ticks.
type Registry struct {
	sync.RWMutex

	jobs map[*Job]struct{}

	// clock returns the current epoch seconds.
	clock func() int64
	// exact disables the compounding of interval across unit qualifiers.
	exact bool
}

type FuncOption func(r *Registry)

// WithClock replaces the wall clock, unit second.
func WithClock(clock func() int64) FuncOption {
	return func(r *Registry) {
		r.clock = clock
	}
}

// WithExactUnits makes every unit qualifier replace the cadence instead of
// compounding the interval.
func WithExactUnits() FuncOption {
	return func(r *Registry) {
		r.exact = true
	}
}

// NewRegistry return an empty Registry.
func NewRegistry(options ...FuncOption) *Registry {
	r := &Registry{
		jobs: make(map[*Job]struct{}),
		clock: func() int64 {
			return time.Now().Unix()
		},
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Every creates an uncommitted Job with the given base interval.
// A construction error is kept on the job and returned by Commit.
func (r *Registry) Every(interval int) *Job {
	j, err := New(r, interval)
	if err != nil {
		return &Job{err: err}
	}
	return j
}

// Now return the registry clock.
func (r *Registry) Now() int64 {
	return r.clock()
}

// Jobs return a snapshot of the committed jobs.
func (r *Registry) Jobs() []*Job {
	r.RLock()
	defer r.RUnlock()
	jobs := make([]*Job, 0, len(r.jobs))
	for j := range r.jobs {
		jobs = append(jobs, j)
	}
	return jobs
}

func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.jobs)
}

func (r *Registry) Contains(j *Job) bool {
	r.RLock()
	defer r.RUnlock()
	_, ok := r.jobs[j]
	return ok
}

// Remove a job from the registry, report whether it was present.
func (r *Registry) Remove(j *Job) bool {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.jobs[j]; !ok {
		return false
	}
	delete(r.jobs, j)
	return true
}

// Tagged return the committed jobs carrying tag.
func (r *Registry) Tagged(tag string) []*Job {
	var jobs []*Job
	for _, j := range r.Jobs() {
		if j.HasTag(tag) {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

// RemoveTagged removes every job carrying tag and return how many were removed.
func (r *Registry) RemoveTagged(tag string) int {
	removed := 0
	for _, j := range r.Tagged(tag) {
		if r.Remove(j) {
			removed++
		}
	}
	return removed
}

func (r *Registry) add(jobs ...*Job) {
	r.Lock()
	for _, j := range jobs {
		r.jobs[j] = struct{}{}
	}
	r.Unlock()
}
