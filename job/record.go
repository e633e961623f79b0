package job

import (
	"fmt"
	"sort"
)

// Record is the persisted form of a committed job.
type Record struct {
	Id        string `json:"id"`
	Interval  int64  `json:"interval"`
	DeltaTime int64  `json:"delta_time"`

	// LastRun is nil before the first successful run.
	LastRun *int64 `json:"last_run,omitempty"`
	NextRun int64  `json:"next_run"`

	Start *int64 `json:"start,omitempty"`
	Stop  *int64 `json:"stop,omitempty"`

	Tags []string `json:"tags,omitempty"`

	// Action is resolved through Actions at load time.
	Action string        `json:"action"`
	Args   []interface{} `json:"args,omitempty"`
	Kwargs Kwargs        `json:"kwargs,omitempty"`
}

// Record snapshots the job state.
func (j *Job) Record() Record {
	j.mx.Lock()
	defer j.mx.Unlock()

	rec := Record{
		Id:        j.id,
		Interval:  j.interval,
		DeltaTime: j.deltaTime,
		NextRun:   j.nextRun,
		Start:     copyBound(j.start),
		Stop:      copyBound(j.stop),
		Action:    j.action,
		Args:      append([]interface{}(nil), j.args.Positional...),
		Kwargs:    j.args.Named,
	}
	if j.ran {
		last := j.lastRun
		rec.LastRun = &last
	}
	for tag := range j.tags {
		rec.Tags = append(rec.Tags, tag)
	}
	sort.Strings(rec.Tags)
	return rec
}

func copyBound(b *int64) *int64 {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// Restore rebuilds a committed job from rec and inserts it into r.
// The persisted next run is kept as is.
func Restore(r *Registry, rec Record, actions Actions) (*Job, error) {
	j, err := build(r, rec, actions)
	if err != nil {
		return nil, err
	}
	r.add(j)
	return j, nil
}

// RestoreAll rebuilds every record, in the given order, and inserts them
// into r only when all of them resolve. On error r is left unchanged.
func RestoreAll(r *Registry, records []Record, actions Actions) ([]*Job, error) {
	jobs := make([]*Job, 0, len(records))
	for _, rec := range records {
		j, err := build(r, rec, actions)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.Id, err)
		}
		jobs = append(jobs, j)
	}
	r.add(jobs...)
	return jobs, nil
}

func build(r *Registry, rec Record, actions Actions) (*Job, error) {
	if r == nil || rec.Interval <= 0 {
		return nil, ErrInvalidArgument
	}
	fn, ok := actions.Lookup(rec.Action)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, rec.Action)
	}

	j := &Job{
		id:        rec.Id,
		registry:  r,
		base:      rec.Interval,
		interval:  rec.Interval,
		deltaTime: rec.DeltaTime,
		nextRun:   rec.NextRun,
		start:     copyBound(rec.Start),
		stop:      copyBound(rec.Stop),
		fn:        fn,
		action:    rec.Action,
		args: Args{
			Positional: append([]interface{}(nil), rec.Args...),
			Named:      rec.Kwargs,
		},
		tags:      make(map[string]struct{}, len(rec.Tags)),
		committed: true,
	}
	if rec.LastRun != nil {
		j.lastRun, j.ran = *rec.LastRun, true
	}
	for _, tag := range rec.Tags {
		j.tags[tag] = struct{}{}
	}
	return j, nil
}
