package job

import (
	"context"
	"errors"
)

// Outcome is the result of evaluating a Job.
type Outcome int

const (
	// Continue - keep scheduling the job.
	Continue Outcome = iota
	// Cancel - the job asks to be removed from its registry.
	Cancel
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "CONTINUE"
	case Cancel:
		return "CANCEL"
	}
	return "UNKNOWN"
}

// Kwargs are the named arguments bound to an action.
type Kwargs map[string]interface{}

// Args are the call-time arguments captured when the action was bound.
type Args struct {
	Positional []interface{}
	Named      Kwargs
}

// Func is the unit of work bound to a Job. Returning Cancel stops the recurrence.
type Func func(ctx context.Context, args Args) (Outcome, error)

// Actions resolves persisted action names back to functions.
type Actions map[string]Func

// Lookup return the action registered under name.
func (a Actions) Lookup(name string) (Func, bool) {
	fn, ok := a[name]
	return fn, ok && fn != nil
}

// Unit factors in seconds.
const (
	Second int64 = 1
	Minute       = 60 * Second
	Hour         = 60 * Minute
	Day          = 24 * Hour
	Week         = 7 * Day
)

var (
	ErrInvalidArgument = errors.New("job: registry and a positive interval are required")
	ErrNoAction        = errors.New("job: no action bound")
	ErrCommitted       = errors.New("job: already committed")
	ErrNotCommitted    = errors.New("job: not committed")
	ErrUnknownAction   = errors.New("job: unknown action")
	ErrOverflow        = errors.New("job: interval overflows int64 seconds")
)
