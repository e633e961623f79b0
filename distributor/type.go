package distributor

import (
	"context"

	"planner/job"

	"go.uber.org/zap"
)

// Distributor persists a registry schedule and rebuilds it.
type Distributor interface {
	// SaveSchedule replaces the stored schedule with the committed jobs of r.
	SaveSchedule(ctx context.Context, r *job.Registry) error

	// GetSchedule restores the stored jobs into r, resolving their actions
	// through actions, and return them.
	GetSchedule(ctx context.Context, r *job.Registry, actions job.Actions) ([]*job.Job, error)
}

type options struct {
	prefix string
	logger *zap.Logger
}

type FuncOption func(o *options)

// WithPrefix sets the key prefix of the stored records.
func WithPrefix(prefix string) FuncOption {
	return func(o *options) {
		o.prefix = prefix
	}
}

func WithLogger(logger *zap.Logger) FuncOption {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(prefix string, funcOptions ...FuncOption) *options {
	o := &options{prefix: prefix, logger: zap.NewNop()}
	for _, f := range funcOptions {
		f(o)
	}
	return o
}
