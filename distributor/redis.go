package distributor

import (
	"context"
	"encoding/json"
	"fmt"

	"planner/job"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Keys share the `{prefix}` hash tag, so a schedule lives on one cluster
// slot and can be written in a single MULTI/EXEC.
var (
	scheduleKeyFormat = "{%s}_schedule"
	jobKeyFormat      = "{%s}_job_%s"
)

// Redis stores one JSON record per job and a sorted set of job ids scored
// by next run, so a schedule loads in due order. A save is one transaction,
// readers never see a partly written schedule.
type Redis struct {
	backend redis.UniversalClient
	prefix  string
	logger  *zap.Logger
}

// NewRedis return a Distributor backed by redis, default prefix is `planner`.
func NewRedis(backend redis.UniversalClient, funcOptions ...FuncOption) *Redis {
	o := newOptions("planner", funcOptions...)
	return &Redis{
		backend: backend,
		prefix:  o.prefix,
		logger:  o.logger,
	}
}

func (d *Redis) scheduleKey() string {
	return fmt.Sprintf(scheduleKeyFormat, d.prefix)
}

func (d *Redis) jobKey(id string) string {
	return fmt.Sprintf(jobKeyFormat, d.prefix, id)
}

func (d *Redis) SaveSchedule(ctx context.Context, r *job.Registry) error {
	stored, err := d.backend.ZRange(ctx, d.scheduleKey(), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("[Distributor] redis `ZRange` error: %w", err)
	}

	jobs := r.Jobs()
	current := make(map[string]struct{}, len(jobs))
	values := make(map[string][]byte, len(jobs))
	members := make([]*redis.Z, 0, len(jobs))
	for _, j := range jobs {
		rec := j.Record()
		bt, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		current[rec.Id] = struct{}{}
		values[rec.Id] = bt
		members = append(members, &redis.Z{
			Score:  float64(rec.NextRun),
			Member: rec.Id,
		})
	}

	_, err = d.backend.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, bt := range values {
			pipe.Set(ctx, d.jobKey(id), string(bt), 0)
		}
		pipe.Del(ctx, d.scheduleKey())
		if len(members) != 0 {
			pipe.ZAdd(ctx, d.scheduleKey(), members...)
		}
		for _, id := range stored {
			if _, ok := current[id]; !ok {
				pipe.Del(ctx, d.jobKey(id))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("[Distributor] redis save transaction error: %w", err)
	}
	d.logger.Debug("[Distributor] redis schedule saved", zap.Int("jobs", len(jobs)))
	return nil
}

func (d *Redis) GetSchedule(ctx context.Context, r *job.Registry, actions job.Actions) ([]*job.Job, error) {
	ids, err := d.backend.ZRange(ctx, d.scheduleKey(), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("[Distributor] redis `ZRange` error: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err = d.backend.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.Get(ctx, d.jobKey(id))
		}
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("[Distributor] redis load pipeline error: %w", err)
	}

	records := make([]job.Record, 0, len(ids))
	for i, cmd := range cmds {
		bt, err := cmd.Bytes()
		if err == redis.Nil {
			d.logger.Warn("[Distributor] redis record missing", zap.String("job", ids[i]))
			continue
		}
		if err != nil {
			return nil, err
		}

		var rec job.Record
		if err := json.Unmarshal(bt, &rec); err != nil {
			return nil, fmt.Errorf("[Distributor] redis record %s: %w", ids[i], err)
		}
		records = append(records, rec)
	}
	return restore(r, records, actions)
}
