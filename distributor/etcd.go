package distributor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"planner/job"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Etcd stores one JSON record per job under a key prefix.
//
// A save is a single transaction, so it is bound by the server
// `--max-txn-ops` limit (128 by default) counting puts and stale deletes.
type Etcd struct {
	kv     clientv3.KV
	prefix string
	logger *zap.Logger
}

// NewEtcd return a Distributor backed by etcd, default prefix is `/planner/jobs/`.
func NewEtcd(kv clientv3.KV, funcOptions ...FuncOption) *Etcd {
	o := newOptions("/planner/jobs/", funcOptions...)
	prefix := o.prefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Etcd{
		kv:     kv,
		prefix: prefix,
		logger: o.logger,
	}
}

func (d *Etcd) SaveSchedule(ctx context.Context, r *job.Registry) error {
	stored, err := d.kv.Get(ctx, d.prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return fmt.Errorf("[Distributor] etcd `Get` error: %w", err)
	}

	jobs := r.Jobs()
	current := make(map[string]struct{}, len(jobs))
	ops := make([]clientv3.Op, 0, len(jobs)+len(stored.Kvs))
	for _, j := range jobs {
		bt, err := json.Marshal(j.Record())
		if err != nil {
			return err
		}
		key := d.prefix + j.ID()
		current[key] = struct{}{}
		ops = append(ops, clientv3.OpPut(key, string(bt)))
	}
	// etcd rejects a put and a range delete over the same key in one txn.
	for _, kv := range stored.Kvs {
		if _, ok := current[string(kv.Key)]; !ok {
			ops = append(ops, clientv3.OpDelete(string(kv.Key)))
		}
	}
	if len(ops) == 0 {
		return nil
	}

	if _, err := d.kv.Txn(ctx).Then(ops...).Commit(); err != nil {
		return fmt.Errorf("[Distributor] etcd `Txn` error: %w", err)
	}
	d.logger.Debug("[Distributor] etcd schedule saved", zap.Int("jobs", len(jobs)))
	return nil
}

func (d *Etcd) GetSchedule(ctx context.Context, r *job.Registry, actions job.Actions) ([]*job.Job, error) {
	resp, err := d.kv.Get(ctx, d.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("[Distributor] etcd `Get` error: %w", err)
	}

	records := make([]job.Record, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var rec job.Record
		if err := json.Unmarshal(kv.Value, &rec); err != nil {
			return nil, fmt.Errorf("[Distributor] etcd record %s: %w", string(kv.Key), err)
		}
		records = append(records, rec)
	}
	return restore(r, records, actions)
}
