package distributor

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"planner/job"
)

// Memory keeps the schedule as encoded records in process memory.
type Memory struct {
	mx      sync.RWMutex
	records map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (m *Memory) SaveSchedule(_ context.Context, r *job.Registry) error {
	records := make(map[string][]byte)
	for _, j := range r.Jobs() {
		bt, err := json.Marshal(j.Record())
		if err != nil {
			return err
		}
		records[j.ID()] = bt
	}

	m.mx.Lock()
	m.records = records
	m.mx.Unlock()
	return nil
}

func (m *Memory) GetSchedule(_ context.Context, r *job.Registry, actions job.Actions) ([]*job.Job, error) {
	m.mx.RLock()
	raw := make([][]byte, 0, len(m.records))
	for _, bt := range m.records {
		raw = append(raw, bt)
	}
	m.mx.RUnlock()

	records := make([]job.Record, 0, len(raw))
	for _, bt := range raw {
		var rec job.Record
		if err := json.Unmarshal(bt, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return restore(r, records, actions)
}

// Len return the number of stored records.
func (m *Memory) Len() int {
	m.mx.RLock()
	defer m.mx.RUnlock()
	return len(m.records)
}

// restore inserts records into r in due order, all or nothing.
func restore(r *job.Registry, records []job.Record, actions job.Actions) ([]*job.Job, error) {
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].NextRun < records[b].NextRun
	})
	return job.RestoreAll(r, records, actions)
}
