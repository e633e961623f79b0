package job

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r, _ := newTestRegistry(100)
	require.Equal(t, int64(100), r.Now())

	a := r.Every(1).Second().Tag("report").Do(noop)
	b := r.Every(2).Seconds().Tag("report", "daily").Do(noop)
	c := r.Every(3).Seconds().Do(noop)
	require.Equal(t, 0, r.Len())
	require.Empty(t, r.Jobs())

	for _, j := range []*Job{a, b, c} {
		require.Nil(t, j.Commit())
	}
	require.Equal(t, 3, r.Len())
	require.ElementsMatch(t, []*Job{a, b, c}, r.Jobs())
	require.ElementsMatch(t, []*Job{a, b}, r.Tagged("report"))
	require.ElementsMatch(t, []*Job{b}, r.Tagged("daily"))
	require.Empty(t, r.Tagged("none"))

	require.True(t, r.Remove(c))
	require.False(t, r.Remove(c))
	require.False(t, r.Contains(c))

	require.Equal(t, 2, r.RemoveTagged("report"))
	require.Equal(t, 0, r.Len())
}

func TestRegistriesIndependent(t *testing.T) {
	r1, _ := newTestRegistry(0)
	r2, _ := newTestRegistry(0)
	require.Nil(t, r1.Every(1).Second().Do(noop).Commit())
	require.Equal(t, 1, r1.Len())
	require.Equal(t, 0, r2.Len())
}

func TestRegistryDefaultClock(t *testing.T) {
	r := NewRegistry()
	before := time.Now().Unix()
	j := r.Every(1).Minute().Do(noop)
	require.Nil(t, j.Commit())
	require.GreaterOrEqual(t, j.NextRun(), before+60)
	require.LessOrEqual(t, j.NextRun(), time.Now().Unix()+60)
}

func TestRegistryConcurrent(t *testing.T) {
	r, _ := newTestRegistry(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j := r.Every(1).Second().Do(noop)
			require.Nil(t, j.Commit())
			_ = j.Record()
			_ = r.Jobs()
		}()
	}
	wg.Wait()
	require.Equal(t, 50, r.Len())
}

func TestRecordRestore(t *testing.T) {
	r, c := newTestRegistry(1000)
	rc := &recorder{}
	j := r.Every(5).Seconds().
		StartingFrom(900).
		StoppingAt(5000).
		Tag("b", "a").
		DoWith(rc.Func, Kwargs{"mode": "full"}, "x").
		Named("report")
	require.Nil(t, j.Commit())

	c.now = 1005
	_, err := j.Run(context.Background())
	require.Nil(t, err)

	rec := j.Record()
	require.Equal(t, j.ID(), rec.Id)
	require.Equal(t, int64(5), rec.Interval)
	require.Equal(t, int64(5), rec.DeltaTime)
	require.Equal(t, int64(1010), rec.NextRun)
	require.Equal(t, int64(1005), *rec.LastRun)
	require.Equal(t, int64(900), *rec.Start)
	require.Equal(t, int64(5000), *rec.Stop)
	require.Equal(t, []string{"a", "b"}, rec.Tags)
	require.Equal(t, "report", rec.Action)

	bt, err := json.Marshal(rec)
	require.Nil(t, err)
	var decoded Record
	require.Nil(t, json.Unmarshal(bt, &decoded))

	other, _ := newTestRegistry(1008)
	_, err = Restore(other, decoded, Actions{})
	require.ErrorIs(t, err, ErrUnknownAction)
	require.Equal(t, 0, other.Len())

	restored, err := Restore(other, decoded, Actions{"report": rc.Func})
	require.Nil(t, err)
	require.True(t, other.Contains(restored))
	require.True(t, restored.Committed())
	require.Equal(t, j.ID(), restored.ID())
	require.Equal(t, int64(1010), restored.NextRun())
	last, ok := restored.LastRun()
	require.True(t, ok)
	require.Equal(t, int64(1005), last)
	require.Equal(t, []string{"a", "b"}, restored.Tags())
	require.Equal(t, "report", restored.Action())

	// not due yet at 1008 on the restored clock
	outcome, err := restored.Run(context.Background())
	require.Nil(t, err)
	require.Equal(t, Continue, outcome)
	require.Equal(t, 1, rc.calls)
}

func TestRestoreInvalid(t *testing.T) {
	_, err := Restore(nil, Record{Interval: 1}, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	r, _ := newTestRegistry(0)
	_, err = Restore(r, Record{Interval: 0, Action: "x"}, Actions{"x": noop})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRestoreAll(t *testing.T) {
	r, _ := newTestRegistry(1000)
	a := r.Every(5).Seconds().Do(noop).Named("a")
	b := r.Every(1).Minute().Do(noop).Named("b")
	require.Nil(t, a.Commit())
	require.Nil(t, b.Commit())
	records := []Record{a.Record(), b.Record()}

	// one unresolved record leaves the registry untouched, retries included
	other, _ := newTestRegistry(1000)
	for i := 0; i < 2; i++ {
		jobs, err := RestoreAll(other, records, Actions{"a": noop})
		require.ErrorIs(t, err, ErrUnknownAction)
		require.Nil(t, jobs)
		require.Equal(t, 0, other.Len())
	}

	jobs, err := RestoreAll(other, records, Actions{"a": noop, "b": noop})
	require.Nil(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, a.ID(), jobs[0].ID())
	require.Equal(t, b.ID(), jobs[1].ID())
	require.ElementsMatch(t, jobs, other.Jobs())
}

func TestDefaultActionName(t *testing.T) {
	r, _ := newTestRegistry(0)
	j := r.Every(1).Do(noop)
	require.Equal(t, "planner/job.noop", j.Action())
}
