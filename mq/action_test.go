package mq

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"planner/job"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProducer struct {
	values [][]byte
	err    error
}

func (s *stubProducer) Product(_ context.Context, value []byte) error {
	s.values = append(s.values, value)
	return s.err
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	p := &stubProducer{}
	fn := Publish(p)

	outcome, err := fn(ctx, job.Args{Positional: []interface{}{"hello"}})
	require.Nil(t, err)
	require.Equal(t, job.Continue, outcome)

	_, err = fn(ctx, job.Args{Positional: []interface{}{[]byte("raw")}})
	require.Nil(t, err)

	_, err = fn(ctx, job.Args{Positional: []interface{}{1, "a"}, Named: job.Kwargs{"k": true}})
	require.Nil(t, err)

	_, err = fn(ctx, job.Args{})
	require.Nil(t, err)

	require.Equal(t, "hello", string(p.values[0]))
	require.Equal(t, "raw", string(p.values[1]))
	require.JSONEq(t, `{"args":[1,"a"],"kwargs":{"k":true}}`, string(p.values[2]))
	require.JSONEq(t, `{}`, string(p.values[3]))
}

func TestPublishError(t *testing.T) {
	boom := errors.New("broker down")
	fn := Publish(&stubProducer{err: boom})
	outcome, err := fn(context.Background(), job.Args{Positional: []interface{}{"x"}})
	require.ErrorIs(t, err, boom)
	require.Equal(t, job.Continue, outcome)
}

func TestPublishJob(t *testing.T) {
	now := int64(1000)
	r := job.NewRegistry(job.WithClock(func() int64 { return now }))
	p := &stubProducer{}
	j := r.Every(10).Seconds().Do(Publish(p), "tick").Named("publish")
	require.Nil(t, j.Commit())

	now = 1010
	_, err := j.Run(context.Background())
	require.Nil(t, err)
	require.Len(t, p.values, 1)
	require.Equal(t, int64(1020), j.NextRun())
}

func TestNewProducer(t *testing.T) {
	_, err := NewProducer(Config{}, zap.NewNop())
	require.ErrorIs(t, err, ErrNoBrokers)

	p, err := NewProducer(Config{Brokers: []string{"localhost:9092"}, Topic: "planner"}, zap.NewNop())
	require.Nil(t, err)
	require.Nil(t, p.Close())
}

func TestProduct(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set")
	}

	p, err := NewProducer(Config{
		Brokers:  strings.Split(brokers, ","),
		Topic:    os.Getenv("KAFKA_TOPIC"),
		Username: os.Getenv("KAFKA_USERNAME"),
		Password: os.Getenv("KAFKA_PASSWORD"),
	}, zap.NewExample())
	require.Nil(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.Nil(t, p.Product(ctx, []byte("world")))
}
