package mq

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/scram"
	"go.uber.org/zap"
)

var ErrNoBrokers = errors.New("mq: brokers and topic are required")

// NewProducer return a kafka Producer, SCRAM-SHA256 is used when credentials are set.
func NewProducer(cfg Config, l *zap.Logger) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, ErrNoBrokers
	}

	dialer := &kafka.Dialer{
		DualStack: true,
	}

	if cfg.Username != "" && cfg.Password != "" {
		mechanism, err := scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
		if err != nil {
			return nil, err
		}

		dialer.SASLMechanism = mechanism
	}

	return &KafkaProducer{writer: kafka.NewWriter(kafka.WriterConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,

		Dialer:       dialer,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: int(kafka.RequireAll),
		Async:        cfg.Async,
		Logger:       infoLogger{l},
		ErrorLogger:  errorLogger{l},
	})}, nil
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func (p *KafkaProducer) Product(ctx context.Context, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Value: value,
	})
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
