package mq

import (
	"fmt"

	"go.uber.org/zap"
)

type infoLogger struct {
	internal *zap.Logger
}

func (l infoLogger) Printf(format string, v ...interface{}) {
	l.internal.Debug(fmt.Sprintf(format, v...))
}

type errorLogger struct {
	internal *zap.Logger
}

func (l errorLogger) Printf(format string, v ...interface{}) {
	l.internal.Error(fmt.Sprintf(format, v...))
}

// Config of the kafka topic fired jobs are published to.
type Config struct {
	Brokers  []string
	Topic    string
	Username string
	Password string

	// Async writes do not wait for broker acknowledgement.
	Async bool
}
