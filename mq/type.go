package mq

import (
	"context"
)

type Producer interface {
	Product(ctx context.Context, value []byte) error
}
