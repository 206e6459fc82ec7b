package queuer

import (
	"context"
	"errors"
	"time"
)

type Payload struct {
	Message []byte
	Key     string
	TTL     time.Duration
}

type PartialError struct {
	Err    error
	Failed []*Payload
}

func (perr PartialError) Error() string {
	return perr.Err.Error()
}

var (
	ErrEmptyRecords   = errors.New("empty_records")
	ErrPartialFailure = errors.New("partial_failure")
)

// Queuer is a named queue split into partitions. The queue name may carry a
// %s verb that is filled with the partition.
type Queuer interface {
	EnqueueMsg(ctx context.Context, partition string, data *Payload) error
	EnqueueMsgs(ctx context.Context, partition string, data []*Payload) error
	// ReadMsg returns nil, nil when nothing arrived within the queue timeout.
	ReadMsg(ctx context.Context, partition string, consumer string) (*Payload, error)
}
