package worker

import (
	"context"

	"github.com/Minhal128/CodeX/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// TaskHandler does the actual work for one queued task.
type TaskHandler interface {
	Handle(ctx context.Context, msg queue.Message) error
}
