package dispatch

import (
	"context"
	"time"

	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

// MaxDispatchDeadline is the backend ceiling on a single delivery attempt.
// Longer deadlines are clamped, not rejected.
const MaxDispatchDeadline = 1800 * time.Second

// Options tune a single enqueue.
type Options struct {
	// ScheduleTime defers delivery to an absolute instant. Nil means now.
	ScheduleTime *time.Time
	// DispatchDeadline bounds one delivery attempt; exceeding it causes the
	// backend to redeliver, which must be idempotent-safe downstream.
	DispatchDeadline time.Duration
}

// Scheduler hands a job envelope to an execution backend. A nil error means
// the backend accepted the envelope, nothing more: delivery guarantees
// belong to the backend, not to this interface.
type Scheduler interface {
	Enqueue(ctx context.Context, env jobdomain.Envelope, queue string, opts Options) (string, error)
}

// Executor is the execute side of the job runner, seen by backends that run
// work in-process.
type Executor interface {
	ExecuteBody(ctx context.Context, body []byte) error
}
