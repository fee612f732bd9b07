package dispatch

import (
	"context"

	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
	"go.uber.org/zap"
)

// Inline executes tasks synchronously in the calling goroutine. No
// durability: a failed run surfaces to the caller. Used for local and dev
// execution.
type Inline struct {
	exec Executor
	log  *zap.Logger
}

func NewInline(exec Executor, log *zap.Logger) *Inline {
	return &Inline{
		exec: exec,
		log:  log.Named("dispatch.inline"),
	}
}

func (s *Inline) Enqueue(ctx context.Context, env jobdomain.Envelope, queue string, opts Options) (string, error) {
	_ = opts.ScheduleTime // inline runs have no deferral
	body, err := env.Marshal()
	if err != nil {
		return "", err
	}
	s.log.Debug("running task inline",
		zap.String("job", env.JobName),
		zap.String("queue", queue),
	)
	if err := s.exec.ExecuteBody(ctx, body); err != nil {
		return "", err
	}
	return env.JobName, nil
}
