package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/recurra/internal/dispatch"
	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
	obsmetrics "github.com/smallbiznis/recurra/internal/observability/metrics"
	"go.uber.org/zap"
)

// Decoder reconstructs a concrete task from wire parameters. Each job type
// registers exactly one; payloads are validated here, at the boundary,
// before anything runs.
type Decoder func(params jobdomain.Parameters) (jobdomain.Task, error)

// Registration binds a job name to its decoder.
type Registration struct {
	Name   string
	Decode Decoder
}

// Registry is the name→decoder table. Populated once at process start,
// read-only afterwards, so concurrent ExecuteBody calls need no locking.
type Registry struct {
	log      *zap.Logger
	decoders map[string]Decoder
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		log:      log.Named("job.runner"),
		decoders: make(map[string]Decoder),
	}
}

// Register adds job types to the table. Idempotent; the last registration
// for a name wins.
func (r *Registry) Register(regs ...Registration) {
	for _, reg := range regs {
		if reg.Name == "" || reg.Decode == nil {
			continue
		}
		r.decoders[reg.Name] = reg.Decode
	}
}

// ExecuteBody parses a wire envelope, reconstructs the task and runs it.
// A terminal failure is swallowed: the task is considered drained. A
// retryable failure is returned so the caller can surface a non-2xx to the
// queue and trigger backend-level retry.
func (r *Registry) ExecuteBody(ctx context.Context, body []byte) error {
	env, err := jobdomain.UnmarshalEnvelope(body)
	if err != nil {
		return err
	}

	decode, ok := r.decoders[env.JobName]
	if !ok {
		return fmt.Errorf("%w: %q", jobdomain.ErrUnregisteredJob, env.JobName)
	}

	task, err := decode(env.Parameters)
	if err != nil {
		return fmt.Errorf("%w: %s payload: %v", jobdomain.ErrMalformedEnvelope, env.JobName, err)
	}

	return r.run(ctx, task)
}

func (r *Registry) run(ctx context.Context, task jobdomain.Task) error {
	log := r.log.With(
		zap.String("job", task.Name()),
		zap.String("merchant_key", task.MerchantKey()),
	)
	metrics := obsmetrics.Jobs()
	start := time.Now()

	log.Info("job started")
	err := task.Perform(ctx)
	metrics.ObserveDuration(task.Name(), time.Since(start))
	if err == nil {
		metrics.IncRun(task.Name(), "success")
		log.Info("job completed")
		return nil
	}

	if jobdomain.Classify(err) == jobdomain.ClassificationTerminal {
		metrics.IncRun(task.Name(), "terminal")
		metrics.IncTerminal(task.Name())
		log.Warn("job dropped on terminal error", zap.Error(err))
		return nil
	}

	metrics.IncRun(task.Name(), "retryable")
	metrics.IncRetryable(task.Name())
	log.Error("job failed", zap.Error(err))
	return err
}

// Runner owns the registry and exactly one dispatch backend.
type Runner struct {
	registry *Registry
	sched    dispatch.Scheduler
	log      *zap.Logger
}

func New(registry *Registry, sched dispatch.Scheduler, log *zap.Logger) *Runner {
	return &Runner{
		registry: registry,
		sched:    sched,
		log:      log.Named("job.runner"),
	}
}

// Enqueue hands a task to the configured backend. Callers must not assume
// delivery from a nil error; that guarantee belongs to the backend.
func (r *Runner) Enqueue(ctx context.Context, task jobdomain.Task, opts dispatch.Options) (string, error) {
	env, err := jobdomain.Encode(task)
	if err != nil {
		return "", err
	}

	metrics := obsmetrics.Jobs()
	handle, err := r.sched.Enqueue(ctx, env, task.Queue(), opts)
	if err != nil {
		metrics.IncEnqueueFailure(task.Name(), task.Queue())
		return "", fmt.Errorf("enqueue %s: %w", task.Name(), err)
	}
	metrics.IncEnqueue(task.Name(), task.Queue())
	return handle, nil
}

// Execute is the HTTP-facing entry for the queue callback body.
func (r *Runner) Execute(ctx context.Context, body []byte) error {
	return r.registry.ExecuteBody(ctx, body)
}
