package jobs

import (
	"context"
	"time"

	"github.com/smallbiznis/recurra/internal/dispatch"
	dunningdomain "github.com/smallbiznis/recurra/internal/dunning/domain"
	"github.com/smallbiznis/recurra/internal/job/runner"
)

// Enqueuer adapts the runner to the domain-side enqueue interfaces so the
// schedule and dunning services stay ignorant of concrete task types.
// Enqueue-side task instances carry only wire identity; execution always
// goes through the registry decoders, which attach the live dependencies.
type Enqueuer struct {
	runner *runner.Runner
}

func NewEnqueuer(r *runner.Runner) *Enqueuer {
	return &Enqueuer{runner: r}
}

func (e *Enqueuer) EnqueueBillingRun(ctx context.Context, merchantKey string) error {
	_, err := e.runner.Enqueue(ctx, NewBillingRunTask(merchantKey), dispatch.Options{})
	return err
}

func (e *Enqueuer) EnqueueRebill(ctx context.Context, merchantKey, contractID string, billingCycleIndex int, runAt time.Time) error {
	task := NewRebillCycleTask(merchantKey, contractID, billingCycleIndex)
	_, err := e.runner.Enqueue(ctx, task, dispatch.Options{ScheduleTime: &runAt})
	return err
}

func (e *Enqueuer) EnqueueInventoryDigest(ctx context.Context, merchantKey string, runAt time.Time) error {
	task := NewInventoryDigestTask(merchantKey)
	_, err := e.runner.Enqueue(ctx, task, dispatch.Options{ScheduleTime: &runAt})
	return err
}

func (e *Enqueuer) EnqueueDunningRetry(ctx context.Context, notice dunningdomain.FailureNotice) error {
	_, err := e.runner.Enqueue(ctx, NewDunningRetryTask(notice), dispatch.Options{})
	return err
}

func (e *Enqueuer) EnqueueInventoryRetry(ctx context.Context, notice dunningdomain.FailureNotice) error {
	_, err := e.runner.Enqueue(ctx, NewInventoryRetryTask(notice), dispatch.Options{})
	return err
}

func (e *Enqueuer) EnqueueScheduleSync(ctx context.Context, merchantKey string) error {
	_, err := e.runner.Enqueue(ctx, NewScheduleSyncTask(merchantKey), dispatch.Options{})
	return err
}
