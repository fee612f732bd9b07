package jobs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smallbiznis/recurra/internal/billingschedule/calculator"
	"github.com/smallbiznis/recurra/internal/commerce"
	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

// BillingRunTask bills every cycle of one merchant that came due inside the
// lookback window. The window is recomputed at perform time from the stored
// schedule, so a delayed execution still sees the right bounds.
type BillingRunTask struct {
	merchantKey string
	deps        Deps
}

func decodeBillingRun(d Deps) func(jobdomain.Parameters) (jobdomain.Task, error) {
	return func(params jobdomain.Parameters) (jobdomain.Task, error) {
		merchantKey, err := requireMerchant(params)
		if err != nil {
			return nil, err
		}
		return &BillingRunTask{merchantKey: merchantKey, deps: d}, nil
	}
}

// NewBillingRunTask builds the enqueue-side value; Perform is only valid
// on instances produced by the registered decoder.
func NewBillingRunTask(merchantKey string) *BillingRunTask {
	return &BillingRunTask{merchantKey: merchantKey}
}

func (t *BillingRunTask) Name() string        { return JobBillingRun }
func (t *BillingRunTask) Queue() string       { return QueueBilling }
func (t *BillingRunTask) MerchantKey() string { return t.merchantKey }
func (t *BillingRunTask) Payload() map[string]any {
	return map[string]any{}
}

func (t *BillingRunTask) Perform(ctx context.Context) error {
	log := t.deps.Log.Named("jobs.billing_run").With(zap.String("merchant_key", t.merchantKey))

	schedule, err := t.deps.Schedules.FindByMerchant(ctx, t.merchantKey)
	if err != nil {
		return err
	}
	if schedule == nil || !schedule.Active {
		log.Warn("no active billing schedule, dropping run")
		return nil
	}

	calc, err := calculator.New(*schedule, t.deps.Clock.Now(), t.deps.Window.Get().Lookback())
	if err != nil {
		return jobdomain.Terminalf("schedule for %s is unusable: %w", t.merchantKey, err)
	}
	start, end := calc.BillingStartTime(), calc.BillingEndTime()

	cycles, err := t.deps.Commerce.BillingCyclesDue(ctx, t.merchantKey, start, end)
	if err != nil {
		return err
	}
	log.Info("billing run window evaluated",
		zap.Time("window_start", start),
		zap.Time("window_end", end),
		zap.Int("cycles_due", len(cycles)),
	)

	var errs error
	for _, cycle := range cycles {
		if err := t.attemptCycle(ctx, log, cycle); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// attemptCycle creates at most one new attempt for the cycle. Cycles the
// window overlap re-surfaces are recognized by status or by an attempt
// already in flight and skipped without error.
func (t *BillingRunTask) attemptCycle(ctx context.Context, log *zap.Logger, cycle commerce.BillingCycle) error {
	if cycle.Status != commerce.BillingCycleStatusUnbilled {
		return nil
	}
	if hasLiveAttempt(cycle) {
		return nil
	}
	attempt, err := t.deps.Commerce.CreateBillingAttempt(
		ctx, t.merchantKey, cycle.ContractID, cycle.CycleIndex,
		attemptIdempotencyKey(cycle),
	)
	if err != nil {
		return fmt.Errorf("create billing attempt for contract %s cycle %d: %w",
			cycle.ContractID, cycle.CycleIndex, err)
	}
	log.Info("billing attempt created",
		zap.String("contract_id", cycle.ContractID),
		zap.Int("cycle_index", cycle.CycleIndex),
		zap.String("attempt_id", attempt.ID),
	)
	return nil
}

func hasLiveAttempt(cycle commerce.BillingCycle) bool {
	for _, a := range cycle.Attempts {
		if a.Status == commerce.BillingAttemptStatusPending ||
			a.Status == commerce.BillingAttemptStatusCompleted {
			return true
		}
	}
	return false
}

// attemptIdempotencyKey keys on the cycle identity plus how many failures
// preceded this attempt. Replays of the same run collapse onto one attempt;
// a dunning re-attempt after a new failure gets a fresh key.
func attemptIdempotencyKey(cycle commerce.BillingCycle) string {
	return fmt.Sprintf("%s-%d-%d", cycle.ContractID, cycle.CycleIndex, cycle.FailedAttempts())
}
