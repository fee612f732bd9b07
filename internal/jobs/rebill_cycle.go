package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/smallbiznis/recurra/internal/commerce"
	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

// RebillCycleTask re-attempts one specific billing cycle after a dunning
// backoff. It reloads the cycle first: anything that resolved it in the
// meantime turns the task into a no-op.
type RebillCycleTask struct {
	merchantKey string
	contractID  string
	cycleIndex  int
	deps        Deps
}

func decodeRebillCycle(d Deps) func(jobdomain.Parameters) (jobdomain.Task, error) {
	return func(params jobdomain.Parameters) (jobdomain.Task, error) {
		merchantKey, err := requireMerchant(params)
		if err != nil {
			return nil, err
		}
		contractID, err := stringField(params.Payload, "contractId")
		if err != nil {
			return nil, err
		}
		cycleIndex, err := intField(params.Payload, "cycleIndex")
		if err != nil {
			return nil, err
		}
		return &RebillCycleTask{
			merchantKey: merchantKey,
			contractID:  contractID,
			cycleIndex:  cycleIndex,
			deps:        d,
		}, nil
	}
}

func NewRebillCycleTask(merchantKey, contractID string, cycleIndex int) *RebillCycleTask {
	return &RebillCycleTask{merchantKey: merchantKey, contractID: contractID, cycleIndex: cycleIndex}
}

func (t *RebillCycleTask) Name() string        { return JobRebillCycle }
func (t *RebillCycleTask) Queue() string       { return QueueBilling }
func (t *RebillCycleTask) MerchantKey() string { return t.merchantKey }
func (t *RebillCycleTask) Payload() map[string]any {
	return map[string]any{
		"contractId": t.contractID,
		"cycleIndex": t.cycleIndex,
	}
}

func (t *RebillCycleTask) Perform(ctx context.Context) error {
	log := t.deps.Log.Named("jobs.rebill_cycle").With(
		zap.String("merchant_key", t.merchantKey),
		zap.String("contract_id", t.contractID),
		zap.Int("cycle_index", t.cycleIndex),
	)

	cycle, err := t.deps.Commerce.BillingCycle(ctx, t.merchantKey, t.contractID, t.cycleIndex)
	if err != nil {
		return err
	}
	if cycle.Status != commerce.BillingCycleStatusUnbilled || hasLiveAttempt(*cycle) {
		log.Info("cycle no longer needs a re-attempt", zap.String("status", string(cycle.Status)))
		return nil
	}

	attempt, err := t.deps.Commerce.CreateBillingAttempt(
		ctx, t.merchantKey, t.contractID, t.cycleIndex, attemptIdempotencyKey(*cycle),
	)
	if err != nil {
		return fmt.Errorf("create re-attempt for contract %s cycle %d: %w", t.contractID, t.cycleIndex, err)
	}
	log.Info("billing re-attempt created", zap.String("attempt_id", attempt.ID))
	return nil
}
