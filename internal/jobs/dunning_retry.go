package jobs

import (
	"context"

	"go.uber.org/zap"

	dunningdomain "github.com/smallbiznis/recurra/internal/dunning/domain"
	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

// DunningRetryTask applies one payment dunning decision for a failed cycle.
type DunningRetryTask struct {
	notice dunningdomain.FailureNotice
	deps   Deps
}

func decodeDunningRetry(d Deps) func(jobdomain.Parameters) (jobdomain.Task, error) {
	return func(params jobdomain.Parameters) (jobdomain.Task, error) {
		notice, err := decodeFailureNotice(params)
		if err != nil {
			return nil, err
		}
		return &DunningRetryTask{notice: notice, deps: d}, nil
	}
}

func NewDunningRetryTask(notice dunningdomain.FailureNotice) *DunningRetryTask {
	return &DunningRetryTask{notice: notice}
}

func (t *DunningRetryTask) Name() string        { return JobDunningRetry }
func (t *DunningRetryTask) Queue() string       { return QueueDunning }
func (t *DunningRetryTask) MerchantKey() string { return t.notice.MerchantKey }
func (t *DunningRetryTask) Payload() map[string]any {
	return failureNoticePayload(t.notice)
}

func (t *DunningRetryTask) Perform(ctx context.Context) error {
	outcome, err := t.deps.Dunning.RunDunning(ctx, t.notice)
	if err != nil {
		return err
	}
	t.deps.Log.Named("jobs.dunning_retry").Info("dunning step applied",
		zap.String("merchant_key", t.notice.MerchantKey),
		zap.String("contract_id", t.notice.ContractID),
		zap.String("outcome", string(outcome)),
	)
	return nil
}

// InventoryRetryTask is the dunning variant for cycles blocked on stock.
type InventoryRetryTask struct {
	notice dunningdomain.FailureNotice
	deps   Deps
}

func decodeInventoryRetry(d Deps) func(jobdomain.Parameters) (jobdomain.Task, error) {
	return func(params jobdomain.Parameters) (jobdomain.Task, error) {
		notice, err := decodeFailureNotice(params)
		if err != nil {
			return nil, err
		}
		return &InventoryRetryTask{notice: notice, deps: d}, nil
	}
}

func NewInventoryRetryTask(notice dunningdomain.FailureNotice) *InventoryRetryTask {
	return &InventoryRetryTask{notice: notice}
}

func (t *InventoryRetryTask) Name() string        { return JobInventoryRetry }
func (t *InventoryRetryTask) Queue() string       { return QueueDunning }
func (t *InventoryRetryTask) MerchantKey() string { return t.notice.MerchantKey }
func (t *InventoryRetryTask) Payload() map[string]any {
	return failureNoticePayload(t.notice)
}

func (t *InventoryRetryTask) Perform(ctx context.Context) error {
	outcome, err := t.deps.Dunning.RunInventory(ctx, t.notice)
	if err != nil {
		return err
	}
	t.deps.Log.Named("jobs.inventory_retry").Info("inventory retry step applied",
		zap.String("merchant_key", t.notice.MerchantKey),
		zap.String("contract_id", t.notice.ContractID),
		zap.String("outcome", string(outcome)),
	)
	return nil
}

func decodeFailureNotice(params jobdomain.Parameters) (dunningdomain.FailureNotice, error) {
	merchantKey, err := requireMerchant(params)
	if err != nil {
		return dunningdomain.FailureNotice{}, err
	}
	contractID, err := stringField(params.Payload, "contractId")
	if err != nil {
		return dunningdomain.FailureNotice{}, err
	}
	cycleIndex, err := intField(params.Payload, "cycleIndex")
	if err != nil {
		return dunningdomain.FailureNotice{}, err
	}
	reasonCode, err := stringField(params.Payload, "failureReasonCode")
	if err != nil {
		return dunningdomain.FailureNotice{}, err
	}
	return dunningdomain.FailureNotice{
		MerchantKey:       merchantKey,
		ContractID:        contractID,
		BillingCycleIndex: cycleIndex,
		FailureReasonCode: reasonCode,
	}, nil
}

func failureNoticePayload(notice dunningdomain.FailureNotice) map[string]any {
	return map[string]any{
		"contractId":        notice.ContractID,
		"cycleIndex":        notice.BillingCycleIndex,
		"failureReasonCode": notice.FailureReasonCode,
	}
}
