package jobs

import (
	"context"

	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

// InventoryDigestTask sends the merchant's inventory failure summary and
// keeps the digest cadence going while trackers remain open.
type InventoryDigestTask struct {
	merchantKey string
	deps        Deps
}

func decodeInventoryDigest(d Deps) func(jobdomain.Parameters) (jobdomain.Task, error) {
	return func(params jobdomain.Parameters) (jobdomain.Task, error) {
		merchantKey, err := requireMerchant(params)
		if err != nil {
			return nil, err
		}
		return &InventoryDigestTask{merchantKey: merchantKey, deps: d}, nil
	}
}

func NewInventoryDigestTask(merchantKey string) *InventoryDigestTask {
	return &InventoryDigestTask{merchantKey: merchantKey}
}

func (t *InventoryDigestTask) Name() string            { return JobInventoryDigest }
func (t *InventoryDigestTask) Queue() string           { return QueueDunning }
func (t *InventoryDigestTask) MerchantKey() string     { return t.merchantKey }
func (t *InventoryDigestTask) Payload() map[string]any { return map[string]any{} }

func (t *InventoryDigestTask) Perform(ctx context.Context) error {
	return t.deps.Digest.Run(ctx, t.merchantKey)
}
