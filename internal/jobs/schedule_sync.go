package jobs

import (
	"context"

	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

// ScheduleSyncTask refreshes one merchant's billing schedule from the
// remote timezone, deactivating it when the merchant is gone.
type ScheduleSyncTask struct {
	merchantKey string
	deps        Deps
}

func decodeScheduleSync(d Deps) func(jobdomain.Parameters) (jobdomain.Task, error) {
	return func(params jobdomain.Parameters) (jobdomain.Task, error) {
		merchantKey, err := requireMerchant(params)
		if err != nil {
			return nil, err
		}
		return &ScheduleSyncTask{merchantKey: merchantKey, deps: d}, nil
	}
}

func NewScheduleSyncTask(merchantKey string) *ScheduleSyncTask {
	return &ScheduleSyncTask{merchantKey: merchantKey}
}

func (t *ScheduleSyncTask) Name() string            { return JobScheduleSync }
func (t *ScheduleSyncTask) Queue() string           { return QueueSchedule }
func (t *ScheduleSyncTask) MerchantKey() string     { return t.merchantKey }
func (t *ScheduleSyncTask) Payload() map[string]any { return map[string]any{} }

func (t *ScheduleSyncTask) Perform(ctx context.Context) error {
	return t.deps.ScheduleSvc.SyncSchedule(ctx, t.merchantKey)
}
