package domain

import "context"

// BillingJobEnqueuer hands a merchant's billing run to the job pipeline.
// Defined here so the hourly service does not depend on concrete task
// types.
type BillingJobEnqueuer interface {
	EnqueueBillingRun(ctx context.Context, merchantKey string) error
}
