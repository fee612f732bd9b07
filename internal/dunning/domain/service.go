package domain

import (
	"context"
	"time"
)

// Outcome summarizes what a retry decision did.
type Outcome string

const (
	OutcomeRetryScheduled  Outcome = "RETRY_SCHEDULED"
	OutcomeSkipped         Outcome = "CYCLE_SKIPPED"
	OutcomePaused          Outcome = "CONTRACT_PAUSED"
	OutcomeCanceled        Outcome = "CONTRACT_CANCELED"
	OutcomeAlreadyResolved Outcome = "ALREADY_RESOLVED"
)

// FailureNotice identifies one failed billing attempt.
type FailureNotice struct {
	MerchantKey       string
	ContractID        string
	BillingCycleIndex int
	FailureReasonCode string
}

// RebillEnqueuer schedules a delayed billing re-attempt for a cycle.
// Implemented by the jobs package against the dispatch scheduler.
type RebillEnqueuer interface {
	EnqueueRebill(ctx context.Context, merchantKey, contractID string, billingCycleIndex int, runAt time.Time) error
}

// DigestEnqueuer schedules the inventory notification digest.
type DigestEnqueuer interface {
	EnqueueInventoryDigest(ctx context.Context, merchantKey string, runAt time.Time) error
}

// Service drives the retry state machines. Run decides and applies exactly
// one step for the given failure; Resolve closes open trackers once the
// contract is billable again.
type Service interface {
	Open(ctx context.Context, notice FailureNotice) (DunningTracker, bool, error)
	RunDunning(ctx context.Context, notice FailureNotice) (Outcome, error)
	RunInventory(ctx context.Context, notice FailureNotice) (Outcome, error)
	Resolve(ctx context.Context, merchantKey, contractID string) (int, error)
}
