package domain

import "context"

// Service owns schedule lifecycle and the hourly billing evaluation.
type Service interface {
	// SyncSchedule looks up the merchant's timezone on the remote API and
	// upserts the schedule row. A terminal lookup failure deactivates the
	// schedule instead of erroring.
	SyncSchedule(ctx context.Context, merchantKey string) error
	Deactivate(ctx context.Context, merchantKey string) error
	Reactivate(ctx context.Context, merchantKey string) error
	// RunOnce evaluates every active schedule against the current hour and
	// enqueues billing jobs for merchants whose window is due.
	RunOnce(ctx context.Context) error
	// RunForever runs RunOnce on the configured cadence until ctx ends.
	RunForever(ctx context.Context)
}
