package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/recurra/internal/clock"
	"github.com/smallbiznis/recurra/internal/commerce"
	"github.com/smallbiznis/recurra/internal/dunning/domain"
	"github.com/smallbiznis/recurra/internal/observability/metrics"
)

// Params declares the service dependencies.
type Params struct {
	fx.In

	Log      *zap.Logger
	Trackers domain.TrackerRepository
	Settings domain.SettingsRepository
	Commerce commerce.Client
	Clock    clock.Clock
	Rebill   domain.RebillEnqueuer
	Digest   domain.DigestEnqueuer
}

type service struct {
	log      *zap.Logger
	trackers domain.TrackerRepository
	settings domain.SettingsRepository
	commerce commerce.Client
	clock    clock.Clock
	rebill   domain.RebillEnqueuer
	digest   domain.DigestEnqueuer
}

func NewService(p Params) domain.Service {
	return &service{
		log:      p.Log.Named("dunning.service"),
		trackers: p.Trackers,
		settings: p.Settings,
		commerce: p.Commerce,
		clock:    p.Clock,
		rebill:   p.Rebill,
		digest:   p.Digest,
	}
}

// Open records the failure in a tracker. The composite unique index makes
// this idempotent under webhook redelivery: the first notice creates the
// tracker, every replay finds it. Opening the merchant's first inventory
// tracker also starts the digest cadence; the kickoff lives here, not in
// RunInventory, because the webhook handler opens the tracker before the
// retry job ever runs.
func (s *service) Open(ctx context.Context, notice domain.FailureNotice) (domain.DunningTracker, bool, error) {
	tracker, created, err := s.trackers.FindOrCreate(ctx, domain.DunningTracker{
		MerchantKey:       notice.MerchantKey,
		ContractID:        notice.ContractID,
		BillingCycleIndex: notice.BillingCycleIndex,
		FailureReasonCode: notice.FailureReasonCode,
	})
	if err != nil {
		return domain.DunningTracker{}, false, err
	}
	if created {
		metrics.Jobs().IncTrackerOpened()
		s.log.Info("dunning tracker opened",
			zap.String("merchant_key", notice.MerchantKey),
			zap.String("contract_id", notice.ContractID),
			zap.Int("billing_cycle_index", notice.BillingCycleIndex),
			zap.String("failure_reason_code", notice.FailureReasonCode),
		)
		if domain.IsInventoryFailure(notice.FailureReasonCode) {
			if err := s.maybeStartDigest(ctx, notice.MerchantKey); err != nil {
				return domain.DunningTracker{}, false, err
			}
		}
	}
	return tracker, created, nil
}

// maybeStartDigest enqueues the first inventory digest when the tracker
// just opened is the merchant's only open inventory tracker. Each digest
// run re-schedules itself while any inventory tracker stays open, so a
// second chain must never start alongside a live one.
func (s *service) maybeStartDigest(ctx context.Context, merchantKey string) error {
	open, err := s.trackers.OpenByMerchant(ctx, merchantKey, domain.InventoryFailureCode)
	if err != nil {
		return err
	}
	if len(open) != 1 {
		return nil
	}
	settings, err := s.settings.ForMerchant(ctx, merchantKey)
	if err != nil {
		return err
	}
	runAt := s.clock.Now().Add(settings.DigestInterval())
	if err := s.digest.EnqueueInventoryDigest(ctx, merchantKey, runAt); err != nil {
		return err
	}
	s.log.Info("inventory digest cadence started",
		zap.String("merchant_key", merchantKey),
		zap.Time("run_at", runAt),
	)
	return nil
}

func (s *service) RunDunning(ctx context.Context, notice domain.FailureNotice) (domain.Outcome, error) {
	settings, err := s.settings.ForMerchant(ctx, notice.MerchantKey)
	if err != nil {
		return "", err
	}
	tracker, _, err := s.Open(ctx, notice)
	if err != nil {
		return "", err
	}
	return s.run(ctx, notice, tracker, policy{
		maxAttempts:  settings.RetryAttempts,
		retryBackoff: time.Duration(settings.DaysBetweenRetryAttempts) * 24 * time.Hour,
		onFailure:    settings.OnFailure,
	})
}

func (s *service) RunInventory(ctx context.Context, notice domain.FailureNotice) (domain.Outcome, error) {
	settings, err := s.settings.ForMerchant(ctx, notice.MerchantKey)
	if err != nil {
		return "", err
	}
	tracker, _, err := s.Open(ctx, notice)
	if err != nil {
		return "", err
	}
	return s.run(ctx, notice, tracker, policy{
		maxAttempts:  settings.InventoryRetryAttempts,
		retryBackoff: time.Duration(settings.InventoryDaysBetweenRetryAttempts) * 24 * time.Hour,
		onFailure:    settings.InventoryOnFailure,
	})
}

type policy struct {
	maxAttempts  int
	retryBackoff time.Duration
	onFailure    domain.OnFailure
}

// run applies exactly one state machine step: either schedule the next
// re-attempt or, with retries exhausted, apply the merchant's on-failure
// action and close the tracker. The attempt count comes from the remote
// cycle's recorded failures, not from local state, so redelivered webhooks
// and re-run jobs converge on the same decision.
func (s *service) run(ctx context.Context, notice domain.FailureNotice, tracker domain.DunningTracker, pol policy) (domain.Outcome, error) {
	if !tracker.Open() {
		return domain.OutcomeAlreadyResolved, nil
	}

	cycle, err := s.commerce.BillingCycle(ctx, notice.MerchantKey, notice.ContractID, notice.BillingCycleIndex)
	if err != nil {
		return "", err
	}
	if cycle.Status != commerce.BillingCycleStatusUnbilled {
		// Billed or skipped out of band since the failure was recorded.
		if err := s.trackers.MarkCompleted(ctx, int64(tracker.ID)); err != nil {
			return "", err
		}
		return domain.OutcomeAlreadyResolved, nil
	}

	attempts := cycle.FailedAttempts()
	if attempts < pol.maxAttempts {
		runAt := s.clock.Now().Add(pol.retryBackoff)
		if err := s.rebill.EnqueueRebill(ctx, notice.MerchantKey, notice.ContractID, notice.BillingCycleIndex, runAt); err != nil {
			return "", err
		}
		s.log.Info("billing re-attempt scheduled",
			zap.String("merchant_key", notice.MerchantKey),
			zap.String("contract_id", notice.ContractID),
			zap.Int("billing_cycle_index", notice.BillingCycleIndex),
			zap.Int("failed_attempts", attempts),
			zap.Int("max_attempts", pol.maxAttempts),
			zap.Time("run_at", runAt),
		)
		return domain.OutcomeRetryScheduled, nil
	}

	outcome, err := s.applyExhausted(ctx, notice, pol.onFailure)
	if err != nil {
		return "", err
	}
	if err := s.trackers.MarkCompleted(ctx, int64(tracker.ID)); err != nil {
		return "", err
	}
	s.log.Info("dunning retries exhausted",
		zap.String("merchant_key", notice.MerchantKey),
		zap.String("contract_id", notice.ContractID),
		zap.Int("billing_cycle_index", notice.BillingCycleIndex),
		zap.String("on_failure", string(pol.onFailure)),
		zap.String("outcome", string(outcome)),
	)
	return outcome, nil
}

func (s *service) applyExhausted(ctx context.Context, notice domain.FailureNotice, onFailure domain.OnFailure) (domain.Outcome, error) {
	var (
		userErrs []commerce.UserError
		outcome  domain.Outcome
		err      error
	)
	switch onFailure {
	case domain.OnFailureCancel:
		outcome = domain.OutcomeCanceled
		userErrs, err = s.commerce.CancelContract(ctx, notice.MerchantKey, notice.ContractID)
	case domain.OnFailurePause:
		outcome = domain.OutcomePaused
		userErrs, err = s.commerce.PauseContract(ctx, notice.MerchantKey, notice.ContractID)
	default:
		outcome = domain.OutcomeSkipped
		userErrs, err = s.commerce.SkipBillingCycle(ctx, notice.MerchantKey, notice.ContractID, notice.BillingCycleIndex)
	}
	if err != nil {
		return "", err
	}
	if benign := benignOnly(userErrs); !benign {
		return "", fmt.Errorf("apply on-failure %q for contract %s: %v", onFailure, notice.ContractID, userErrs)
	}
	for _, ue := range userErrs {
		s.log.Info("on-failure action was a no-op",
			zap.String("contract_id", notice.ContractID),
			zap.String("code", ue.Code),
			zap.String("message", ue.Message),
		)
	}
	return outcome, nil
}

// benignOnly reports whether every userError means the contract already
// reached the target state concurrently.
func benignOnly(userErrs []commerce.UserError) bool {
	for _, ue := range userErrs {
		if !domain.IsBenignUserErrorCode(ue.Code) {
			return false
		}
	}
	return true
}

// Resolve closes every open tracker for the contract once the contract is
// billable again. Driven by the billing success webhook.
func (s *service) Resolve(ctx context.Context, merchantKey, contractID string) (int, error) {
	billable, err := s.commerce.ContractIsBillable(ctx, merchantKey, contractID)
	if err != nil {
		return 0, err
	}
	if !billable {
		return 0, nil
	}
	open, err := s.trackers.OpenByContract(ctx, merchantKey, contractID)
	if err != nil {
		return 0, err
	}
	for _, tracker := range open {
		if err := s.trackers.MarkCompleted(ctx, int64(tracker.ID)); err != nil {
			return 0, err
		}
	}
	if len(open) > 0 {
		s.log.Info("dunning trackers resolved",
			zap.String("merchant_key", merchantKey),
			zap.String("contract_id", contractID),
			zap.Int("count", len(open)),
		)
	}
	return len(open), nil
}
