package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/recurra/internal/billingschedule/calculator"
	"github.com/smallbiznis/recurra/internal/billingschedule/domain"
	"github.com/smallbiznis/recurra/internal/clock"
	"github.com/smallbiznis/recurra/internal/commerce"
	"github.com/smallbiznis/recurra/internal/config"
	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
	"github.com/smallbiznis/recurra/internal/lock"
	obsmetrics "github.com/smallbiznis/recurra/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DefaultLocalHour is the billing hour assigned on first onboarding, before
// the merchant picks their own.
const DefaultLocalHour = 10

const evaluationPageSize = 50

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     domain.Repository
	Commerce commerce.Client
	Enqueuer domain.BillingJobEnqueuer
	Clock    clock.Clock
	Window   *config.WindowConfigHolder
	Locker   *lock.Locker `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	commerce commerce.Client
	enqueuer domain.BillingJobEnqueuer
	clock    clock.Clock
	window   *config.WindowConfigHolder
	locker   *lock.Locker
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("billingschedule.service"),
		repo:     p.Repo,
		commerce: p.Commerce,
		enqueuer: p.Enqueuer,
		clock:    p.Clock,
		window:   p.Window,
		locker:   p.Locker,
	}
}

func (s *Service) SyncSchedule(ctx context.Context, merchantKey string) error {
	timezone, err := s.commerce.MerchantTimezone(ctx, merchantKey)
	if err != nil {
		if jobdomain.Classify(err) == jobdomain.ClassificationTerminal {
			// Merchant is frozen, locked or gone: park the schedule until a
			// reactivation webhook arrives.
			s.log.Warn("merchant unavailable, deactivating schedule",
				zap.String("merchant_key", merchantKey),
				zap.Error(err),
			)
			return s.repo.SetActive(ctx, merchantKey, false)
		}
		return err
	}

	localHour := DefaultLocalHour
	existing, err := s.repo.FindByMerchant(ctx, merchantKey)
	if err != nil {
		return err
	}
	if existing != nil {
		localHour = existing.LocalHour
	}

	_, err = s.repo.Upsert(ctx, domain.MerchantBillingSchedule{
		MerchantKey:  merchantKey,
		IANATimezone: timezone,
		LocalHour:    localHour,
		Active:       true,
	})
	return err
}

func (s *Service) Deactivate(ctx context.Context, merchantKey string) error {
	return s.repo.SetActive(ctx, merchantKey, false)
}

func (s *Service) Reactivate(ctx context.Context, merchantKey string) error {
	return s.repo.SetActive(ctx, merchantKey, true)
}

// RunOnce evaluates every active schedule against the current hour. Pages
// are walked sequentially; within a page, enqueues fan out per merchant and
// one merchant's failure never blocks the others.
func (s *Service) RunOnce(ctx context.Context) error {
	now := s.clock.Now().UTC().Truncate(time.Hour)
	metrics := obsmetrics.Jobs()

	if s.locker != nil {
		key := fmt.Sprintf("billing:run:%s", now.Format("2006010215"))
		token, ok, err := s.locker.TryLock(ctx, key, s.window.Get().CadenceDuration())
		if err != nil {
			return fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			metrics.IncEvaluationLockMiss()
			s.log.Info("billing evaluation already running elsewhere", zap.Time("hour", now))
			return nil
		}
		defer func() {
			_ = s.locker.Release(context.WithoutCancel(ctx), key, token)
		}()
	}

	metrics.IncEvaluationRun()
	metrics.ObserveEvaluationLag(s.clock.Now().Sub(now))
	lookback := s.window.Get().Lookback()

	// Enqueue failures are joined, not fatal: later pages still run and the
	// missed merchants are recovered by the lookback on the next cycle.
	var runErr error
	walkErr := domain.EachPage(ctx, s.repo, evaluationPageSize, true, func(ctx context.Context, page []domain.MerchantBillingSchedule) error {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			pageErr error
		)

		for _, schedule := range page {
			calc, err := calculator.New(schedule, now, lookback)
			if err != nil {
				s.log.Warn("skipping schedule with bad timezone config",
					zap.String("merchant_key", schedule.MerchantKey),
					zap.String("timezone", schedule.IANATimezone),
					zap.Error(err),
				)
				continue
			}
			if !calc.IsBillable() {
				continue
			}

			metrics.IncBillableMerchant()
			wg.Add(1)
			go func(merchantKey string) {
				defer wg.Done()
				if err := s.enqueuer.EnqueueBillingRun(ctx, merchantKey); err != nil {
					s.log.Error("failed to enqueue billing run",
						zap.String("merchant_key", merchantKey),
						zap.Error(err),
					)
					mu.Lock()
					pageErr = errors.Join(pageErr, err)
					mu.Unlock()
				}
			}(schedule.MerchantKey)
		}

		wg.Wait()
		runErr = errors.Join(runErr, pageErr)
		return nil
	})
	return errors.Join(runErr, walkErr)
}

func (s *Service) RunForever(ctx context.Context) {
	for {
		cadence := s.window.Get().CadenceDuration()
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("billing evaluation run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(cadence):
		}
	}
}
