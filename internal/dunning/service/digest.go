package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/recurra/internal/clock"
	"github.com/smallbiznis/recurra/internal/dunning/domain"
	"github.com/smallbiznis/recurra/internal/providers/email"
)

// DigestService emails the merchant a summary of contracts still blocked
// on inventory and keeps its own cadence alive while any remain open.
type DigestService struct {
	log      *zap.Logger
	trackers domain.TrackerRepository
	settings domain.SettingsRepository
	email    email.Provider
	enqueuer domain.DigestEnqueuer
	clock    clock.Clock
}

type DigestParams struct {
	fx.In

	Log      *zap.Logger
	Trackers domain.TrackerRepository
	Settings domain.SettingsRepository
	Email    email.Provider
	Enqueuer domain.DigestEnqueuer
	Clock    clock.Clock
}

func NewDigestService(p DigestParams) *DigestService {
	return &DigestService{
		log:      p.Log.Named("dunning.digest"),
		trackers: p.Trackers,
		settings: p.Settings,
		email:    p.Email,
		enqueuer: p.Enqueuer,
		clock:    p.Clock,
	}
}

// Run sends the digest for one merchant. With no open inventory trackers
// the cadence ends; otherwise the next digest is scheduled before sending
// so a flaky SMTP server cannot break the chain.
func (s *DigestService) Run(ctx context.Context, merchantKey string) error {
	open, err := s.trackers.OpenByMerchant(ctx, merchantKey, domain.InventoryFailureCode)
	if err != nil {
		return err
	}
	if len(open) == 0 {
		s.log.Info("no open inventory trackers, digest cadence ends",
			zap.String("merchant_key", merchantKey))
		return nil
	}

	settings, err := s.settings.ForMerchant(ctx, merchantKey)
	if err != nil {
		return err
	}
	runAt := s.clock.Now().Add(settings.DigestInterval())
	if err := s.enqueuer.EnqueueInventoryDigest(ctx, merchantKey, runAt); err != nil {
		return err
	}

	if settings.NotificationEmail == "" {
		s.log.Warn("merchant has no notification email, skipping digest send",
			zap.String("merchant_key", merchantKey),
			zap.Int("open_trackers", len(open)))
		return nil
	}

	subject := fmt.Sprintf("%d subscription(s) blocked on inventory", len(open))
	if err := s.email.Send(ctx, []string{settings.NotificationEmail}, subject, digestBody(open)); err != nil {
		return fmt.Errorf("send inventory digest: %w", err)
	}
	s.log.Info("inventory digest sent",
		zap.String("merchant_key", merchantKey),
		zap.Int("open_trackers", len(open)),
		zap.Time("next_run_at", runAt),
	)
	return nil
}

func digestBody(open []domain.DunningTracker) string {
	var b strings.Builder
	b.WriteString("<p>The following subscription billing cycles are blocked on insufficient inventory:</p><ul>")
	for _, t := range open {
		fmt.Fprintf(&b, "<li>Contract %s, billing cycle %d (since %s)</li>",
			t.ContractID, t.BillingCycleIndex, t.CreatedAt.Format("2006-01-02"))
	}
	b.WriteString("</ul><p>Restock the affected products to resume billing.</p>")
	return b.String()
}
