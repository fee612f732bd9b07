package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/smallbiznis/recurra/internal/clock"
	"github.com/smallbiznis/recurra/internal/dunning/domain"
	"github.com/smallbiznis/recurra/internal/dunning/repository"
)

type captureEmail struct {
	to      []string
	subject string
	body    string
	sends   int
}

func (c *captureEmail) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	c.to = to
	c.subject = subject
	c.body = htmlBody
	c.sends++
	return nil
}

func newDigestFixture(t *testing.T) (*DigestService, domain.TrackerRepository, domain.SettingsRepository, *captureEmail, *captureEnqueuer, time.Time) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.DunningTracker{}, &domain.MerchantSettings{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	trackers := repository.NewTrackerRepository(gdb, node)
	settings := repository.NewSettingsRepository(gdb, node)
	mail := &captureEmail{}
	enq := &captureEnqueuer{}

	svc := NewDigestService(DigestParams{
		Log:      zap.NewNop(),
		Trackers: trackers,
		Settings: settings,
		Email:    mail,
		Enqueuer: enq,
		Clock:    clock.NewFakeClock(now),
	})
	return svc, trackers, settings, mail, enq, now
}

func openInventoryTracker(t *testing.T, trackers domain.TrackerRepository, cycleIndex int) {
	t.Helper()
	_, _, err := trackers.FindOrCreate(context.Background(), domain.DunningTracker{
		MerchantKey:       "shop-1",
		ContractID:        "c-1",
		BillingCycleIndex: cycleIndex,
		FailureReasonCode: domain.InventoryFailureCode,
	})
	require.NoError(t, err)
}

func TestDigestEndsCadenceWithNothingOpen(t *testing.T) {
	svc, _, _, mail, enq, _ := newDigestFixture(t)

	require.NoError(t, svc.Run(context.Background(), "shop-1"))
	require.Zero(t, mail.sends)
	require.Empty(t, enq.digests)
}

func TestDigestSendsSummaryAndReschedules(t *testing.T) {
	svc, trackers, settings, mail, enq, now := newDigestFixture(t)

	openInventoryTracker(t, trackers, 1)
	openInventoryTracker(t, trackers, 2)
	_, err := settings.Upsert(context.Background(), domain.MerchantSettings{
		MerchantKey:                    "shop-1",
		RetryAttempts:                  3,
		DaysBetweenRetryAttempts:       7,
		OnFailure:                      domain.OnFailureSkip,
		InventoryRetryAttempts:         3,
		InventoryOnFailure:             domain.OnFailureSkip,
		InventoryNotificationFrequency: domain.NotifyWeekly,
		NotificationEmail:              "ops@shop-1.test",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Run(context.Background(), "shop-1"))

	require.Equal(t, 1, mail.sends)
	require.Equal(t, []string{"ops@shop-1.test"}, mail.to)
	require.Contains(t, mail.subject, "2 subscription")
	require.Contains(t, mail.body, "c-1")

	require.Len(t, enq.digests, 1)
	require.Equal(t, now.Add(7*24*time.Hour), enq.digests[0])
}

func TestDigestReschedulesEvenWithoutRecipient(t *testing.T) {
	svc, trackers, _, mail, enq, _ := newDigestFixture(t)
	openInventoryTracker(t, trackers, 1)

	require.NoError(t, svc.Run(context.Background(), "shop-1"))
	require.Zero(t, mail.sends, "no address configured, nothing to send")
	require.Len(t, enq.digests, 1, "cadence continues while trackers stay open")
}
