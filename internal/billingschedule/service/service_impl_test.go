package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/smallbiznis/recurra/internal/billingschedule/domain"
	"github.com/smallbiznis/recurra/internal/billingschedule/repository"
	"github.com/smallbiznis/recurra/internal/clock"
	"github.com/smallbiznis/recurra/internal/commerce"
	"github.com/smallbiznis/recurra/internal/config"
	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

type fakeCommerce struct {
	timezone    string
	timezoneErr error
}

func (f *fakeCommerce) BillingCyclesDue(ctx context.Context, merchantKey string, start, end time.Time) ([]commerce.BillingCycle, error) {
	return nil, nil
}

func (f *fakeCommerce) BillingCycle(ctx context.Context, merchantKey, contractID string, cycleIndex int) (*commerce.BillingCycle, error) {
	return nil, nil
}

func (f *fakeCommerce) CreateBillingAttempt(ctx context.Context, merchantKey, contractID string, cycleIndex int, idempotencyKey string) (*commerce.BillingAttempt, error) {
	return nil, nil
}

func (f *fakeCommerce) SkipBillingCycle(ctx context.Context, merchantKey, contractID string, cycleIndex int) ([]commerce.UserError, error) {
	return nil, nil
}

func (f *fakeCommerce) PauseContract(ctx context.Context, merchantKey, contractID string) ([]commerce.UserError, error) {
	return nil, nil
}

func (f *fakeCommerce) CancelContract(ctx context.Context, merchantKey, contractID string) ([]commerce.UserError, error) {
	return nil, nil
}

func (f *fakeCommerce) ContractIsBillable(ctx context.Context, merchantKey, contractID string) (bool, error) {
	return true, nil
}

func (f *fakeCommerce) MerchantTimezone(ctx context.Context, merchantKey string) (string, error) {
	return f.timezone, f.timezoneErr
}

type captureEnqueuer struct {
	mu       sync.Mutex
	enqueued []string
}

func (c *captureEnqueuer) EnqueueBillingRun(ctx context.Context, merchantKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueued = append(c.enqueued, merchantKey)
	return nil
}

func (c *captureEnqueuer) merchants() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.enqueued...)
	sort.Strings(out)
	return out
}

func newTestService(t *testing.T, now time.Time, fc *fakeCommerce) (domain.Service, domain.Repository, *captureEnqueuer) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.MerchantBillingSchedule{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := repository.NewRepository(repository.Params{DB: gdb, GenID: node})
	enq := &captureEnqueuer{}
	svc := NewService(Params{
		Log:      zap.NewNop(),
		Repo:     repo,
		Commerce: fc,
		Enqueuer: enq,
		Clock:    clock.NewFakeClock(now),
		Window:   config.StaticWindowConfig(config.DefaultWindowConfig()),
	})
	return svc, repo, enq
}

func seedSchedule(t *testing.T, repo domain.Repository, merchantKey, tz string, hour int) {
	t.Helper()
	_, err := repo.Upsert(context.Background(), domain.MerchantBillingSchedule{
		MerchantKey:  merchantKey,
		IANATimezone: tz,
		LocalHour:    hour,
		Active:       true,
	})
	require.NoError(t, err)
}

func TestRunOnceEnqueuesOnlyDueMerchants(t *testing.T) {
	// 14:00 UTC on a summer day: 10:00 in Toronto (EDT), 15:00 in London.
	now := time.Date(2023, 7, 14, 14, 0, 0, 0, time.UTC)
	fc := &fakeCommerce{timezone: "UTC"}
	svc, repo, enq := newTestService(t, now, fc)

	seedSchedule(t, repo, "due-toronto", "America/Toronto", 10)
	seedSchedule(t, repo, "not-due-london", "Europe/London", 10)
	seedSchedule(t, repo, "due-paris", "Europe/Paris", 16)

	require.NoError(t, svc.RunOnce(context.Background()))
	require.Equal(t, []string{"due-paris", "due-toronto"}, enq.merchants())
}

func TestRunOnceSkipsInactiveSchedules(t *testing.T) {
	now := time.Date(2023, 7, 14, 14, 0, 0, 0, time.UTC)
	fc := &fakeCommerce{timezone: "UTC"}
	svc, repo, enq := newTestService(t, now, fc)

	seedSchedule(t, repo, "gone", "America/Toronto", 10)
	require.NoError(t, repo.SetActive(context.Background(), "gone", false))

	require.NoError(t, svc.RunOnce(context.Background()))
	require.Empty(t, enq.merchants())
}

func TestRunOnceSkipsCorruptTimezoneWithoutFailing(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.MerchantBillingSchedule{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := repository.NewRepository(repository.Params{DB: gdb, GenID: node})

	now := time.Date(2023, 7, 14, 14, 0, 0, 0, time.UTC)
	enq := &captureEnqueuer{}
	svc := NewService(Params{
		Log:      zap.NewNop(),
		Repo:     repo,
		Commerce: &fakeCommerce{timezone: "UTC"},
		Enqueuer: enq,
		Clock:    clock.NewFakeClock(now),
		Window:   config.StaticWindowConfig(config.DefaultWindowConfig()),
	})

	seedSchedule(t, repo, "due-toronto", "America/Toronto", 10)
	seedSchedule(t, repo, "broken", "America/Toronto", 10)
	// Corrupt a stored timezone underneath the validation layer.
	require.NoError(t, gdb.Model(&domain.MerchantBillingSchedule{}).
		Where("merchant_key = ?", "broken").
		Update("iana_timezone", "Nowhere/AtAll").Error)

	require.NoError(t, svc.RunOnce(context.Background()))
	require.Equal(t, []string{"due-toronto"}, enq.merchants())
}

func TestSyncScheduleCreatesWithDefaultHour(t *testing.T) {
	now := time.Date(2023, 7, 14, 14, 0, 0, 0, time.UTC)
	fc := &fakeCommerce{timezone: "Australia/Sydney"}
	svc, repo, _ := newTestService(t, now, fc)

	require.NoError(t, svc.SyncSchedule(context.Background(), "shop-1"))

	got, err := repo.FindByMerchant(context.Background(), "shop-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Australia/Sydney", got.IANATimezone)
	require.Equal(t, DefaultLocalHour, got.LocalHour)
	require.True(t, got.Active)
}

func TestSyncSchedulePreservesChosenHour(t *testing.T) {
	now := time.Date(2023, 7, 14, 14, 0, 0, 0, time.UTC)
	fc := &fakeCommerce{timezone: "Europe/Berlin"}
	svc, repo, _ := newTestService(t, now, fc)

	seedSchedule(t, repo, "shop-1", "Europe/London", 4)

	require.NoError(t, svc.SyncSchedule(context.Background(), "shop-1"))

	got, err := repo.FindByMerchant(context.Background(), "shop-1")
	require.NoError(t, err)
	require.Equal(t, "Europe/Berlin", got.IANATimezone)
	require.Equal(t, 4, got.LocalHour, "merchant-chosen hour survives a timezone sync")
}

func TestSyncScheduleDeactivatesOnTerminalLookup(t *testing.T) {
	now := time.Date(2023, 7, 14, 14, 0, 0, 0, time.UTC)
	fc := &fakeCommerce{timezoneErr: jobdomain.ErrMerchantSessionNotFound}
	svc, repo, _ := newTestService(t, now, fc)

	seedSchedule(t, repo, "shop-1", "Europe/London", 10)

	require.NoError(t, svc.SyncSchedule(context.Background(), "shop-1"))

	got, err := repo.FindByMerchant(context.Background(), "shop-1")
	require.NoError(t, err)
	require.False(t, got.Active)
}
