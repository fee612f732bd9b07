package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smallbiznis/recurra/internal/dunning/domain"
	"github.com/smallbiznis/recurra/pkg/db"
)

type trackerRepository struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewTrackerRepository(gdb *gorm.DB, node *snowflake.Node) domain.TrackerRepository {
	return &trackerRepository{db: gdb, node: node}
}

func (r *trackerRepository) FindOrCreate(ctx context.Context, tracker domain.DunningTracker) (domain.DunningTracker, bool, error) {
	tracker.ID = r.node.Generate()
	tracker.CompletedAt = nil

	err := r.db.WithContext(ctx).Create(&tracker).Error
	if err == nil {
		return tracker, true, nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return domain.DunningTracker{}, false, fmt.Errorf("create dunning tracker: %w", err)
	}

	var existing domain.DunningTracker
	err = r.db.WithContext(ctx).
		Where("merchant_key = ? AND contract_id = ? AND billing_cycle_index = ? AND failure_reason_code = ?",
			tracker.MerchantKey, tracker.ContractID, tracker.BillingCycleIndex, tracker.FailureReasonCode).
		First(&existing).Error
	if err != nil {
		return domain.DunningTracker{}, false, fmt.Errorf("find dunning tracker after conflict: %w", err)
	}
	return existing, false, nil
}

func (r *trackerRepository) MarkCompleted(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).
		Model(&domain.DunningTracker{}).
		Where("id = ? AND completed_at IS NULL", id).
		Update("completed_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
	if err != nil {
		return fmt.Errorf("mark dunning tracker completed: %w", err)
	}
	return nil
}

func (r *trackerRepository) OpenByContract(ctx context.Context, merchantKey, contractID string) ([]domain.DunningTracker, error) {
	var trackers []domain.DunningTracker
	err := r.db.WithContext(ctx).
		Where("merchant_key = ? AND contract_id = ? AND completed_at IS NULL", merchantKey, contractID).
		Order("id ASC").
		Find(&trackers).Error
	if err != nil {
		return nil, fmt.Errorf("list open trackers by contract: %w", err)
	}
	return trackers, nil
}

func (r *trackerRepository) OpenByMerchant(ctx context.Context, merchantKey, reasonCode string) ([]domain.DunningTracker, error) {
	var trackers []domain.DunningTracker
	q := r.db.WithContext(ctx).
		Where("merchant_key = ? AND completed_at IS NULL", merchantKey)
	if reasonCode != "" {
		q = q.Where("failure_reason_code = ?", reasonCode)
	}
	err := q.Order("id ASC").Find(&trackers).Error
	if err != nil {
		return nil, fmt.Errorf("list open trackers by merchant: %w", err)
	}
	return trackers, nil
}

type settingsRepository struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewSettingsRepository(gdb *gorm.DB, node *snowflake.Node) domain.SettingsRepository {
	return &settingsRepository{db: gdb, node: node}
}

// DefaultSettings applies when a merchant never saved a policy.
func DefaultSettings(merchantKey string) domain.MerchantSettings {
	return domain.MerchantSettings{
		MerchantKey:                       merchantKey,
		RetryAttempts:                     3,
		DaysBetweenRetryAttempts:          7,
		OnFailure:                         domain.OnFailureSkip,
		InventoryRetryAttempts:            3,
		InventoryDaysBetweenRetryAttempts: 7,
		InventoryOnFailure:                domain.OnFailureSkip,
		InventoryNotificationFrequency:    domain.NotifyMonthly,
	}
}

func (r *settingsRepository) ForMerchant(ctx context.Context, merchantKey string) (domain.MerchantSettings, error) {
	var settings domain.MerchantSettings
	err := r.db.WithContext(ctx).
		Where("merchant_key = ?", merchantKey).
		First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultSettings(merchantKey), nil
	}
	if err != nil {
		return domain.MerchantSettings{}, fmt.Errorf("find merchant settings: %w", err)
	}
	return settings, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, settings domain.MerchantSettings) (domain.MerchantSettings, error) {
	// Candidate ID only; on conflict the surviving row keeps its own.
	settings.ID = r.node.Generate()

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "merchant_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"retry_attempts", "days_between_retry_attempts", "on_failure",
			"inventory_retry_attempts", "inventory_days_between_retry_attempts",
			"inventory_on_failure", "inventory_notification_frequency",
			"notification_email", "updated_at",
		}),
	}).Create(&settings).Error
	if err != nil {
		return domain.MerchantSettings{}, fmt.Errorf("upsert merchant settings: %w", err)
	}

	// Re-read so the caller sees the surviving row, not the candidate ID.
	var saved domain.MerchantSettings
	err = r.db.WithContext(ctx).
		Where("merchant_key = ?", settings.MerchantKey).
		First(&saved).Error
	if err != nil {
		return domain.MerchantSettings{}, fmt.Errorf("find merchant settings after upsert: %w", err)
	}
	return saved, nil
}
