package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurra/internal/billingschedule/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
}

type Repository struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewRepository(p Params) domain.Repository {
	return &Repository{db: p.DB, genID: p.GenID}
}

func (r *Repository) Upsert(ctx context.Context, schedule domain.MerchantBillingSchedule) (domain.MerchantBillingSchedule, error) {
	if err := schedule.Validate(); err != nil {
		return domain.MerchantBillingSchedule{}, err
	}
	if schedule.ID == 0 {
		schedule.ID = r.genID.Generate()
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "merchant_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"iana_timezone", "local_hour", "active", "updated_at",
		}),
	}).Create(&schedule).Error
	if err != nil {
		return domain.MerchantBillingSchedule{}, err
	}

	// Re-read so the caller sees the surviving row, not the candidate ID.
	existing, err := r.FindByMerchant(ctx, schedule.MerchantKey)
	if err != nil {
		return domain.MerchantBillingSchedule{}, err
	}
	if existing == nil {
		return schedule, nil
	}
	return *existing, nil
}

func (r *Repository) FindByMerchant(ctx context.Context, merchantKey string) (*domain.MerchantBillingSchedule, error) {
	var schedule domain.MerchantBillingSchedule
	err := r.db.WithContext(ctx).
		Where("merchant_key = ?", merchantKey).
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

func (r *Repository) SetActive(ctx context.Context, merchantKey string, active bool) error {
	return r.db.WithContext(ctx).
		Model(&domain.MerchantBillingSchedule{}).
		Where("merchant_key = ?", merchantKey).
		Update("active", active).Error
}

func (r *Repository) ListPage(ctx context.Context, cursor snowflake.ID, take int, activeOnly bool) ([]domain.MerchantBillingSchedule, error) {
	stmt := r.db.WithContext(ctx).
		Where("id > ?", cursor).
		Order("id ASC").
		Limit(take)
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}

	var schedules []domain.MerchantBillingSchedule
	if err := stmt.Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}
