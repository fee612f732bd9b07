package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// MerchantBillingSchedule is the per-merchant configuration of when the
// recurring billing evaluation fires: an IANA timezone plus a local hour.
// One row per merchant. Created on first successful onboarding timezone
// lookup; upserted on any timezone or status change; Active is flipped off
// when the merchant becomes inaccessible and on again on reactivation.
// Never hard-deleted in the common path.
type MerchantBillingSchedule struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	MerchantKey  string       `gorm:"not null;uniqueIndex:ux_billing_schedules_merchant"`
	IANATimezone string       `gorm:"not null"`
	LocalHour    int          `gorm:"not null"`
	Active       bool         `gorm:"not null;default:true;index"`
	CreatedAt    time.Time    `gorm:"not null"`
	UpdatedAt    time.Time    `gorm:"not null"`
}

func (MerchantBillingSchedule) TableName() string { return "merchant_billing_schedules" }

var (
	ErrInvalidLocalHour = errors.New("local hour must be between 0 and 23")
	ErrInvalidTimezone  = errors.New("invalid iana timezone")
)

// Validate checks the schedule fields that calculator arithmetic depends on.
func (s MerchantBillingSchedule) Validate() error {
	if s.LocalHour < 0 || s.LocalHour > 23 {
		return ErrInvalidLocalHour
	}
	if _, err := time.LoadLocation(s.IANATimezone); err != nil {
		return ErrInvalidTimezone
	}
	return nil
}
