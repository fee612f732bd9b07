package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// DunningTracker deduplicates failure handling for one billing cycle and
// reason. The composite key is the idempotency key for repeated failure
// webhooks: at most one open tracker per tuple. Created via find-or-create
// on the first failure notification; mutated only to set CompletedAt once
// the contract returns to a billable state; never deleted by core logic.
type DunningTracker struct {
	ID                snowflake.ID      `gorm:"primaryKey"`
	MerchantKey       string            `gorm:"not null;uniqueIndex:ux_dunning_trackers_cycle,priority:1"`
	ContractID        string            `gorm:"not null;uniqueIndex:ux_dunning_trackers_cycle,priority:2"`
	BillingCycleIndex int               `gorm:"not null;uniqueIndex:ux_dunning_trackers_cycle,priority:3"`
	FailureReasonCode string            `gorm:"not null;uniqueIndex:ux_dunning_trackers_cycle,priority:4"`
	CompletedAt       *time.Time        `gorm:""`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt         time.Time         `gorm:"not null"`
	UpdatedAt         time.Time         `gorm:"not null"`
}

func (DunningTracker) TableName() string { return "dunning_trackers" }

func (t DunningTracker) Open() bool { return t.CompletedAt == nil }

// OnFailure is the policy applied once retries are exhausted.
type OnFailure string

const (
	OnFailureSkip   OnFailure = "skip"
	OnFailureCancel OnFailure = "cancel"
	OnFailurePause  OnFailure = "pause"
)

// NotificationFrequency of the inventory digest.
type NotificationFrequency string

const (
	NotifyWeekly  NotificationFrequency = "weekly"
	NotifyMonthly NotificationFrequency = "monthly"
)

// MerchantSettings is the merchant's retry policy. Owned by the merchant
// configuration store; read fresh per decision, never cached across
// invocations.
type MerchantSettings struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	MerchantKey string       `gorm:"not null;uniqueIndex:ux_merchant_settings_merchant"`

	RetryAttempts            int       `gorm:"not null;default:3"`
	DaysBetweenRetryAttempts int       `gorm:"not null;default:7"`
	OnFailure                OnFailure `gorm:"type:text;not null;default:'skip'"`

	InventoryRetryAttempts            int                   `gorm:"not null;default:3"`
	InventoryDaysBetweenRetryAttempts int                   `gorm:"not null;default:7"`
	InventoryOnFailure                OnFailure             `gorm:"type:text;not null;default:'skip'"`
	InventoryNotificationFrequency    NotificationFrequency `gorm:"type:text;not null;default:'monthly'"`

	NotificationEmail string    `gorm:""`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (MerchantSettings) TableName() string { return "merchant_settings" }

// DigestInterval converts the configured cadence into a scheduling offset.
func (s MerchantSettings) DigestInterval() time.Duration {
	if s.InventoryNotificationFrequency == NotifyWeekly {
		return 7 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

// InventoryFailureCode is the attempt error code handled by the inventory
// variant; every other failure code goes through payment dunning.
const InventoryFailureCode = "INSUFFICIENT_INVENTORY"

func IsInventoryFailure(reasonCode string) bool {
	return reasonCode == InventoryFailureCode
}

// Benign mutation userError codes: the contract already reached a terminal
// state concurrently, so the decision this run was about to make is moot.
var benignUserErrorCodes = map[string]struct{}{
	"CONTRACT_PAUSED":       {},
	"BILLING_CYCLE_SKIPPED": {},
	"CONTRACT_TERMINATED":   {},
}

func IsBenignUserErrorCode(code string) bool {
	_, ok := benignUserErrorCodes[code]
	return ok
}
