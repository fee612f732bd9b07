package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Repository is the schedule record store. Writers always upsert by
// merchant key; there is no read-modify-write across operations.
type Repository interface {
	// Upsert creates or updates the row for the merchant key.
	Upsert(ctx context.Context, schedule MerchantBillingSchedule) (MerchantBillingSchedule, error)
	FindByMerchant(ctx context.Context, merchantKey string) (*MerchantBillingSchedule, error)
	// SetActive flips the active flag without touching timezone or hour.
	SetActive(ctx context.Context, merchantKey string, active bool) error
	// ListPage returns up to take rows with id > cursor, ordered by id
	// ascending. Keyset, not offset: stays correct under concurrent
	// inserts. activeOnly filters to active schedules.
	ListPage(ctx context.Context, cursor snowflake.ID, take int, activeOnly bool) ([]MerchantBillingSchedule, error)
}
