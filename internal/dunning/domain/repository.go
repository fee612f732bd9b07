package domain

import "context"

// TrackerRepository persists dunning trackers. FindOrCreate must be safe
// under concurrent inserts of the same tuple: losers of the insert race
// return the existing row.
type TrackerRepository interface {
	FindOrCreate(ctx context.Context, tracker DunningTracker) (existing DunningTracker, created bool, err error)
	MarkCompleted(ctx context.Context, id int64) error
	OpenByContract(ctx context.Context, merchantKey, contractID string) ([]DunningTracker, error)
	OpenByMerchant(ctx context.Context, merchantKey, reasonCode string) ([]DunningTracker, error)
}

// SettingsRepository reads merchant retry policy. Implementations return a
// default policy when the merchant has no stored row.
type SettingsRepository interface {
	ForMerchant(ctx context.Context, merchantKey string) (MerchantSettings, error)
	Upsert(ctx context.Context, settings MerchantSettings) (MerchantSettings, error)
}
