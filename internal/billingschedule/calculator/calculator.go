package calculator

import (
	"time"

	"github.com/smallbiznis/recurra/internal/billingschedule/domain"
)

// Calculator decides whether a merchant's billing window is due at a given
// UTC instant, and what the absolute window bounds are. Pure arithmetic
// over the schedule record; no I/O.
type Calculator struct {
	schedule domain.MerchantBillingSchedule
	now      time.Time
	location *time.Location
	lookback time.Duration
}

// New builds a calculator for one schedule at instant now, truncated to the
// start of its hour. lookback is how far before the window end the window
// start reaches; it is deliberately wider than one day so a missed fire is
// recovered by a later run instead of silently dropped.
func New(schedule domain.MerchantBillingSchedule, now time.Time, lookback time.Duration) (*Calculator, error) {
	location, err := time.LoadLocation(schedule.IANATimezone)
	if err != nil {
		return nil, domain.ErrInvalidTimezone
	}
	if schedule.LocalHour < 0 || schedule.LocalHour > 23 {
		return nil, domain.ErrInvalidLocalHour
	}
	return &Calculator{
		schedule: schedule,
		now:      now.UTC().Truncate(time.Hour),
		location: location,
		lookback: lookback,
	}, nil
}

// LocalFireTime answers "what does this merchant's billing hour look like
// today in their own calendar": the instant now converted into the
// merchant's timezone, with the hour of day overwritten by the configured
// local hour, truncated to the start of that hour.
//
// A local hour falling inside a DST spring-forward gap resolves to a valid
// nearby instant, and one landing on a fall-back duplicate resolves
// deterministically to one of the two, both per time.Date normalization.
func (c *Calculator) LocalFireTime() time.Time {
	local := c.now.In(c.location)
	return time.Date(local.Year(), local.Month(), local.Day(), c.schedule.LocalHour, 0, 0, 0, c.location)
}

// UTCFireTime is LocalFireTime mapped back to UTC, truncated to the hour.
func (c *Calculator) UTCFireTime() time.Time {
	return c.LocalFireTime().UTC().Truncate(time.Hour)
}

// IsBillable reports whether the merchant's fire hour is exactly now.
// The local-to-UTC mapping of a fixed wall-clock hour is monotonic over any
// single calendar day even across a DST shift, so this is true for exactly
// one UTC hour per merchant per day.
func (c *Calculator) IsBillable() bool {
	return c.UTCFireTime().Equal(c.now)
}

// BillingEndTime is the boundary of the merchant's current local day: the
// last millisecond of the previous local day, in UTC. Cycles expected up to
// that boundary are in scope for this run.
func (c *Calculator) BillingEndTime() time.Time {
	local := c.now.In(c.location)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.location)
	return startOfDay.Add(-time.Millisecond).UTC()
}

// BillingStartTime is BillingEndTime minus the lookback. The width is a
// fixed UTC duration regardless of DST transitions inside the window;
// callers rely on idempotent already-billed checks for the overlap.
func (c *Calculator) BillingStartTime() time.Time {
	return c.BillingEndTime().Add(-c.lookback)
}
