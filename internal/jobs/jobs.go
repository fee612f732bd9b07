// Package jobs defines the closed set of background task types and the
// static name→decoder table binding them to the runner. Adding a job type
// means adding a struct, a decoder and a table row here; nothing is
// discovered at runtime.
package jobs

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	scheduledomain "github.com/smallbiznis/recurra/internal/billingschedule/domain"
	"github.com/smallbiznis/recurra/internal/clock"
	"github.com/smallbiznis/recurra/internal/commerce"
	"github.com/smallbiznis/recurra/internal/config"
	dunningdomain "github.com/smallbiznis/recurra/internal/dunning/domain"
	dunningservice "github.com/smallbiznis/recurra/internal/dunning/service"
	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
	"github.com/smallbiznis/recurra/internal/job/runner"
)

// Job type tags. Stable wire identifiers; renaming one orphans every task
// already sitting in a queue.
const (
	JobBillingRun      = "billing.run"
	JobRebillCycle     = "billing.rebill_cycle"
	JobDunningRetry    = "dunning.retry"
	JobInventoryRetry  = "inventory.retry"
	JobInventoryDigest = "inventory.digest"
	JobScheduleSync    = "schedule.sync"
)

// Queue names, addressed per backend queue rather than per job type.
const (
	QueueBilling  = "billing"
	QueueDunning  = "dunning"
	QueueSchedule = "schedule"
)

// Deps is everything any task type may need at perform time. Tasks are
// reconstructed from wire payloads, so dependencies ride on the decoder
// closure instead of the serialized form.
type Deps struct {
	fx.In

	Log         *zap.Logger
	Schedules   scheduledomain.Repository
	ScheduleSvc scheduledomain.Service
	Window      *config.WindowConfigHolder
	Clock       clock.Clock
	Commerce    commerce.Client
	Dunning     dunningdomain.Service
	Digest      *dunningservice.DigestService
}

// Registrations is the full static table.
func Registrations(d Deps) []runner.Registration {
	return []runner.Registration{
		{Name: JobBillingRun, Decode: decodeBillingRun(d)},
		{Name: JobRebillCycle, Decode: decodeRebillCycle(d)},
		{Name: JobDunningRetry, Decode: decodeDunningRetry(d)},
		{Name: JobInventoryRetry, Decode: decodeInventoryRetry(d)},
		{Name: JobInventoryDigest, Decode: decodeInventoryDigest(d)},
		{Name: JobScheduleSync, Decode: decodeScheduleSync(d)},
	}
}

func stringField(payload map[string]any, key string) (string, error) {
	v, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("payload missing %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("payload field %q must be a non-empty string", key)
	}
	return s, nil
}

// intField accepts float64 because that is what encoding/json hands back
// for any JSON number.
func intField(payload map[string]any, key string) (int, error) {
	v, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("payload missing %q", key)
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("payload field %q must be a number", key)
	}
}

func requireMerchant(params jobdomain.Parameters) (string, error) {
	if params.MerchantKey == "" {
		return "", fmt.Errorf("parameters missing merchantKey")
	}
	return params.MerchantKey, nil
}
