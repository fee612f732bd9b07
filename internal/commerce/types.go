package commerce

import "time"

// ContractStatus mirrors the remote subscription contract lifecycle. The
// core only reads these; it does not own the lifecycle.
type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "ACTIVE"
	ContractStatusPaused    ContractStatus = "PAUSED"
	ContractStatusCancelled ContractStatus = "CANCELLED"
	ContractStatusExpired   ContractStatus = "EXPIRED"
	ContractStatusFailed    ContractStatus = "FAILED"
)

// BillingCycleStatus of one scheduled charge occurrence.
type BillingCycleStatus string

const (
	BillingCycleStatusBilled   BillingCycleStatus = "BILLED"
	BillingCycleStatusUnbilled BillingCycleStatus = "UNBILLED"
	BillingCycleStatusSkipped  BillingCycleStatus = "SKIPPED"
)

// BillingAttemptStatus of one collection attempt within a cycle.
type BillingAttemptStatus string

const (
	BillingAttemptStatusPending   BillingAttemptStatus = "PENDING"
	BillingAttemptStatusCompleted BillingAttemptStatus = "COMPLETED"
	BillingAttemptStatusFailed    BillingAttemptStatus = "FAILED"
)

type Contract struct {
	ID     string
	Status ContractStatus
}

type BillingAttempt struct {
	ID        string
	Status    BillingAttemptStatus
	ErrorCode string
	CreatedAt time.Time
}

type BillingCycle struct {
	ContractID   string
	CycleIndex   int
	ExpectedDate time.Time
	Status       BillingCycleStatus
	Attempts     []BillingAttempt
}

// FailedAttempts counts collection attempts that ended in failure. Dunning
// derives its attempts-so-far from this, not from local state.
func (c BillingCycle) FailedAttempts() int {
	n := 0
	for _, a := range c.Attempts {
		if a.Status == BillingAttemptStatusFailed {
			n++
		}
	}
	return n
}

// UserError is a business-rule failure reported inside a mutation response.
type UserError struct {
	Field   []string `json:"field"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
}
