package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/recurra/internal/config"
	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Client is the typed view of the remote commerce API the core depends on.
// The query language's wire format is not part of this subsystem's contract;
// only these operations are.
type Client interface {
	// BillingCyclesDue lists unbilled cycles expected inside [start, end]
	// for the merchant's active contracts.
	BillingCyclesDue(ctx context.Context, merchantKey string, start, end time.Time) ([]BillingCycle, error)
	// BillingCycle fetches one cycle with its attempt history.
	BillingCycle(ctx context.Context, merchantKey, contractID string, cycleIndex int) (*BillingCycle, error)
	CreateBillingAttempt(ctx context.Context, merchantKey, contractID string, cycleIndex int, idempotencyKey string) (*BillingAttempt, error)
	SkipBillingCycle(ctx context.Context, merchantKey, contractID string, cycleIndex int) ([]UserError, error)
	PauseContract(ctx context.Context, merchantKey, contractID string) ([]UserError, error)
	CancelContract(ctx context.Context, merchantKey, contractID string) ([]UserError, error)
	// ContractIsBillable reports whether the contract returned to a state
	// where collection can succeed.
	ContractIsBillable(ctx context.Context, merchantKey, contractID string) (bool, error)
	// MerchantTimezone resolves the merchant's IANA timezone for schedule
	// sync. Returns a terminal error when the merchant is gone.
	MerchantTimezone(ctx context.Context, merchantKey string) (string, error)
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// HTTPClient talks GraphQL over HTTP, one request per operation. HTTP
// statuses signaling merchant-level unavailability (402 frozen, 403 no
// access, 404 gone, 423 locked) classify terminal; everything else,
// including a missing data key, classifies retryable.
type HTTPClient struct {
	endpoint string
	token    string
	http     *http.Client
	log      *zap.Logger
}

func NewHTTPClient(cfg config.Config, log *zap.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint: cfg.CommerceAPIEndpoint,
		token:    cfg.CommerceAPIToken,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log.Named("commerce.client"),
	}
}

func (c *HTTPClient) do(ctx context.Context, merchantKey, document string, variables map[string]any, out any) error {
	if c.endpoint == "" {
		return fmt.Errorf("commerce api endpoint not configured")
	}
	if merchantKey == "" {
		return jobdomain.Terminal(jobdomain.ErrMerchantSessionNotFound)
	}

	payload, err := json.Marshal(map[string]any{
		"query":     document,
		"variables": variables,
	})
	if err != nil {
		return err
	}

	url := strings.ReplaceAll(c.endpoint, "{merchant}", merchantKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Commerce-Access-Token", c.token)
	req.Header.Set("X-Merchant-Key", merchantKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("commerce api request: %w", err)
	}
	defer resp.Body.Close()

	if jobdomain.TerminalHTTPStatus(resp.StatusCode) {
		return jobdomain.Terminalf("commerce api unavailable for merchant %s: status %d", merchantKey, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("commerce api status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read commerce api response: %w", err)
	}

	var gql graphQLResponse
	if err := json.Unmarshal(body, &gql); err != nil {
		return fmt.Errorf("decode commerce api response: %w", err)
	}
	if len(gql.Errors) > 0 {
		return fmt.Errorf("commerce api errors: %s", gql.Errors[0].Message)
	}
	if len(gql.Data) == 0 {
		return fmt.Errorf("commerce api response missing data")
	}
	if out != nil {
		if err := json.Unmarshal(gql.Data, out); err != nil {
			return fmt.Errorf("decode commerce api data: %w", err)
		}
	}
	return nil
}

const billingCyclesDueDocument = `
query BillingCyclesDue($start: DateTime!, $end: DateTime!) {
  subscriptionBillingCycles(expectedDateRange: {start: $start, end: $end}, status: UNBILLED) {
    contractId
    cycleIndex
    expectedDate
    status
  }
}`

type billingCycleWire struct {
	ContractID   string    `json:"contractId"`
	CycleIndex   int       `json:"cycleIndex"`
	ExpectedDate time.Time `json:"expectedDate"`
	Status       string    `json:"status"`
	Attempts     []struct {
		ID        string    `json:"id"`
		Status    string    `json:"status"`
		ErrorCode string    `json:"errorCode"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"attempts"`
}

func (w billingCycleWire) toDomain() BillingCycle {
	cycle := BillingCycle{
		ContractID:   w.ContractID,
		CycleIndex:   w.CycleIndex,
		ExpectedDate: w.ExpectedDate,
		Status:       BillingCycleStatus(w.Status),
	}
	for _, a := range w.Attempts {
		cycle.Attempts = append(cycle.Attempts, BillingAttempt{
			ID:        a.ID,
			Status:    BillingAttemptStatus(a.Status),
			ErrorCode: a.ErrorCode,
			CreatedAt: a.CreatedAt,
		})
	}
	return cycle
}

func (c *HTTPClient) BillingCyclesDue(ctx context.Context, merchantKey string, start, end time.Time) ([]BillingCycle, error) {
	var data struct {
		Cycles []billingCycleWire `json:"subscriptionBillingCycles"`
	}
	err := c.do(ctx, merchantKey, billingCyclesDueDocument, map[string]any{
		"start": start.Format(time.RFC3339),
		"end":   end.Format(time.RFC3339),
	}, &data)
	if err != nil {
		return nil, err
	}
	cycles := make([]BillingCycle, 0, len(data.Cycles))
	for _, w := range data.Cycles {
		cycles = append(cycles, w.toDomain())
	}
	return cycles, nil
}

const billingCycleDocument = `
query BillingCycle($contractId: ID!, $cycleIndex: Int!) {
  subscriptionBillingCycle(contractId: $contractId, cycleIndex: $cycleIndex) {
    contractId
    cycleIndex
    expectedDate
    status
    attempts {
      id
      status
      errorCode
      createdAt
    }
  }
}`

func (c *HTTPClient) BillingCycle(ctx context.Context, merchantKey, contractID string, cycleIndex int) (*BillingCycle, error) {
	var data struct {
		Cycle *billingCycleWire `json:"subscriptionBillingCycle"`
	}
	err := c.do(ctx, merchantKey, billingCycleDocument, map[string]any{
		"contractId": contractID,
		"cycleIndex": cycleIndex,
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.Cycle == nil {
		return nil, fmt.Errorf("billing cycle %s/%d not found in response", contractID, cycleIndex)
	}
	cycle := data.Cycle.toDomain()
	return &cycle, nil
}

const createBillingAttemptDocument = `
mutation CreateBillingAttempt($contractId: ID!, $cycleIndex: Int!, $idempotencyKey: String!) {
  subscriptionBillingAttemptCreate(contractId: $contractId, cycleIndex: $cycleIndex, idempotencyKey: $idempotencyKey) {
    billingAttempt {
      id
      status
      errorCode
      createdAt
    }
    userErrors {
      field
      code
      message
    }
  }
}`

func (c *HTTPClient) CreateBillingAttempt(ctx context.Context, merchantKey, contractID string, cycleIndex int, idempotencyKey string) (*BillingAttempt, error) {
	var data struct {
		Result struct {
			BillingAttempt *BillingAttempt `json:"billingAttempt"`
			UserErrors     []UserError     `json:"userErrors"`
		} `json:"subscriptionBillingAttemptCreate"`
	}
	err := c.do(ctx, merchantKey, createBillingAttemptDocument, map[string]any{
		"contractId":     contractID,
		"cycleIndex":     cycleIndex,
		"idempotencyKey": idempotencyKey,
	}, &data)
	if err != nil {
		return nil, err
	}
	if len(data.Result.UserErrors) > 0 {
		return nil, fmt.Errorf("create billing attempt %s/%d: %s", contractID, cycleIndex, data.Result.UserErrors[0].Message)
	}
	if data.Result.BillingAttempt == nil {
		return nil, fmt.Errorf("create billing attempt %s/%d: missing attempt in response", contractID, cycleIndex)
	}
	return data.Result.BillingAttempt, nil
}

const skipBillingCycleDocument = `
mutation SkipBillingCycle($contractId: ID!, $cycleIndex: Int!) {
  subscriptionBillingCycleSkip(contractId: $contractId, cycleIndex: $cycleIndex) {
    userErrors {
      field
      code
      message
    }
  }
}`

func (c *HTTPClient) SkipBillingCycle(ctx context.Context, merchantKey, contractID string, cycleIndex int) ([]UserError, error) {
	var data struct {
		Result struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"subscriptionBillingCycleSkip"`
	}
	err := c.do(ctx, merchantKey, skipBillingCycleDocument, map[string]any{
		"contractId": contractID,
		"cycleIndex": cycleIndex,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.Result.UserErrors, nil
}

const pauseContractDocument = `
mutation PauseContract($contractId: ID!) {
  subscriptionContractPause(contractId: $contractId) {
    contract {
      id
      status
    }
    userErrors {
      field
      code
      message
    }
  }
}`

func (c *HTTPClient) PauseContract(ctx context.Context, merchantKey, contractID string) ([]UserError, error) {
	var data struct {
		Result struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"subscriptionContractPause"`
	}
	err := c.do(ctx, merchantKey, pauseContractDocument, map[string]any{
		"contractId": contractID,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.Result.UserErrors, nil
}

const cancelContractDocument = `
mutation CancelContract($contractId: ID!) {
  subscriptionContractCancel(contractId: $contractId) {
    contract {
      id
      status
    }
    userErrors {
      field
      code
      message
    }
  }
}`

func (c *HTTPClient) CancelContract(ctx context.Context, merchantKey, contractID string) ([]UserError, error) {
	var data struct {
		Result struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"subscriptionContractCancel"`
	}
	err := c.do(ctx, merchantKey, cancelContractDocument, map[string]any{
		"contractId": contractID,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.Result.UserErrors, nil
}

const contractStatusDocument = `
query ContractStatus($contractId: ID!) {
  subscriptionContract(contractId: $contractId) {
    id
    status
  }
}`

func (c *HTTPClient) ContractIsBillable(ctx context.Context, merchantKey, contractID string) (bool, error) {
	var data struct {
		Contract *Contract `json:"subscriptionContract"`
	}
	err := c.do(ctx, merchantKey, contractStatusDocument, map[string]any{
		"contractId": contractID,
	}, &data)
	if err != nil {
		return false, err
	}
	if data.Contract == nil {
		return false, fmt.Errorf("contract %s not found in response", contractID)
	}
	return data.Contract.Status == ContractStatusActive, nil
}

const merchantTimezoneDocument = `
query MerchantTimezone {
  shop {
    ianaTimezone
  }
}`

func (c *HTTPClient) MerchantTimezone(ctx context.Context, merchantKey string) (string, error) {
	var data struct {
		Shop struct {
			IANATimezone string `json:"ianaTimezone"`
		} `json:"shop"`
	}
	if err := c.do(ctx, merchantKey, merchantTimezoneDocument, nil, &data); err != nil {
		return "", err
	}
	if data.Shop.IANATimezone == "" {
		return "", fmt.Errorf("merchant %s timezone missing in response", merchantKey)
	}
	return data.Shop.IANATimezone, nil
}

var Module = fx.Module("commerce",
	fx.Provide(
		fx.Annotate(NewHTTPClient, fx.As(new(Client))),
	),
)
