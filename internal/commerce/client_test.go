package commerce

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/recurra/internal/config"
	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

func clientFor(url string) *HTTPClient {
	return NewHTTPClient(config.Config{
		CommerceAPIEndpoint: url,
		CommerceAPIToken:    "token",
	}, zap.NewNop())
}

func TestDoClassifiesMerchantStatuses(t *testing.T) {
	cases := []struct {
		status int
		want   jobdomain.Classification
	}{
		{http.StatusPaymentRequired, jobdomain.ClassificationTerminal},
		{http.StatusForbidden, jobdomain.ClassificationTerminal},
		{http.StatusNotFound, jobdomain.ClassificationTerminal},
		{http.StatusLocked, jobdomain.ClassificationTerminal},
		{http.StatusInternalServerError, jobdomain.ClassificationRetryable},
		{http.StatusBadGateway, jobdomain.ClassificationRetryable},
		{http.StatusTooManyRequests, jobdomain.ClassificationRetryable},
	}

	for _, tc := range cases {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := clientFor(ts.URL)

		_, err := client.MerchantTimezone(context.Background(), "shop-1")
		require.Error(t, err, "status %d", tc.status)
		require.Equal(t, tc.want, jobdomain.Classify(err), "status %d", tc.status)
		ts.Close()
	}
}

func TestDoMissingMerchantKeyIsTerminal(t *testing.T) {
	client := clientFor("http://api.test/graphql")

	_, err := client.MerchantTimezone(context.Background(), "")
	require.ErrorIs(t, err, jobdomain.ErrMerchantSessionNotFound)
	require.Equal(t, jobdomain.ClassificationTerminal, jobdomain.Classify(err))
}

func TestDoQueryErrorsAreRetryable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"throttled"}]}`))
	}))
	defer ts.Close()
	client := clientFor(ts.URL)

	_, err := client.MerchantTimezone(context.Background(), "shop-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "throttled")
	require.Equal(t, jobdomain.ClassificationRetryable, jobdomain.Classify(err))
}

func TestDoMissingDataIsRetryable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()
	client := clientFor(ts.URL)

	_, err := client.MerchantTimezone(context.Background(), "shop-1")
	require.Error(t, err)
	require.Equal(t, jobdomain.ClassificationRetryable, jobdomain.Classify(err))
}

func TestBillingCyclesDueParsesAttemptHistory(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "shop-1", r.Header.Get("X-Merchant-Key"))
		require.Equal(t, "token", r.Header.Get("X-Commerce-Access-Token"))
		w.Write([]byte(`{"data":{"subscriptionBillingCycles":[
			{"contractId":"c-1","cycleIndex":2,"expectedDate":"2023-07-13T00:00:00Z","status":"UNBILLED",
			 "attempts":[{"id":"a-1","status":"FAILED","errorCode":"CARD_DECLINED","createdAt":"2023-07-13T10:00:00Z"}]}
		]}}`))
	}))
	defer ts.Close()
	client := clientFor(ts.URL)

	cycles, err := client.BillingCyclesDue(context.Background(), "shop-1",
		mustTime(t, "2023-07-11T00:00:00Z"), mustTime(t, "2023-07-14T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	require.Equal(t, "c-1", cycles[0].ContractID)
	require.Equal(t, BillingCycleStatusUnbilled, cycles[0].Status)
	require.Equal(t, 1, cycles[0].FailedAttempts())
}

func TestCreateBillingAttemptSurfacesUserErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"subscriptionBillingAttemptCreate":{
			"billingAttempt":null,
			"userErrors":[{"field":["contractId"],"code":"INVALID","message":"contract fried"}]
		}}}`))
	}))
	defer ts.Close()
	client := clientFor(ts.URL)

	_, err := client.CreateBillingAttempt(context.Background(), "shop-1", "c-1", 2, "c-1-2-0")
	require.Error(t, err)
	require.Contains(t, err.Error(), "contract fried")
}

func TestDoUnconfiguredEndpoint(t *testing.T) {
	client := clientFor("")

	_, err := client.MerchantTimezone(context.Background(), "shop-1")
	require.Error(t, err)
	require.False(t, errors.Is(err, jobdomain.ErrMerchantSessionNotFound))
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed
}
