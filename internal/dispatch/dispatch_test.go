package dispatch

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

func TestTaskNameIsQueueSafeAndUnique(t *testing.T) {
	a := TaskName("billing.rebill_cycle")
	b := TaskName("billing.rebill_cycle")

	if strings.Contains(a, ".") || strings.Contains(a, "/") {
		t.Fatalf("task name %q carries unsafe characters", a)
	}
	if !strings.HasPrefix(a, "billing-rebill_cycle-") {
		t.Fatalf("task name %q lost the job tag", a)
	}
	if a == b {
		t.Fatal("two enqueues produced the same task name")
	}
}

func TestClampDeadlineCapsAtBackendMaximum(t *testing.T) {
	if got := clampDeadline(5 * time.Minute); got != 5*time.Minute {
		t.Fatalf("short deadline changed: %v", got)
	}
	if got := clampDeadline(2 * time.Hour); got != MaxDispatchDeadline {
		t.Fatalf("deadline not clamped: %v", got)
	}
}

func TestCaptureRequestsMatchWireFormat(t *testing.T) {
	capture := NewCapture("http://worker.test/internal/jobs/execute")

	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env := jobdomain.Envelope{
		JobName: "dunning.retry",
		Parameters: jobdomain.Parameters{
			MerchantKey: "shop-9",
			Payload:     map[string]any{"contractId": "c-1"},
		},
	}
	if _, err := capture.Enqueue(context.Background(), env, "dunning", Options{ScheduleTime: &when}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	captured := capture.Captured()
	if len(captured) != 1 {
		t.Fatalf("captured %d, want 1", len(captured))
	}
	if got := captured[0].Options.ScheduleTime; got == nil || !got.Equal(when) {
		t.Fatalf("schedule time = %v, want %v", got, when)
	}

	requests, err := capture.Requests()
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("built %d requests, want 1", len(requests))
	}
	req := requests[0]
	if req.URL.String() != "http://worker.test/internal/jobs/execute" {
		t.Fatalf("url = %s", req.URL)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	decoded, err := jobdomain.UnmarshalEnvelope(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.JobName != "dunning.retry" || decoded.Parameters.MerchantKey != "shop-9" {
		t.Fatalf("round-tripped envelope = %+v", decoded)
	}

	capture.Clear()
	if len(capture.Captured()) != 0 {
		t.Fatal("clear left captures behind")
	}
}
