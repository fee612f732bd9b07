package runner

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/smallbiznis/recurra/internal/dispatch"
	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

type stubTask struct {
	name        string
	queue       string
	merchantKey string
	payload     map[string]any
	perform     func(ctx context.Context) error
}

func (t *stubTask) Name() string            { return t.name }
func (t *stubTask) Queue() string           { return t.queue }
func (t *stubTask) MerchantKey() string     { return t.merchantKey }
func (t *stubTask) Payload() map[string]any { return t.payload }
func (t *stubTask) Perform(ctx context.Context) error {
	if t.perform == nil {
		return nil
	}
	return t.perform(ctx)
}

func registryWith(t *testing.T, task *stubTask) *Registry {
	t.Helper()
	registry := NewRegistry(zap.NewNop())
	registry.Register(Registration{
		Name: task.name,
		Decode: func(params jobdomain.Parameters) (jobdomain.Task, error) {
			copied := *task
			copied.merchantKey = params.MerchantKey
			copied.payload = params.Payload
			return &copied, nil
		},
	})
	return registry
}

func envelopeBody(t *testing.T, task jobdomain.Task) []byte {
	t.Helper()
	env, err := jobdomain.Encode(task)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	body, err := env.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestExecuteBodyUnregisteredJob(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	body := envelopeBody(t, &stubTask{name: "nobody.home", queue: "q", merchantKey: "m"})
	err := registry.ExecuteBody(context.Background(), body)
	if !errors.Is(err, jobdomain.ErrUnregisteredJob) {
		t.Fatalf("expected ErrUnregisteredJob, got %v", err)
	}
}

func TestExecuteBodyMalformedEnvelope(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	for _, body := range [][]byte{[]byte("not json"), []byte(`{"parameters":{}}`)} {
		err := registry.ExecuteBody(context.Background(), body)
		if !errors.Is(err, jobdomain.ErrMalformedEnvelope) {
			t.Fatalf("body %q: expected ErrMalformedEnvelope, got %v", body, err)
		}
	}
}

func TestExecuteBodySwallowsTerminalFailure(t *testing.T) {
	task := &stubTask{
		name:        "billing.test",
		queue:       "billing",
		merchantKey: "shop-1",
		perform: func(ctx context.Context) error {
			return jobdomain.Terminalf("merchant frozen")
		},
	}
	registry := registryWith(t, task)

	if err := registry.ExecuteBody(context.Background(), envelopeBody(t, task)); err != nil {
		t.Fatalf("terminal failure must drain the task, got %v", err)
	}
}

func TestExecuteBodySwallowsMissingSession(t *testing.T) {
	task := &stubTask{
		name:        "billing.test",
		queue:       "billing",
		merchantKey: "shop-1",
		perform: func(ctx context.Context) error {
			return jobdomain.ErrMerchantSessionNotFound
		},
	}
	registry := registryWith(t, task)

	if err := registry.ExecuteBody(context.Background(), envelopeBody(t, task)); err != nil {
		t.Fatalf("missing session must drain the task, got %v", err)
	}
}

func TestExecuteBodyRethrowsRetryableFailure(t *testing.T) {
	boom := errors.New("transient network sadness")
	task := &stubTask{
		name:        "billing.test",
		queue:       "billing",
		merchantKey: "shop-1",
		perform: func(ctx context.Context) error {
			return boom
		},
	}
	registry := registryWith(t, task)

	err := registry.ExecuteBody(context.Background(), envelopeBody(t, task))
	if !errors.Is(err, boom) {
		t.Fatalf("retryable failure must surface, got %v", err)
	}
}

// Enqueue through the capture backend, then feed the recorded wire bodies
// back through Execute: the payload the task sees must be what it emitted.
func TestEnqueueExecuteRoundTrip(t *testing.T) {
	var gotMerchant string
	var gotCount float64
	task := &stubTask{
		name:        "billing.test",
		queue:       "billing",
		merchantKey: "shop-42",
		payload:     map[string]any{"count": 7},
	}

	registry := NewRegistry(zap.NewNop())
	registry.Register(Registration{
		Name: task.name,
		Decode: func(params jobdomain.Parameters) (jobdomain.Task, error) {
			return &stubTask{
				name:        task.name,
				queue:       task.queue,
				merchantKey: params.MerchantKey,
				perform: func(ctx context.Context) error {
					gotMerchant = params.MerchantKey
					gotCount, _ = params.Payload["count"].(float64)
					return nil
				},
			}, nil
		},
	})

	capture := dispatch.NewCapture("")
	r := New(registry, capture, zap.NewNop())

	if _, err := r.Enqueue(context.Background(), task, dispatch.Options{}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	captured := capture.Captured()
	if len(captured) != 1 {
		t.Fatalf("captured %d enqueues, want 1", len(captured))
	}
	if captured[0].Queue != "billing" {
		t.Fatalf("queue = %q, want billing", captured[0].Queue)
	}

	body, err := captured[0].Envelope.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := r.Execute(context.Background(), body); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotMerchant != "shop-42" {
		t.Fatalf("merchant key = %q, want shop-42", gotMerchant)
	}
	if gotCount != 7 {
		t.Fatalf("payload count = %v, want 7", gotCount)
	}
}
