package dispatch

import (
	"bytes"
	"context"
	"net/http"
	"sync"

	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

// Captured is one recorded enqueue.
type Captured struct {
	Envelope jobdomain.Envelope
	Queue    string
	Options  Options
}

// Capture records enqueues in memory for tests. Requests reproduces the
// exact HTTP callbacks the push-queue backend would deliver, so a test can
// feed them straight into the runner's execute endpoint.
type Capture struct {
	mu         sync.Mutex
	executeURL string
	captured   []Captured
}

func NewCapture(executeURL string) *Capture {
	if executeURL == "" {
		executeURL = "http://localhost/internal/jobs/execute"
	}
	return &Capture{executeURL: executeURL}
}

func (s *Capture) Enqueue(_ context.Context, env jobdomain.Envelope, queue string, opts Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captured = append(s.captured, Captured{Envelope: env, Queue: queue, Options: opts})
	return env.JobName, nil
}

func (s *Capture) Captured() []Captured {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Captured, len(s.captured))
	copy(out, s.captured)
	return out
}

func (s *Capture) Requests() ([]*http.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := make([]*http.Request, 0, len(s.captured))
	for _, c := range s.captured {
		body, err := c.Envelope.Marshal()
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequest(http.MethodPost, s.executeURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		requests = append(requests, req)
	}
	return requests, nil
}

func (s *Capture) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captured = nil
}
