package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Task is one serializable unit of work. Implementations are immutable value
// objects; a Task does not know which backend will execute it.
type Task interface {
	// Name is the stable type tag used for registry lookup.
	Name() string
	// Queue names the logical queue the task is dispatched on.
	Queue() string
	MerchantKey() string
	// Payload is the wire parameters, minus the merchant key. Encode and
	// the task's registered decoder must round-trip losslessly.
	Payload() map[string]any
	Perform(ctx context.Context) error
}

// Parameters is the inner body of the wire envelope.
type Parameters struct {
	MerchantKey string         `json:"merchantKey"`
	Payload     map[string]any `json:"payload"`
}

// Envelope is the cross-process wire format delivered to the execute
// endpoint by the dispatch backend.
type Envelope struct {
	JobName    string     `json:"jobName"`
	Parameters Parameters `json:"parameters"`
}

// Queue is carried out-of-band (it addresses the backend queue, not the
// handler), so it is not part of the serialized body.
func Encode(task Task) (Envelope, error) {
	if task.Name() == "" {
		return Envelope{}, fmt.Errorf("task has no name")
	}
	return Envelope{
		JobName: task.Name(),
		Parameters: Parameters{
			MerchantKey: task.MerchantKey(),
			Payload:     task.Payload(),
		},
	}, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.JobName == "" {
		return Envelope{}, fmt.Errorf("%w: missing jobName", ErrMalformedEnvelope)
	}
	return env, nil
}
