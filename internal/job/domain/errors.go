package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Classification decides what the dispatcher does with a failed run. The
// dispatcher checks it explicitly; nothing dispatches on concrete error
// types.
type Classification int

const (
	// ClassificationRetryable errors propagate so the queue's retry policy
	// takes over.
	ClassificationRetryable Classification = iota
	// ClassificationTerminal errors are logged and dropped: retrying cannot
	// succeed until an external state change occurs.
	ClassificationTerminal
)

var (
	// ErrUnregisteredJob is returned by Execute when the envelope names a
	// job type with no registered decoder.
	ErrUnregisteredJob = errors.New("unregistered job")

	// ErrMalformedEnvelope marks a body that can never execute: redelivery
	// would fail identically, so the caller should not ask for a retry.
	ErrMalformedEnvelope = errors.New("malformed job envelope")

	// ErrMerchantSessionNotFound marks a merchant whose app installation is
	// gone. Terminal: the next scheduled run is the recovery path.
	ErrMerchantSessionNotFound = errors.New("merchant session not found")
)

type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so Classify reports it as terminal.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// Terminalf is Terminal over a formatted error.
func Terminalf(format string, args ...any) error {
	return Terminal(fmt.Errorf(format, args...))
}

// Classify reports whether err should be retried or dropped. Unknown errors
// are retryable: transient failures and unexpected response shapes must
// surface to the queue's backoff policy.
func Classify(err error) Classification {
	if err == nil {
		return ClassificationRetryable
	}
	var term *terminalError
	if errors.As(err, &term) {
		return ClassificationTerminal
	}
	if errors.Is(err, ErrMerchantSessionNotFound) {
		return ClassificationTerminal
	}
	return ClassificationRetryable
}

// TerminalHTTPStatus reports whether a remote-API status signals
// merchant-level unavailability: payment required (frozen), forbidden,
// not found, locked.
func TerminalHTTPStatus(status int) bool {
	switch status {
	case http.StatusPaymentRequired,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusLocked:
		return true
	}
	return false
}
