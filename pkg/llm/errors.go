package llm

import "fmt"

// TransportError is a network-level failure: timeout, connection reset,
// DNS. Always retryable within the attempt budget.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is a non-2xx response from the generation service. Retried
// up to the same budget as transport errors, but distinguished in logs.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error: status %d: %s", e.StatusCode, e.Message)
}
