package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RejectedError is returned when a call is refused because the endpoint already
// has the maximum number of in-flight requests.
type RejectedError struct {
	Endpoint  string
	Key       string
	MaxActive int64
}

// Error returns a human-readable error message.
func (e *RejectedError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("rejected: %s on %s exceeds %d active requests", e.Key, e.Endpoint, e.MaxActive)
	}
	return fmt.Sprintf("rejected: %s exceeds %d active requests", e.Endpoint, e.MaxActive)
}

// GRPCStatus lets status.FromError and status.Code see a ResourceExhausted code.
func (e *RejectedError) GRPCStatus() *status.Status {
	return status.New(codes.ResourceExhausted, e.Error())
}

// NewRejectedError creates a new RejectedError.
func NewRejectedError(endpoint, key string, maxActive int64) *RejectedError {
	return &RejectedError{
		Endpoint:  endpoint,
		Key:       key,
		MaxActive: maxActive,
	}
}

// IsRejected reports whether err is an admission rejection. It checks for
// RejectedError and gRPC ResourceExhausted status codes.
func IsRejected(err error) bool {
	if err == nil {
		return false
	}

	var re *RejectedError
	if errors.As(err, &re) {
		return true
	}

	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.ResourceExhausted
	}

	return false
}

// PolicyError describes a policy document that could not be decoded or applied.
type PolicyError struct {
	Kind    string
	ID      string
	Version int64
	Err     error
}

// Error returns a human-readable error message.
func (e *PolicyError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("policy %s/%s (version %d): %v", e.Kind, e.ID, e.Version, e.Err)
	}
	return fmt.Sprintf("policy %s (version %d): %v", e.Kind, e.Version, e.Err)
}

// Unwrap returns the underlying error.
func (e *PolicyError) Unwrap() error {
	return e.Err
}

// NewPolicyError creates a new PolicyError.
func NewPolicyError(kind, id string, version int64, err error) *PolicyError {
	return &PolicyError{
		Kind:    kind,
		ID:      id,
		Version: version,
		Err:     err,
	}
}

// IsPolicyError reports whether err wraps a PolicyError.
func IsPolicyError(err error) bool {
	var pe *PolicyError
	return errors.As(err, &pe)
}
