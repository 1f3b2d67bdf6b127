package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRejectedError_Message(t *testing.T) {
	err := NewRejectedError("10.0.0.1:9000", "/order.Service/Create", 8)
	expected := "rejected: /order.Service/Create on 10.0.0.1:9000 exceeds 8 active requests"
	if err.Error() != expected {
		t.Fatalf("got %q, want %q", err.Error(), expected)
	}

	err = NewRejectedError("10.0.0.1:9000", "", 8)
	expected = "rejected: 10.0.0.1:9000 exceeds 8 active requests"
	if err.Error() != expected {
		t.Fatalf("got %q, want %q", err.Error(), expected)
	}
}

func TestRejectedError_GRPCStatus(t *testing.T) {
	err := NewRejectedError("ep", "k", 1)
	if code := status.Code(err); code != codes.ResourceExhausted {
		t.Fatalf("status.Code = %v, want ResourceExhausted", code)
	}
}

func TestIsRejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"rejected", NewRejectedError("ep", "k", 1), true},
		{"wrapped", fmt.Errorf("call failed: %w", NewRejectedError("ep", "k", 1)), true},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "busy"), true},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRejected(tt.err); got != tt.want {
				t.Errorf("IsRejected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicyError(t *testing.T) {
	inner := errors.New("unexpected end of JSON input")
	err := NewPolicyError("databases", "spec-1", 7, inner)

	expected := "policy databases/spec-1 (version 7): unexpected end of JSON input"
	if err.Error() != expected {
		t.Fatalf("got %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, inner) {
		t.Fatal("errors.Is should find the wrapped error")
	}

	wrapped := fmt.Errorf("apply: %w", err)
	if !IsPolicyError(wrapped) {
		t.Fatal("IsPolicyError should see through wrapping")
	}
	if IsPolicyError(inner) {
		t.Fatal("IsPolicyError should be false for unrelated errors")
	}

	noID := NewPolicyError("rules", "", 2, inner)
	if noID.Error() != "policy rules (version 2): unexpected end of JSON input" {
		t.Fatalf("unexpected message %q", noID.Error())
	}
}
