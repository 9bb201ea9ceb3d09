package firestore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapErrorClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		code        codes.Code
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{code: codes.NotFound, notFound: true},
		{code: codes.AlreadyExists, conflict: true},
		{code: codes.Aborted, conflict: true},
		{code: codes.FailedPrecondition, conflict: true},
		{code: codes.Unavailable, unavailable: true},
		{code: codes.ResourceExhausted, unavailable: true},
		{code: codes.PermissionDenied},
	}
	for _, tc := range tests {
		t.Run(tc.code.String(), func(t *testing.T) {
			err := WrapError("orders.get", status.Error(tc.code, "boom"))
			var wrapped *Error
			if !errors.As(err, &wrapped) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if wrapped.IsNotFound() != tc.notFound || wrapped.IsConflict() != tc.conflict || wrapped.IsUnavailable() != tc.unavailable {
				t.Fatalf("unexpected classification for %s: %+v", tc.code, wrapped)
			}
			if wrapped.Op != "orders.get" {
				t.Fatalf("expected op to be recorded, got %q", wrapped.Op)
			}
		})
	}
}

func TestWrapErrorPassesThroughContextAndTypedErrors(t *testing.T) {
	if err := WrapError("op", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := WrapError("op", status.Error(codes.Canceled, "stop")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WrapError("op", fmt.Errorf("wrapped: %w", context.DeadlineExceeded)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	inner := WrapError("products.get", status.Error(codes.NotFound, "missing"))
	outer := WrapError("transaction", inner)
	var wrapped *Error
	if !errors.As(outer, &wrapped) || wrapped.Op != "products.get" {
		t.Fatalf("expected inner op to survive, got %v", outer)
	}
	if !IsNotFound(outer) || IsAlreadyExists(outer) {
		t.Fatalf("expected not found classification on %v", outer)
	}
	if !IsAlreadyExists(WrapError("orders.insert", status.Error(codes.AlreadyExists, "dup"))) {
		t.Fatalf("expected already exists")
	}
	if IsNotFound(nil) || IsAlreadyExists(nil) {
		t.Fatalf("nil must not classify")
	}
}
