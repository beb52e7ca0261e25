package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("update status: %w", Conflict("Status transition not allowed", map[string]any{"from": "created", "to": "active"}))

	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict kind, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected not_found kind")
	}
	appErr, ok := As(err)
	if !ok {
		t.Fatalf("expected *Error in chain")
	}
	if appErr.Code() != "conflict" {
		t.Fatalf("unexpected code %q", appErr.Code())
	}
	if appErr.Details["from"] != "created" || appErr.Details["to"] != "active" {
		t.Fatalf("details lost: %v", appErr.Details)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		NotFound("x", nil):       http.StatusNotFound,
		Forbidden("x", nil):      http.StatusForbidden,
		Conflict("x", nil):       http.StatusConflict,
		Validation("x", nil):     http.StatusBadRequest,
		errors.New("db is down"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := HTTPStatus(err); got != want {
			t.Fatalf("HTTPStatus(%v)=%d, want %d", err, got, want)
		}
	}
}

func TestGRPCStatus(t *testing.T) {
	if GRPCStatus(nil) != nil {
		t.Fatalf("nil error must map to nil")
	}
	st, _ := status.FromError(GRPCStatus(Forbidden("Cross-organization update rejected", nil)))
	if st.Code() != codes.PermissionDenied {
		t.Fatalf("unexpected code %v", st.Code())
	}
	if st.Message() != "Cross-organization update rejected" {
		t.Fatalf("unexpected message %q", st.Message())
	}
	st, _ = status.FromError(GRPCStatus(errors.New("pq: connection refused")))
	if st.Code() != codes.Internal || st.Message() != "internal error" {
		t.Fatalf("internal errors must not leak: %v", st)
	}
}
