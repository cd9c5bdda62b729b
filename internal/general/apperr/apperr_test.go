package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_MessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(StoreUnavailable, "failed to load driver", cause)

	want := "failed to load driver: connection refused"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestError_MessageWithoutCause(t *testing.T) {
	err := New(InvalidInput, "bad request", nil)
	if err.Error() != "bad request" {
		t.Fatalf("got %q, want %q", err.Error(), "bad request")
	}
}

func TestAs_UnwrapsThroughFmtErrorf(t *testing.T) {
	tagged := New(NotFound, "driver not found", nil)
	wrapped := fmt.Errorf("lookup failed: %w", tagged)

	e, ok := As(wrapped)
	if !ok {
		t.Fatal("expected to unwrap a tagged error through fmt.Errorf wrapping")
	}
	if e.Code != NotFound {
		t.Fatalf("got code %q, want %q", e.Code, NotFound)
	}
}

func TestAs_FalseForUntaggedError(t *testing.T) {
	if _, ok := As(errors.New("plain error")); ok {
		t.Fatal("expected no tagged error to be found")
	}
}

func TestCodeOf_DefaultsToInternal(t *testing.T) {
	if got := CodeOf(errors.New("plain error")); got != Internal {
		t.Fatalf("got %q, want %q", got, Internal)
	}
}

func TestCodeOf_ReturnsTaggedCode(t *testing.T) {
	err := New(Conflict, "ride already taken", nil)
	if got := CodeOf(err); got != Conflict {
		t.Fatalf("got %q, want %q", got, Conflict)
	}
}

func TestToHTTPStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{InvalidInput, http.StatusBadRequest},
		{Unauthenticated, http.StatusUnauthorized},
		{Unauthorized, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{DomainRule, http.StatusConflict},
		{StoreUnavailable, http.StatusServiceUnavailable},
		{ExternalUnavailable, http.StatusServiceUnavailable},
		{Internal, http.StatusInternalServerError},
		{Code("UNKNOWN"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := ToHTTPStatus(c.code); got != c.want {
			t.Errorf("ToHTTPStatus(%q) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestToAckPayload_TaggedError(t *testing.T) {
	err := New(DomainRule, "driver cannot go offline", errors.New("already offline"))
	payload := ToAckPayload(err)
	if payload.Code != string(DomainRule) {
		t.Fatalf("got code %q, want %q", payload.Code, DomainRule)
	}
	if payload.Message != "driver cannot go offline" {
		t.Fatalf("got message %q, want the tagged message without the cause appended", payload.Message)
	}
}

func TestToAckPayload_UntaggedErrorFallsBackToInternal(t *testing.T) {
	payload := ToAckPayload(errors.New("boom"))
	if payload.Code != string(Internal) {
		t.Fatalf("got code %q, want %q", payload.Code, Internal)
	}
	if payload.Message != "boom" {
		t.Fatalf("got message %q, want %q", payload.Message, "boom")
	}
}
