package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(KindConflict, "device already holds a voucher")
	if KindOf(err) != KindConflict {
		t.Errorf("KindOf() = %v, want conflict", KindOf(err))
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if KindOf(wrapped) != KindConflict {
		t.Errorf("KindOf(wrapped) = %v, want conflict", KindOf(wrapped))
	}

	if KindOf(errors.New("plain")) != KindUpstreamUnavailable {
		t.Errorf("KindOf(plain) = %v, want upstream_unavailable", KindOf(errors.New("plain")))
	}
}

func TestWithDetail(t *testing.T) {
	err := New(KindConflict, "conflict").
		WithDetail("existing_code", "CODE-1").
		WithDetail("existing_status", "active")

	details := DetailsOf(fmt.Errorf("outer: %w", err))
	if details["existing_code"] != "CODE-1" || details["existing_status"] != "active" {
		t.Errorf("DetailsOf() = %v", details)
	}

	if DetailsOf(errors.New("plain")) != nil {
		t.Error("DetailsOf(plain) should be nil")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindUpstreamUnavailable, "payment gateway unavailable", cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidRequest, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindExhausted, http.StatusGone},
		{KindUnresolvable, http.StatusUnprocessableEntity},
		{KindUpstreamUnavailable, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
