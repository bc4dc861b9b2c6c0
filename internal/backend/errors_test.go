package backend

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		et   ErrorType
		want string
	}{
		{ErrTypeNetwork, "Network Error"},
		{ErrTypeAuth, "Authentication Error"},
		{ErrTypeHTTP, "HTTP Error"},
		{ErrTypeParse, "Parse Error"},
		{ErrTypeTokenMissing, "Token Not Available"},
	}
	for _, tt := range tests {
		if got := tt.et.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.et, got, tt.want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError("request failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if err.Error() == "" {
		t.Error("Error() should not be empty")
	}
}

func TestTypePredicates(t *testing.T) {
	if !IsAuthError(NewAuthError("rejected", http.StatusUnauthorized)) {
		t.Error("IsAuthError failed on auth error")
	}
	if !IsHTTPError(NewHTTPError(http.StatusBadGateway, "bad gateway")) {
		t.Error("IsHTTPError failed on HTTP error")
	}
	if !IsTokenMissing(NewTokenMissingError()) {
		t.Error("IsTokenMissing failed on token-missing error")
	}
	if !IsParseError(NewParseError("bad json", nil)) {
		t.Error("IsParseError failed on parse error")
	}
	if IsAuthError(NewHTTPError(500, "boom")) {
		t.Error("IsAuthError matched an HTTP error")
	}
	if IsNetworkError(errors.New("plain")) {
		t.Error("IsNetworkError matched a plain error")
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("dispatch: %w", NewTokenMissingError())
	if !IsTokenMissing(wrapped) {
		t.Error("IsTokenMissing should unwrap fmt.Errorf chains")
	}
}
