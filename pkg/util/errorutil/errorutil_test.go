package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	de := ToDomainError(errors.New("db down"))
	if de.Code != CodeInternal || de.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected mapping %+v", de)
	}
	if ToDomainError(nil) != nil {
		t.Fatal("nil error should map to nil")
	}
}

func TestHasCodeSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("send reply: %w", NewRecipientUnresolved("no recipient", nil))
	if !HasCode(err, CodeRecipientUnresolved) {
		t.Fatal("wrapped code not detected")
	}
	if HasCode(err, CodeNotFound) {
		t.Fatal("wrong code matched")
	}
	if ToDomainError(err).HTTPStatus != http.StatusUnprocessableEntity {
		t.Fatal("status lost through wrapping")
	}
}

func TestTransportFailureUnwraps(t *testing.T) {
	cause := errors.New("smtp timeout")
	err := NewTransportFailure("mail send failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable")
	}
	if ToDomainError(err).HTTPStatus != http.StatusBadGateway {
		t.Fatal("expected 502")
	}
}
