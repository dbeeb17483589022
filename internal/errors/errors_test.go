package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestDomainErrorMessage(t *testing.T) {
	cause := stderrors.New("dial tcp: timeout")
	err := FeedUnavailable("fetch RemoteOK", cause)

	if got, want := err.Error(), "FEED_UNAVAILABLE: fetch RemoteOK: dial tcp: timeout"; got != want {
		t.Fatalf("unexpected message: got %q, want %q", got, want)
	}

	if !stderrors.Is(err, cause) {
		t.Fatalf("expected the cause to be reachable through Unwrap")
	}

	if len(err.StackTrace()) == 0 {
		t.Fatalf("expected a captured stack")
	}

	if got := NotFound("posting p1", nil).Error(); got != "NOT_FOUND: posting p1" {
		t.Fatalf("unexpected message without cause: %q", got)
	}
}

func TestIsWalksWrappedChain(t *testing.T) {
	inner := ConstraintViolation("duplicate url", stderrors.New("23505"))
	outer := Internal("insert posting", inner)
	wrapped := fmt.Errorf("ingest item: %w", outer)

	if !Is(wrapped, ErrTypeConstraintViolation) {
		t.Fatalf("expected nested constraint violation to be detected")
	}
	if !Is(wrapped, ErrTypeInternal) {
		t.Fatalf("expected outer internal error to be detected")
	}
	if Is(wrapped, ErrTypeNotFound) {
		t.Fatalf("did not expect not found")
	}
	if Is(stderrors.New("plain"), ErrTypeInternal) {
		t.Fatalf("plain errors carry no type")
	}
	if Is(nil, ErrTypeInternal) {
		t.Fatalf("nil carries no type")
	}
}

func TestTypeOf(t *testing.T) {
	if got := TypeOf(fmt.Errorf("wrap: %w", OracleUnparseable("bad json", nil))); got != ErrTypeOracleUnparseable {
		t.Fatalf("unexpected type %q", got)
	}
	if got := TypeOf(stderrors.New("plain")); got != "" {
		t.Fatalf("expected empty type, got %q", got)
	}
}
