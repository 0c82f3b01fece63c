package lifecycle

import (
	"context"
	"errors"
	"testing"
)

func TestGateRunsOperation(t *testing.T) {
	ctx := context.Background()
	gate := &Gate{}
	calls := 0

	err := gate.Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if gate.Busy() {
		t.Fatalf("gate still busy after settle")
	}
}

func TestGateRejectsReentry(t *testing.T) {
	ctx := context.Background()
	gate := &Gate{}
	calls := 0
	var inner error

	err := gate.Do(ctx, func(ctx context.Context) error {
		calls++
		inner = gate.Do(ctx, func(context.Context) error {
			calls++
			return nil
		})
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !errors.Is(inner, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", inner)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestGateReleasesAfterFailure(t *testing.T) {
	ctx := context.Background()
	gate := &Gate{}
	boom := errors.New("backend down")

	if err := gate.Do(ctx, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if gate.Busy() {
		t.Fatalf("gate still busy after failure")
	}
	if err := gate.Do(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("gate did not release: %v", err)
	}
}

func TestGateCapturesPanic(t *testing.T) {
	ctx := context.Background()
	gate := &Gate{}

	err := gate.Do(ctx, func(context.Context) error {
		panic("malformed response")
	})
	if !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("expected ErrRemoteFailure, got %v", err)
	}
	if gate.Busy() {
		t.Fatalf("gate still busy after panic")
	}
}
