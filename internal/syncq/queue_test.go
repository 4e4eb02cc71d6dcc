package syncq

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestPushLatestCoalesces(t *testing.T) {
	dir := t.TempDir()
	if err := PushLatest(dir, NewCommand(http.MethodPut, "/v1/slots/a", map[string]any{"blob": "one"})); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := Push(dir, NewCommand(http.MethodPost, "/v1/slots", nil)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := PushLatest(dir, NewCommand(http.MethodPut, "/v1/slots/a", map[string]any{"blob": "two"})); err != nil {
		t.Fatalf("push: %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("queue len got %d want 2", len(got))
	}
	if got[1].Body["blob"] != "two" || got[1].IdempotencyKey == "" {
		t.Fatalf("latest command got %+v", got[1])
	}
	if got[0].IdempotencyKey == got[1].IdempotencyKey {
		t.Fatalf("idempotency keys must differ")
	}
}

func TestDrainStopsAtFailure(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"/a", "/b", "/c"} {
		if err := Push(dir, NewCommand(http.MethodPut, p, nil)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	boom := errors.New("offline")
	sent, err := Drain(context.Background(), dir, func(_ context.Context, c Command) error {
		if c.Path == "/b" {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) || sent != 1 {
		t.Fatalf("got sent=%d err=%v", sent, err)
	}
	left, _ := Load(dir)
	if len(left) != 2 || left[0].Path != "/b" {
		t.Fatalf("remaining got %+v", left)
	}

	sent, err = Drain(context.Background(), dir, func(context.Context, Command) error { return nil })
	if err != nil || sent != 2 {
		t.Fatalf("second drain got sent=%d err=%v", sent, err)
	}
	if left, _ := Load(dir); len(left) != 0 {
		t.Fatalf("queue should be empty, got %d", len(left))
	}
}
