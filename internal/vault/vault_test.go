package vault

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestService(maxBytes int) *Service {
	return NewService(NewMemoryRepository(), maxBytes, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreatePutGet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(64)

	creds, err := svc.CreateSlot(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if creds.SlotID == "" || len(creds.Token) != 48 {
		t.Fatalf("unexpected credentials %+v", creds)
	}

	got, err := svc.GetBlob(ctx, creds.SlotID, creds.Token)
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if got.Revision != 0 || got.Blob != "" {
		t.Fatalf("fresh slot got %+v", got)
	}

	put, err := svc.PutBlob(ctx, PutInput{SlotID: creds.SlotID, Token: creds.Token, Blob: "abc", BaseRevision: 0})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if put.Revision != 1 {
		t.Fatalf("revision got %d want 1", put.Revision)
	}
	got, err = svc.GetBlob(ctx, creds.SlotID, creds.Token)
	if err != nil || got.Blob != "abc" || got.Revision != 1 {
		t.Fatalf("get got %+v err=%v", got, err)
	}
}

func TestPutErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(8)
	creds, err := svc.CreateSlot(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name string
		in   PutInput
		want error
	}{
		{"empty", PutInput{SlotID: creds.SlotID, Token: creds.Token, Blob: "  ", BaseRevision: -1}, ErrEmptyBlob},
		{"too large", PutInput{SlotID: creds.SlotID, Token: creds.Token, Blob: strings.Repeat("x", 9), BaseRevision: -1}, ErrBlobTooLarge},
		{"bad token", PutInput{SlotID: creds.SlotID, Token: "nope", Blob: "x", BaseRevision: -1}, ErrBadToken},
		{"bad id", PutInput{SlotID: "not-a-uuid", Token: creds.Token, Blob: "x", BaseRevision: -1}, ErrSlotNotFound},
		{"unknown id", PutInput{SlotID: "00000000-0000-0000-0000-000000000001", Token: creds.Token, Blob: "x", BaseRevision: -1}, ErrSlotNotFound},
		{"stale base", PutInput{SlotID: creds.SlotID, Token: creds.Token, Blob: "x", BaseRevision: 3}, ErrRevisionConflict},
	}
	for _, tc := range tests {
		if _, err := svc.PutBlob(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
}

func TestPutIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(0)
	creds, err := svc.CreateSlot(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	in := PutInput{SlotID: creds.SlotID, Token: creds.Token, Blob: "blob", BaseRevision: 0, IdempotencyKey: "k1"}
	first, err := svc.PutBlob(ctx, in)
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	again, err := svc.PutBlob(ctx, in)
	if err != nil {
		t.Fatalf("replayed put: %v", err)
	}
	if again.Revision != first.Revision {
		t.Fatalf("replay bumped revision %d -> %d", first.Revision, again.Revision)
	}

	in.IdempotencyKey = "k2"
	in.BaseRevision = -1
	next, err := svc.PutBlob(ctx, in)
	if err != nil || next.Revision != 2 {
		t.Fatalf("new key got %+v err=%v", next, err)
	}
}

func TestGetRejectsBadToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(0)
	creds, err := svc.CreateSlot(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.GetBlob(ctx, creds.SlotID, ""); !errors.Is(err, ErrBadToken) {
		t.Fatalf("got %v want ErrBadToken", err)
	}
}

func TestPruneEmpty(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(0)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	empty, err := svc.CreateSlot(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	used, err := svc.CreateSlot(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.PutBlob(ctx, PutInput{SlotID: used.SlotID, Token: used.Token, Blob: "b", BaseRevision: -1}); err != nil {
		t.Fatalf("put: %v", err)
	}

	clock = clock.Add(48 * time.Hour)
	n, err := svc.PruneEmpty(ctx, 24*time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("prune got n=%d err=%v want 1", n, err)
	}
	if _, err := svc.GetBlob(ctx, empty.SlotID, empty.Token); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("empty slot should be gone, got %v", err)
	}
	if _, err := svc.GetBlob(ctx, used.SlotID, used.Token); err != nil {
		t.Fatalf("used slot must survive: %v", err)
	}
}
