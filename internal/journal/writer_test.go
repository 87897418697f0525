package journal

import (
	"context"
	"testing"
	"time"

	"hl-action-kit/internal/config"

	"go.uber.org/zap"
)

func TestNewDisabledReturnsNil(t *testing.T) {
	w, err := New(config.JournalConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != nil {
		t.Fatalf("expected nil writer when disabled")
	}
	// nil writers are safe to use
	w.Enqueue(Entry{ActionType: "order"})
	w.Start(context.Background())
	if err := w.Close(); err != nil {
		t.Fatalf("close nil writer: %v", err)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(config.JournalConfig{Enabled: true}, zap.NewNop()); err == nil {
		t.Fatalf("expected error for missing dsn")
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	w := newWriter(nil, zap.NewNop(), "public", 2)
	for i := 0; i < 5; i++ {
		w.Enqueue(Entry{Time: time.Now(), ActionType: "order", Nonce: uint64(i), Status: StatusAccepted})
	}
	if got := w.Dropped(); got != 3 {
		t.Fatalf("expected 3 dropped entries, got %d", got)
	}
	if got := len(w.entries); got != 2 {
		t.Fatalf("expected 2 queued entries, got %d", got)
	}
}

func TestRunConsumesQueue(t *testing.T) {
	w := newWriter(nil, zap.NewNop(), "public", 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	w.Enqueue(Entry{ActionType: "order", Status: StatusAccepted})
	deadline := time.Now().Add(time.Second)
	for len(w.entries) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("queue not drained")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTableUsesSchema(t *testing.T) {
	w := newWriter(nil, zap.NewNop(), "audit", 1)
	if got := w.table("signed_actions"); got != "audit.signed_actions" {
		t.Fatalf("unexpected table name %q", got)
	}
}
