package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/field-dispatch/internal/ingest"
	"github.com/example/field-dispatch/internal/models"
)

// fakeMirror implements auditlog.Log for tests
type fakeMirror struct {
	fail  int // number of times Append fails before succeeding
	calls int
}

func (f *fakeMirror) Append(ctx context.Context, jobID string, entry models.AcceptanceLog) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("append fail")
	}
	return nil
}

func (f *fakeMirror) ListFor(ctx context.Context, jobID string) ([]models.AcceptanceLog, error) {
	return []models.AcceptanceLog{}, nil
}

func (f *fakeMirror) ListAll(ctx context.Context) (map[string][]models.AcceptanceLog, error) {
	return map[string][]models.AcceptanceLog{}, nil
}

func sampleEvent() ingest.AcceptanceEvent {
	return ingest.AcceptanceEvent{
		JobID: "j1",
		Entry: models.AcceptanceLog{
			ID:          "log_1",
			Coordinates: models.Coordinates{Latitude: 30.27, Longitude: -97.74},
			Platform:    models.PlatformAndroid,
		},
	}
}

func TestMirrorWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeMirror{fail: 1}
	ctx := context.Background()
	start := time.Now()
	if err := mirrorWithRetry(ctx, f, sampleEvent(), 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls < 2 {
		t.Fatalf("expected retries, got calls=%d", f.calls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestMirrorWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeMirror{fail: 5}
	ctx := context.Background()
	if err := mirrorWithRetry(ctx, f, sampleEvent(), 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}
