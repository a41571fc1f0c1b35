package dispatch

import (
	"sync"
	"testing"

	"github.com/example/field-dispatch/internal/models"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (r *recordingNotifier) Notify(userID string, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func TestFanOutDeliversAll(t *testing.T) {
	rec := &recordingNotifier{}
	notes := []models.Notification{
		{UserID: "a1", Type: "job_accepted", RelatedID: "j1"},
		{UserID: "a2", Type: "job_accepted", RelatedID: "j1"},
	}
	FanOut(rec, notes)
	if len(rec.sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(rec.sent))
	}
}

func TestFanOutBestEffort(t *testing.T) {
	rec := &recordingNotifier{err: ErrNoSession}
	// must not panic or stop on failed recipients
	FanOut(rec, []models.Notification{{UserID: "a1"}, {UserID: "a2"}})
}

func TestWSRegistryNoSession(t *testing.T) {
	r := NewWSRegistry()
	err := r.Notify("ghost", models.Notification{Type: "job_assigned"})
	if err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestPushDispatcherFallsThroughWithoutEndpoint(t *testing.T) {
	p := NewPushDispatcher("", NewWSRegistry())
	if err := p.Notify("ghost", models.Notification{}); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
