package assignment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/field-dispatch/internal/auditlog"
	"github.com/example/field-dispatch/internal/geo"
	"github.com/example/field-dispatch/internal/models"
	"github.com/example/field-dispatch/internal/observability"
	"github.com/example/field-dispatch/internal/storage"
)

// PreconditionError is returned when a mutation's guard fails: wrong
// status, unauthorized actor, or a lost race against another accept.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return "precondition failed: " + e.Reason }

func precondition(format string, args ...any) *PreconditionError {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}

// Publisher receives durably committed acceptance entries for the audit
// stream. Publishing is best-effort; the log store is the source of truth.
type Publisher interface {
	PublishAcceptance(jobID string, entry models.AcceptanceLog) error
}

// Directory resolves the admin recipients for fan-out.
type Directory interface {
	AdminIDs(ctx context.Context) ([]string, error)
}

// Engine governs job lifecycle transitions. Guard checks and log
// appends for one job are serialized under that job's lock, so two
// staff accepting near-simultaneously resolve to exactly one scheduled
// transition and one appended entry.
type Engine struct {
	Requests  storage.RequestStore
	Logs      auditlog.Log
	Directory Directory
	Publisher Publisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(requests storage.RequestStore, logs auditlog.Log) *Engine {
	return &Engine{Requests: requests, Logs: logs, locks: make(map[string]*sync.Mutex)}
}

func (e *Engine) lockFor(jobID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[jobID] = l
	}
	return l
}

// Accept records the acceptance and schedules the job. Order matters:
// the entry must be durably appended before the status flips, so an
// interrupted flow can never leave a scheduled job without GPS proof.
func (e *Engine) Accept(ctx context.Context, jobID string, actor models.User, coords models.Coordinates, platform models.Platform) (*models.ServiceRequest, []models.Notification, error) {
	if !geo.Valid(coords) {
		return nil, nil, precondition("coordinates out of valid range")
	}

	l := e.lockFor(jobID)
	l.Lock()
	defer l.Unlock()

	job, err := e.Requests.Find(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	// guard re-checked under the job lock: the loser of a race sees
	// status scheduled here and appends nothing
	if !CanAccept(job, actor) {
		return nil, nil, precondition("job %s is %s or user %s may not accept it", jobID, job.Status, actor.ID)
	}

	actorCopy := actor
	entry := auditlog.NewEntry(&actorCopy, coords, platform)
	if err := e.Logs.Append(ctx, jobID, entry); err != nil {
		return nil, nil, err
	}

	job.Status = models.StatusScheduled
	job.UpdatedAt = time.Now().UTC()
	if err := e.Requests.Update(ctx, job); err != nil {
		return nil, nil, err
	}
	observability.AcceptsTotal.Inc()

	if e.Publisher != nil {
		// best-effort audit stream; the store already committed
		_ = e.Publisher.PublishAcceptance(jobID, entry)
	}

	notes := e.adminFanOut(ctx, "job_accepted", "Job accepted",
		fmt.Sprintf("%s accepted %q", actor.Name, job.Title), jobID)
	return job, notes, nil
}

// Decline removes the actor from the assignment set. Status is never
// touched; a declined job simply waits for someone else.
func (e *Engine) Decline(ctx context.Context, jobID string, actor models.User) (*models.ServiceRequest, []models.Notification, error) {
	l := e.lockFor(jobID)
	l.Lock()
	defer l.Unlock()

	job, err := e.Requests.Find(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if !job.Assigned(actor.ID) {
		// no-op for users who were never assigned
		return job, nil, nil
	}

	kept := make([]string, 0, len(job.AssignedStaff))
	for _, id := range job.AssignedStaff {
		if id != actor.ID {
			kept = append(kept, id)
		}
	}
	job.AssignedStaff = kept
	job.UpdatedAt = time.Now().UTC()
	if err := e.Requests.Update(ctx, job); err != nil {
		return nil, nil, err
	}
	observability.DeclinesTotal.Inc()

	notes := e.adminFanOut(ctx, "job_declined", "Job declined",
		fmt.Sprintf("%s declined %q", actor.Name, job.Title), jobID)
	return job, notes, nil
}

// AssignStaff replaces the assignment set and emits fan-out only for
// the newly added ids.
func (e *Engine) AssignStaff(ctx context.Context, jobID string, staffIDs []string) (*models.ServiceRequest, []models.Notification, error) {
	l := e.lockFor(jobID)
	l.Lock()
	defer l.Unlock()

	job, err := e.Requests.Find(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	previous := make(map[string]bool, len(job.AssignedStaff))
	for _, id := range job.AssignedStaff {
		previous[id] = true
	}

	job.AssignedStaff = append([]string(nil), staffIDs...)
	job.UpdatedAt = time.Now().UTC()
	if err := e.Requests.Update(ctx, job); err != nil {
		return nil, nil, err
	}

	var notes []models.Notification
	for _, id := range staffIDs {
		if previous[id] {
			continue
		}
		notes = append(notes, models.Notification{
			UserID:    id,
			Type:      "job_assigned",
			Title:     "New job assigned",
			Message:   fmt.Sprintf("You have been assigned to %q", job.Title),
			RelatedID: jobID,
		})
	}
	return job, notes, nil
}

// Transition moves the job along a non-accept lifecycle edge
// (scheduled -> completed, or cancellation). Accept has its own path
// because it also writes the audit entry.
func (e *Engine) Transition(ctx context.Context, jobID string, to models.Status) (*models.ServiceRequest, []models.Notification, error) {
	l := e.lockFor(jobID)
	l.Lock()
	defer l.Unlock()

	job, err := e.Requests.Find(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if to == models.StatusScheduled {
		return nil, nil, precondition("scheduling requires an acceptance")
	}
	if !CanTransition(job.Status, to) {
		return nil, nil, precondition("job %s cannot move %s -> %s", jobID, job.Status, to)
	}

	job.Status = to
	job.UpdatedAt = time.Now().UTC()
	if err := e.Requests.Update(ctx, job); err != nil {
		return nil, nil, err
	}

	var notes []models.Notification
	for _, id := range job.AssignedStaff {
		notes = append(notes, models.Notification{
			UserID:    id,
			Type:      "job_" + string(to),
			Title:     "Job " + string(to),
			Message:   fmt.Sprintf("%q is now %s", job.Title, to),
			RelatedID: jobID,
		})
	}
	return job, notes, nil
}

func (e *Engine) adminFanOut(ctx context.Context, typ, title, message, jobID string) []models.Notification {
	if e.Directory == nil {
		return nil
	}
	ids, err := e.Directory.AdminIDs(ctx)
	if err != nil {
		return nil
	}
	notes := make([]models.Notification, 0, len(ids))
	for _, id := range ids {
		notes = append(notes, models.Notification{
			UserID:    id,
			Type:      typ,
			Title:     title,
			Message:   message,
			RelatedID: jobID,
		})
	}
	return notes
}
