// Package admission enforces the system-wide reservation job slot.  The
// registry holds at most one active job across all sessions; the
// check-and-insert at admission time is one critical section, so two
// concurrent submissions can never both succeed.  The single global slot is
// a deliberate scarcity policy: every job hits the same downstream provider
// credentials and rate limits.
package admission

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/hyeonwoo/railbot/internal/model"
)

// ErrRejected is returned by StartJob when the slot is already occupied.
var ErrRejected = errors.New("admission: another job is active")

// RunFunc executes one reservation job until a terminal outcome.  It must
// observe ctx: cancellation has to preempt any sleep or network wait, not
// just the next loop iteration.  Implemented by the worker package.
type RunFunc func(ctx context.Context, job model.Job, creds model.Credentials, req model.ReservationRequest)

type activeJob struct {
	job    model.Job
	cancel context.CancelFunc
}

// Controller owns the admission registry and the lifecycle of running
// workers.  All methods are safe for concurrent use; every registry mutation
// happens under one mutex so CancelAll is atomic with respect to StartJob.
type Controller struct {
	mu     sync.Mutex
	active map[string]*activeJob // ownerSessionID -> job, cardinality <= 1
	run    RunFunc
}

// New returns a Controller that launches admitted jobs through run.
func New(run RunFunc) *Controller {
	return &Controller{
		active: make(map[string]*activeJob),
		run:    run,
	}
}

// StartJob admits a job for sessionID if the slot is free, spawning the
// worker as an independent goroutine with its own cancellable context.  When
// any job is active anywhere in the system it returns ErrRejected with no
// side effects.  The request must be complete before submission.
func (c *Controller) StartJob(sessionID string, creds model.Credentials, req model.ReservationRequest) (model.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.active) > 0 {
		return model.Job{}, ErrRejected
	}

	job := model.Job{
		ID:             uuid.NewString(),
		OwnerSessionID: sessionID,
		OwnerLoginID:   creds.LoginID,
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.active[sessionID] = &activeJob{job: job, cancel: cancel}

	go c.run(ctx, job, creds, req)
	return job, nil
}

// Cancel terminates the job owned by sessionID, if any.  It returns false
// when the session owns no running job; cancelling nothing is a no-op, not
// an error.
func (c *Controller) Cancel(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.active[sessionID]
	if !ok {
		return false
	}
	a.cancel()
	delete(c.active, sessionID)
	return true
}

// CancelAll terminates every running job and clears the registry, returning
// the affected jobs so the caller can notify each owner.  Safe on an empty
// registry.
func (c *Controller) CancelAll() []model.Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	cancelled := make([]model.Job, 0, len(c.active))
	for sid, a := range c.active {
		a.cancel()
		cancelled = append(cancelled, a.job)
		delete(c.active, sid)
	}
	return cancelled
}

// Release removes the registry entry for sessionID if still present.  The
// result notifier calls this on every terminal outcome; a cancel path may
// have removed the entry already, so Release is idempotent.
func (c *Controller) Release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.active[sessionID]; ok {
		a.cancel()
		delete(c.active, sessionID)
	}
}

// BusyFor reports whether a job owned by a different session is active.
// The conversation layer refuses to progress any other session while this
// holds.
func (c *Controller) BusyFor(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.active) == 0 {
		return false
	}
	_, own := c.active[sessionID]
	return !own
}

// ListActive returns a read-only snapshot of the running jobs.
func (c *Controller) ListActive() []model.Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	jobs := make([]model.Job, 0, len(c.active))
	for _, a := range c.active {
		jobs = append(jobs, a.job)
	}
	return jobs
}
