package admission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hyeonwoo/railbot/internal/model"
)

// waitingRun blocks admitted jobs until their context is cancelled and
// signals each cancellation on done.
func waitingRun(done chan<- string) RunFunc {
	return func(ctx context.Context, job model.Job, _ model.Credentials, _ model.ReservationRequest) {
		<-ctx.Done()
		done <- job.OwnerSessionID
	}
}

func TestSingleSlotUnderContention(t *testing.T) {
	done := make(chan string, 16)
	c := New(waitingRun(done))

	const contenders = 8
	var wg sync.WaitGroup
	errs := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := c.StartJob(sessionID(n), model.Credentials{LoginID: "user"}, model.ReservationRequest{})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	admitted, rejected := 0, 0
	for err := range errs {
		switch err {
		case nil:
			admitted++
		case ErrRejected:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if admitted != 1 || rejected != contenders-1 {
		t.Fatalf("got %d admitted, %d rejected; want exactly 1 admitted", admitted, rejected)
	}
	if got := len(c.ListActive()); got != 1 {
		t.Fatalf("expected 1 active job, got %d", got)
	}
}

func TestCancelOnlyHitsOwner(t *testing.T) {
	done := make(chan string, 1)
	c := New(waitingRun(done))

	if _, err := c.StartJob("a", model.Credentials{LoginID: "user-a"}, model.ReservationRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if c.Cancel("b") {
		t.Fatal("cancel by a non-owner must report false")
	}
	if !c.Cancel("a") {
		t.Fatal("cancel by the owner must report true")
	}
	select {
	case owner := <-done:
		if owner != "a" {
			t.Fatalf("wrong job cancelled: %s", owner)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker context was never cancelled")
	}
	if c.Cancel("a") {
		t.Fatal("second cancel must report false")
	}
}

func TestSlotFreedAfterCancel(t *testing.T) {
	done := make(chan string, 2)
	c := New(waitingRun(done))

	if _, err := c.StartJob("a", model.Credentials{}, model.ReservationRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := c.StartJob("b", model.Credentials{}, model.ReservationRequest{}); err != ErrRejected {
		t.Fatalf("expected rejection while slot held, got %v", err)
	}
	c.Cancel("a")
	if _, err := c.StartJob("b", model.Credentials{}, model.ReservationRequest{}); err != nil {
		t.Fatalf("slot should be free after cancel: %v", err)
	}
}

func TestCancelAll(t *testing.T) {
	done := make(chan string, 1)
	c := New(waitingRun(done))

	if got := c.CancelAll(); len(got) != 0 {
		t.Fatalf("empty registry should cancel nothing, got %d", len(got))
	}

	if _, err := c.StartJob("a", model.Credentials{LoginID: "user-a"}, model.ReservationRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	jobs := c.CancelAll()
	if len(jobs) != 1 || jobs[0].OwnerSessionID != "a" {
		t.Fatalf("unexpected cancelled set: %+v", jobs)
	}
	if got := len(c.ListActive()); got != 0 {
		t.Fatalf("registry should be empty, got %d", got)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	done := make(chan string, 1)
	c := New(waitingRun(done))

	if _, err := c.StartJob("a", model.Credentials{}, model.ReservationRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Release("a")
	c.Release("a") // second release of a gone entry is a no-op
	if got := len(c.ListActive()); got != 0 {
		t.Fatalf("registry should be empty, got %d", got)
	}
}

func TestBusyFor(t *testing.T) {
	done := make(chan string, 1)
	c := New(waitingRun(done))

	if c.BusyFor("a") {
		t.Fatal("idle system must not be busy")
	}
	if _, err := c.StartJob("a", model.Credentials{}, model.ReservationRequest{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.BusyFor("a") {
		t.Fatal("the owner is not blocked by its own job")
	}
	if !c.BusyFor("b") {
		t.Fatal("other sessions are blocked while a job runs")
	}
}

func sessionID(n int) string {
	return string(rune('a' + n))
}
