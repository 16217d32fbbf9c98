// Package worker runs the search-and-book polling loop of one admitted
// reservation job.  Each job executes as its own goroutine with its own
// provider client and cancellable context; the worker survives
// independently of the request that spawned it and always delivers exactly
// one best-effort outcome report before exiting.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hyeonwoo/railbot/internal/model"
	"github.com/hyeonwoo/railbot/internal/provider"
)

// DetailCancelled is the detail string carried on the completion callback
// when a job was terminated externally.  Cancellation is a normal terminal
// state, not an error, so it rides on the failure status code.
const DetailCancelled = "cancelled"

// Config bounds the polling loop.  Zero fields fall back to the defaults
// below via normalize.
type Config struct {
	MaxAttempts    int           // outer search rounds before giving up
	Interval       time.Duration // sleep between rounds; doubled after an error
	ErrorThreshold int           // consecutive errors before re-login
	ErrorCooldown  time.Duration // gap that breaks an error streak
}

func (c Config) normalize() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1000
	}
	if c.Interval <= 0 {
		// The provider flags clients above ~100 requests per minute, so one
		// round per second stays under the radar.
		c.Interval = time.Second
	}
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = 10
	}
	if c.ErrorCooldown <= 0 {
		c.ErrorCooldown = 5 * time.Minute
	}
	return c
}

// Reporter delivers the terminal outcome of a job to the result notifier.
// Delivery is best-effort; the worker has no recourse once it is exiting.
type Reporter interface {
	Report(ctx context.Context, sessionID string, outcome model.Outcome)
}

// Worker executes reservation jobs.  One Worker value is shared by all jobs;
// per-job state lives on the goroutine stack.
type Worker struct {
	cfg       Config
	providers provider.Factory
	reporter  Reporter
	logger    *zap.Logger
}

// New returns a Worker that builds a fresh provider client per job and
// reports outcomes through r.
func New(cfg Config, providers provider.Factory, r Reporter, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{cfg: cfg.normalize(), providers: providers, reporter: r, logger: logger}
}

// Run executes one job until a terminal outcome and reports it.  The report
// is sent on every exit path, including panics, and cancellation interrupts
// sleeps and provider calls rather than waiting for the next loop check.
// Run matches admission.RunFunc.
func (w *Worker) Run(ctx context.Context, job model.Job, creds model.Credentials, req model.ReservationRequest) {
	outcome := model.Outcome{Status: model.OutcomeError, Detail: "worker exited unexpectedly"}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panicked", zap.String("job", job.ID), zap.Any("panic", r))
			outcome = model.Outcome{Status: model.OutcomeError, Detail: fmt.Sprintf("internal error: %v", r)}
		}
		// The job context may already be cancelled; the report gets its own.
		rctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		w.reporter.Report(rctx, job.OwnerSessionID, outcome)
	}()

	log := w.logger.With(zap.String("job", job.ID), zap.String("session", job.OwnerSessionID))
	log.Info("reservation job started",
		zap.String("date", req.DepartureDate),
		zap.String("origin", req.Origin),
		zap.String("destination", req.Destination))

	client := w.providers()
	if err := client.Login(ctx, creds.LoginID, creds.LoginSecret); err != nil {
		if ctx.Err() != nil {
			outcome = cancelledOutcome()
			return
		}
		log.Warn("provider login failed", zap.Error(err))
		outcome = model.Outcome{Status: model.OutcomeError, Detail: "login failed"}
		return
	}

	policy := NewRetryPolicy(w.cfg.ErrorThreshold, w.cfg.ErrorCooldown)

	for attempt := 0; attempt < w.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			outcome = cancelledOutcome()
			return
		}

		details, err := w.pollOnce(ctx, client, req)
		if err == nil && details != nil {
			log.Info("reservation secured", zap.String("reservation", details.String()))
			outcome = model.Outcome{Status: model.OutcomeSuccess, Detail: details.String()}
			return
		}

		if err != nil {
			if ctx.Err() != nil {
				outcome = cancelledOutcome()
				return
			}
			log.Warn("polling round failed", zap.Int("attempt", attempt), zap.Error(err))
			if policy.RecordError() {
				log.Warn("error threshold reached, recovering provider session")
				if lerr := client.Login(ctx, creds.LoginID, creds.LoginSecret); lerr != nil {
					if ctx.Err() != nil {
						outcome = cancelledOutcome()
						return
					}
					log.Error("session recovery failed", zap.Error(lerr))
					outcome = model.Outcome{Status: model.OutcomeError, Detail: "session recovery failed"}
					return
				}
				policy.Reset()
			}
			// Back off harder after an error.
			if !sleep(ctx, 2*w.cfg.Interval) {
				outcome = cancelledOutcome()
				return
			}
			continue
		}

		if !sleep(ctx, w.cfg.Interval) {
			outcome = cancelledOutcome()
			return
		}
	}

	log.Warn("max attempts exceeded", zap.Int("attempts", w.cfg.MaxAttempts))
	outcome = model.Outcome{Status: model.OutcomeFailure, Detail: "max attempts exceeded"}
}

// pollOnce performs one search round and tries to reserve each candidate in
// order.  It returns a non-nil details on success, (nil, nil) when nothing
// could be reserved this round, and an error only for unexpected provider
// failures.
func (w *Worker) pollOnce(ctx context.Context, client provider.Client, req model.ReservationRequest) (*provider.ReservationDetails, error) {
	trains, err := client.Search(ctx, provider.SearchQuery{
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureDate: req.DepartureDate,
		DepartureTime: req.EarliestTime + "00",
		TrainClass:    req.TrainClass,
	})
	if err != nil {
		if errors.Is(err, provider.ErrNoResults) {
			return nil, nil
		}
		return nil, err
	}
	if len(trains) == 0 {
		return nil, nil
	}

	// Results are ordered by departure time: when even the earliest
	// candidate departs at or after the latest acceptable time, the whole
	// round counts as nothing found.
	if departureHHMM(trains[0]) >= latestBound(req.LatestTime) {
		return nil, nil
	}

	for _, train := range trains {
		details, err := client.Reserve(ctx, train, req.SeatPref)
		if err != nil {
			if errors.Is(err, provider.ErrSoldOut) {
				continue
			}
			return nil, err
		}
		return &details, nil
	}
	return nil, nil
}

// departureHHMM extracts the HHMM departure of a train option for window
// comparison.  Provider times are HHMMSS.
func departureHHMM(t provider.TrainOption) int {
	s := t.DepartureTime
	if len(s) > 4 {
		s = s[:4]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func latestBound(hhmm string) int {
	n, err := strconv.Atoi(hhmm)
	if err != nil {
		return 2400
	}
	return n
}

func cancelledOutcome() model.Outcome {
	return model.Outcome{Status: model.OutcomeFailure, Detail: DetailCancelled, Cancelled: true}
}

// sleep waits for d or until ctx is cancelled, reporting false on
// cancellation.  Using a timer in a select keeps the cancel path responsive
// mid-sleep instead of only at loop heads.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
