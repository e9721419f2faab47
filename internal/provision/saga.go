package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/zaplink/zaplink/internal/metrics"
)

// Saga coordinates the fixed first-run provisioning pipeline. Steps run
// strictly in order; later steps depend on values resolved by earlier
// ones. There is no compensation: every step is idempotent or guarded by
// a precondition, so re-running the whole saga is always safe.
type Saga struct {
	Clients  Clients
	Migrator Migrator
	Admins   AdminStore

	// Readiness budgets. Zero values fall back to the defaults below.
	DatabaseWait time.Duration
	StorageWait  time.Duration
	DeployWait   time.Duration
	PollInterval time.Duration

	// Sleep is a seam for tests; defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

const (
	defaultDatabaseWait = 3 * time.Minute
	defaultStorageWait  = 210 * time.Second
	defaultDeployWait   = 4 * time.Minute
	defaultPollInterval = 4 * time.Second
)

func (s *Saga) databaseWait() time.Duration {
	if s.DatabaseWait > 0 {
		return s.DatabaseWait
	}
	return defaultDatabaseWait
}

func (s *Saga) storageWait() time.Duration {
	if s.StorageWait > 0 {
		return s.StorageWait
	}
	return defaultStorageWait
}

func (s *Saga) deployWait() time.Duration {
	if s.DeployWait > 0 {
		return s.DeployWait
	}
	return defaultDeployWait
}

func (s *Saga) pollInterval() time.Duration {
	if s.PollInterval > 0 {
		return s.PollInterval
	}
	return defaultPollInterval
}

func (s *Saga) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Run executes the pipeline for one request, emitting a ProgressEvent
// on every observable transition. It returns nil on success or a
// *StepError naming the step that aborted the run.
func (s *Saga) Run(ctx context.Context, req ProvisionRequest, emit Emitter) error {
	if emit == nil {
		emit = func(ProgressEvent) {}
	}
	if s.Clients == nil {
		return errors.New("clients required")
	}
	if s.Migrator == nil {
		return errors.New("migrator required")
	}
	if s.Admins == nil {
		return errors.New("admin store required")
	}
	if err := req.Validate(); err != nil {
		emit(errorEvent(err.Error(), ClassUnknown))
		return err
	}

	runID := uuid.NewString()
	log := slog.With("run_id", runID)
	log.Info("provisioning started")

	st := &runState{}
	steps := s.buildSteps(req, st)
	total := len(steps)

	for i, step := range steps {
		progress := i * 100 / total
		emit(phaseEvent(step, progress, ""))
		log.Info("step started", "step", step.ID, "progress", progress)

		start := time.Now()
		attempts, err := s.runStep(ctx, step, progress, emit)
		metrics.ProvisionStepDuration.WithLabelValues(step.ID).Observe(time.Since(start).Seconds())
		if err != nil {
			class := classify(step, err)
			metrics.ProvisionStepsTotal.WithLabelValues(step.ID, "failed").Inc()
			metrics.ProvisionRunsTotal.WithLabelValues("failed").Inc()
			log.Error("step failed", "step", step.ID, "class", string(class), "error", err)
			emit(errorEvent(userMessage(step, class, attempts, err), class))
			return &StepError{StepID: step.ID, Class: class, Err: err}
		}
		metrics.ProvisionStepsTotal.WithLabelValues(step.ID, "succeeded").Inc()
	}

	metrics.ProvisionRunsTotal.WithLabelValues("succeeded").Inc()
	log.Info("provisioning complete")
	emit(completeEvent())
	return nil
}

// runStep executes one step with its retry policy and reports how many
// attempts ran. Every re-attempt calls the step's Run afresh, which
// constructs new clients, so a failed connection object is never
// reused.
func (s *Saga) runStep(ctx context.Context, step Step, progress int, emit Emitter) (int, error) {
	max := step.Retry.MaxAttempts
	if max < 1 {
		max = 1
	}
	delay := step.Retry.InitialDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	backoff := retry.NewExponential(delay)

	hooks := StepHooks{
		Tick: func(subtitle string) {
			emit(phaseEvent(step, progress, subtitle))
		},
		Retrying: func(attempt, maxAttempts int) {
			metrics.ProvisionStepRetriesTotal.WithLabelValues(step.ID).Inc()
			emit(retryEvent(step.ID, attempt, maxAttempts))
		},
	}

	for attempt := 1; ; attempt++ {
		err := step.Run(ctx, hooks)
		if err == nil {
			return attempt, nil
		}
		if classify(step, err) != ClassNetwork || attempt >= max {
			return attempt, err
		}
		metrics.ProvisionStepRetriesTotal.WithLabelValues(step.ID).Inc()
		emit(retryEvent(step.ID, attempt, max))
		slog.Warn("step retrying", "step", step.ID, "attempt", attempt, "max", max, "error", err)
		wait, stop := backoff.Next()
		if stop {
			return attempt, err
		}
		if err := s.sleep(ctx, wait); err != nil {
			return attempt, err
		}
	}
}

// userMessage converts a step failure into the text shown in the
// wizard. Classified failures name the credential to fix; everything
// else keeps a generic message while the raw error goes to the log.
func userMessage(step Step, class ErrorClass, attempts int, err error) string {
	switch class {
	case ClassHostingToken:
		return "The hosting platform rejected the token or it lacks the required scope."
	case ClassDatabasePAT:
		return "The database platform access token is invalid or expired."
	case ClassQueueToken:
		return "The job queue token is invalid."
	case ClassCacheURL:
		return "The cache REST URL looks malformed or unreachable."
	case ClassCacheToken:
		return "The cache platform rejected the REST token."
	case ClassNetwork:
		if attempts > 1 {
			return fmt.Sprintf("A network failure persisted after %d attempts: %v", attempts, err)
		}
		return "A network failure interrupted setup: " + err.Error()
	default:
		return "Setup failed during \"" + step.Title + "\". Check the server logs for details."
	}
}
