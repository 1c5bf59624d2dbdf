package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskType back-fills profile agent links from existing persona rows.
const TaskType = "profiles:reconcile"

const queue = "maintenance"

// Reconciler only fills gaps; it never deletes rows.
type Reconciler interface {
	ReconcileProfileLinks(ctx context.Context) (int64, error)
}

func NewTask() *asynq.Task {
	return asynq.NewTask(TaskType, nil, asynq.Queue(queue), asynq.MaxRetry(1))
}

// Handler runs one reconciliation pass.
func Handler(r Reconciler, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		n, err := r.ReconcileProfileLinks(ctx)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		if n > 0 {
			logger.Info("profile links back-filled", zap.Int64("profiles", n))
		} else {
			logger.Debug("profile links up to date")
		}
		return nil
	}
}

// Worker schedules and processes reconcile tasks through Redis.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	interval  time.Duration
	logger    *zap.Logger
}

func NewWorker(redisURL string, interval time.Duration, r Reconciler, logger *zap.Logger) (*Worker, error) {
	if redisURL == "" {
		return nil, errors.New("reconcile: redis url is required")
	}
	if interval <= 0 {
		return nil, errors.New("reconcile: interval must be positive")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("reconcile: parse redis url: %w", err)
	}

	sugar := logger.Named("asynq").Sugar()
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{queue: 1},
		Logger:      sugar,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskType, Handler(r, logger))

	return &Worker{
		server:    srv,
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Logger: sugar}),
		mux:       mux,
		interval:  interval,
		logger:    logger,
	}, nil
}

// Run blocks until ctx is done, then stops the scheduler and the server.
func (w *Worker) Run(ctx context.Context) error {
	schedule := "@every " + w.interval.String()
	if _, err := w.scheduler.Register(schedule, NewTask(), asynq.Unique(w.interval)); err != nil {
		return fmt.Errorf("reconcile: register schedule: %w", err)
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("reconcile: start server: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return fmt.Errorf("reconcile: start scheduler: %w", err)
	}
	w.logger.Info("reconciler running", zap.String("schedule", schedule))

	<-ctx.Done()
	w.scheduler.Shutdown()
	w.server.Shutdown()
	return nil
}
