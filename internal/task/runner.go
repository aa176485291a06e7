package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fithub/fithub-api/internal/platform/logger"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks.
	// If zero, defaults to 5 minutes.
	StuckTaskCheckInterval time.Duration

	// TaskTimeout bounds a single Execute call. If zero, defaults to 1 minute.
	TaskTimeout time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		TaskTimeout:            time.Minute,
	}
}

// TaskRunner manages background task processing
type TaskRunner struct {
	store      TaskStore
	registry   *Registry
	queue      *TaskQueue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewTaskRunner creates a new TaskRunner. registry rebuilds tasks recovered
// from store; a nil registry requeues stored tasks as they are.
func NewTaskRunner(store TaskStore, registry *Registry, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if config.TaskTimeout == 0 {
		config.TaskTimeout = time.Minute
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	logger = logger.With(slog.String("component", "task_runner"))

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		store:      store,
		registry:   registry,
		queue:      NewTaskQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit persists task and adds it to the queue. A task that was saved but
// could not be queued stays pending and is picked up on the next recovery.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		return fmt.Errorf("failed to queue task %s: %w", task.ID(), err)
	}
	return nil
}

// Start recovers unfinished tasks, then starts the workers and the stuck
// task monitor.
func (r *TaskRunner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the task runner. Tasks still queued remain
// pending in the store.
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.queue.Close()
}

// Recover loads any unfinished tasks from the database
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	// Processing tasks were interrupted by a crash; take all of them.
	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, task := range pendingTasks {
		r.requeue(ctx, task, false, "recovered pending task")
	}
	for _, task := range processingTasks {
		r.requeue(ctx, task, true, "Reset after recovery")
	}
	return nil
}

// requeue rebuilds a stored task and puts it back on the queue. When reset
// is set, the task is first moved back to pending with reason.
func (r *TaskRunner) requeue(ctx context.Context, stored Task, reset bool, reason string) {
	log := r.logger.With("task_id", stored.ID(), "task_type", stored.Type())

	task := stored
	if r.registry != nil {
		rebuilt, err := r.registry.Rebuild(stored)
		if err != nil {
			log.Error("failed to rebuild stored task", "error", err)
			if updateErr := r.store.UpdateTaskStatus(ctx, stored.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
				log.Error("failed to mark unrecoverable task as failed", "error", updateErr)
			}
			return
		}
		task = rebuilt
	}

	if reset {
		if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusPending, reason); err != nil {
			log.Error("failed to reset task status", "error", err)
			return
		}
	}

	if err := r.queue.Enqueue(task); err != nil {
		log.Error("failed to requeue task", "error", err)
		return
	}
	log.Debug("requeued task", "reason", reason)
}

func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			r.processTask(task, id)
		}
	}
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(task Task, workerID int) {
	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)
	ctx := logger.WithLogger(context.Background(), log)

	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, ""); err != nil {
		log.Error("failed to update task status to processing", "error", err)
		return
	}

	log.Info("processing task")

	execCtx, cancel := context.WithTimeout(ctx, r.config.TaskTimeout)
	err := task.Execute(execCtx)
	cancel()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("task timed out", "timeout", r.config.TaskTimeout)
		}
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to update task status to failed", "error", updateErr)
		}
		r.errHandler(task, err)
		return
	}

	log.Info("task completed successfully")
	if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusCompleted, ""); updateErr != nil {
		log.Error("failed to update task status to completed", "error", updateErr)
	}
}

// stuckTaskMonitor periodically resets tasks that have been in "processing"
// state for longer than StuckTaskAge.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
			if err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}
			if len(stuckTasks) == 0 {
				continue
			}

			r.logger.Info("found stuck tasks", "count", len(stuckTasks))
			for _, task := range stuckTasks {
				r.requeue(ctx, task, true, "Reset after being stuck in processing state")
			}
		}
	}
}
