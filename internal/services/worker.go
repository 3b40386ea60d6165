package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/econify/econify/internal/config"
	"github.com/econify/econify/pkg/logger"
	"github.com/hibiken/asynq"
)

// Worker consumes notification tasks from Redis.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor TaskProcessor
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency:    4,
			Queues:         map[string]int{notificationsQueue: 1},
			RetryDelayFunc: notificationRetryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				logger.Error().Err(err).Str("type", task.Type()).Int("retry", retried).Msg("[Worker] notification task failed")
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

// notificationRetryDelay backs off 2s, 4s, 8s and caps at a minute.
func notificationRetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n >= 5 {
		return time.Minute
	}
	return time.Duration(2<<n) * time.Second
}

func (w *Worker) SetProcessor(processor TaskProcessor) {
	w.processor = processor
}

func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeNotify, w.handleNotificationTask)

	// Start does not install signal handlers; shutdown is driven by Stop.
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	w.running = true
	logger.Info().Msg("[Worker] async worker started")
	return nil
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Info().Msg("[Worker] shutting down")
	w.server.Shutdown()
	w.running = false
}

func (w *Worker) handleNotificationTask(ctx context.Context, t *asynq.Task) error {
	var task NotificationTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		// a malformed payload will never succeed
		return fmt.Errorf("unmarshal notification task: %v: %w", err, asynq.SkipRetry)
	}

	if len(task.UserIDs) == 0 {
		return nil
	}
	if w.processor == nil {
		logger.Warn().Str("type", task.Type).Msg("[Worker] no processor set, task dropped")
		return nil
	}
	return w.processor(ctx, &task)
}
