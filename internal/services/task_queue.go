package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/econify/econify/internal/config"
	"github.com/econify/econify/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	TaskTypeNotify     = "notification:deliver"
	notificationsQueue = "notifications"
)

// NotificationTask fans one message out to a set of users.
type NotificationTask struct {
	UserIDs       []uint `json:"user_ids"`
	Type          string `json:"type"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	DeliverableID *uint  `json:"deliverable_id,omitempty"`
}

// TaskProcessor handles one dequeued notification task.
type TaskProcessor func(context.Context, *NotificationTask) error

// TaskQueue defines the interface for notification delivery
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *NotificationTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue uses Redis when enabled and reachable, otherwise an in-process queue.
func NewTaskQueue(cfg *config.RedisConfig) TaskQueue {
	if cfg.Enabled {
		queue, err := NewAsyncQueue(cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("[TaskQueue] Redis unavailable, falling back to sync mode")
			return NewSyncQueue()
		}
		logger.Info().Str("addr", cfg.Addr).Msg("[TaskQueue] async queue initialized")
		return queue
	}
	logger.Info().Msg("[TaskQueue] sync queue initialized (Redis disabled)")
	return NewSyncQueue()
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *NotificationTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(TaskTypeNotify, payload),
		asynq.Queue(notificationsQueue),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("[AsyncQueue] task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs tasks on a goroutine in this process (no Redis).
type SyncQueue struct {
	processor TaskProcessor
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.processor = processor
}

// Enqueue processes the task in the background so the request is not held up.
func (q *SyncQueue) Enqueue(task *NotificationTask) error {
	if q.processor == nil {
		logger.Warn().Str("type", task.Type).Msg("[SyncQueue] no processor set, task dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.processor(context.Background(), task); err != nil {
			logger.Error().Err(err).Str("type", task.Type).Msg("[SyncQueue] task processing failed")
		}
	}()
	return nil
}

// Wait blocks until every enqueued task has finished.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight tasks.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
